// Package locator creates, deletes and restyles the snap locators under the locator group.
package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gsnap/extension/internal/scene"
	"github.com/gsnap/extension/internal/ui"
)

// DefaultFallbackColor is used when the newest sibling has no override color.
var DefaultFallbackColor = scene.Color{1, 0.19, 0.02}

// ConfirmDeleteAll is the question asked before the whole group is deleted.
const ConfirmDeleteAll = "Delete all Locators?"

// Config holds the locator defaults.
type Config struct {
	Group         string
	DefaultScale  int
	FallbackColor scene.Color
}

// DeleteResult says which delete path was taken.
type DeleteResult int

const (
	DeletedSelected DeleteResult = iota
	DeleteDeclined
	DeletedAll
)

func (r DeleteResult) String() string {
	switch r {
	case DeletedSelected:
		return "deleted_selected"
	case DeleteDeclined:
		return "declined"
	case DeletedAll:
		return "deleted_all"
	default:
		return "unknown"
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// Manager owns the locator group and the shared display scale.
type Manager struct {
	gw      scene.Gateway
	list    *ui.List
	visible *ui.Checkbox
	cfg     Config
	scale   int
	logger  *slog.Logger
}

// NewManager creates a manager. list and visible are the UI models it keeps
// consistent on delete and on visibility changes.
func NewManager(gw scene.Gateway, list *ui.List, visible *ui.Checkbox, cfg Config, opts ...Option) *Manager {
	if cfg.DefaultScale < 1 {
		cfg.DefaultScale = 1
	}
	m := &Manager{
		gw:      gw,
		list:    list,
		visible: visible,
		cfg:     cfg,
		scale:   cfg.DefaultScale,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Group returns the locator group name.
func (m *Manager) Group() string {
	return m.cfg.Group
}

// Scale returns the shared display scale given to new locators.
func (m *Manager) Scale() int {
	return m.scale
}

// SyncScale adopts v as the shared display scale without touching the scene.
// Used when the scale is read back from existing locators.
func (m *Manager) SyncScale(v int) {
	m.scale = v
}

// Children returns the locators in the group. A missing group has none.
func (m *Manager) Children() ([]string, error) {
	children, err := m.gw.ListChildren(m.cfg.Group)
	if errors.Is(err, scene.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, scene.Race("list locators", err)
	}
	return children, nil
}

// Add creates a locator named after requested. With one selected object the
// locator is aligned to it; with two it is also constrained to the second one,
// keeping the offset. A *ValidationError is returned before any mutation.
func (m *Manager) Add(requested string, selection []string) (string, error) {
	name := NormalizeName(requested)
	children, err := m.Children()
	if err != nil {
		return "", err
	}
	if err := ValidateName(name, children); err != nil {
		return "", err
	}

	var created string
	err = scene.InUndoChunk(m.gw, "gsnapAddLocator", func() error {
		if !m.gw.Exists(m.cfg.Group) {
			if err := m.gw.CreateGroup(m.cfg.Group); err != nil {
				return fmt.Errorf("create group: %w", err)
			}
		}
		color := m.inheritedColor(children)

		loc, err := m.gw.CreateLocator(name)
		if err != nil {
			return fmt.Errorf("create locator: %w", err)
		}
		created = loc
		if err := m.gw.Parent(loc, m.cfg.Group); err != nil {
			return fmt.Errorf("parent locator: %w", err)
		}

		if len(selection) >= 1 {
			id, err := m.gw.CreateParentConstraint(selection[0], loc, false)
			if err != nil {
				return fmt.Errorf("align to %s: %w", selection[0], err)
			}
			if err := m.gw.DeleteConstraint(id); err != nil {
				return fmt.Errorf("remove alignment: %w", err)
			}
		}
		if len(selection) >= 2 {
			if _, err := m.gw.CreateParentConstraint(selection[1], loc, true); err != nil {
				return fmt.Errorf("constrain to %s: %w", selection[1], err)
			}
		}

		if err := scene.WriteColor(m.gw, loc, color); err != nil {
			return fmt.Errorf("color locator: %w", err)
		}
		return scene.WriteScale(m.gw, loc, float64(m.scale))
	})
	if err != nil {
		return created, scene.Race("add locator "+name, err)
	}

	m.logger.Info("locator added", "name", created, "selection", selection, "scale", m.scale)
	return created, nil
}

// inheritedColor returns the override color of the newest sibling, or the
// fallback when there is none or it is black.
func (m *Manager) inheritedColor(children []string) scene.Color {
	fallback := m.cfg.FallbackColor
	if fallback.IsBlack() {
		fallback = DefaultFallbackColor
	}
	if len(children) == 0 {
		return fallback
	}
	c, err := scene.ReadColor(m.gw, children[len(children)-1])
	if err != nil || c.IsBlack() {
		return fallback
	}
	return c
}

// Delete removes the selected locators. Selected objects outside the group are
// left alone. With an empty selection confirm is asked whether to delete the
// whole group; declining changes nothing.
func (m *Manager) Delete(selection []string, confirm func(question string) bool) (DeleteResult, error) {
	if len(selection) == 0 {
		return m.deleteAll(confirm)
	}

	children, err := m.Children()
	if err != nil {
		return DeletedSelected, err
	}
	var targets []string
	for _, name := range selection {
		if slices.Contains(children, name) {
			targets = append(targets, name)
		}
	}
	if len(targets) == 0 {
		return DeletedSelected, nil
	}

	err = scene.InUndoChunk(m.gw, "gsnapDeleteLocators", func() error {
		return m.gw.Delete(targets...)
	})
	if err != nil {
		return DeletedSelected, scene.Race("delete locators", err)
	}
	for _, name := range targets {
		m.list.SetHidden(name, true)
	}

	m.logger.Info("locators deleted", "names", targets)
	return DeletedSelected, nil
}

func (m *Manager) deleteAll(confirm func(question string) bool) (DeleteResult, error) {
	if confirm == nil || !confirm(ConfirmDeleteAll) {
		return DeleteDeclined, nil
	}

	err := scene.InUndoChunk(m.gw, "gsnapDeleteAll", func() error {
		return m.gw.Delete(m.cfg.Group)
	})
	if err != nil && !errors.Is(err, scene.ErrNotFound) {
		return DeletedAll, scene.Race("delete locator group", err)
	}
	m.list.Clear()

	m.logger.Info("locator group deleted", "group", m.cfg.Group)
	return DeletedAll, nil
}

// SetScale makes v the shared display scale and writes it to every locator.
// A failing locator does not stop the others; the first failure is returned.
func (m *Manager) SetScale(v int) error {
	m.scale = v

	children, err := m.Children()
	if err != nil {
		return err
	}

	err = scene.InUndoChunk(m.gw, "gsnapScale", func() error {
		var first error
		for _, name := range children {
			if err := scene.WriteScale(m.gw, name, float64(v)); err != nil {
				m.logger.Warn("failed to scale locator", "name", name, "error", err)
				if first == nil {
					first = err
				}
			}
		}
		return first
	})
	return scene.Race("scale locators", err)
}

// SetVisible shows or hides every locator. forceShow reveals them all and
// checks the visibility box; otherwise the box decides. A missing group is
// nothing to do.
func (m *Manager) SetVisible(forceShow bool) (scene.Outcome, error) {
	if forceShow {
		m.visible.SetChecked(true)
	}
	show := m.visible.Checked()

	children, err := m.gw.ListChildren(m.cfg.Group)
	if errors.Is(err, scene.ErrNotFound) {
		return scene.OutcomeNothingToDo, nil
	}
	if err != nil {
		return scene.OutcomeNothingToDo, scene.Race("list locators", err)
	}
	if len(children) == 0 {
		return scene.OutcomeNothingToDo, nil
	}

	err = scene.InUndoChunk(m.gw, "gsnapVisibility", func() error {
		for _, name := range children {
			if err := scene.SetVisible(m.gw, name, show); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return scene.OutcomeApplied, scene.Race("set locator visibility", err)
	}
	return scene.OutcomeApplied, nil
}
