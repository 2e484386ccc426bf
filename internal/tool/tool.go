// Package tool is the GSnap window: it owns the widget models and routes user
// actions and scene notifications to the reconciler, the locator manager and
// the snap operator.
//
// Every exported method must run on the tool's scheduler loop.
package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gsnap/extension/internal/locator"
	"github.com/gsnap/extension/internal/reconcile"
	"github.com/gsnap/extension/internal/scene"
	"github.com/gsnap/extension/internal/scheduler"
	"github.com/gsnap/extension/internal/snap"
	"github.com/gsnap/extension/internal/ui"
)

// WindowKey is the settings key holding the window geometry.
const WindowKey = "windowGeometry"

// Scale slider range.
const (
	MinScale = 1
	MaxScale = 100
)

// ErrUndoUnsupported is returned by Undo when the scene has no undo queue of its own.
var ErrUndoUnsupported = errors.New("scene does not support undo")

// Config holds the tool settings.
type Config struct {
	Group         string
	DefaultScale  int
	FallbackColor scene.Color
	Debounce      time.Duration
	FocusDelay    time.Duration
}

// DefaultConfig returns the stock tool settings.
func DefaultConfig() Config {
	return Config{
		Group:         "GSnap",
		DefaultScale:  1,
		FallbackColor: locator.DefaultFallbackColor,
		Debounce:      100 * time.Millisecond,
		FocusDelay:    111 * time.Millisecond,
	}
}

// Settings persists small values between sessions.
type Settings interface {
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// Undoer is implemented by scenes that keep their own undo queue.
type Undoer interface {
	Undo() error
}

// State is a snapshot of the tool widgets.
type State struct {
	Open    bool      `json:"open"`
	Group   string    `json:"group"`
	Items   []ui.Item `json:"items"`
	Scale   int       `json:"scale"`
	Visible bool      `json:"visible"`
	Window  ui.Window `json:"window"`
}

// Option configures a Tool.
type Option func(*Tool)

// WithLogger sets the tool logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tool) {
		t.logger = l
	}
}

// WithSettings sets the store used for window geometry.
func WithSettings(s Settings) Option {
	return func(t *Tool) {
		t.settings = s
	}
}

// WithObserver adds a reconcile pass observer.
func WithObserver(o reconcile.Observer) Option {
	return func(t *Tool) {
		t.observers = append(t.observers, o)
	}
}

// Tool is one GSnap window bound to a scene.
type Tool struct {
	gw        scene.Gateway
	loop      *scheduler.Loop
	cfg       Config
	logger    *slog.Logger
	settings  Settings
	observers []reconcile.Observer

	list    *ui.List
	slider  *ui.Slider
	visible *ui.Checkbox
	window  ui.Window

	engine   *reconcile.Engine
	locators *locator.Manager
	snapper  *snap.Operator

	fromScene *scheduler.Debouncer
	fromUI    *scheduler.Debouncer

	open        bool
	unsubscribe func()
}

// New creates a closed tool.
func New(gw scene.Gateway, loop *scheduler.Loop, cfg Config, opts ...Option) (*Tool, error) {
	t := &Tool{
		gw:      gw,
		loop:    loop,
		cfg:     cfg,
		logger:  slog.Default(),
		list:    ui.NewList(),
		visible: &ui.Checkbox{},
		window:  ui.DefaultWindow,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.visible.SetChecked(true)
	t.slider = ui.NewSlider(MinScale, MaxScale, cfg.DefaultScale)

	engineOpts := []reconcile.Option{reconcile.WithLogger(t.logger)}
	for _, o := range t.observers {
		engineOpts = append(engineOpts, reconcile.WithObserver(o))
	}
	engine, err := reconcile.New(gw, t.list, cfg.Group, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating reconcile engine: %w", err)
	}
	t.engine = engine

	t.locators = locator.NewManager(gw, t.list, t.visible, locator.Config{
		Group:         cfg.Group,
		DefaultScale:  t.slider.Value(),
		FallbackColor: cfg.FallbackColor,
	}, locator.WithLogger(t.logger))
	t.snapper = snap.New(gw, snap.WithLogger(t.logger))

	t.fromScene = loop.NewDebouncer(reconcile.FromScene.String(), cfg.Debounce, func() {
		t.pass(reconcile.FromScene)
	})
	t.fromUI = loop.NewDebouncer(reconcile.FromUI.String(), cfg.Debounce, func() {
		t.pass(reconcile.FromUI)
	})

	return t, nil
}

// List returns the locator list model.
func (t *Tool) List() *ui.List {
	return t.list
}

// Open restores the window, shows every locator and mirrors the scene.
func (t *Tool) Open() error {
	if t.open {
		return nil
	}
	t.open = true
	t.restoreWindow()

	if n, ok := t.gw.(scene.Notifier); ok {
		t.unsubscribe = n.Subscribe(t.onSceneChange)
	}

	if _, err := t.locators.SetVisible(true); err != nil {
		t.logger.Warn("failed to show locators", "error", err)
	}
	t.pass(reconcile.FromScene)

	t.logger.Info("tool opened", "group", t.cfg.Group, "window", t.window)
	return nil
}

// Close saves the window and stops following the scene. Passes still pending
// are dropped.
func (t *Tool) Close() error {
	if !t.open {
		return nil
	}
	t.open = false
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}

	err := t.saveWindow()
	t.logger.Info("tool closed", "group", t.cfg.Group)
	return err
}

// SceneChanged schedules a pass from the scene.
func (t *Tool) SceneChanged() {
	t.fromScene.Trigger()
}

// ListSelectionChanged applies a selection the user made in the list widget
// and schedules a pass from the list. Selection written by passes from the
// scene never comes through here.
func (t *Tool) ListSelectionChanged(names ...string) {
	if !t.list.Select(names...) {
		return
	}
	t.logger.Debug("list selection changed", "names", names)
	t.fromUI.Trigger()
}

// AddLocator asks for a name and creates a locator at the current selection.
// A cancelled prompt does nothing; an invalid name is shown through p.
func (t *Tool) AddLocator(p ui.Prompter) (string, error) {
	selection, err := t.gw.Selection()
	if err != nil {
		return "", t.fail("add locator", scene.Race("read selection", err))
	}

	text, ok := p.PromptText("Add Locator", "Name:")
	if !ok {
		return "", nil
	}

	name, err := t.locators.Add(text, selection)
	var verr *locator.ValidationError
	if errors.As(err, &verr) {
		p.ShowError(verr.Error())
		return "", err
	}
	t.pass(reconcile.FromScene)
	if err != nil {
		return name, t.fail("add locator", err)
	}
	t.restoreFocus()
	return name, nil
}

// Snap moves the first selected object onto the second.
func (t *Tool) Snap() (scene.Outcome, error) {
	selection, err := t.gw.Selection()
	if err != nil {
		return scene.OutcomeNothingToDo, t.fail("snap", scene.Race("read selection", err))
	}

	out, err := t.snapper.Snap(selection)
	if out == scene.OutcomeApplied {
		t.pass(reconcile.FromScene)
	}
	if err != nil {
		return out, t.fail("snap", err)
	}
	return out, nil
}

// DeleteLocators deletes the selected locators, or after confirmation through
// p the whole group when nothing is selected.
func (t *Tool) DeleteLocators(p ui.Prompter) (locator.DeleteResult, error) {
	selection, err := t.gw.Selection()
	if err != nil {
		return locator.DeleteDeclined, t.fail("delete locators", scene.Race("read selection", err))
	}

	res, err := t.locators.Delete(selection, func(q string) bool {
		return p.Confirm("X", q)
	})
	if res == locator.DeletedSelected {
		t.pass(reconcile.FromScene)
	}
	if err != nil {
		return res, t.fail("delete locators", err)
	}
	if res != locator.DeleteDeclined {
		t.restoreFocus()
	}
	return res, nil
}

// ScaleChanged moves the slider to v and rescales every locator.
func (t *Tool) ScaleChanged(v int) error {
	t.slider.SetValue(v)
	err := t.locators.SetScale(t.slider.Value())
	t.pass(reconcile.FromScene)
	if err != nil {
		return t.fail("scale locators", err)
	}
	return nil
}

// VisibilityToggled sets the visibility box and shows or hides every locator.
func (t *Tool) VisibilityToggled(checked bool) error {
	t.visible.SetChecked(checked)
	_, err := t.locators.SetVisible(false)
	t.pass(reconcile.FromScene)
	if err != nil {
		return t.fail("toggle visibility", err)
	}
	return nil
}

// MoveWindow records new window geometry. It is persisted on Close.
func (t *Tool) MoveWindow(w ui.Window) {
	t.window = w
}

// Undo reverts the last undo chunk of the scene and mirrors the result.
func (t *Tool) Undo() error {
	u, ok := t.gw.(Undoer)
	if !ok {
		return ErrUndoUnsupported
	}
	if err := u.Undo(); err != nil {
		return err
	}
	t.pass(reconcile.FromScene)
	return nil
}

// Flush runs pending debounced passes now. It must not be called from the loop.
func (t *Tool) Flush() error {
	if err := t.fromUI.Flush(); err != nil {
		return err
	}
	return t.fromScene.Flush()
}

// State returns a snapshot of the widgets.
func (t *Tool) State() State {
	return State{
		Open:    t.open,
		Group:   t.cfg.Group,
		Items:   t.list.Items(),
		Scale:   t.slider.Value(),
		Visible: t.visible.Checked(),
		Window:  t.window,
	}
}

func (t *Tool) onSceneChange(c scene.Change) {
	if c.Kind == scene.AttributeChanged {
		return
	}
	t.fromScene.Trigger()
}

func (t *Tool) pass(dir reconcile.Direction) {
	if !t.open {
		return
	}
	res, err := t.engine.Reconcile(dir)
	if err != nil {
		t.logger.Debug("reconcile pass skipped", "direction", dir.String(), "error", err)
		return
	}
	if res.HasScale {
		t.slider.SetValueSilently(res.Scale)
		t.locators.SyncScale(t.slider.Value())
	}
	if res.FocusRequested {
		t.loop.After(t.cfg.FocusDelay, t.restoreFocus)
	}
}

func (t *Tool) restoreFocus() {
	if err := t.gw.RestoreFocus(); err != nil {
		t.logger.Debug("failed to restore focus", "error", err)
	}
}

func (t *Tool) fail(op string, err error) error {
	t.logger.Error("operation failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

func (t *Tool) restoreWindow() {
	if t.settings == nil {
		return
	}
	var w ui.Window
	found, err := t.settings.Get(context.Background(), WindowKey, &w)
	if err != nil {
		t.logger.Warn("failed to load window geometry", "error", err)
		return
	}
	if found {
		t.window = w
	}
}

func (t *Tool) saveWindow() error {
	if t.settings == nil {
		return nil
	}
	if err := t.settings.Set(context.Background(), WindowKey, t.window); err != nil {
		t.logger.Warn("failed to save window geometry", "error", err)
		return fmt.Errorf("saving window geometry: %w", err)
	}
	return nil
}
