// Package snap copies the world transform of one object onto another while
// keeping any parent constraint the receiving object already had.
package snap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gsnap/extension/internal/scene"
)

// TempLocator is the name of the throwaway alignment object.
const TempLocator = "gsnap_value_locator"

// Option configures an Operator.
type Option func(*Operator)

// WithLogger sets the operator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Operator) {
		o.logger = l
	}
}

// Operator performs snaps against a scene.
type Operator struct {
	gw     scene.Gateway
	logger *slog.Logger
}

// New creates an operator.
func New(gw scene.Gateway, opts ...Option) *Operator {
	o := &Operator{
		gw:     gw,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Snap moves objects[0] onto the world pose of objects[1] in one undo chunk.
// Fewer than two objects, or the same object twice, is nothing to do.
func (o *Operator) Snap(objects []string) (scene.Outcome, error) {
	if len(objects) < 2 || objects[0] == objects[1] {
		return scene.OutcomeNothingToDo, nil
	}
	target, source := objects[0], objects[1]

	err := scene.InUndoChunk(o.gw, "gsnapSnap", func() error {
		return o.snap(target, source)
	})
	if err != nil {
		return scene.OutcomeApplied, scene.Race(fmt.Sprintf("snap %s to %s", target, source), err)
	}

	o.logger.Debug("snapped", "target", target, "source", source)
	return scene.OutcomeApplied, nil
}

func (o *Operator) snap(target, source string) error {
	parents, err := o.detachParentConstraints(target)
	if err != nil {
		return err
	}

	t, err := o.capture(source)
	if err == nil {
		err = scene.WriteTransform(o.gw, target, t)
	}

	// the snapped pose becomes the new offset
	for _, p := range parents {
		if _, cerr := o.gw.CreateParentConstraint(p, target, true); cerr != nil {
			err = errors.Join(err, fmt.Errorf("restore constraint from %s: %w", p, cerr))
		}
	}
	if err != nil {
		return err
	}

	if err := o.gw.Select(scene.SelectReplace, target); err != nil {
		return fmt.Errorf("select %s: %w", target, err)
	}
	return o.gw.RestoreFocus()
}

// detachParentConstraints deletes every parent constraint driving target and
// returns the sources to reattach. A constraint whose source cannot be
// resolved is deleted without being reattached.
func (o *Operator) detachParentConstraints(target string) ([]string, error) {
	ids, err := o.gw.ListConstraints(target)
	if err != nil {
		return nil, fmt.Errorf("list constraints of %s: %w", target, err)
	}

	var parents []string
	for _, id := range ids {
		src, serr := o.gw.ConstraintSource(id)
		if err := o.gw.DeleteConstraint(id); err != nil {
			return parents, fmt.Errorf("detach constraint %s: %w", id, err)
		}
		if serr != nil || src == target {
			o.logger.Debug("dropped unresolved constraint", "constraint", string(id), "error", serr)
			continue
		}
		parents = append(parents, src)
	}
	return parents, nil
}

// capture reads the world pose of source through a temporary locator
// constrained onto it. The locator is always deleted; failing to delete it is
// only logged.
func (o *Operator) capture(source string) (t scene.Transform, err error) {
	tmp, err := o.gw.CreateLocator(TempLocator)
	if err != nil {
		return scene.Transform{}, fmt.Errorf("create alignment locator: %w", err)
	}
	defer func() {
		if derr := o.gw.Delete(tmp); derr != nil {
			o.logger.Warn("failed to delete alignment locator", "name", tmp, "error", derr)
		}
	}()

	id, err := o.gw.CreateParentConstraint(source, tmp, false)
	if err != nil {
		return scene.Transform{}, fmt.Errorf("align to %s: %w", source, err)
	}
	t, err = scene.ReadTransform(o.gw, tmp)
	if derr := o.gw.DeleteConstraint(id); derr != nil {
		o.logger.Warn("failed to delete alignment constraint", "constraint", string(id), "error", derr)
	}
	if err != nil {
		return scene.Transform{}, fmt.Errorf("read pose of %s: %w", source, err)
	}
	return t, nil
}
