package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gsnap/extension/internal/scene"
	"github.com/gsnap/extension/internal/ui"
)

const instrumentationName = "github.com/gsnap/extension/internal/reconcile"

// Outcome says why a pass did or did not change anything.
type Outcome int

const (
	// OutcomeApplied means the pass changed the non-authoritative side.
	OutcomeApplied Outcome = iota
	// OutcomeInSync means both sides already agreed.
	OutcomeInSync
	// OutcomeRace means the scene could not be read or written consistently.
	// Nothing was changed if the failure happened while reading.
	OutcomeRace
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeInSync:
		return "in_sync"
	case OutcomeRace:
		return "race"
	default:
		return "unknown"
	}
}

// Result describes one pass.
type Result struct {
	Direction Direction
	Outcome   Outcome
	Duration  time.Duration

	// FromScene
	List ListPlan
	// Scale is the display scale observed on the first locator, when HasScale is set.
	Scale    int
	HasScale bool

	// FromUI
	Scene          ScenePlan
	FocusRequested bool
}

// Observer receives every finished pass.
type Observer interface {
	ObservePass(Result)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithObserver adds a pass observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// Engine runs reconciliation passes between a scene group and a list.
type Engine struct {
	gw        scene.Gateway
	list      *ui.List
	group     string
	logger    *slog.Logger
	observers []Observer

	passes    metric.Int64Counter
	mutations metric.Int64Counter
}

// New creates an engine for the locator group named group.
func New(gw scene.Gateway, list *ui.List, group string, opts ...Option) (*Engine, error) {
	e := &Engine{
		gw:     gw,
		list:   list,
		group:  group,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	m := otel.Meter(instrumentationName)

	var err error
	e.passes, err = m.Int64Counter(
		"gsnap.reconcile.passes",
		metric.WithDescription("Reconciliation passes by direction and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating passes counter: %w", err)
	}

	e.mutations, err = m.Int64Counter(
		"gsnap.reconcile.mutations",
		metric.WithDescription("Mutations applied by reconciliation passes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating mutations counter: %w", err)
	}

	return e, nil
}

// Group returns the name of the locator group the engine mirrors.
func (e *Engine) Group() string {
	return e.group
}

// Reconcile runs one pass in direction dir. A race is reported both as
// OutcomeRace and as an error wrapping scene.ErrExternalStateRace.
func (e *Engine) Reconcile(dir Direction) (Result, error) {
	start := time.Now()

	var (
		res Result
		err error
	)
	switch dir {
	case FromScene:
		res, err = e.fromScene()
	case FromUI:
		res, err = e.fromUI()
	default:
		return Result{}, fmt.Errorf("reconcile: unknown direction %d", dir)
	}
	res.Direction = dir
	res.Duration = time.Since(start)
	if err != nil {
		res.Outcome = OutcomeRace
	}

	e.record(res)
	if err != nil {
		e.logger.Debug("reconcile pass aborted", "direction", dir.String(), "error", err)
		return res, err
	}
	e.logger.Debug("reconcile pass complete",
		"direction", dir.String(),
		"outcome", res.Outcome.String(),
		"duration", res.Duration,
	)
	return res, nil
}

// ReadScene snapshots the scene side.
func (e *Engine) ReadScene() (SceneView, error) {
	children, err := e.gw.ListChildren(e.group)
	if err != nil && !errors.Is(err, scene.ErrNotFound) {
		return SceneView{}, scene.Race("read locator group", err)
	}
	selection, err := e.gw.Selection()
	if err != nil {
		return SceneView{}, scene.Race("read selection", err)
	}
	return SceneView{Children: children, Selection: selection}, nil
}

func (e *Engine) fromScene() (Result, error) {
	view, err := e.ReadScene()
	if err != nil {
		return Result{}, err
	}

	var res Result
	if len(view.Children) > 0 {
		scale, err := scene.ReadScale(e.gw, view.Children[0])
		if err != nil {
			return Result{}, scene.Race("read display scale", err)
		}
		res.Scale = int(scale)
		res.HasScale = true
	}

	res.List = PlanFromScene(view, e.list.Items())
	if res.List.Empty() {
		res.Outcome = OutcomeInSync
		return res, nil
	}

	for _, name := range res.List.Hide {
		e.list.SetHidden(name, true)
	}
	for _, name := range res.List.Unhide {
		e.list.SetHidden(name, false)
	}
	for _, name := range res.List.Append {
		e.list.Append(name)
	}
	if res.List.SelectionChanged {
		e.list.Select(res.List.Selection...)
	}
	res.Outcome = OutcomeApplied
	return res, nil
}

func (e *Engine) fromUI() (Result, error) {
	selection, err := e.gw.Selection()
	if err != nil {
		return Result{}, scene.Race("read selection", err)
	}

	var res Result
	res.Scene = PlanFromUI(e.list.Items(), selection)
	if res.Scene.Empty() {
		res.Outcome = OutcomeInSync
		return res, nil
	}

	if len(res.Scene.Add) > 0 {
		if err := e.gw.Select(scene.SelectAdd, res.Scene.Add...); err != nil {
			return res, scene.Race("add to selection", err)
		}
	}
	if len(res.Scene.Remove) > 0 {
		if err := e.gw.Select(scene.SelectRemove, res.Scene.Remove...); err != nil {
			return res, scene.Race("remove from selection", err)
		}
	}
	res.FocusRequested = true
	res.Outcome = OutcomeApplied
	return res, nil
}

func (e *Engine) record(res Result) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("direction", res.Direction.String()),
		attribute.String("outcome", res.Outcome.String()),
	)
	e.passes.Add(ctx, 1, attrs)

	n := res.List.Mutations() + len(res.Scene.Add) + len(res.Scene.Remove)
	if res.Outcome == OutcomeApplied && n > 0 {
		e.mutations.Add(ctx, int64(n), metric.WithAttributes(attribute.String("direction", res.Direction.String())))
	}

	for _, o := range e.observers {
		o.ObservePass(res)
	}
}
