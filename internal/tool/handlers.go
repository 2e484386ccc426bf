package tool

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gsnap/extension/internal/dispatcher"
	"github.com/gsnap/extension/internal/scene"
	"github.com/gsnap/extension/internal/ui"
)

// Host commands.
const (
	CmdOpen          = ":OPEN:"
	CmdClose         = ":CLOSE:"
	CmdSceneChanged  = ":SCENE:CHANGED:"
	CmdListSelect    = ":LIST:SELECT:"
	CmdAdd           = ":ADD:"
	CmdSnap          = ":SNAP:"
	CmdDelete        = ":DELETE:"
	CmdScale         = ":SCALE:"
	CmdVisible       = ":VISIBLE:"
	CmdWindow        = ":WINDOW:"
	CmdState         = ":STATE:"
	CmdUndo          = ":UNDO:"
	CmdSceneCreate   = ":SCENE:CREATE:"
	CmdSceneSelect   = ":SCENE:SELECT:"
	CmdSceneMove     = ":SCENE:MOVE:"
	CmdSceneDelete   = ":SCENE:DELETE:"
	CmdSceneWorld    = ":SCENE:WORLD:"
	CmdSceneChildren = ":SCENE:CHILDREN:"
)

const sceneChangedBuffer = 64

// RegisterHandlers registers the tool commands on d. Dialog answers come in as
// command arguments: :ADD: takes the name (no argument cancels) and :DELETE:
// takes "yes" to confirm deleting the whole group.
func (t *Tool) RegisterHandlers(d *dispatcher.Dispatcher) {
	onLoop := dispatcher.OnLoop(t.loop)

	d.Register(CmdOpen, func(e dispatcher.Event) (any, error) {
		return nil, t.Open()
	}, onLoop, dispatcher.Logged())

	d.Register(CmdClose, func(e dispatcher.Event) (any, error) {
		return nil, t.Close()
	}, onLoop, dispatcher.Logged())

	// Scene notifications are fire and forget; the debouncer coalesces them.
	d.Register(CmdSceneChanged, func(e dispatcher.Event) (any, error) {
		t.SceneChanged()
		return nil, nil
	}, onLoop, dispatcher.Buffered(sceneChangedBuffer))

	d.Register(CmdListSelect, func(e dispatcher.Event) (any, error) {
		t.ListSelectionChanged(e.Args...)
		return nil, nil
	}, onLoop)

	d.Register(CmdAdd, func(e dispatcher.Event) (any, error) {
		p := &ui.ScriptedPrompter{}
		if len(e.Args) > 0 {
			p.Text, p.Accept = e.Args[0], true
		}
		name, err := t.AddLocator(p)
		if err != nil {
			return nil, err
		}
		return name, nil
	}, onLoop, dispatcher.Logged())

	d.Register(CmdSnap, func(e dispatcher.Event) (any, error) {
		out, err := t.Snap()
		if err != nil {
			return nil, err
		}
		return out.String(), nil
	}, onLoop, dispatcher.Logged())

	d.Register(CmdDelete, func(e dispatcher.Event) (any, error) {
		p := &ui.ScriptedPrompter{ConfirmY: len(e.Args) > 0 && strings.EqualFold(e.Args[0], "yes")}
		res, err := t.DeleteLocators(p)
		if err != nil {
			return nil, err
		}
		return res.String(), nil
	}, onLoop, dispatcher.Logged())

	d.Register(CmdScale, func(e dispatcher.Event) (any, error) {
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", CmdScale, len(e.Args))
		}
		v, err := strconv.Atoi(strings.TrimSpace(e.Args[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid scale %q: %w", e.Args[0], err)
		}
		if err := t.ScaleChanged(v); err != nil {
			return nil, err
		}
		return t.slider.Value(), nil
	}, onLoop, dispatcher.Logged())

	d.Register(CmdVisible, func(e dispatcher.Event) (any, error) {
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("%s expects 1 argument, got %d", CmdVisible, len(e.Args))
		}
		checked, err := strconv.ParseBool(strings.TrimSpace(e.Args[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid visibility %q: %w", e.Args[0], err)
		}
		return nil, t.VisibilityToggled(checked)
	}, onLoop, dispatcher.Logged())

	d.Register(CmdWindow, func(e dispatcher.Event) (any, error) {
		v, err := parseInts(e.Args, 4)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", CmdWindow, err)
		}
		t.MoveWindow(ui.Window{X: v[0], Y: v[1], Width: v[2], Height: v[3]})
		return nil, nil
	}, onLoop)

	d.Register(CmdState, func(e dispatcher.Event) (any, error) {
		return t.State(), nil
	}, onLoop)

	d.Register(CmdUndo, func(e dispatcher.Event) (any, error) {
		return nil, t.Undo()
	}, onLoop, dispatcher.Logged())
}

// SceneDriver is the part of an in-process scene that the scene commands drive.
type SceneDriver interface {
	scene.Gateway
	SetTransform(name string, t scene.Transform) error
	WorldTransform(name string) (scene.Transform, error)
}

// RegisterSceneHandlers registers commands that edit an in-process scene the
// way a user would in the host application.
func (t *Tool) RegisterSceneHandlers(d *dispatcher.Dispatcher, s SceneDriver) {
	onLoop := dispatcher.OnLoop(t.loop)

	d.Register(CmdSceneCreate, func(e dispatcher.Event) (any, error) {
		if len(e.Args) != 1 && len(e.Args) != 7 {
			return nil, fmt.Errorf("%s expects a name and optionally 6 transform values", CmdSceneCreate)
		}
		if err := s.CreateGroup(e.Args[0]); err != nil {
			return nil, err
		}
		if len(e.Args) == 1 {
			return nil, nil
		}
		tr, err := parseTransform(e.Args[1:])
		if err != nil {
			return nil, err
		}
		return nil, s.SetTransform(e.Args[0], tr)
	}, onLoop, dispatcher.Logged())

	d.Register(CmdSceneSelect, func(e dispatcher.Event) (any, error) {
		if len(e.Args) == 0 {
			return nil, fmt.Errorf("%s expects a mode", CmdSceneSelect)
		}
		mode, err := parseSelectMode(e.Args[0])
		if err != nil {
			return nil, err
		}
		return nil, s.Select(mode, e.Args[1:]...)
	}, onLoop)

	d.Register(CmdSceneMove, func(e dispatcher.Event) (any, error) {
		if len(e.Args) != 7 {
			return nil, fmt.Errorf("%s expects a name and 6 transform values", CmdSceneMove)
		}
		tr, err := parseTransform(e.Args[1:])
		if err != nil {
			return nil, err
		}
		return nil, s.SetTransform(e.Args[0], tr)
	}, onLoop)

	d.Register(CmdSceneDelete, func(e dispatcher.Event) (any, error) {
		return nil, s.Delete(e.Args...)
	}, onLoop, dispatcher.Logged())

	d.Register(CmdSceneWorld, func(e dispatcher.Event) (any, error) {
		if len(e.Args) != 1 {
			return nil, fmt.Errorf("%s expects a name", CmdSceneWorld)
		}
		tr, err := s.WorldTransform(e.Args[0])
		if err != nil {
			return nil, err
		}
		return tr.Values(), nil
	}, onLoop)

	d.Register(CmdSceneChildren, func(e dispatcher.Event) (any, error) {
		group := t.cfg.Group
		if len(e.Args) > 0 {
			group = e.Args[0]
		}
		return s.ListChildren(group)
	}, onLoop)
}

func parseSelectMode(s string) (scene.SelectMode, error) {
	switch strings.ToLower(s) {
	case "replace":
		return scene.SelectReplace, nil
	case "add":
		return scene.SelectAdd, nil
	case "remove":
		return scene.SelectRemove, nil
	default:
		return 0, fmt.Errorf("unknown select mode %q", s)
	}
}

func parseTransform(args []string) (scene.Transform, error) {
	if len(args) != 6 {
		return scene.Transform{}, fmt.Errorf("expected 6 transform values, got %d", len(args))
	}
	var v [6]float64
	for i, a := range args {
		f, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return scene.Transform{}, fmt.Errorf("invalid transform value %q: %w", a, err)
		}
		v[i] = f
	}
	return scene.Transform{
		Translate: [3]float64{v[0], v[1], v[2]},
		Rotate:    [3]float64{v[3], v[4], v[5]},
	}, nil
}

func parseInts(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(args))
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}
