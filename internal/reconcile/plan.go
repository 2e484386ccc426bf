// Package reconcile converges the locator list and the scene graph.
//
// A pass has a direction. FromScene treats the scene as authoritative and
// writes only the list; FromUI treats the list as authoritative and writes
// only the scene selection. Planning is pure and works on snapshots of both
// sides, so it can be tested without a scene.
package reconcile

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gsnap/extension/internal/ui"
)

// Direction names the authoritative side of a pass.
type Direction int

const (
	FromScene Direction = iota
	FromUI
)

func (d Direction) String() string {
	switch d {
	case FromScene:
		return "from_scene"
	case FromUI:
		return "from_ui"
	default:
		return "unknown"
	}
}

// SceneView is a snapshot of the scene side.
type SceneView struct {
	// Children of the locator group in scene order. Empty when the group is absent.
	Children []string
	// Selection is the full scene selection in selection order.
	Selection []string
}

// ListPlan is the set of list mutations a FromScene pass applies.
type ListPlan struct {
	Hide   []string
	Unhide []string
	Append []string

	// Selection is the complete desired list selection. It is only applied
	// when SelectionChanged is set.
	Selection        []string
	SelectionChanged bool
}

// Empty reports whether applying the plan would change nothing.
func (p ListPlan) Empty() bool {
	return len(p.Hide) == 0 && len(p.Unhide) == 0 && len(p.Append) == 0 && !p.SelectionChanged
}

// Mutations counts the row changes in the plan, a selection rewrite counting as one.
func (p ListPlan) Mutations() int {
	n := len(p.Hide) + len(p.Unhide) + len(p.Append)
	if p.SelectionChanged {
		n++
	}
	return n
}

// PlanFromScene computes the list changes that make items mirror view.
func PlanFromScene(view SceneView, items []ui.Item) ListPlan {
	var plan ListPlan

	children := mapset.NewThreadUnsafeSet(view.Children...)
	listed := make(map[string]ui.Item, len(items))
	for _, it := range items {
		listed[it.Name] = it
	}

	// rows for objects that are gone are hidden, never removed
	after := make(map[string]ui.Item, len(items)+len(view.Children))
	for _, it := range items {
		if !children.Contains(it.Name) && !it.Hidden {
			plan.Hide = append(plan.Hide, it.Name)
			it.Hidden = true
			it.Selected = false
		}
		after[it.Name] = it
	}

	for _, name := range view.Children {
		it, ok := listed[name]
		switch {
		case !ok:
			if _, appended := after[name]; appended {
				continue
			}
			plan.Append = append(plan.Append, name)
			after[name] = ui.Item{Name: name}
		case it.Hidden:
			plan.Unhide = append(plan.Unhide, name)
			it.Hidden = false
			after[name] = it
		}
	}

	selected := mapset.NewThreadUnsafeSet(view.Selection...).Intersect(children)
	order := make([]string, 0, len(after))
	for _, it := range items {
		order = append(order, it.Name)
	}
	order = append(order, plan.Append...)

	for _, name := range order {
		want := selected.Contains(name)
		if want {
			plan.Selection = append(plan.Selection, name)
		}
		if after[name].Selected != want {
			plan.SelectionChanged = true
		}
	}

	return plan
}

// ScenePlan is the set of selection changes a FromUI pass applies to the scene.
type ScenePlan struct {
	Add    []string
	Remove []string
}

// Empty reports whether the plan changes nothing.
func (p ScenePlan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// PlanFromUI computes the scene selection changes that make the scene follow
// the visible list selection. Scene selections with no visible row are left alone.
func PlanFromUI(items []ui.Item, sceneSelection []string) ScenePlan {
	var plan ScenePlan

	visible := mapset.NewThreadUnsafeSet[string]()
	visibleSelected := mapset.NewThreadUnsafeSet[string]()
	for _, it := range items {
		if it.Hidden {
			continue
		}
		visible.Add(it.Name)
		if it.Selected {
			visibleSelected.Add(it.Name)
		}
	}
	selected := mapset.NewThreadUnsafeSet(sceneSelection...)

	for _, it := range items {
		if !it.Hidden && it.Selected && !selected.Contains(it.Name) {
			plan.Add = append(plan.Add, it.Name)
		}
	}
	for _, name := range sceneSelection {
		if visible.Contains(name) && !visibleSelected.Contains(name) && !slices.Contains(plan.Remove, name) {
			plan.Remove = append(plan.Remove, name)
		}
	}

	return plan
}
