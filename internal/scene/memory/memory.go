// Package memory implements scene.Gateway over an in-process scene graph.
//
// It models the parts of a DCC host the tool relies on: a named hierarchy,
// per-object attributes, live parent constraints (with or without a captured
// offset), an ordered selection, undo chunks and change notifications.
package memory

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/gsnap/extension/internal/scene"
)

type node struct {
	name     string
	parent   string // "" is the world root
	children []string
	attrs    map[string][]float64
	seq      uint64
}

type constraint struct {
	id     scene.ConstraintID
	source string
	target string
	offset mgl64.Mat4
}

// state is everything an undo chunk snapshots.
type state struct {
	nodes       map[string]*node
	roots       []string
	constraints []*constraint
	selection   []string
	seq         uint64
}

// Scene is an in-memory scene graph. It is safe for concurrent use.
type Scene struct {
	mu sync.Mutex
	state

	undoDepth int
	undoOpen  *state
	history   []*state

	focusCount int
	failures   map[string]error

	subMu   sync.Mutex
	subs    map[int]func(scene.Change)
	nextSub int
}

var _ scene.Gateway = (*Scene)(nil)
var _ scene.Notifier = (*Scene)(nil)

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		state: state{
			nodes: make(map[string]*node),
		},
		failures: make(map[string]error),
		subs:     make(map[int]func(scene.Change)),
	}
}

func defaultAttrs() map[string][]float64 {
	return map[string][]float64{
		scene.AttrTranslateX:        {0},
		scene.AttrTranslateY:        {0},
		scene.AttrTranslateZ:        {0},
		scene.AttrRotateX:           {0},
		scene.AttrRotateY:           {0},
		scene.AttrRotateZ:           {0},
		scene.AttrVisibility:        {1},
		scene.AttrLocalScaleX:       {1},
		scene.AttrLocalScaleY:       {1},
		scene.AttrLocalScaleZ:       {1},
		scene.AttrOverrideEnabled:   {0},
		scene.AttrOverrideRGBColors: {0},
		scene.AttrOverrideColorRGB:  {0, 0, 0},
	}
}

// FailOn makes the next calls of op on object return err until cleared with a nil err.
// Ops are "get", "set", "list", "create", "delete", "parent", "constrain", "source", "select".
// An empty object matches any object.
func (s *Scene) FailOn(op, object string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := op + "|" + object
	if err == nil {
		delete(s.failures, key)
		return
	}
	s.failures[key] = err
}

func (s *Scene) injected(op, object string) error {
	if err, ok := s.failures[op+"|"+object]; ok {
		return err
	}
	if err, ok := s.failures[op+"|"]; ok {
		return err
	}
	return nil
}

// Subscribe registers fn for change notifications. Notifications are delivered
// synchronously on the goroutine that made the change, after the scene lock is released.
func (s *Scene) Subscribe(fn func(scene.Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Scene) notify(changes ...scene.Change) {
	if len(changes) == 0 {
		return
	}
	s.subMu.Lock()
	fns := make([]func(scene.Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// ListChildren returns the direct children of group in creation order.
func (s *Scene) ListChildren(group string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("list", group); err != nil {
		return nil, err
	}
	n, ok := s.nodes[group]
	if !ok {
		return nil, fmt.Errorf("list children of %q: %w", group, scene.ErrNotFound)
	}
	return slices.Clone(n.children), nil
}

// Exists reports whether an object with name exists.
func (s *Scene) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[name]
	return ok
}

// Objects returns every object name in creation order.
func (s *Scene) Objects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.nodes))
	for name := range s.nodes {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Compare(s.nodes[a].seq, s.nodes[b].seq)
	})
	return names
}

// ParentOf returns the parent of name, "" for the world root.
func (s *Scene) ParentOf(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[name]
	if !ok {
		return "", fmt.Errorf("parent of %q: %w", name, scene.ErrNotFound)
	}
	return n.parent, nil
}

// GetAttr returns the value of attr on object. Transform channels are evaluated,
// so a constrained object reports its constrained pose.
func (s *Scene) GetAttr(object, attr string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("get", object); err != nil {
		return nil, err
	}
	n, ok := s.nodes[object]
	if !ok {
		return nil, fmt.Errorf("get %s.%s: %w", object, attr, scene.ErrNotFound)
	}
	if idx := slices.Index(scene.TransformAttrs, attr); idx >= 0 {
		vals := s.evaluatedLocal(object).Values()
		return []float64{vals[idx]}, nil
	}
	v, ok := n.attrs[attr]
	if !ok {
		return nil, fmt.Errorf("get %s.%s: %w", object, attr, scene.ErrNotFound)
	}
	return slices.Clone(v), nil
}

// SetAttr stores values on attr of object. Writes to constrained transform
// channels are kept but overridden while the constraint exists.
func (s *Scene) SetAttr(object, attr string, values ...float64) error {
	s.mu.Lock()
	if err := s.injected("set", object); err != nil {
		s.mu.Unlock()
		return err
	}
	n, ok := s.nodes[object]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("set %s.%s: %w", object, attr, scene.ErrNotFound)
	}
	if len(values) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("set %s.%s: no values", object, attr)
	}
	n.attrs[attr] = slices.Clone(values)
	s.mu.Unlock()

	s.notify(scene.Change{Kind: scene.AttributeChanged, Object: object})
	return nil
}

// CreateGroup creates an empty transform at the world root.
func (s *Scene) CreateGroup(name string) error {
	s.mu.Lock()
	if err := s.injected("create", name); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, ok := s.nodes[name]; ok {
		s.mu.Unlock()
		return fmt.Errorf("create group %q: %w", name, scene.ErrExists)
	}
	s.addNode(name)
	s.mu.Unlock()

	s.notify(scene.Change{Kind: scene.StructureChanged, Object: name})
	return nil
}

// CreateLocator creates a locator at the origin of the world root. A taken name
// gets a numeric suffix; the actual name is returned.
func (s *Scene) CreateLocator(name string) (string, error) {
	s.mu.Lock()
	if err := s.injected("create", name); err != nil {
		s.mu.Unlock()
		return "", err
	}
	actual := name
	for i := 1; ; i++ {
		if _, ok := s.nodes[actual]; !ok {
			break
		}
		actual = name + strconv.Itoa(i)
	}
	s.addNode(actual)
	s.mu.Unlock()

	s.notify(scene.Change{Kind: scene.StructureChanged, Object: actual})
	return actual, nil
}

func (s *Scene) addNode(name string) {
	s.seq++
	s.nodes[name] = &node{
		name:  name,
		attrs: defaultAttrs(),
		seq:   s.seq,
	}
	s.roots = append(s.roots, name)
}

// Delete removes each named object with its subtree. Nothing is deleted when
// any name is missing.
func (s *Scene) Delete(names ...string) error {
	s.mu.Lock()
	for _, name := range names {
		if err := s.injected("delete", name); err != nil {
			s.mu.Unlock()
			return err
		}
		if _, ok := s.nodes[name]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("delete %q: %w", name, scene.ErrNotFound)
		}
	}

	before := len(s.selection)
	for _, name := range names {
		if _, ok := s.nodes[name]; ok {
			s.deleteSubtree(name)
		}
	}
	selChanged := len(s.selection) != before
	s.mu.Unlock()

	changes := []scene.Change{{Kind: scene.StructureChanged}}
	if selChanged {
		changes = append(changes, scene.Change{Kind: scene.SelectionChanged})
	}
	s.notify(changes...)
	return nil
}

func (s *Scene) deleteSubtree(name string) {
	n := s.nodes[name]
	for _, child := range slices.Clone(n.children) {
		s.deleteSubtree(child)
	}

	for _, c := range slices.Clone(s.constraints) {
		if c.target == name {
			s.removeConstraint(c.id, false)
		} else if c.source == name {
			s.removeConstraint(c.id, true)
		}
	}

	s.detach(name)
	delete(s.nodes, name)
	s.selection = slices.DeleteFunc(s.selection, func(sel string) bool { return sel == name })
}

func (s *Scene) detach(name string) {
	n := s.nodes[name]
	if n.parent == "" {
		s.roots = slices.DeleteFunc(s.roots, func(r string) bool { return r == name })
		return
	}
	if p, ok := s.nodes[n.parent]; ok {
		p.children = slices.DeleteFunc(p.children, func(c string) bool { return c == name })
	}
}

// Parent moves child under parent ("" for the world root), keeping its world pose.
func (s *Scene) Parent(child, parent string) error {
	s.mu.Lock()
	if err := s.injected("parent", child); err != nil {
		s.mu.Unlock()
		return err
	}
	n, ok := s.nodes[child]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("parent %q: %w", child, scene.ErrNotFound)
	}
	if parent != "" {
		if _, ok := s.nodes[parent]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("parent %q under %q: %w", child, parent, scene.ErrNotFound)
		}
		for p := parent; p != ""; p = s.nodes[p].parent {
			if p == child {
				s.mu.Unlock()
				return fmt.Errorf("parent %q under its own descendant %q", child, parent)
			}
		}
	}

	world := s.worldMatrix(child, nil)
	s.detach(child)
	n.parent = parent
	if parent == "" {
		s.roots = append(s.roots, child)
	} else {
		s.nodes[parent].children = append(s.nodes[parent].children, child)
	}
	s.writeLocal(n, s.parentMatrix(child).Inv().Mul4(world))
	s.mu.Unlock()

	s.notify(scene.Change{Kind: scene.StructureChanged, Object: child})
	return nil
}

// CreateParentConstraint makes target follow source. With maintainOffset the
// current relative pose is captured; otherwise target snaps onto source.
func (s *Scene) CreateParentConstraint(source, target string, maintainOffset bool) (scene.ConstraintID, error) {
	s.mu.Lock()
	if err := s.injected("constrain", target); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if _, ok := s.nodes[source]; !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("constrain from %q: %w", source, scene.ErrNotFound)
	}
	if _, ok := s.nodes[target]; !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("constrain %q: %w", target, scene.ErrNotFound)
	}
	if source == target {
		s.mu.Unlock()
		return "", fmt.Errorf("constrain %q to itself", target)
	}

	offset := mgl64.Ident4()
	if maintainOffset {
		offset = s.worldMatrix(source, nil).Inv().Mul4(s.worldMatrix(target, nil))
	}
	id := scene.ConstraintID(target + "_parentConstraint_" + uuid.NewString()[:8])
	s.constraints = append(s.constraints, &constraint{
		id:     id,
		source: source,
		target: target,
		offset: offset,
	})
	s.mu.Unlock()

	s.notify(scene.Change{Kind: scene.StructureChanged, Object: target})
	return id, nil
}

// DeleteConstraint removes a constraint. The target keeps the pose it had while constrained.
func (s *Scene) DeleteConstraint(id scene.ConstraintID) error {
	s.mu.Lock()
	c := s.constraintByID(id)
	if c == nil {
		s.mu.Unlock()
		return fmt.Errorf("delete constraint %q: %w", id, scene.ErrNotFound)
	}
	if err := s.injected("delete", string(id)); err != nil {
		s.mu.Unlock()
		return err
	}
	target := c.target
	s.removeConstraint(id, true)
	s.mu.Unlock()

	s.notify(scene.Change{Kind: scene.StructureChanged, Object: target})
	return nil
}

func (s *Scene) removeConstraint(id scene.ConstraintID, bake bool) {
	c := s.constraintByID(id)
	if c == nil {
		return
	}
	if bake {
		if n, ok := s.nodes[c.target]; ok {
			local := s.evaluatedLocal(c.target)
			s.constraints = slices.DeleteFunc(s.constraints, func(o *constraint) bool { return o.id == id })
			s.writeLocalTransform(n, local)
			return
		}
	}
	s.constraints = slices.DeleteFunc(s.constraints, func(o *constraint) bool { return o.id == id })
}

func (s *Scene) constraintByID(id scene.ConstraintID) *constraint {
	for _, c := range s.constraints {
		if c.id == id {
			return c
		}
	}
	return nil
}

// activeConstraint returns the most recently created constraint driving target.
func (s *Scene) activeConstraint(target string) *constraint {
	for i := len(s.constraints) - 1; i >= 0; i-- {
		if s.constraints[i].target == target {
			return s.constraints[i]
		}
	}
	return nil
}

// ListConstraints returns the constraints driving object.
func (s *Scene) ListConstraints(object string) ([]scene.ConstraintID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("list", object); err != nil {
		return nil, err
	}
	if _, ok := s.nodes[object]; !ok {
		return nil, fmt.Errorf("list constraints of %q: %w", object, scene.ErrNotFound)
	}
	var ids []scene.ConstraintID
	for _, c := range s.constraints {
		if c.target == object {
			ids = append(ids, c.id)
		}
	}
	return ids, nil
}

// ConstraintSource returns the object driving the constraint.
func (s *Scene) ConstraintSource(id scene.ConstraintID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("source", string(id)); err != nil {
		return "", err
	}
	c := s.constraintByID(id)
	if c == nil {
		return "", fmt.Errorf("constraint %q: %w", id, scene.ErrNotFound)
	}
	return c.source, nil
}

// Selection returns the current selection in selection order.
func (s *Scene) Selection() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("select", ""); err != nil {
		return nil, err
	}
	return slices.Clone(s.selection), nil
}

// Select changes the selection. Every name must exist.
func (s *Scene) Select(mode scene.SelectMode, names ...string) error {
	s.mu.Lock()
	if err := s.injected("select", ""); err != nil {
		s.mu.Unlock()
		return err
	}
	for _, name := range names {
		if _, ok := s.nodes[name]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("select %q: %w", name, scene.ErrNotFound)
		}
	}

	before := slices.Clone(s.selection)
	switch mode {
	case scene.SelectReplace:
		s.selection = s.selection[:0]
		fallthrough
	case scene.SelectAdd:
		for _, name := range names {
			if !slices.Contains(s.selection, name) {
				s.selection = append(s.selection, name)
			}
		}
	case scene.SelectRemove:
		s.selection = slices.DeleteFunc(s.selection, func(sel string) bool {
			return slices.Contains(names, sel)
		})
	default:
		s.mu.Unlock()
		return fmt.Errorf("select: unknown mode %d", mode)
	}
	changed := !slices.Equal(before, s.selection)
	s.mu.Unlock()

	if changed {
		s.notify(scene.Change{Kind: scene.SelectionChanged})
	}
	return nil
}

// RestoreFocus records a request to give focus back to the main view.
func (s *Scene) RestoreFocus() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focusCount++
	return nil
}

// FocusCount returns how many times focus was restored.
func (s *Scene) FocusCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focusCount
}

// WorldTransform returns the evaluated world pose of name.
func (s *Scene) WorldTransform(name string) (scene.Transform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[name]; !ok {
		return scene.Transform{}, fmt.Errorf("world transform of %q: %w", name, scene.ErrNotFound)
	}
	return decompose(s.worldMatrix(name, nil)), nil
}

// SetTransform writes all six local channels of name in one change.
func (s *Scene) SetTransform(name string, t scene.Transform) error {
	s.mu.Lock()
	n, ok := s.nodes[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("set transform of %q: %w", name, scene.ErrNotFound)
	}
	s.writeLocalTransform(n, t)
	s.mu.Unlock()

	s.notify(scene.Change{Kind: scene.AttributeChanged, Object: name})
	return nil
}

func (s *Scene) storedLocal(n *node) scene.Transform {
	get := func(attr string) float64 {
		if v := n.attrs[attr]; len(v) > 0 {
			return v[0]
		}
		return 0
	}
	return scene.Transform{
		Translate: [3]float64{get(scene.AttrTranslateX), get(scene.AttrTranslateY), get(scene.AttrTranslateZ)},
		Rotate:    [3]float64{get(scene.AttrRotateX), get(scene.AttrRotateY), get(scene.AttrRotateZ)},
	}
}

func (s *Scene) writeLocalTransform(n *node, t scene.Transform) {
	vals := t.Values()
	for i, attr := range scene.TransformAttrs {
		n.attrs[attr] = []float64{vals[i]}
	}
}

func (s *Scene) writeLocal(n *node, m mgl64.Mat4) {
	s.writeLocalTransform(n, decompose(m))
}

func (s *Scene) parentMatrix(name string) mgl64.Mat4 {
	n := s.nodes[name]
	if n.parent == "" {
		return mgl64.Ident4()
	}
	return s.worldMatrix(n.parent, nil)
}

// worldMatrix evaluates the world pose of name. visiting guards against
// constraint cycles; a cycle falls back to the stored local values.
func (s *Scene) worldMatrix(name string, visiting map[string]bool) mgl64.Mat4 {
	n := s.nodes[name]
	if visiting == nil {
		visiting = make(map[string]bool)
	}
	if !visiting[name] {
		if c := s.activeConstraint(name); c != nil {
			if _, ok := s.nodes[c.source]; ok {
				visiting[name] = true
				m := s.worldMatrix(c.source, visiting).Mul4(c.offset)
				delete(visiting, name)
				return m
			}
		}
	}
	parent := mgl64.Ident4()
	if n.parent != "" {
		parent = s.worldMatrix(n.parent, visiting)
	}
	return parent.Mul4(localMatrix(s.storedLocal(n)))
}

func (s *Scene) evaluatedLocal(name string) scene.Transform {
	n := s.nodes[name]
	if s.activeConstraint(name) == nil {
		return s.storedLocal(n)
	}
	return decompose(s.parentMatrix(name).Inv().Mul4(s.worldMatrix(name, nil)))
}
