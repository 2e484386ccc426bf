// Package ui holds the widget models the tool drives: the locator list, the
// scale slider, the visibility checkbox, window geometry and modal prompts.
//
// Models emit change signals only when their state actually changes, the same
// way the host toolkit does.
package ui

import (
	"slices"
	"sync"
)

// Item is one row of the locator list.
type Item struct {
	Name     string `json:"name"`
	Hidden   bool   `json:"hidden"`
	Selected bool   `json:"selected"`
}

// List is an ordered list of uniquely named items. Rows are never reordered;
// hiding keeps a row's position for when the object comes back.
type List struct {
	mu    sync.Mutex
	items []Item
	index map[string]int

	onSelection []func()
}

// NewList creates an empty list.
func NewList() *List {
	return &List{index: make(map[string]int)}
}

// OnSelectionChanged registers fn to run after any selection change.
func (l *List) OnSelectionChanged(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSelection = append(l.onSelection, fn)
}

func (l *List) emitSelection() {
	l.mu.Lock()
	fns := slices.Clone(l.onSelection)
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Items returns a copy of all rows in display order.
func (l *List) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

// Item returns the row named name.
func (l *List) Item(name string) (Item, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[name]
	if !ok {
		return Item{}, false
	}
	return l.items[i], true
}

// Len returns the number of rows, hidden ones included.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Append adds a visible, unselected row. It returns false if name is already listed.
func (l *List) Append(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[name]; ok {
		return false
	}
	l.index[name] = len(l.items)
	l.items = append(l.items, Item{Name: name})
	return true
}

// SetHidden hides or shows a row. Hiding a selected row deselects it.
func (l *List) SetHidden(name string, hidden bool) bool {
	l.mu.Lock()
	i, ok := l.index[name]
	if !ok || l.items[i].Hidden == hidden {
		l.mu.Unlock()
		return false
	}
	l.items[i].Hidden = hidden
	deselected := hidden && l.items[i].Selected
	if deselected {
		l.items[i].Selected = false
	}
	l.mu.Unlock()

	if deselected {
		l.emitSelection()
	}
	return true
}

// SetSelected changes the selection state of a row. It reports whether anything changed.
func (l *List) SetSelected(name string, selected bool) bool {
	l.mu.Lock()
	i, ok := l.index[name]
	if !ok || l.items[i].Selected == selected {
		l.mu.Unlock()
		return false
	}
	if selected && l.items[i].Hidden {
		l.mu.Unlock()
		return false
	}
	l.items[i].Selected = selected
	l.mu.Unlock()

	l.emitSelection()
	return true
}

// Select replaces the selection with names, emitting a single change signal.
// Hidden and unknown names are ignored.
func (l *List) Select(names ...string) bool {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	l.mu.Lock()
	changed := false
	for i := range l.items {
		sel := want[l.items[i].Name] && !l.items[i].Hidden
		if l.items[i].Selected != sel {
			l.items[i].Selected = sel
			changed = true
		}
	}
	l.mu.Unlock()

	if changed {
		l.emitSelection()
	}
	return changed
}

// Clear removes every row.
func (l *List) Clear() {
	l.mu.Lock()
	hadSelection := slices.ContainsFunc(l.items, func(it Item) bool { return it.Selected })
	l.items = nil
	l.index = make(map[string]int)
	l.mu.Unlock()

	if hadSelection {
		l.emitSelection()
	}
}

// VisibleSelected returns the names of visible, selected rows in display order.
func (l *List) VisibleSelected() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var names []string
	for _, it := range l.items {
		if !it.Hidden && it.Selected {
			names = append(names, it.Name)
		}
	}
	return names
}
