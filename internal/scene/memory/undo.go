package memory

import (
	"errors"
	"slices"

	"github.com/gsnap/extension/internal/scene"
)

// ErrNothingToUndo is returned by Undo when no chunk has been recorded.
var ErrNothingToUndo = errors.New("nothing to undo")

type undoChunk struct {
	s      *Scene
	closed bool
}

// OpenUndoChunk starts an undo chunk. Nested chunks fold into the outermost one,
// which snapshots the scene when it opens and records it when it closes.
func (s *Scene) OpenUndoChunk(label string) scene.UndoChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.undoDepth == 0 {
		snap := s.state.clone()
		s.undoOpen = &snap
	}
	s.undoDepth++
	return &undoChunk{s: s}
}

func (c *undoChunk) Close() {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	s.undoDepth--
	if s.undoDepth == 0 && s.undoOpen != nil {
		s.history = append(s.history, s.undoOpen)
		s.undoOpen = nil
	}
}

// UndoDepth returns the number of currently open chunks.
func (s *Scene) UndoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.undoDepth
}

// Undo restores the scene to the state before the last closed chunk.
func (s *Scene) Undo() error {
	s.mu.Lock()
	if len(s.history) == 0 {
		s.mu.Unlock()
		return ErrNothingToUndo
	}
	last := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.state = last.clone()
	s.mu.Unlock()

	s.notify(
		scene.Change{Kind: scene.StructureChanged},
		scene.Change{Kind: scene.SelectionChanged},
	)
	return nil
}

func (st state) clone() state {
	out := state{
		nodes:     make(map[string]*node, len(st.nodes)),
		roots:     slices.Clone(st.roots),
		selection: slices.Clone(st.selection),
		seq:       st.seq,
	}
	for name, n := range st.nodes {
		attrs := make(map[string][]float64, len(n.attrs))
		for k, v := range n.attrs {
			attrs[k] = slices.Clone(v)
		}
		out.nodes[name] = &node{
			name:     n.name,
			parent:   n.parent,
			children: slices.Clone(n.children),
			attrs:    attrs,
			seq:      n.seq,
		}
	}
	out.constraints = make([]*constraint, 0, len(st.constraints))
	for _, c := range st.constraints {
		cc := *c
		out.constraints = append(out.constraints, &cc)
	}
	return out
}
