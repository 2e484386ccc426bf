package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsnap/extension/internal/scene"
)

func assertTransform(t *testing.T, want, got scene.Transform) {
	t.Helper()
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want.Translate[i], got.Translate[i], 1e-6, "translate[%d]", i)
		assert.InDelta(t, want.Rotate[i], got.Rotate[i], 1e-6, "rotate[%d]", i)
	}
}

func newObject(t *testing.T, s *Scene, name string, tr scene.Transform) {
	t.Helper()
	require.NoError(t, s.CreateGroup(name))
	require.NoError(t, s.SetTransform(name, tr))
}

func TestScene_ListChildren_MissingGroup(t *testing.T) {
	s := New()

	_, err := s.ListChildren("GSnap")
	assert.ErrorIs(t, err, scene.ErrNotFound)
}

func TestScene_CreateLocator_ParentedKeepsOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateGroup("GSnap"))

	for _, name := range []string{"HAND", "FOOT", "HEAD"} {
		actual, err := s.CreateLocator(name)
		require.NoError(t, err)
		require.NoError(t, s.Parent(actual, "GSnap"))
	}

	children, err := s.ListChildren("GSnap")
	require.NoError(t, err)
	assert.Equal(t, []string{"HAND", "FOOT", "HEAD"}, children)
}

func TestScene_CreateLocator_SuffixesTakenName(t *testing.T) {
	s := New()

	first, err := s.CreateLocator("gsnap_value_locator")
	require.NoError(t, err)
	second, err := s.CreateLocator("gsnap_value_locator")
	require.NoError(t, err)

	assert.Equal(t, "gsnap_value_locator", first)
	assert.Equal(t, "gsnap_value_locator1", second)
}

func TestScene_ParentConstraint_NoOffsetSnapsToSource(t *testing.T) {
	s := New()
	src := scene.Transform{Translate: [3]float64{1, 2, 3}, Rotate: [3]float64{10, 20, 30}}
	newObject(t, s, "B", src)
	newObject(t, s, "A", scene.Transform{})

	_, err := s.CreateParentConstraint("B", "A", false)
	require.NoError(t, err)

	got, err := scene.ReadTransform(s, "A")
	require.NoError(t, err)
	assertTransform(t, src, got)
}

func TestScene_ParentConstraint_MaintainOffsetFollowsSource(t *testing.T) {
	s := New()
	newObject(t, s, "B", scene.Transform{Translate: [3]float64{1, 0, 0}})
	newObject(t, s, "A", scene.Transform{Translate: [3]float64{5, 0, 0}})

	_, err := s.CreateParentConstraint("B", "A", true)
	require.NoError(t, err)

	got, err := scene.ReadTransform(s, "A")
	require.NoError(t, err)
	assertTransform(t, scene.Transform{Translate: [3]float64{5, 0, 0}}, got)

	require.NoError(t, s.SetTransform("B", scene.Transform{Translate: [3]float64{2, 0, 0}}))
	got, err = scene.ReadTransform(s, "A")
	require.NoError(t, err)
	assertTransform(t, scene.Transform{Translate: [3]float64{6, 0, 0}}, got)
}

func TestScene_DeleteConstraint_BakesPose(t *testing.T) {
	s := New()
	src := scene.Transform{Translate: [3]float64{4, 5, 6}, Rotate: [3]float64{0, 45, 0}}
	newObject(t, s, "B", src)
	newObject(t, s, "A", scene.Transform{})

	id, err := s.CreateParentConstraint("B", "A", false)
	require.NoError(t, err)
	require.NoError(t, s.DeleteConstraint(id))

	ids, err := s.ListConstraints("A")
	require.NoError(t, err)
	assert.Empty(t, ids)

	got, err := scene.ReadTransform(s, "A")
	require.NoError(t, err)
	assertTransform(t, src, got)

	// no longer follows
	require.NoError(t, s.SetTransform("B", scene.Transform{}))
	got, err = scene.ReadTransform(s, "A")
	require.NoError(t, err)
	assertTransform(t, src, got)
}

func TestScene_ConstraintSource(t *testing.T) {
	s := New()
	newObject(t, s, "C", scene.Transform{})
	newObject(t, s, "A", scene.Transform{})

	id, err := s.CreateParentConstraint("C", "A", true)
	require.NoError(t, err)

	src, err := s.ConstraintSource(id)
	require.NoError(t, err)
	assert.Equal(t, "C", src)

	_, err = s.ConstraintSource("missing")
	assert.ErrorIs(t, err, scene.ErrNotFound)
}

func TestScene_Parent_KeepsWorldPose(t *testing.T) {
	s := New()
	newObject(t, s, "GRP", scene.Transform{Translate: [3]float64{10, 0, 0}})
	newObject(t, s, "A", scene.Transform{Translate: [3]float64{1, 1, 1}})

	require.NoError(t, s.Parent("A", "GRP"))

	local, err := scene.ReadTransform(s, "A")
	require.NoError(t, err)
	assertTransform(t, scene.Transform{Translate: [3]float64{-9, 1, 1}}, local)

	world, err := s.WorldTransform("A")
	require.NoError(t, err)
	assertTransform(t, scene.Transform{Translate: [3]float64{1, 1, 1}}, world)
}

func TestScene_Parent_RejectsCycle(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateGroup("A"))
	require.NoError(t, s.CreateGroup("B"))
	require.NoError(t, s.Parent("B", "A"))

	assert.Error(t, s.Parent("A", "B"))
}

func TestScene_Delete_RemovesSubtreeAndSelection(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateGroup("GSnap"))
	loc, err := s.CreateLocator("FOOT")
	require.NoError(t, err)
	require.NoError(t, s.Parent(loc, "GSnap"))
	require.NoError(t, s.CreateGroup("other"))
	require.NoError(t, s.Select(scene.SelectReplace, "FOOT", "other"))

	require.NoError(t, s.Delete("GSnap"))

	assert.False(t, s.Exists("GSnap"))
	assert.False(t, s.Exists("FOOT"))
	assert.True(t, s.Exists("other"))
	sel, err := s.Selection()
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, sel)
}

func TestScene_Delete_MissingNameDeletesNothing(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateGroup("A"))

	err := s.Delete("A", "missing")
	assert.ErrorIs(t, err, scene.ErrNotFound)
	assert.True(t, s.Exists("A"))
}

func TestScene_Delete_SourceBakesConstrainedTarget(t *testing.T) {
	s := New()
	newObject(t, s, "B", scene.Transform{Translate: [3]float64{3, 0, 0}})
	newObject(t, s, "A", scene.Transform{})
	_, err := s.CreateParentConstraint("B", "A", false)
	require.NoError(t, err)

	require.NoError(t, s.Delete("B"))

	got, err := scene.ReadTransform(s, "A")
	require.NoError(t, err)
	assertTransform(t, scene.Transform{Translate: [3]float64{3, 0, 0}}, got)
}

func TestScene_Select_Modes(t *testing.T) {
	s := New()
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, s.CreateGroup(name))
	}

	tests := []struct {
		name  string
		mode  scene.SelectMode
		names []string
		want  []string
	}{
		{name: "replace", mode: scene.SelectReplace, names: []string{"B", "A"}, want: []string{"B", "A"}},
		{name: "add keeps order and skips duplicates", mode: scene.SelectAdd, names: []string{"A", "C"}, want: []string{"B", "A", "C"}},
		{name: "remove", mode: scene.SelectRemove, names: []string{"A"}, want: []string{"B", "C"}},
		{name: "replace with nothing clears", mode: scene.SelectReplace, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.Select(tt.mode, tt.names...))
			sel, err := s.Selection()
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, sel)
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, sel)
			}
		})
	}
}

func TestScene_Select_UnknownName(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Select(scene.SelectAdd, "ghost"), scene.ErrNotFound)
}

func TestScene_Notifications(t *testing.T) {
	s := New()
	var got []scene.ChangeKind
	unsubscribe := s.Subscribe(func(c scene.Change) { got = append(got, c.Kind) })

	require.NoError(t, s.CreateGroup("A"))
	require.NoError(t, s.Select(scene.SelectReplace, "A"))
	require.NoError(t, s.Select(scene.SelectReplace, "A")) // unchanged, no notification
	require.NoError(t, s.SetAttr("A", scene.AttrVisibility, 0))

	assert.Equal(t, []scene.ChangeKind{scene.StructureChanged, scene.SelectionChanged, scene.AttributeChanged}, got)

	unsubscribe()
	require.NoError(t, s.CreateGroup("B"))
	assert.Len(t, got, 3)
}

func TestScene_Undo_RevertsOutermostChunk(t *testing.T) {
	s := New()
	newObject(t, s, "A", scene.Transform{Translate: [3]float64{1, 0, 0}})

	outer := s.OpenUndoChunk("outer")
	inner := s.OpenUndoChunk("inner")
	require.NoError(t, s.SetTransform("A", scene.Transform{Translate: [3]float64{7, 0, 0}}))
	require.NoError(t, s.CreateGroup("B"))
	inner.Close()
	inner.Close()
	assert.Equal(t, 1, s.UndoDepth())
	outer.Close()
	assert.Equal(t, 0, s.UndoDepth())

	require.NoError(t, s.Undo())

	assert.False(t, s.Exists("B"))
	got, err := scene.ReadTransform(s, "A")
	require.NoError(t, err)
	assertTransform(t, scene.Transform{Translate: [3]float64{1, 0, 0}}, got)

	assert.ErrorIs(t, s.Undo(), ErrNothingToUndo)
}

func TestScene_FailOn(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateGroup("A"))
	boom := errors.New("boom")

	s.FailOn("set", "A", boom)
	assert.ErrorIs(t, s.SetAttr("A", scene.AttrVisibility, 0), boom)

	s.FailOn("set", "A", nil)
	assert.NoError(t, s.SetAttr("A", scene.AttrVisibility, 0))
}

func TestDecompose_RoundTrip(t *testing.T) {
	tests := []scene.Transform{
		{},
		{Translate: [3]float64{1, -2, 3}},
		{Rotate: [3]float64{30, 0, 0}},
		{Rotate: [3]float64{0, -60, 0}},
		{Translate: [3]float64{0.5, 0, 9}, Rotate: [3]float64{12, 34, 56}},
		{Rotate: [3]float64{-170, 80, 15}},
	}

	for _, tr := range tests {
		assertTransform(t, tr, decompose(localMatrix(tr)))
	}
}
