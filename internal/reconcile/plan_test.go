package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/gsnap/extension/internal/ui"
)

func TestPlanFromScene(t *testing.T) {
	tests := []struct {
		name  string
		view  SceneView
		items []ui.Item
		want  ListPlan
	}{
		{
			name: "empty on both sides",
			want: ListPlan{},
		},
		{
			name: "new children are appended in scene order",
			view: SceneView{Children: []string{"FOOT", "HAND"}},
			want: ListPlan{Append: []string{"FOOT", "HAND"}},
		},
		{
			name:  "rows for missing objects are hidden, not removed",
			view:  SceneView{Children: []string{"HAND"}},
			items: []ui.Item{{Name: "FOOT"}, {Name: "HAND"}},
			want:  ListPlan{Hide: []string{"FOOT"}},
		},
		{
			name:  "hidden row is unhidden instead of duplicated",
			view:  SceneView{Children: []string{"FOOT"}},
			items: []ui.Item{{Name: "FOOT", Hidden: true}},
			want:  ListPlan{Unhide: []string{"FOOT"}},
		},
		{
			name:  "already hidden rows stay untouched",
			view:  SceneView{},
			items: []ui.Item{{Name: "FOOT", Hidden: true}},
			want:  ListPlan{},
		},
		{
			name: "selection is limited to group children",
			view: SceneView{
				Children:  []string{"FOOT", "HAND"},
				Selection: []string{"pCube1", "HAND"},
			},
			items: []ui.Item{{Name: "FOOT", Selected: true}, {Name: "HAND"}},
			want:  ListPlan{Selection: []string{"HAND"}, SelectionChanged: true},
		},
		{
			name: "selecting a freshly appended row",
			view: SceneView{
				Children:  []string{"FOOT"},
				Selection: []string{"FOOT"},
			},
			want: ListPlan{Append: []string{"FOOT"}, Selection: []string{"FOOT"}, SelectionChanged: true},
		},
		{
			name:  "hiding a selected row clears it without another selection change",
			view:  SceneView{},
			items: []ui.Item{{Name: "FOOT", Selected: true}},
			want:  ListPlan{Hide: []string{"FOOT"}},
		},
		{
			name: "in sync",
			view: SceneView{
				Children:  []string{"FOOT", "HAND"},
				Selection: []string{"FOOT"},
			},
			items: []ui.Item{{Name: "FOOT", Selected: true}, {Name: "HAND"}},
			want:  ListPlan{Selection: []string{"FOOT"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanFromScene(tt.view, tt.items)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("PlanFromScene() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanFromUI(t *testing.T) {
	tests := []struct {
		name      string
		items     []ui.Item
		selection []string
		want      ScenePlan
	}{
		{
			name:  "visible selected rows are added",
			items: []ui.Item{{Name: "FOOT", Selected: true}, {Name: "HAND"}},
			want:  ScenePlan{Add: []string{"FOOT"}},
		},
		{
			name:      "deselected visible rows are removed",
			items:     []ui.Item{{Name: "FOOT"}, {Name: "HAND", Selected: true}},
			selection: []string{"FOOT", "HAND"},
			want:      ScenePlan{Remove: []string{"FOOT"}},
		},
		{
			name:      "unrelated scene objects are left alone",
			items:     []ui.Item{{Name: "FOOT", Selected: true}},
			selection: []string{"pCube1", "FOOT"},
			want:      ScenePlan{},
		},
		{
			name:      "hidden rows neither add nor remove",
			items:     []ui.Item{{Name: "FOOT", Hidden: true}},
			selection: []string{"FOOT"},
			want:      ScenePlan{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanFromUI(tt.items, tt.selection)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("PlanFromUI() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListPlan_Mutations(t *testing.T) {
	p := ListPlan{Hide: []string{"A"}, Append: []string{"B", "C"}, SelectionChanged: true}
	assert.Equal(t, 4, p.Mutations())
	assert.False(t, p.Empty())
	assert.True(t, ListPlan{Selection: []string{"A"}}.Empty())
}
