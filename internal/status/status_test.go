package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

func sampleProject() blueprint.Project {
	p := blueprint.NewProject("p1", "Shop", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	p.Blueprint.Overview = "An online shop"
	p.Blueprint.DataModel = "Cart, Order"
	p.Blueprint.ActiveStage = blueprint.StageDesign
	p.ApprovedStages = blueprint.NewStageSet(blueprint.StageProduct, blueprint.StageDataModel)
	p.StaleStages = blueprint.NewStageSet(blueprint.StageDataModel)
	p.Blueprint.Sections = []blueprint.Section{
		{ID: "a", Completed: true},
		{ID: "b"},
	}
	return p
}

func TestForProject(t *testing.T) {
	ps := ForProject(sampleProject())

	assert.Equal(t, "p1", ps.ID)
	assert.Equal(t, blueprint.StageDesign, ps.ActiveStage)
	assert.True(t, ps.CanApprove)
	assert.Equal(t, "Approve & Draft Sections", ps.ApproveLabel)
	assert.Equal(t, 1, ps.SectionsDone)
	assert.Equal(t, 2, ps.SectionsTotal)
	assert.Equal(t, 2, ps.ApprovedCount)
	assert.False(t, ps.Complete())

	require.Len(t, ps.Stages, 5)
	states := make([]string, len(ps.Stages))
	for i, si := range ps.Stages {
		states[i] = si.State()
	}
	assert.Equal(t, []string{StateApproved, StateStale, StateActive, StatePending, StatePending}, states)

	assert.True(t, ps.Stages[0].Drafted)
	assert.True(t, ps.Stages[1].Drafted)
	assert.False(t, ps.Stages[2].Drafted)
	assert.True(t, ps.Stages[3].Drafted, "section list counts as content")
	assert.Equal(t, "Data Model", ps.Stages[1].Label)
	assert.Equal(t, "dataModel", ps.Stages[1].Name)
}

func TestForProject_Complete(t *testing.T) {
	p := sampleProject()
	p.ApprovedStages = blueprint.NewStageSet(blueprint.StageProduct, blueprint.StageDataModel,
		blueprint.StageDesign, blueprint.StageSections)
	p.Blueprint.ActiveStage = blueprint.StageExport

	ps := ForProject(p)
	assert.True(t, ps.Complete())
	assert.False(t, ps.CanApprove, "export is terminal")
	assert.Equal(t, "Execute Plan", ps.ApproveLabel)
}

func TestForProjects(t *testing.T) {
	a := sampleProject()
	b := sampleProject()
	b.ID = "p2"
	got := ForProjects([]blueprint.Project{a, b})
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[1].ID)
	assert.Empty(t, ForProjects(nil))
}
