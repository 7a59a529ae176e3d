package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

var (
	t0 = time.Date(2026, 1, 10, 9, 0, 0, 123456789, time.UTC)
	t1 = t0.Add(time.Hour)
)

// fullProject exercises every persisted field.
func fullProject(id string, created time.Time) blueprint.Project {
	p := blueprint.NewProject(id, "Checkout "+id, created)
	p.UpdatedAt = created.Add(5 * time.Minute)
	p.Blueprint = blueprint.Blueprint{
		Overview:      "One-page checkout.\nWith \"quotes\" and ünïcode.",
		Problems:      "Cart abandonment",
		Features:      "- Saved cards\n- Guest checkout",
		DataModel:     "Order, LineItem",
		Design:        "Single column",
		SectionsDraft: "Two sections",
		Sections: []blueprint.Section{
			{ID: "cart", Title: "Cart", Summary: "Edit quantities", Agent: "ui", Completed: true},
			{ID: "pay", Title: "Payments", Summary: "Card capture", Agent: "backend"},
		},
		ExportNotes: "ship it",
		ActiveStage: blueprint.StageSections,
	}
	p.ApprovedStages = blueprint.NewStageSet(blueprint.StageProduct, blueprint.StageDataModel, blueprint.StageDesign)
	p.StaleStages = blueprint.NewStageSet(blueprint.StageExport)
	return p
}

// runContract checks the behaviour every backend must share.
func runContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("empty store loads empty", func(t *testing.T) {
		s := open(t)
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NotNil(t, got, "empty is a valid result, not a failure")
	})

	t.Run("round trips every field", func(t *testing.T) {
		s := open(t)
		want := fullProject("p1", t0)
		require.NoError(t, s.Save(ctx, want))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, want, got[0])
	})

	t.Run("save replaces existing record", func(t *testing.T) {
		s := open(t)
		p := fullProject("p1", t0)
		require.NoError(t, s.Save(ctx, p))

		p.Title = "Renamed"
		p.ApprovedStages = p.ApprovedStages.Add(blueprint.StageSections)
		p.Blueprint.Sections = p.Blueprint.Sections[:1]
		p.StaleStages = 0
		require.NoError(t, s.Save(ctx, p))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, p, got[0])
	})

	t.Run("load orders by creation time", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Save(ctx, fullProject("late", t1)))
		require.NoError(t, s.Save(ctx, fullProject("b", t0)))
		require.NoError(t, s.Save(ctx, fullProject("a", t0)))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"a", "b", "late"}, []string{got[0].ID, got[1].ID, got[2].ID})
	})

	t.Run("delete removes and is idempotent", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Save(ctx, fullProject("p1", t0)))
		require.NoError(t, s.Save(ctx, fullProject("p2", t1)))

		require.NoError(t, s.Delete(ctx, "p1"))
		require.NoError(t, s.Delete(ctx, "p1"))
		require.NoError(t, s.Delete(ctx, "missing"))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "p2", got[0].ID)
	})

	t.Run("invalid project is a write error", func(t *testing.T) {
		s := open(t)
		p := fullProject("p1", t0)
		p.Blueprint.Sections = append(p.Blueprint.Sections, blueprint.Section{ID: "cart"})

		err := s.Save(ctx, p)
		require.Error(t, err)
		assert.True(t, IsWriteError(err))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemStore_Contract(t *testing.T) {
	runContract(t, func(t *testing.T) Store { return NewMemStore() })
}

func TestMemStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(fullProject("p1", t0))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	got[0].Blueprint.Sections[0].Title = "mutated"

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Cart", again[0].Blueprint.Sections[0].Title)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "etcd"})
	assert.Error(t, err)
}

func TestOpen_PostgresRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: DriverPostgres})
	assert.Error(t, err)
}

func TestOpen_FileAndMemory(t *testing.T) {
	s, err := Open(context.Background(), Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemStore{}, s)

	dir := t.TempDir()
	s, err = Open(context.Background(), Options{Driver: DriverFile, Path: dir})
	require.NoError(t, err)
	fs, ok := s.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, dir+"/projects", fs.Dir())
}
