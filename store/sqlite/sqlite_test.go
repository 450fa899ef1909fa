package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/allocation-engine/planner"
	"github.com/warp/allocation-engine/store/sqlite"
)

var monday = planner.NewDate(2024, time.January, 8)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedPool persists a skill tree with two welders and a crane, then reloads
// the repository's pool from the store.
func seedPool(t *testing.T, repo *planner.Repository) {
	t.Helper()
	ctx := context.Background()
	skill := planner.NewCriterion("skill", "Skill", "skill")
	welder := skill.Child("welder", "Welder")
	until := monday.AddDays(60)
	resources := []*planner.Resource{
		planner.NewWorker("w1", "Ana").Satisfy(welder, planner.OpenPeriod(monday)),
		planner.NewWorker("w2", "Ben").Satisfy(welder, planner.ClosedPeriod(monday, until)),
		planner.NewMachine("m1", "Crane"),
	}
	for _, r := range resources {
		require.NoError(t, repo.AddResource(ctx, r))
	}
	require.NoError(t, repo.Load(ctx))
}

// =============================================================================
// POOL
// =============================================================================

func TestStore_PoolRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	repo := planner.NewRepository(s)
	seedPool(t, repo)

	criteria, err := s.LoadCriteria(ctx)
	require.NoError(t, err)
	assert.Equal(t, []planner.CriterionSnapshot{
		{ID: "skill", Name: "Skill", Type: "skill"},
		{ID: "welder", Name: "Welder", Type: "skill", ParentID: "skill"},
	}, criteria)

	ben, ok := repo.Pool.FindResource("w2")
	require.True(t, ok)
	require.Len(t, ben.Satisfactions, 1)
	require.NotNil(t, ben.Satisfactions[0].Period.End)
	assert.Equal(t, monday.AddDays(60), *ben.Satisfactions[0].Period.End)

	crane, ok := repo.Pool.FindResource("m1")
	require.True(t, ok)
	assert.Equal(t, planner.KindMachine, crane.Kind)
}

func TestStore_DeleteResource(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	repo := planner.NewRepository(s)
	seedPool(t, repo)

	require.NoError(t, s.DeleteResource(ctx, "w2"))
	assert.ErrorIs(t, s.DeleteResource(ctx, "w2"), planner.ErrResourceNotFound)

	resources, err := s.LoadResources(ctx)
	require.NoError(t, err)
	ids := make([]planner.ResourceID, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []planner.ResourceID{"m1", "w1"}, ids)
}

// =============================================================================
// TASKS
// =============================================================================

func TestStore_TaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	repo := planner.NewRepository(s)
	seedPool(t, repo)
	welder, _ := repo.Pool.Criterion("welder")
	crane, _ := repo.Pool.FindResource("m1")

	// GIVEN: A task with a machine and a derived generic welder allocation
	task, err := planner.NewTask("hull", "Hull", monday, monday.AddDays(5))
	require.NoError(t, err)
	task.SetCriteria([]*planner.Criterion{welder})
	task.ExplicitlyMoved(monday)
	require.NoError(t, task.SetHoursSpecifiedAtOrder(80))
	_, err = task.Allocate(planner.StandardWorkweek(8), repo.Pool, planner.CalculatedNumberOfHours,
		planner.AllocationRequest{Resource: crane, ResourcesPerDay: planner.MustResourcesPerDay("0.5")},
		planner.AllocationRequest{Criteria: []*planner.Criterion{welder}, ResourcesPerDay: planner.MustResourcesPerDay("1.5"), Derive: true},
	)
	require.NoError(t, err)
	expected := task.Snapshot()

	// WHEN: Saving through the repository and restoring
	require.NoError(t, repo.SaveTask(ctx, task))
	restored, err := repo.Task(ctx, "hull")
	require.NoError(t, err)

	// THEN: The restored graph is the saved one at version 1
	expected.Version = 1
	assert.Equal(t, expected, restored.Snapshot())
	assert.Equal(t, 80, restored.AssignedHours())
	generic := restored.GenericAllocations()[0]
	assert.Len(t, generic.DerivedAllocations(), 2)
}

func TestStore_DepartedWorkerKeepsCriteria(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	repo := planner.NewRepository(s)
	seedPool(t, repo)
	ben, _ := repo.Pool.FindResource("w2")

	// GIVEN: A task without criteria, allocated to Ben
	task, err := planner.NewTask("refit", "Refit", monday, monday.AddDays(5))
	require.NoError(t, err)
	_, err = task.Allocate(planner.StandardWorkweek(8), repo.Pool, planner.CalculatedNumberOfHours,
		planner.AllocationRequest{Resource: ben, ResourcesPerDay: planner.MustResourcesPerDay("1")})
	require.NoError(t, err)
	require.NoError(t, repo.SaveTask(ctx, task))

	// WHEN: Ben is deleted and the task is loaded back
	require.NoError(t, repo.RemoveResource(ctx, "w2"))
	snap, err := s.LoadTask(ctx, "refit")
	require.NoError(t, err)

	// THEN: The allocation still records the criteria Ben met
	assert.Equal(t, []planner.CriterionID{"welder"}, snap.Allocations[0].Criteria)

	// AND: The restored task is reassigned to Ana
	restored, err := planner.RestoreTask(snap, repo.Pool)
	require.NoError(t, err)
	require.NoError(t, restored.ReassignAllocationsWithNewResources(planner.StandardWorkweek(8), repo.Pool))
	assert.Equal(t, planner.ResourceID("w1"), restored.SpecificAllocations()[0].Resource().ID)
	assert.Equal(t, 40, restored.AssignedHours())
}

func TestStore_TaskVersioning(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	snap := planner.TaskSnapshot{
		ID:              "t1",
		Name:            "Paint",
		Start:           monday,
		End:             monday.AddDays(1),
		CalculatedValue: planner.CalculatedEndDate,
	}
	v, err := s.SaveTask(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// stale writer
	_, err = s.SaveTask(ctx, snap)
	assert.ErrorIs(t, err, planner.ErrConcurrentModification)

	snap.Version = 1
	snap.Name = "Paint again"
	v, err = s.SaveTask(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	loaded, err := s.LoadTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Paint again", loaded.Name)
	assert.Equal(t, 2, loaded.Version)
}

func TestStore_DeleteTask(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.SaveTask(ctx, planner.TaskSnapshot{
		ID: "t1", Start: monday, End: monday.AddDays(1), CalculatedValue: planner.CalculatedEndDate,
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTask(ctx, "t1"))

	_, err = s.LoadTask(ctx, "t1")
	assert.ErrorIs(t, err, planner.ErrTaskNotFound)
	assert.ErrorIs(t, s.DeleteTask(ctx, "t1"), planner.ErrTaskNotFound)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx planner.Store) error {
		if _, err := tx.SaveTask(ctx, planner.TaskSnapshot{
			ID: "t1", Start: monday, End: monday.AddDays(1), CalculatedValue: planner.CalculatedEndDate,
		}); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	tasks, err := s.LoadTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestStore_Holidays(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveHoliday(ctx, planner.Holiday{
		ID: "xmas", Date: planner.NewDate(2020, time.December, 25), Name: "Christmas", Recurring: true,
	}))
	require.NoError(t, s.SaveHoliday(ctx, planner.Holiday{
		ID: "founders", CompanyID: "acme", Date: monday, Name: "Founders Day",
	}))

	// THEN: Recurring holidays match every year, company ones only their company
	assert.True(t, s.IsHoliday("acme", planner.NewDate(2024, time.December, 25)))
	assert.True(t, s.IsHoliday("acme", monday))
	assert.False(t, s.IsHoliday("other", monday))
	assert.False(t, s.IsHoliday("acme", monday.AddDays(1)))

	inYear, err := s.HolidaysInYear(ctx, "acme", 2024)
	require.NoError(t, err)
	require.Len(t, inYear, 2)
	for _, h := range inYear {
		assert.Equal(t, 2024, h.Date.Year())
	}

	// AND: The store backs a workweek calendar
	cal := planner.StandardWorkweek(8)
	cal.Holidays = s
	cal.CompanyID = "acme"
	assert.Equal(t, 0, cal.Capacity(nil, monday))
	assert.Equal(t, 8, cal.Capacity(nil, monday.AddDays(1)))

	require.NoError(t, s.DeleteHoliday(ctx, "founders"))
	assert.False(t, s.IsHoliday("acme", monday))
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	repo := planner.NewRepository(s)
	seedPool(t, repo)

	require.NoError(t, s.Reset(ctx))

	criteria, err := s.LoadCriteria(ctx)
	require.NoError(t, err)
	assert.Empty(t, criteria)
	resources, err := s.LoadResources(ctx)
	require.NoError(t, err)
	assert.Empty(t, resources)
}
