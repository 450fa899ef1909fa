package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/allocation-engine/planner"
	"github.com/warp/allocation-engine/planner/store"
)

var monday = planner.NewDate(2024, time.January, 8)

func taskSnapshot(id planner.TaskID) planner.TaskSnapshot {
	return planner.TaskSnapshot{
		ID:              id,
		Name:            "Hull",
		Start:           monday,
		End:             monday.AddDays(5),
		CalculatedValue: planner.CalculatedNumberOfHours,
		Criteria:        []planner.CriterionID{"welder"},
		Allocations: []planner.AllocationSnapshot{{
			ID:              "a1",
			Kind:            planner.AllocationSpecific,
			ResourceID:      "w1",
			ResourcesPerDay: planner.MustResourcesPerDay("1"),
			Assignments: []planner.AssignmentSnapshot{
				{Day: monday, Hours: 8, ResourceID: "w1"},
			},
		}},
	}
}

// =============================================================================
// VERSIONING
// =============================================================================

func TestMemory_TaskVersioning(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	// GIVEN: A new task saved at version 0
	v, err := m.SaveTask(ctx, taskSnapshot("t1"))
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// WHEN: Saving with the current version
	snap := taskSnapshot("t1")
	snap.Version = 1
	v, err = m.SaveTask(ctx, snap)

	// THEN: Version increments
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	// AND: A stale version is rejected
	_, err = m.SaveTask(ctx, snap)
	assert.ErrorIs(t, err, planner.ErrConcurrentModification)
	assert.True(t, planner.IsRetryable(err))

	// AND: A non-zero version for an unknown task is rejected
	ghost := taskSnapshot("t2")
	ghost.Version = 4
	_, err = m.SaveTask(ctx, ghost)
	assert.ErrorIs(t, err, planner.ErrConcurrentModification)
}

func TestMemory_LoadedTasksDoNotAliasStoredState(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_, err := m.SaveTask(ctx, taskSnapshot("t1"))
	require.NoError(t, err)

	loaded, err := m.LoadTask(ctx, "t1")
	require.NoError(t, err)
	loaded.Allocations[0].Assignments[0].Hours = 99

	again, err := m.LoadTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 8, again.Allocations[0].Assignments[0].Hours)
	assert.Equal(t, 1, again.Version)
}

func TestMemory_NotFound(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, err := m.LoadTask(ctx, "missing")
	assert.ErrorIs(t, err, planner.ErrTaskNotFound)
	assert.ErrorIs(t, m.DeleteTask(ctx, "missing"), planner.ErrTaskNotFound)
	assert.ErrorIs(t, m.DeleteResource(ctx, "missing"), planner.ErrResourceNotFound)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTxMemory_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	tm := store.NewTxMemory()
	_, err := tm.SaveTask(ctx, taskSnapshot("t1"))
	require.NoError(t, err)

	// WHEN: A transaction saves then fails
	boom := errors.New("boom")
	err = tm.WithTx(ctx, func(s planner.Store) error {
		snap := taskSnapshot("t1")
		snap.Version = 1
		if _, err := s.SaveTask(ctx, snap); err != nil {
			return err
		}
		if err := s.SaveResource(ctx, planner.ResourceSnapshot{ID: "w9", Kind: planner.KindWorker}); err != nil {
			return err
		}
		return boom
	})

	// THEN: Nothing from the transaction is visible
	assert.ErrorIs(t, err, boom)
	loaded, err := tm.LoadTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version)
	resources, err := tm.LoadResources(ctx)
	require.NoError(t, err)
	assert.Empty(t, resources)
}

func TestTxMemory_Commit(t *testing.T) {
	ctx := context.Background()
	tm := store.NewTxMemory()

	err := tm.WithTx(ctx, func(s planner.Store) error {
		_, err := s.SaveTask(ctx, taskSnapshot("t1"))
		return err
	})

	require.NoError(t, err)
	tasks, err := tm.LoadTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Version)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func TestMemory_Holidays(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	xmas := planner.NewDate(2023, time.December, 25)
	require.NoError(t, m.SaveHoliday(ctx, planner.Holiday{ID: "xmas", Date: xmas, Name: "Christmas", Recurring: true}))
	require.NoError(t, m.SaveHoliday(ctx, planner.Holiday{ID: "founders", CompanyID: "acme", Date: monday, Name: "Founders"}))

	assert.True(t, m.IsHoliday("other", planner.NewDate(2024, time.December, 25)), "recurring global")
	assert.True(t, m.IsHoliday("acme", monday))
	assert.False(t, m.IsHoliday("other", monday), "company-specific")

	holidays, err := m.LoadHolidays(ctx, "other")
	require.NoError(t, err)
	require.Len(t, holidays, 1)
	assert.Equal(t, "xmas", holidays[0].ID)

	require.NoError(t, m.DeleteHoliday(ctx, "xmas"))
	assert.False(t, m.IsHoliday("other", xmas))
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	_, err := m.SaveTask(ctx, taskSnapshot("t1"))
	require.NoError(t, err)
	require.NoError(t, m.SaveCriterion(ctx, planner.CriterionSnapshot{ID: "welder"}))

	require.NoError(t, m.Reset(ctx))

	tasks, err := m.LoadTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	criteria, err := m.LoadCriteria(ctx)
	require.NoError(t, err)
	assert.Empty(t, criteria)
}

// =============================================================================
// REPOSITORY
// =============================================================================

func TestRepository_SaveRestoreAndConflict(t *testing.T) {
	ctx := context.Background()
	repo := planner.NewRepository(store.NewTxMemory())

	// GIVEN: A welder persisted through the repository
	skill := planner.NewCriterion("skill", "Skill", "skill")
	welder := skill.Child("welder", "Welder")
	ana := planner.NewWorker("w1", "Ana").Satisfy(welder, planner.OpenPeriod(monday))
	require.NoError(t, repo.AddResource(ctx, ana))

	// AND: A task allocated to her
	task, err := planner.NewTask("t1", "Hull", monday, monday.AddDays(5))
	require.NoError(t, err)
	_, err = task.Allocate(planner.StandardWorkweek(8), repo.Pool, planner.CalculatedNumberOfHours,
		planner.AllocationRequest{Resource: ana, ResourcesPerDay: planner.MustResourcesPerDay("1")})
	require.NoError(t, err)
	require.NoError(t, repo.SaveTask(ctx, task))
	assert.Equal(t, 1, task.Version())

	// WHEN: Reloading the pool and the task
	require.NoError(t, repo.Load(ctx))
	restored, err := repo.Task(ctx, "t1")
	require.NoError(t, err)

	// THEN: Hours and resolved resources survive
	assert.Equal(t, 40, restored.AssignedHours())
	assert.Equal(t, planner.ResourceID("w1"), restored.SpecificAllocations()[0].Resource().ID)
	_, ok := repo.Pool.Criterion("skill")
	assert.True(t, ok, "ancestors are persisted")

	// AND: Two writers from the same version conflict
	require.NoError(t, repo.SaveTask(ctx, restored))
	err = repo.SaveTask(ctx, task)
	assert.ErrorIs(t, err, planner.ErrConcurrentModification)
}

func TestRepository_SaveTasksIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := planner.NewRepository(store.NewTxMemory())

	first, err := planner.NewTask("t1", "First", monday, monday.AddDays(1))
	require.NoError(t, err)
	stale, err := planner.NewTask("t2", "Stale", monday, monday.AddDays(1))
	require.NoError(t, err)
	stale.SetVersion(7)

	err = repo.SaveTasks(ctx, []*planner.Task{first, stale})

	assert.ErrorIs(t, err, planner.ErrConcurrentModification)
	assert.Equal(t, 0, first.Version(), "versions only recorded on success")
	tasks, err := repo.Tasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestRepository_RemoveResource(t *testing.T) {
	ctx := context.Background()
	repo := planner.NewRepository(store.NewMemory())
	require.NoError(t, repo.AddResource(ctx, planner.NewMachine("m1", "Crane")))

	require.NoError(t, repo.RemoveResource(ctx, "m1"))

	_, ok := repo.Pool.FindResource("m1")
	assert.False(t, ok)
	assert.ErrorIs(t, repo.RemoveResource(ctx, "m1"), planner.ErrResourceNotFound)
}

func TestRepository_ReassignDepartedWorkerWithoutTaskCriteria(t *testing.T) {
	ctx := context.Background()
	repo := planner.NewRepository(store.NewMemory())

	// GIVEN: Two welders and a task with no criteria of its own
	skill := planner.NewCriterion("skill", "Skill", "skill")
	welder := skill.Child("welder", "Welder")
	ana := planner.NewWorker("w1", "Ana").Satisfy(welder, planner.OpenPeriod(monday))
	ben := planner.NewWorker("w2", "Ben").Satisfy(welder, planner.OpenPeriod(monday))
	require.NoError(t, repo.AddResource(ctx, ana))
	require.NoError(t, repo.AddResource(ctx, ben))

	task, err := planner.NewTask("t1", "Hull", monday, monday.AddDays(5))
	require.NoError(t, err)
	_, err = task.Allocate(planner.StandardWorkweek(8), repo.Pool, planner.CalculatedNumberOfHours,
		planner.AllocationRequest{Resource: ben, ResourcesPerDay: planner.MustResourcesPerDay("1")})
	require.NoError(t, err)
	require.NoError(t, repo.SaveTask(ctx, task))

	// WHEN: Ben leaves and the task is reloaded
	require.NoError(t, repo.RemoveResource(ctx, "w2"))
	restored, err := repo.Task(ctx, "t1")
	require.NoError(t, err)

	// THEN: The stand-in keeps Ben's criteria
	standIn := restored.SpecificAllocations()[0].Resource()
	assert.Equal(t, []*planner.Criterion{welder}, standIn.SatisfiedCriteria())

	// AND: Reassignment finds another welder with the same hours
	require.NoError(t, restored.ReassignAllocationsWithNewResources(planner.StandardWorkweek(8), repo.Pool))
	assert.Equal(t, planner.ResourceID("w1"), restored.SpecificAllocations()[0].Resource().ID)
	assert.Equal(t, 40, restored.AssignedHours())
}
