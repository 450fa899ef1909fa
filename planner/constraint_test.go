package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/allocation-engine/planner"
)

// =============================================================================
// CONSTRAINTS
// =============================================================================

func TestApplyConstraints_ViolationNotifiesListeners(t *testing.T) {
	// GIVEN: A fixed start on Friday and a cap on Thursday
	var listeners planner.Listeners[planner.Date]
	var violated []string
	unregister := listeners.Register(func(c planner.Constraint[planner.Date], value planner.Date) {
		violated = append(violated, c.String()+"@"+value.String())
	})
	fixed := planner.StartConstraint{Type: planner.StartInFixedDate, Date: day(4)}
	deadline := planner.NotAfter{Limit: day(3)}

	// WHEN: Applying both to Wednesday
	result, err := planner.ApplyConstraints[planner.Date](day(2), &listeners, fixed, deadline)

	// THEN: The cap wins, the fixed start is reported
	assert.Equal(t, day(3), result)
	var violation *planner.ConstraintViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, fixed.String(), violation.Constraint)
	assert.True(t, planner.IsValidationError(err))
	assert.Equal(t, []string{fixed.String() + "@" + day(3).String()}, violated)

	// AND: After unregistering, nothing is notified
	unregister()
	_, err = planner.ApplyConstraints[planner.Date](day(2), &listeners, fixed, deadline)
	assert.ErrorIs(t, err, planner.ErrConstraintViolated)
	assert.Len(t, violated, 1)
}

func TestApplyConstraints_NilListeners(t *testing.T) {
	result, err := planner.ApplyConstraints[planner.Date](day(5), nil, planner.NotAfter{Limit: day(3)})

	require.NoError(t, err)
	assert.Equal(t, day(3), result)
}

func TestStartConstraint_ApplyTo(t *testing.T) {
	tests := []struct {
		name       string
		constraint planner.StartConstraint
		proposed   planner.Date
		expected   planner.Date
	}{
		{"as soon as possible keeps the date", planner.StartConstraint{Type: planner.AsSoonAsPossible}, day(2), day(2)},
		{"not earlier than pushes forward", planner.StartConstraint{Type: planner.StartNotEarlierThan, Date: day(3)}, day(1), day(3)},
		{"not earlier than keeps later dates", planner.StartConstraint{Type: planner.StartNotEarlierThan, Date: day(3)}, day(4), day(4)},
		{"fixed date overrides", planner.StartConstraint{Type: planner.StartInFixedDate, Date: day(3)}, day(9), day(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.constraint.ApplyTo(tt.proposed))
			assert.True(t, tt.constraint.IsSatisfiedBy(tt.expected))
		})
	}
}

func TestStartConstraint_ExplicitlyMovedTo(t *testing.T) {
	asap := planner.StartConstraint{Type: planner.AsSoonAsPossible}
	assert.Equal(t, planner.StartConstraint{Type: planner.StartNotEarlierThan, Date: day(7)}, asap.ExplicitlyMovedTo(day(7)))

	fixed := planner.StartConstraint{Type: planner.StartInFixedDate, Date: day(1)}
	assert.Equal(t, planner.StartConstraint{Type: planner.StartInFixedDate, Date: day(7)}, fixed.ExplicitlyMovedTo(day(7)))
}

// =============================================================================
// MOVING TASKS
// =============================================================================

func TestMoveTo_KeepsDurationAndRecomputes(t *testing.T) {
	// GIVEN: Ana for a full week
	s := newShop()
	task := newTask(t, monday, day(5))
	_, err := task.Allocate(eightHours(), s.pool, planner.CalculatedNumberOfHours,
		planner.AllocationRequest{Resource: s.ana, ResourcesPerDay: rpd("1")})
	require.NoError(t, err)

	// WHEN: Moving to the next Monday
	require.NoError(t, task.MoveTo(eightHours(), day(7)))

	// THEN: Same duration, hours on the new week only
	assert.Equal(t, day(7), task.StartDate())
	assert.Equal(t, day(12), task.EndDate())
	assert.Equal(t, 40, task.AssignedHours())
	for d := range hoursByDay(task.Aggregate().Assignments()) {
		assert.False(t, d.Before(day(7)), "no hours before the new start: %s", d)
	}
}

func TestMoveTo_RespectsExplicitMove(t *testing.T) {
	// GIVEN: A user moved the task to Wednesday
	s := newShop()
	task := newTask(t, monday, day(2))
	_, err := task.Allocate(eightHours(), s.pool, planner.CalculatedNumberOfHours,
		planner.AllocationRequest{Resource: s.ana, ResourcesPerDay: rpd("1")})
	require.NoError(t, err)
	task.ExplicitlyMoved(day(2))
	require.NoError(t, task.MoveTo(eightHours(), day(2)))

	// WHEN: Something proposes an earlier start
	require.NoError(t, task.MoveTo(eightHours(), monday))

	// THEN: It cannot start before Wednesday
	assert.Equal(t, planner.StartNotEarlierThan, task.StartConstraint().Type)
	assert.Equal(t, day(2), task.StartDate())
	assert.Equal(t, day(4), task.EndDate())
	assert.Equal(t, 16, task.AssignedHours())
}

func TestMoveTo_FailureRestoresTask(t *testing.T) {
	// GIVEN: 20 hours in END_DATE mode
	s := newShop()
	task := newTask(t, monday, day(1))
	_, err := task.Allocate(eightHours(), s.pool, planner.CalculatedEndDate,
		planner.AllocationRequest{Resource: s.ana, ResourcesPerDay: rpd("1"), Hours: 20})
	require.NoError(t, err)
	before := task.Snapshot()

	// WHEN: Moving onto a calendar with no working time
	closed := planner.CalendarFunc(func(*planner.Resource, planner.Date) int { return 0 })
	err = task.MoveTo(closed, day(7))

	// THEN: Unreachable; dates and allocations as before
	var unreachable *planner.UnreachableHoursError
	require.ErrorAs(t, err, &unreachable)
	assert.Equal(t, 20, unreachable.Requested)
	assert.Equal(t, before, task.Snapshot())
}

func TestMoveTo_SameStartIsNoop(t *testing.T) {
	task := week(t)
	require.NoError(t, task.MoveTo(eightHours(), monday))
	assert.Equal(t, day(7), task.EndDate())
}
