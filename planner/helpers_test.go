package planner_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/allocation-engine/planner"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// monday is 2024-01-08.
var monday = planner.NewDate(2024, time.January, 8)

func day(n int) planner.Date {
	return monday.AddDays(n)
}

func rpd(s string) planner.ResourcesPerDay {
	return planner.MustResourcesPerDay(s)
}

func eightHours() planner.Calendar {
	return planner.StandardWorkweek(8)
}

// shop is a small pool: two welders, a painter and a crane.
type shop struct {
	pool    *planner.ResourcePool
	skill   *planner.Criterion
	welder  *planner.Criterion
	painter *planner.Criterion
	ana     *planner.Resource
	ben     *planner.Resource
	cleo    *planner.Resource
	crane   *planner.Resource
}

func newShop() *shop {
	s := &shop{pool: planner.NewResourcePool()}
	s.skill = planner.NewCriterion("skill", "Skill", "skill")
	s.welder = s.skill.Child("welder", "Welder")
	s.painter = s.skill.Child("painter", "Painter")
	for _, c := range []*planner.Criterion{s.skill, s.welder, s.painter} {
		s.pool.AddCriterion(c)
	}

	s.ana = planner.NewWorker("w1", "Ana").Satisfy(s.welder, planner.OpenPeriod(planner.Date{}))
	s.ben = planner.NewWorker("w2", "Ben").Satisfy(s.welder, planner.OpenPeriod(planner.Date{}))
	s.cleo = planner.NewWorker("w3", "Cleo").Satisfy(s.painter, planner.OpenPeriod(planner.Date{}))
	s.crane = planner.NewMachine("m1", "Crane")
	for _, r := range []*planner.Resource{s.ana, s.ben, s.cleo, s.crane} {
		s.pool.Add(r)
	}
	return s
}

func newTask(t *testing.T, start, end planner.Date) *planner.Task {
	t.Helper()
	task, err := planner.NewTask("", "Test task", start, end)
	require.NoError(t, err)
	return task
}

// week is a task spanning Monday to the following Monday.
func week(t *testing.T) *planner.Task {
	return newTask(t, monday, day(7))
}

func hoursByDay(assignments []planner.DayAssignment) map[planner.Date]int {
	result := make(map[planner.Date]int)
	for _, da := range assignments {
		result[da.Day] += da.Hours
	}
	return result
}

func hoursByWorker(assignments []planner.DayAssignment) map[planner.ResourceID]int {
	result := make(map[planner.ResourceID]int)
	for _, da := range assignments {
		result[da.Resource.ID] += da.Hours
	}
	return result
}

func totalHours(assignments []planner.DayAssignment) int {
	total := 0
	for _, da := range assignments {
		total += da.Hours
	}
	return total
}
