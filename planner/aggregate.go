/*
aggregate.go - Read-only totals over day assignments and allocations

PURPOSE:
  Aggregates answer "how many hours, from when to when, how much per day"
  for a set of day assignments or allocations. They copy their input on
  construction and never touch engine-owned state afterwards, so they are
  safe to compute concurrently from read-only contexts.

EMPTY SETS:
  Start() and End() return the zero Date on an empty aggregate. Callers must
  check IsEmpty() before using the range (Task.MergeAllocation does).

SEE ALSO:
  - task.go: MergeAllocation takes its new task dates from an aggregate
*/
package planner

import (
	"sort"
	"strings"
)

// =============================================================================
// AGGREGATE OF DAY ASSIGNMENTS
// =============================================================================

type AggregateOfDayAssignments struct {
	assignments []DayAssignment
}

// NewAggregateOfDayAssignments snapshots the given assignments.
func NewAggregateOfDayAssignments(assignments []DayAssignment) AggregateOfDayAssignments {
	return AggregateOfDayAssignments{assignments: append([]DayAssignment(nil), assignments...)}
}

func (a AggregateOfDayAssignments) IsEmpty() bool { return len(a.assignments) == 0 }

func (a AggregateOfDayAssignments) TotalHours() int {
	total := 0
	for _, da := range a.assignments {
		total += da.Hours
	}
	return total
}

// Start is the earliest day, or the zero Date when empty.
func (a AggregateOfDayAssignments) Start() Date {
	var start Date
	for i, da := range a.assignments {
		if i == 0 || da.Day.Before(start) {
			start = da.Day
		}
	}
	return start
}

// End is the latest day (inclusive), or the zero Date when empty.
func (a AggregateOfDayAssignments) End() Date {
	var end Date
	for i, da := range a.assignments {
		if i == 0 || da.Day.After(end) {
			end = da.Day
		}
	}
	return end
}

// Range is the half-open span [Start, End+1). Zero when empty.
func (a AggregateOfDayAssignments) Range() DateRange {
	if a.IsEmpty() {
		return DateRange{}
	}
	return DateRange{Start: a.Start(), End: a.End().AddDays(1)}
}

// HoursByDay sums hours per day.
func (a AggregateOfDayAssignments) HoursByDay() map[Date]int {
	result := make(map[Date]int)
	for _, da := range a.assignments {
		result[da.Day] += da.Hours
	}
	return result
}

// HoursByResource sums hours per resource.
func (a AggregateOfDayAssignments) HoursByResource() map[ResourceID]int {
	result := make(map[ResourceID]int)
	for _, da := range a.assignments {
		result[da.resourceID()] += da.Hours
	}
	return result
}

// Days returns the distinct days with assignments, in order.
func (a AggregateOfDayAssignments) Days() []Date {
	byDay := a.HoursByDay()
	days := make([]Date, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Assignments returns a sorted copy of the aggregated assignments.
func (a AggregateOfDayAssignments) Assignments() []DayAssignment {
	result := append([]DayAssignment(nil), a.assignments...)
	sortDayAssignmentValues(result)
	return result
}

// =============================================================================
// AGGREGATE OF RESOURCE ALLOCATIONS
// =============================================================================

type AggregateOfResourceAllocations struct {
	AggregateOfDayAssignments
	allocations int
}

// NewAggregateOfResourceAllocations aggregates the primary assignments of
// every allocation. Derived allocations are not counted.
func NewAggregateOfResourceAllocations(allocations []*ResourceAllocation) AggregateOfResourceAllocations {
	var all []DayAssignment
	for _, alloc := range allocations {
		if alloc == nil {
			continue
		}
		all = append(all, valuesOf(alloc.assignments)...)
	}
	return AggregateOfResourceAllocations{
		AggregateOfDayAssignments: AggregateOfDayAssignments{assignments: all},
		allocations:               len(allocations),
	}
}

// AllocationCount is the number of allocations aggregated (empty ones included).
func (a AggregateOfResourceAllocations) AllocationCount() int { return a.allocations }

// =============================================================================
// AGGREGATE BY CRITERIA
// =============================================================================

// CriteriaHours totals the generic allocations asking for one criteria set.
type CriteriaHours struct {
	Criteria    []*Criterion
	Hours       int
	Allocations int
}

// AggregateByCriteria groups generic allocations by their criteria set,
// ordered by the joined criterion IDs. Specific allocations are skipped.
func AggregateByCriteria(allocations []*ResourceAllocation) []CriteriaHours {
	groups := make(map[string]*CriteriaHours)
	var keys []string
	for _, alloc := range OfKind(AllocationGeneric, allocations) {
		criteria := alloc.Criteria()
		sort.Slice(criteria, func(i, j int) bool { return criteria[i].ID < criteria[j].ID })
		ids := make([]string, len(criteria))
		for i, c := range criteria {
			ids[i] = string(c.ID)
		}
		key := strings.Join(ids, ",")
		g, ok := groups[key]
		if !ok {
			g = &CriteriaHours{Criteria: criteria}
			groups[key] = g
			keys = append(keys, key)
		}
		g.Hours += alloc.AssignedHours()
		g.Allocations++
	}
	sort.Strings(keys)
	result := make([]CriteriaHours, 0, len(keys))
	for _, k := range keys {
		result = append(result, *groups[k])
	}
	return result
}

func sortDayAssignmentValues(as []DayAssignment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].Day.Equal(as[j].Day) {
			return as[i].Day.Before(as[j].Day)
		}
		return as[i].resourceID() < as[j].resourceID()
	})
}
