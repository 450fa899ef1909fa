/*
derived.go - Derived allocations generated from a primary allocation

PURPOSE:
  A generic allocation says "welders, 16 hours on Monday". The derived set
  names the concrete workers behind that pattern: one DerivedAllocation per
  matching worker, each mirroring the primary's days with the hours split
  evenly across the workers.

REGENERATION:
  When an allocation with a non-empty derived set is modified, derivation is
  re-run against the workers already derived (WorkersAmong) rather than a
  fresh criteria search, so committed assignments keep the same workers.
  Task.reassign does this on the staged copy before merging it back.

ZERO MATCHES:
  No matching workers means no derived allocations. The primary's own
  assignments are never touched by derivation.

SEE ALSO:
  - task.go: updateDerived during reassignment
  - pool.go: WorkerFinder implementations
*/
package planner

import "sort"

// =============================================================================
// DERIVED ALLOCATION
// =============================================================================

type DerivedAllocation struct {
	id          AllocationID
	parent      *ResourceAllocation
	worker      *Resource
	assignments []*DayAssignment
}

func (d *DerivedAllocation) ID() AllocationID            { return d.id }
func (d *DerivedAllocation) Parent() *ResourceAllocation { return d.parent }
func (d *DerivedAllocation) Worker() *Resource           { return d.worker }

// Assignments returns a sorted value snapshot.
func (d *DerivedAllocation) Assignments() []DayAssignment {
	result := valuesOf(d.assignments)
	sortDayAssignmentValues(result)
	return result
}

func (d *DerivedAllocation) AssignedHours() int {
	total := 0
	for _, da := range d.assignments {
		total += da.Hours
	}
	return total
}

func (d *DerivedAllocation) copyFor(parent *ResourceAllocation) *DerivedAllocation {
	c := &DerivedAllocation{id: newAllocationID(), parent: parent, worker: d.worker}
	for _, da := range d.assignments {
		clone := da.clone()
		clone.owner = c
		c.assignments = append(c.assignments, clone)
	}
	return c
}

func (d *DerivedAllocation) detach() {
	for _, da := range d.assignments {
		da.detach()
	}
	d.assignments = nil
	d.parent = nil
}

// =============================================================================
// GENERATOR
// =============================================================================

// GenerateDerived builds the derived set for parent without attaching it.
// Only generic allocations derive; specific ones return nil.
func GenerateDerived(parent *ResourceAllocation, finder WorkerFinder) []*DerivedAllocation {
	if parent == nil || finder == nil || parent.kind != AllocationGeneric {
		return nil
	}
	workers := sortResources(uniqueResources(Workers(finder.FindWorkersMatching(parent.generic.Criteria))))
	if len(workers) == 0 {
		return nil
	}

	derived := make([]*DerivedAllocation, len(workers))
	for i, w := range workers {
		derived[i] = &DerivedAllocation{id: newAllocationID(), parent: parent, worker: w}
	}

	hoursByDay := make(map[Date]int)
	for _, da := range parent.assignments {
		hoursByDay[da.Day] += da.Hours
	}
	days := make([]Date, 0, len(hoursByDay))
	for day := range hoursByDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	for _, day := range days {
		hours := hoursByDay[day]
		shares, _ := splitEvenly(hours, unbounded(len(workers), hours))
		for i, h := range shares {
			if h == 0 {
				continue
			}
			da := NewDayAssignment(day, h, workers[i])
			da.owner = derived[i]
			derived[i].assignments = append(derived[i].assignments, da)
		}
	}
	return derived
}

// CreateDerived regenerates this allocation's derived set with finder,
// replacing any previous one.
func (a *ResourceAllocation) CreateDerived(finder WorkerFinder) {
	a.detachDerived()
	a.derived = GenerateDerived(a, finder)
}

// DerivedWorkers returns the distinct workers of the derived set.
func (a *ResourceAllocation) DerivedWorkers() []*Resource {
	workers := make([]*Resource, 0, len(a.derived))
	for _, d := range a.derived {
		workers = append(workers, d.worker)
	}
	return sortResources(uniqueResources(workers))
}
