/*
request.go - Allocation requests against a task

PURPOSE:
  The entry point callers use to put resources on a task or change an
  existing allocation. Each call builds detached allocations (or staged
  copies), runs the algorithm matching the requested mode, and commits the
  result through Task.MergeAllocation in one step.

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  AllocationRequest ──▶ new allocation ──▶ algorithm ──▶ merge     │
  │                              (mode picks it)                     │
  │                                                                  │
  │  AllocationChange  ──▶ staged copy    ──▶ algorithm ──▶ merge     │
  │                                                    (modification)│
  └──────────────────────────────────────────────────────────────────┘

MODES:
  NUMBER_OF_HOURS:   ResourcesPerDay used, Hours ignored, task dates kept
  END_DATE:          ResourcesPerDay used, Hours summed into the target,
                     end date computed
  RESOURCES_PER_DAY: Hours used, ResourcesPerDay computed, task dates kept

SEE ALSO:
  - allocator.go: The algorithms
  - task.go: MergeAllocation
*/
package planner

import "fmt"

// =============================================================================
// NEW ALLOCATIONS
// =============================================================================

// AllocationRequest describes one allocation to add. Resource is set for
// specific requests, Criteria for generic ones.
type AllocationRequest struct {
	Resource        *Resource
	Criteria        []*Criterion
	ResourcesPerDay ResourcesPerDay
	Hours           int
	// Derive generates derived allocations for a generic request.
	Derive bool
}

func (r AllocationRequest) build(t *Task) (*ResourceAllocation, error) {
	if r.Resource != nil {
		if len(r.Criteria) > 0 {
			return nil, fmt.Errorf("%w: request sets both a resource and criteria", ErrIllegalArgument)
		}
		return NewSpecificAllocation(t, r.Resource)
	}
	return NewGenericAllocation(t, r.Criteria)
}

// Allocate adds one allocation per request, computed in mode, and switches
// the task to mode. finder resolves the workers of generic requests.
// Allocations that received no day assignments are not kept, and only the
// kept ones are returned.
func (t *Task) Allocate(cal Calendar, finder WorkerFinder, mode CalculatedValue, requests ...AllocationRequest) ([]*ResourceAllocation, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	allocations := make([]*ResourceAllocation, 0, len(requests))
	for _, r := range requests {
		a, err := r.build(t)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}

	if err := t.run(cal, finder, mode, allocations, requests); err != nil {
		return nil, err
	}
	for i, r := range requests {
		if r.Derive {
			allocations[i].CreateDerived(finder)
		}
	}

	aggregate := NewAggregateOfResourceAllocations(append(t.ResourceAllocations(), allocations...))
	if err := t.MergeAllocation(mode, aggregate, allocations, nil, nil); err != nil {
		return nil, err
	}
	kept := make([]*ResourceAllocation, 0, len(allocations))
	for _, a := range allocations {
		if !t.owns(a) {
			a.task = nil
			continue
		}
		kept = append(kept, a)
	}
	return kept, nil
}

// run executes the algorithm for mode over allocations, request i applying
// to allocation i.
func (t *Task) run(cal Calendar, finder WorkerFinder, mode CalculatedValue, allocations []*ResourceAllocation, requests []AllocationRequest) error {
	switch mode {
	case CalculatedNumberOfHours, CalculatedEndDate:
		mods := make([]ResourcesPerDayModification, len(allocations))
		target := 0
		for i, a := range allocations {
			mods[i] = NewResourcesPerDayModification(a, requests[i].ResourcesPerDay, finder)
			target += requests[i].Hours
		}
		if mode == CalculatedNumberOfHours {
			return Allocating(cal, mods...).AllocateOnTaskLength(t.Range())
		}
		if target == 0 {
			target = t.hoursAtOrder
		}
		_, err := Allocating(cal, mods...).UntilAllocating(t.startDate, target)
		return err
	case CalculatedResourcesPerDay:
		mods := make([]HoursModification, len(allocations))
		for i, a := range allocations {
			mods[i] = NewHoursModification(a, requests[i].Hours, finder)
		}
		return AllocatingHours(cal, mods...).AllocateUntil(t.startDate, t.endDate)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCalculatedValue, mode)
	}
}

// =============================================================================
// CHANGING AN ALLOCATION
// =============================================================================

// AllocationChange requests new parameters for a live allocation.
type AllocationChange struct {
	ID              AllocationID
	ResourcesPerDay ResourcesPerDay
	Hours           int
}

// ModifyAllocations recomputes the given live allocations in mode on staged
// copies and merges them back. The other allocations are left untouched.
func (t *Task) ModifyAllocations(cal Calendar, finder WorkerFinder, mode CalculatedValue, changes ...AllocationChange) error {
	if len(changes) == 0 {
		return nil
	}
	pairs := make([]ModifiedAllocation, 0, len(changes))
	requests := make([]AllocationRequest, 0, len(changes))
	for _, c := range changes {
		original, ok := t.AllocationByID(c.ID)
		if !ok {
			return fmt.Errorf("%w: allocation %s is not part of task %s", ErrInconsistentModification, c.ID, t.id)
		}
		pairs = append(pairs, ModifiedAllocation{Original: original, Modification: original.Copy()})
		requests = append(requests, AllocationRequest{ResourcesPerDay: c.ResourcesPerDay, Hours: c.Hours})
	}

	if err := t.run(cal, finder, mode, Modifications(pairs), requests); err != nil {
		return err
	}
	updateDerived(pairs)

	staged := make(map[*ResourceAllocation]*ResourceAllocation, len(pairs))
	for _, pair := range pairs {
		staged[pair.Original] = pair.Modification
	}
	var effective []*ResourceAllocation
	for _, a := range t.allocations {
		if mod, ok := staged[a]; ok {
			effective = append(effective, mod)
			continue
		}
		effective = append(effective, a)
	}
	return t.MergeAllocation(mode, NewAggregateOfResourceAllocations(effective), nil, pairs, nil)
}
