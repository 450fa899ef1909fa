/*
allocation.go - ResourceAllocation: one task's claim on resources

PURPOSE:
  A ResourceAllocation owns the day assignments one task places on either a
  single concrete resource (specific) or on whichever workers match a set of
  criteria (generic). Both share one struct; the kind-specific data lives in
  a variant payload and behavior is selected with explicit switches on Kind.

KINDS:
  AllocationSpecific: bound to exactly one Resource. Within a task, no two
                      specific allocations may bind the same worker.
  AllocationGeneric:  bound to Criteria. Workers are resolved by criteria
                      matching every time assignments are (re)generated.

LIFECYCLE:
  1. Created against a task (NewSpecificAllocation / NewGenericAllocation)
  2. Filled by an algorithm (allocator.go)
  3. Added to the task by Task.MergeAllocation
  4. Modified through Copy() + algorithm + MergeAssignmentsAndResourcesPerDay,
     which keeps the original's identity
  5. Removed by Task.MergeAllocation (detached, task ownership dropped)

OWNERSHIP:
  Assignments move between allocations, they are never shared. Merging a
  staged copy back moves the copy's assignments onto the original and leaves
  the copy empty.

SEE ALSO:
  - allocator.go: Fills allocations day by day
  - derived.go: Secondary allocations hanging off a primary one
*/
package planner

import (
	"fmt"
	"sort"
)

// =============================================================================
// ALLOCATION KIND - Closed variant set
// =============================================================================

type AllocationKind int

const (
	AllocationSpecific AllocationKind = iota + 1
	AllocationGeneric
)

func (k AllocationKind) String() string {
	switch k {
	case AllocationSpecific:
		return "specific"
	case AllocationGeneric:
		return "generic"
	default:
		return fmt.Sprintf("AllocationKind(%d)", int(k))
	}
}

// ParseAllocationKind maps "specific"/"generic" onto a kind.
func ParseAllocationKind(s string) (AllocationKind, error) {
	switch s {
	case "specific":
		return AllocationSpecific, nil
	case "generic":
		return AllocationGeneric, nil
	default:
		return 0, fmt.Errorf("%w: unknown allocation kind %q", ErrIllegalArgument, s)
	}
}

// SpecificPayload holds the data only specific allocations carry.
type SpecificPayload struct {
	Resource *Resource
}

// GenericPayload holds the data only generic allocations carry.
type GenericPayload struct {
	Criteria []*Criterion
}

// =============================================================================
// RESOURCE ALLOCATION
// =============================================================================

type ResourceAllocation struct {
	id              AllocationID
	origin          AllocationID // set on copies: the allocation copied from
	kind            AllocationKind
	task            *Task
	resourcesPerDay ResourcesPerDay
	assignments     []*DayAssignment
	derived         []*DerivedAllocation

	specific *SpecificPayload
	generic  *GenericPayload
}

// NewSpecificAllocation binds an allocation to one resource. task may be nil
// for a detached allocation; it can be associated later with SetTask.
func NewSpecificAllocation(task *Task, resource *Resource) (*ResourceAllocation, error) {
	if resource == nil {
		return nil, invalidState("specific allocation requires a resource")
	}
	return &ResourceAllocation{
		id:       newAllocationID(),
		kind:     AllocationSpecific,
		task:     task,
		specific: &SpecificPayload{Resource: resource},
	}, nil
}

// NewGenericAllocation binds an allocation to a criteria set.
func NewGenericAllocation(task *Task, criteria []*Criterion) (*ResourceAllocation, error) {
	if len(criteria) == 0 {
		return nil, invalidState("generic allocation requires at least one criterion")
	}
	for _, c := range criteria {
		if c == nil {
			return nil, invalidState("generic allocation has an unset criterion")
		}
	}
	return &ResourceAllocation{
		id:      newAllocationID(),
		kind:    AllocationGeneric,
		task:    task,
		generic: &GenericPayload{Criteria: append([]*Criterion(nil), criteria...)},
	}, nil
}

func (a *ResourceAllocation) ID() AllocationID                 { return a.id }
func (a *ResourceAllocation) Kind() AllocationKind             { return a.kind }
func (a *ResourceAllocation) Task() *Task                      { return a.task }
func (a *ResourceAllocation) ResourcesPerDay() ResourcesPerDay { return a.resourcesPerDay }
func (a *ResourceAllocation) HasAssignments() bool             { return len(a.assignments) > 0 }

// SetTask associates the allocation with a task. The pointer is immutable
// once set.
func (a *ResourceAllocation) SetTask(t *Task) error {
	if a.task != nil && a.task != t {
		return fmt.Errorf("%w: allocation %s already belongs to task %s", ErrIllegalArgument, a.id, a.task.ID())
	}
	a.task = t
	return nil
}

// Resource returns the bound resource of a specific allocation, nil otherwise.
func (a *ResourceAllocation) Resource() *Resource {
	if a.kind == AllocationSpecific {
		return a.specific.Resource
	}
	return nil
}

// Criteria returns the criteria of a generic allocation, nil otherwise.
func (a *ResourceAllocation) Criteria() []*Criterion {
	if a.kind == AllocationGeneric {
		return append([]*Criterion(nil), a.generic.Criteria...)
	}
	return nil
}

// Assignments returns a sorted value snapshot of the day assignments.
func (a *ResourceAllocation) Assignments() []DayAssignment {
	result := valuesOf(a.assignments)
	sortDayAssignmentValues(result)
	return result
}

// AssignedHours sums every assignment.
func (a *ResourceAllocation) AssignedHours() int {
	total := 0
	for _, da := range a.assignments {
		total += da.Hours
	}
	return total
}

// AssociatedResources returns the distinct resources with assignments,
// ordered by ID.
func (a *ResourceAllocation) AssociatedResources() []*Resource {
	resources := make([]*Resource, 0, len(a.assignments))
	for _, da := range a.assignments {
		resources = append(resources, da.Resource)
	}
	return sortResources(uniqueResources(resources))
}

// DerivedAllocations returns the derived set (the slice is a copy).
func (a *ResourceAllocation) DerivedAllocations() []*DerivedAllocation {
	return append([]*DerivedAllocation(nil), a.derived...)
}

// Copy produces a detached deep copy: new identity, cloned assignments and
// derived allocations, no task association.
func (a *ResourceAllocation) Copy() *ResourceAllocation {
	c := &ResourceAllocation{
		id:              newAllocationID(),
		origin:          a.id,
		kind:            a.kind,
		resourcesPerDay: a.resourcesPerDay,
	}
	switch a.kind {
	case AllocationSpecific:
		c.specific = &SpecificPayload{Resource: a.specific.Resource}
	case AllocationGeneric:
		c.generic = &GenericPayload{Criteria: append([]*Criterion(nil), a.generic.Criteria...)}
	}
	for _, da := range a.assignments {
		clone := da.clone()
		clone.owner = c
		c.assignments = append(c.assignments, clone)
	}
	for _, d := range a.derived {
		c.derived = append(c.derived, d.copyFor(c))
	}
	return c
}

// MergeAssignmentsAndResourcesPerDay replaces this allocation's assignments,
// ratio, derived set and bound resource with other's. Ownership of the
// assignments moves to the receiver, whose identity is preserved.
func (a *ResourceAllocation) MergeAssignmentsAndResourcesPerDay(other *ResourceAllocation) error {
	if other == nil || other == a {
		return invalidState("cannot merge an allocation with itself or nil")
	}
	if other.kind != a.kind {
		return invalidState("cannot merge %s allocation into %s allocation", other.kind, a.kind)
	}
	switch a.kind {
	case AllocationSpecific:
		a.specific.Resource = other.specific.Resource
	case AllocationGeneric:
		// criteria are part of the identity of a generic allocation
	}

	moved := other.assignments
	other.assignments = nil
	for _, da := range moved {
		da.detach()
	}
	if err := a.replaceAssignments(moved); err != nil {
		return err
	}

	a.detachDerived()
	for _, d := range other.derived {
		d.parent = a
	}
	a.derived = other.derived
	other.derived = nil

	a.resourcesPerDay = other.resourcesPerDay
	return nil
}

// replaceAssignments swaps in a new assignment set, detaching the old one.
func (a *ResourceAllocation) replaceAssignments(assignments []*DayAssignment) error {
	for _, da := range assignments {
		if err := da.attachTo(a); err != nil {
			return err
		}
	}
	for _, old := range a.assignments {
		if old.owner == a && !containsAssignment(assignments, old) {
			old.detach()
		}
	}
	sortDayAssignments(assignments)
	a.assignments = assignments
	return nil
}

// detach releases every assignment and derived allocation. Called when the
// allocation is removed from its task.
func (a *ResourceAllocation) detach() {
	for _, da := range a.assignments {
		da.detach()
	}
	a.assignments = nil
	a.detachDerived()
}

func (a *ResourceAllocation) detachDerived() {
	for _, d := range a.derived {
		d.detach()
	}
	a.derived = nil
}

// requiredCriteria is what a replacement worker must satisfy.
func (a *ResourceAllocation) requiredCriteria(task *Task) []*Criterion {
	switch a.kind {
	case AllocationGeneric:
		return a.Criteria()
	case AllocationSpecific:
		if task != nil && len(task.criteria) > 0 {
			return append([]*Criterion(nil), task.criteria...)
		}
		return a.specific.Resource.SatisfiedCriteria()
	}
	return nil
}

func (a *ResourceAllocation) originID() AllocationID {
	if a.origin != "" {
		return a.origin
	}
	return a.id
}

// boundWorker returns the worker a specific allocation pins, if any.
func (a *ResourceAllocation) boundWorker() (ResourceID, bool) {
	if a.kind != AllocationSpecific || a.specific.Resource == nil || !a.specific.Resource.IsWorker() {
		return "", false
	}
	return a.specific.Resource.ID, true
}

func (a *ResourceAllocation) String() string {
	switch a.kind {
	case AllocationSpecific:
		return fmt.Sprintf("specific[%s %s rpd=%s %dh]", a.id, a.specific.Resource, a.resourcesPerDay, a.AssignedHours())
	case AllocationGeneric:
		return fmt.Sprintf("generic[%s %v rpd=%s %dh]", a.id, CriterionIDs(a.generic.Criteria), a.resourcesPerDay, a.AssignedHours())
	}
	return fmt.Sprintf("allocation[%s]", a.id)
}

// OfKind filters allocations by kind.
func OfKind(kind AllocationKind, allocations []*ResourceAllocation) []*ResourceAllocation {
	var result []*ResourceAllocation
	for _, a := range allocations {
		if a.kind == kind {
			result = append(result, a)
		}
	}
	return result
}

func containsAssignment(assignments []*DayAssignment, target *DayAssignment) bool {
	for _, da := range assignments {
		if da == target {
			return true
		}
	}
	return false
}

func sortDayAssignments(as []*DayAssignment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].Day.Equal(as[j].Day) {
			return as[i].Day.Before(as[j].Day)
		}
		return as[i].resourceID() < as[j].resourceID()
	})
}
