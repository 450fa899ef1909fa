/*
task.go - The scheduling unit and its allocation coordinator

PURPOSE:
  A Task owns its resource allocations and never holds assignments directly.
  It is the only place where allocations enter, change, or leave the live
  set, and every such change goes through one commit operation:
  MergeAllocation.

CALCULATED VALUE:
  Exactly one of {end date, hours, resources per day} is the dependent
  variable. The task starts in END_DATE mode and may switch at any time:

  NUMBER_OF_HOURS   -> dates fixed, hours recomputed
  END_DATE          -> hours fixed, end date recomputed
  RESOURCES_PER_DAY -> dates and hours fixed, ratio recomputed

MERGE:
  1. Validate every input before touching anything: originals must be live
     allocations of this task, new allocations must point at this task, and
     the resulting live set must not bind one worker twice
  2. Apply modifications onto originals (identity preserved)
  3. Remove allocations (assignments detached, task ownership dropped)
  4. Add new allocations
  5. Drop allocations left without assignments (logged, not an error)

REASSIGNMENT (MoveAllocations, ReassignAllocationsWithNewResources):
  copy every live allocation -> build modifications with a strategy ->
  run the algorithm matching the calculated value on the copies ->
  regenerate derived allocations among the original's derived workers ->
  merge the copies back as modifications.
  A failure at any step leaves the task as it was.

CONCURRENCY:
  A Task is not safe for concurrent mutation. Callers serialize per task,
  which the stores do with optimistic versioning.

SEE ALSO:
  - strategy.go: ModificationStrategy values
  - allocator.go: The algorithms dispatched on the calculated value
  - snapshot.go: Value snapshots used for persistence
*/
package planner

import (
	"fmt"
	"log"
)

// =============================================================================
// TASK
// =============================================================================

type Task struct {
	id              TaskID
	name            string
	startDate       Date
	endDate         Date
	calculatedValue CalculatedValue
	criteria        []*Criterion
	allocations     []*ResourceAllocation
	startConstraint StartConstraint
	startListeners  Listeners[Date]
	hoursAtOrder    int
	version         int
}

// NewTask creates a task spanning [start, end) in END_DATE mode. An empty id
// gets a generated one.
func NewTask(id TaskID, name string, start, end Date) (*Task, error) {
	if _, err := NewDateRange(start, end); err != nil {
		return nil, fmt.Errorf("task %q: %w", name, err)
	}
	if id == "" {
		id = NewTaskID()
	}
	return &Task{
		id:              id,
		name:            name,
		startDate:       start,
		endDate:         end,
		calculatedValue: CalculatedEndDate,
		startConstraint: StartConstraint{Type: AsSoonAsPossible},
	}, nil
}

func (t *Task) ID() TaskID                       { return t.id }
func (t *Task) Name() string                     { return t.name }
func (t *Task) SetName(name string)              { t.name = name }
func (t *Task) StartDate() Date                  { return t.startDate }
func (t *Task) EndDate() Date                    { return t.endDate }
func (t *Task) CalculatedValue() CalculatedValue { return t.calculatedValue }
func (t *Task) Version() int                     { return t.version }

// SetVersion is used by stores after a successful save.
func (t *Task) SetVersion(v int) { t.version = v }

// Range is the task's half-open span [StartDate, EndDate).
func (t *Task) Range() DateRange {
	return DateRange{Start: t.startDate, End: t.endDate}
}

// SetCalculatedValue switches the dependent variable.
func (t *Task) SetCalculatedValue(v CalculatedValue) error {
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCalculatedValue, v)
	}
	t.calculatedValue = v
	return nil
}

// DaysDuration is the number of calendar days between start and end.
func (t *Task) DaysDuration() int {
	return DaysBetween(t.startDate, t.endDate)
}

// SetDaysDuration moves the end date to start + days.
func (t *Task) SetDaysDuration(days int) error {
	if days <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidPeriod, days)
	}
	t.endDate = t.startDate.AddDays(days)
	return nil
}

// Criteria are what a replacement worker of a specific allocation must
// satisfy. Empty means "whatever the replaced worker satisfied".
func (t *Task) Criteria() []*Criterion {
	return append([]*Criterion(nil), t.criteria...)
}

func (t *Task) SetCriteria(criteria []*Criterion) {
	t.criteria = append([]*Criterion(nil), criteria...)
}

// HoursSpecifiedAtOrder is the work the order asked for. An END_DATE
// allocation requested without hours uses it as its target.
func (t *Task) HoursSpecifiedAtOrder() int { return t.hoursAtOrder }

func (t *Task) SetHoursSpecifiedAtOrder(hours int) error {
	if hours < 0 {
		return fmt.Errorf("%w: hours specified at order must not be negative, got %d", ErrIllegalArgument, hours)
	}
	t.hoursAtOrder = hours
	return nil
}

func (t *Task) StartConstraint() StartConstraint { return t.startConstraint }

func (t *Task) SetStartConstraint(sc StartConstraint) { t.startConstraint = sc }

// StartListeners is notified whenever a proposed start violates the start
// constraint.
func (t *Task) StartListeners() *Listeners[Date] { return &t.startListeners }

// =============================================================================
// LIVE ALLOCATION SET
// =============================================================================

// ResourceAllocations returns the live allocations.
func (t *Task) ResourceAllocations() []*ResourceAllocation {
	return append([]*ResourceAllocation(nil), t.allocations...)
}

func (t *Task) GenericAllocations() []*ResourceAllocation {
	return OfKind(AllocationGeneric, t.allocations)
}

func (t *Task) SpecificAllocations() []*ResourceAllocation {
	return OfKind(AllocationSpecific, t.allocations)
}

// AllocationByID finds a live allocation.
func (t *Task) AllocationByID(id AllocationID) (*ResourceAllocation, bool) {
	for _, a := range t.allocations {
		if a.id == id {
			return a, true
		}
	}
	return nil, false
}

// AssignedHours sums the primary assignments of every live allocation.
func (t *Task) AssignedHours() int {
	total := 0
	for _, a := range t.allocations {
		total += a.AssignedHours()
	}
	return total
}

// Aggregate computes totals over the live set.
func (t *Task) Aggregate() AggregateOfResourceAllocations {
	return NewAggregateOfResourceAllocations(t.allocations)
}

// AggregatedByCriteria totals the hours of generic allocations per
// criteria set.
func (t *Task) AggregatedByCriteria() []CriteriaHours {
	return AggregateByCriteria(t.allocations)
}

// IsValidResourceAllocationWorkers reports whether no worker is bound by two
// specific allocations of the task.
func (t *Task) IsValidResourceAllocationWorkers() bool {
	_, dup := duplicateWorker(t.allocations)
	return !dup
}

func (t *Task) owns(a *ResourceAllocation) bool {
	for _, live := range t.allocations {
		if live == a {
			return true
		}
	}
	return false
}

// duplicateWorker finds the first worker bound twice among allocations.
func duplicateWorker(allocations []*ResourceAllocation) (ResourceID, bool) {
	seen := make(map[ResourceID]bool)
	for _, a := range allocations {
		worker, ok := a.boundWorker()
		if !ok {
			continue
		}
		if seen[worker] {
			return worker, true
		}
		seen[worker] = true
	}
	return "", false
}

// AddResourceAllocation adds one allocation, keeping the task's dates.
func (t *Task) AddResourceAllocation(a *ResourceAllocation) error {
	return t.mergeRange(t.calculatedValue, t.Range(), []*ResourceAllocation{a}, nil, nil)
}

// RemoveResourceAllocation removes one live allocation.
func (t *Task) RemoveResourceAllocation(a *ResourceAllocation) error {
	return t.mergeRange(t.calculatedValue, t.Range(), nil, nil, []*ResourceAllocation{a})
}

// RemoveAllResourceAllocations empties the live set.
func (t *Task) RemoveAllResourceAllocations() {
	for _, a := range t.allocations {
		a.detach()
		a.task = nil
	}
	t.allocations = nil
}

// =============================================================================
// MERGE - The atomic commit
// =============================================================================

// ModifiedAllocation pairs a live allocation with the staged copy that will
// replace its assignments.
type ModifiedAllocation struct {
	Original     *ResourceAllocation
	Modification *ResourceAllocation
}

// CopyAllocations stages a copy of every allocation.
func CopyAllocations(allocations []*ResourceAllocation) []ModifiedAllocation {
	result := make([]ModifiedAllocation, 0, len(allocations))
	for _, a := range allocations {
		result = append(result, ModifiedAllocation{Original: a, Modification: a.Copy()})
	}
	return result
}

// Modifications returns the staged copies of pairs.
func Modifications(pairs []ModifiedAllocation) []*ResourceAllocation {
	result := make([]*ResourceAllocation, 0, len(pairs))
	for _, p := range pairs {
		result = append(result, p.Modification)
	}
	return result
}

// MergeAllocation commits new, modified and removed allocations, taking the
// task's dates from aggregate. An empty aggregate makes it a no-op.
func (t *Task) MergeAllocation(
	calculated CalculatedValue,
	aggregate AggregateOfResourceAllocations,
	newAllocations []*ResourceAllocation,
	modifications []ModifiedAllocation,
	toRemove []*ResourceAllocation,
) error {
	if aggregate.IsEmpty() {
		return nil
	}
	return t.mergeRange(calculated, aggregate.Range(), newAllocations, modifications, toRemove)
}

func (t *Task) mergeRange(
	calculated CalculatedValue,
	rng DateRange,
	newAllocations []*ResourceAllocation,
	modifications []ModifiedAllocation,
	toRemove []*ResourceAllocation,
) error {
	if err := t.validateMerge(calculated, newAllocations, modifications, toRemove); err != nil {
		return err
	}

	t.calculatedValue = calculated
	t.startDate = rng.Start
	t.endDate = rng.End

	for _, pair := range modifications {
		if err := pair.Original.MergeAssignmentsAndResourcesPerDay(pair.Modification); err != nil {
			return err
		}
	}
	for _, a := range toRemove {
		t.remove(a)
	}
	t.allocations = append(t.allocations, newAllocations...)
	t.dropEmpty()
	return nil
}

// validateMerge checks every precondition so that a rejected merge mutates
// nothing.
func (t *Task) validateMerge(
	calculated CalculatedValue,
	newAllocations []*ResourceAllocation,
	modifications []ModifiedAllocation,
	toRemove []*ResourceAllocation,
) error {
	if !calculated.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCalculatedValue, calculated)
	}

	staged := make(map[*ResourceAllocation]*ResourceAllocation, len(modifications))
	for _, pair := range modifications {
		if pair.Original == nil || pair.Modification == nil {
			return fmt.Errorf("%w: modification without original or copy", ErrIllegalArgument)
		}
		if pair.Original == pair.Modification {
			return fmt.Errorf("%w: allocation %s staged onto itself", ErrIllegalArgument, pair.Original.id)
		}
		if !t.owns(pair.Original) {
			return fmt.Errorf("%w: allocation %s is not part of task %s",
				ErrInconsistentModification, pair.Original.id, t.id)
		}
		if pair.Original.kind != pair.Modification.kind {
			return invalidState("modification of %s allocation %s is %s",
				pair.Original.kind, pair.Original.id, pair.Modification.kind)
		}
		staged[pair.Original] = pair.Modification
	}

	removed := make(map[*ResourceAllocation]bool, len(toRemove))
	for _, a := range toRemove {
		if a == nil || !t.owns(a) {
			return fmt.Errorf("%w: cannot remove allocation not part of task %s",
				ErrInconsistentModification, t.id)
		}
		removed[a] = true
	}

	for _, a := range newAllocations {
		if a == nil {
			return fmt.Errorf("%w: nil allocation", ErrIllegalArgument)
		}
		if a.task != t {
			return fmt.Errorf("%w: allocation %s does not point at task %s",
				ErrIllegalArgument, a.id, t.id)
		}
		if t.owns(a) {
			return fmt.Errorf("%w: allocation %s already part of task %s",
				ErrIllegalArgument, a.id, t.id)
		}
	}

	// Simulate the final live set with the bound worker each allocation
	// will carry after the merge.
	seen := make(map[ResourceID]bool)
	check := func(a *ResourceAllocation) error {
		if !a.HasAssignments() {
			return nil
		}
		worker, ok := a.boundWorker()
		if !ok {
			return nil
		}
		if seen[worker] {
			return &DuplicateWorkerError{TaskID: t.id, Worker: worker}
		}
		seen[worker] = true
		return nil
	}
	for _, a := range t.allocations {
		if removed[a] {
			continue
		}
		effective := a
		if mod, ok := staged[a]; ok {
			effective = mod
		}
		if err := check(effective); err != nil {
			return err
		}
	}
	for _, a := range newAllocations {
		if err := check(a); err != nil {
			return err
		}
	}
	return nil
}

func (t *Task) remove(a *ResourceAllocation) {
	kept := t.allocations[:0]
	for _, live := range t.allocations {
		if live != a {
			kept = append(kept, live)
		}
	}
	t.allocations = kept
	a.detach()
	a.task = nil
}

func (t *Task) dropEmpty() {
	kept := t.allocations[:0]
	for _, a := range t.allocations {
		if !a.HasAssignments() {
			log.Printf("[Task] %s: dropping allocation %s with no day assignments", t.id, a.id)
			continue
		}
		kept = append(kept, a)
	}
	t.allocations = kept
}

// =============================================================================
// REASSIGNMENT
// =============================================================================

// MoveAllocations recomputes every allocation against the task's current
// dates with the same hours and ratios. Called after the start changes.
func (t *Task) MoveAllocations(cal Calendar) error {
	return t.Reassign(cal, SameHoursAndResourcesPerDay())
}

// ReassignAllocationsWithNewResources recomputes every allocation after
// re-resolving resources through finder. A specific allocation whose worker
// left finder gets a replacement satisfying the same criteria, or the call
// fails with *NoReplacementError.
func (t *Task) ReassignAllocationsWithNewResources(cal Calendar, finder ResourceFinder) error {
	return t.Reassign(cal, WithNewResources(finder))
}

// Reassign runs the reassignment template with strategy.
func (t *Task) Reassign(cal Calendar, strategy ModificationStrategy) error {
	copied := CopyAllocations(t.allocations)
	toBeModified := Modifications(copied)

	mods, err := strategy.ResourcesPerDay(t, toBeModified)
	if err != nil {
		return fmt.Errorf("reassign task %s (%s): %w", t.id, strategy.Name, err)
	}
	if len(mods) == 0 {
		return nil
	}

	rng := t.Range()
	switch t.calculatedValue {
	case CalculatedNumberOfHours:
		err = Allocating(cal, mods...).AllocateOnTaskLength(rng)
	case CalculatedEndDate:
		var end Date
		end, err = Allocating(cal, mods...).UntilAllocating(t.startDate, t.AssignedHours())
		if end.After(t.startDate) {
			rng.End = end
		}
	case CalculatedResourcesPerDay:
		var hours []HoursModification
		hours, err = strategy.Hours(t, toBeModified)
		if err == nil {
			err = AllocatingHours(cal, hours...).AllocateUntil(t.startDate, t.endDate)
		}
	default:
		return fmt.Errorf("%w: cannot reassign in mode %q", ErrUnknownCalculatedValue, t.calculatedValue)
	}
	if err != nil {
		return fmt.Errorf("reassign task %s (%s): %w", t.id, strategy.Name, err)
	}

	updateDerived(copied)
	return t.mergeRange(t.calculatedValue, rng, nil, copied, nil)
}

// updateDerived regenerates the derived set of every copy whose original had
// one, among the workers already derived.
func updateDerived(pairs []ModifiedAllocation) {
	for _, pair := range pairs {
		if len(pair.Original.derived) == 0 {
			continue
		}
		pair.Modification.CreateDerived(WorkersAmong(pair.Original.DerivedWorkers()))
	}
}

// =============================================================================
// MOVING
// =============================================================================

// ExplicitlyMoved records that a user moved the task to date.
func (t *Task) ExplicitlyMoved(date Date) {
	t.startConstraint = t.startConstraint.ExplicitlyMovedTo(date)
}

// MoveTo proposes a new start. The start constraint rewrites it, the
// duration is kept, and allocations are recomputed. On failure the task
// keeps its dates and allocations.
func (t *Task) MoveTo(cal Calendar, date Date) error {
	start, err := ApplyConstraints[Date](date, &t.startListeners, t.startConstraint)
	if err != nil {
		return err
	}
	if start.Equal(t.startDate) {
		return nil
	}

	previousStart, previousEnd := t.startDate, t.endDate
	duration := t.DaysDuration()
	t.startDate = start
	t.endDate = start.AddDays(duration)
	if err := t.MoveAllocations(cal); err != nil {
		t.startDate, t.endDate = previousStart, previousEnd
		return err
	}
	return nil
}

func (t *Task) String() string {
	return fmt.Sprintf("task[%s %q %s %s %d allocations]",
		t.id, t.name, t.Range(), t.calculatedValue, len(t.allocations))
}
