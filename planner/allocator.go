/*
allocator.go - The three allocation algorithms

PURPOSE:
  Turns modification requests into day assignments. Which algorithm runs is
  decided by the task's calculated value:

  NUMBER_OF_HOURS   -> Allocating(...).AllocateOnTaskLength(range)
                       dates and ratio fixed, hours fall out
  END_DATE          -> Allocating(...).UntilAllocating(start, hours)
                       hours and ratio fixed, end date falls out
  RESOURCES_PER_DAY -> AllocatingHours(...).AllocateUntil(start, end)
                       dates and hours fixed, ratio falls out

PER-DAY FORMULA:
  specific: hours = round_half_up(rpd * capacity(resource, day))
  generic:  one resource-day = the largest capacity among the workers that
            satisfy the criteria on that day; the day total is
            round_half_up(rpd * one resource-day), split evenly across those
            workers.
  A day never receives more than its capacity, and days without capacity
  never receive an assignment (no zero-hour records).

IDEMPOTENCE:
  Every run replaces the allocation's previous assignment set, so running
  the same request twice yields the same set.

OVER-COMMITMENT:
  Allocations are computed independently against the shared calendar. The
  engine does not detect two allocations (of this or other tasks) filling
  the same worker's day beyond capacity.

SEE ALSO:
  - distribute.go: splitEvenly
  - strategy.go: Builds modifications for reassignment
*/
package planner

// MaxAllocationHorizonDays bounds the UntilAllocating walk when the target
// cannot be reached.
const MaxAllocationHorizonDays = 3660

// =============================================================================
// MODIFICATIONS - What to apply to an allocation
// =============================================================================

// ResourcesPerDayModification requests a ratio for an allocation. Resources
// is the worker set for generic allocations; specific allocations always use
// their bound resource.
type ResourcesPerDayModification struct {
	Allocation      *ResourceAllocation
	ResourcesPerDay ResourcesPerDay
	Resources       []*Resource
}

// NewResourcesPerDayModification resolves generic workers through finder.
func NewResourcesPerDayModification(alloc *ResourceAllocation, rpd ResourcesPerDay, finder WorkerFinder) ResourcesPerDayModification {
	return ResourcesPerDayModification{
		Allocation:      alloc,
		ResourcesPerDay: rpd,
		Resources:       resolveWorkers(alloc, finder),
	}
}

// HoursModification requests a total of hours for an allocation.
type HoursModification struct {
	Allocation *ResourceAllocation
	Hours      int
	Resources  []*Resource
}

// NewHoursModification resolves generic workers through finder.
func NewHoursModification(alloc *ResourceAllocation, hours int, finder WorkerFinder) HoursModification {
	return HoursModification{
		Allocation: alloc,
		Hours:      hours,
		Resources:  resolveWorkers(alloc, finder),
	}
}

func resolveWorkers(alloc *ResourceAllocation, finder WorkerFinder) []*Resource {
	if alloc == nil || alloc.kind != AllocationGeneric || finder == nil {
		return nil
	}
	return finder.FindWorkersMatching(alloc.generic.Criteria)
}

// =============================================================================
// PER-DAY SLOTS
// =============================================================================

type slot struct {
	resource *Resource
	capacity int
}

// slotsOn lists the resources that can work for alloc on day.
func slotsOn(cal Calendar, alloc *ResourceAllocation, resources []*Resource, day Date) []slot {
	switch alloc.kind {
	case AllocationSpecific:
		capacity := cal.Capacity(alloc.specific.Resource, day)
		if capacity <= 0 {
			return nil
		}
		return []slot{{resource: alloc.specific.Resource, capacity: capacity}}
	case AllocationGeneric:
		var slots []slot
		for _, r := range sortResources(uniqueResources(resources)) {
			if !r.SatisfiesCriteriaAt(alloc.generic.Criteria, day) {
				continue
			}
			if capacity := cal.Capacity(r, day); capacity > 0 {
				slots = append(slots, slot{resource: r, capacity: capacity})
			}
		}
		return slots
	}
	return nil
}

func totalCapacity(slots []slot) int {
	total := 0
	for _, s := range slots {
		total += s.capacity
	}
	return total
}

// oneResourceDay is the capacity rpd=1 stands for on this day.
func oneResourceDay(slots []slot) int {
	largest := 0
	for _, s := range slots {
		largest = max(largest, s.capacity)
	}
	return largest
}

func nominalHours(rpd ResourcesPerDay, slots []slot) int {
	return min(rpd.HoursFor(oneResourceDay(slots)), totalCapacity(slots))
}

// spread splits a day's hours across slots into assignments.
func spread(day Date, hours int, slots []slot) []*DayAssignment {
	limits := make([]int, len(slots))
	for i, s := range slots {
		limits[i] = s.capacity
	}
	shares, _ := splitEvenly(hours, limits)
	var result []*DayAssignment
	for i, h := range shares {
		if h > 0 {
			result = append(result, NewDayAssignment(day, h, slots[i].resource))
		}
	}
	return result
}

func validateTarget(cal Calendar, alloc *ResourceAllocation) error {
	if cal == nil {
		return invalidState("no calendar")
	}
	if alloc == nil {
		return invalidState("modification without allocation")
	}
	switch alloc.kind {
	case AllocationSpecific:
		if alloc.specific == nil || alloc.specific.Resource == nil {
			return invalidState("specific allocation %s has no resource", alloc.id)
		}
	case AllocationGeneric:
		if alloc.generic == nil || len(alloc.generic.Criteria) == 0 {
			return invalidState("generic allocation %s has no criteria", alloc.id)
		}
	default:
		return invalidState("allocation %s has unknown kind %s", alloc.id, alloc.kind)
	}
	return nil
}

// =============================================================================
// RESOURCES PER DAY ALLOCATION
// =============================================================================

type ResourcesPerDayAllocation struct {
	cal  Calendar
	mods []ResourcesPerDayModification
}

// Allocating prepares a ratio-driven allocation run.
func Allocating(cal Calendar, mods ...ResourcesPerDayModification) *ResourcesPerDayAllocation {
	return &ResourcesPerDayAllocation{cal: cal, mods: mods}
}

func (ra *ResourcesPerDayAllocation) validate() error {
	for _, m := range ra.mods {
		if err := validateTarget(ra.cal, m.Allocation); err != nil {
			return err
		}
		if m.ResourcesPerDay.Amount.IsNegative() {
			return invalidState("negative resources per day %s", m.ResourcesPerDay)
		}
	}
	return nil
}

// AllocateOnTaskLength fills every day of rng with rpd * capacity.
func (ra *ResourcesPerDayAllocation) AllocateOnTaskLength(rng DateRange) error {
	if err := rng.Validate(); err != nil {
		return err
	}
	if err := ra.validate(); err != nil {
		return err
	}
	for _, m := range ra.mods {
		var assignments []*DayAssignment
		for _, day := range rng.Days() {
			slots := slotsOn(ra.cal, m.Allocation, m.Resources, day)
			hours := nominalHours(m.ResourcesPerDay, slots)
			if hours > 0 {
				assignments = append(assignments, spread(day, hours, slots)...)
			}
		}
		if err := m.Allocation.replaceAssignments(assignments); err != nil {
			return err
		}
		m.Allocation.resourcesPerDay = m.ResourcesPerDay
	}
	return nil
}

// UntilAllocating walks days from start, filling every allocation at its
// ratio until the running total reaches hours. The last day may be partial.
// Returns the day after the last day that received hours (start if none).
// When hours cannot be reached within MaxAllocationHorizonDays, what was
// placed is kept and an *UnreachableHoursError is returned.
func (ra *ResourcesPerDayAllocation) UntilAllocating(start Date, hours int) (Date, error) {
	if start.IsZero() {
		return Date{}, invalidState("until allocating without a start date")
	}
	if hours < 0 {
		return Date{}, invalidState("negative target hours %d", hours)
	}
	if err := ra.validate(); err != nil {
		return Date{}, err
	}

	planned := make([][]*DayAssignment, len(ra.mods))
	allocated := 0
	end := start
	day := start
	for i := 0; allocated < hours && i < MaxAllocationHorizonDays; i++ {
		for j, m := range ra.mods {
			if allocated >= hours {
				break
			}
			slots := slotsOn(ra.cal, m.Allocation, m.Resources, day)
			dayHours := min(nominalHours(m.ResourcesPerDay, slots), hours-allocated)
			if dayHours <= 0 {
				continue
			}
			planned[j] = append(planned[j], spread(day, dayHours, slots)...)
			allocated += dayHours
			end = day.AddDays(1)
		}
		day = day.AddDays(1)
	}

	for j, m := range ra.mods {
		if err := m.Allocation.replaceAssignments(planned[j]); err != nil {
			return Date{}, err
		}
		m.Allocation.resourcesPerDay = m.ResourcesPerDay
	}
	if allocated < hours {
		return end, &UnreachableHoursError{Requested: hours, Allocated: allocated}
	}
	return end, nil
}

// =============================================================================
// HOURS ALLOCATION
// =============================================================================

type HoursAllocation struct {
	cal  Calendar
	mods []HoursModification
}

// AllocatingHours prepares an hours-driven allocation run.
func AllocatingHours(cal Calendar, mods ...HoursModification) *HoursAllocation {
	return &HoursAllocation{cal: cal, mods: mods}
}

// AllocateUntil spreads each modification's hours evenly over the days of
// [start, end) where its allocation has capacity, then recomputes the ratio
// from what was placed. Hours that do not fit yield *UnreachableHoursError
// after every allocation has been filled as far as possible.
func (ha *HoursAllocation) AllocateUntil(start, end Date) error {
	rng, err := NewDateRange(start, end)
	if err != nil {
		return err
	}
	for _, m := range ha.mods {
		if err := validateTarget(ha.cal, m.Allocation); err != nil {
			return err
		}
		if m.Hours < 0 {
			return invalidState("negative hours %d for allocation %s", m.Hours, m.Allocation.id)
		}
	}

	requested, placed := 0, 0
	days := rng.Days()
	for _, m := range ha.mods {
		daySlots := make([][]slot, len(days))
		dayLimits := make([]int, len(days))
		base := 0
		for i, day := range days {
			daySlots[i] = slotsOn(ha.cal, m.Allocation, m.Resources, day)
			dayLimits[i] = totalCapacity(daySlots[i])
			base += oneResourceDay(daySlots[i])
		}

		shares, left := splitEvenly(m.Hours, dayLimits)
		var assignments []*DayAssignment
		for i, h := range shares {
			if h > 0 {
				assignments = append(assignments, spread(days[i], h, daySlots[i])...)
			}
		}
		if err := m.Allocation.replaceAssignments(assignments); err != nil {
			return err
		}
		m.Allocation.resourcesPerDay = ratioOf(m.Hours-left, base)

		requested += m.Hours
		placed += m.Hours - left
	}
	if placed < requested {
		return &UnreachableHoursError{Requested: requested, Allocated: placed}
	}
	return nil
}
