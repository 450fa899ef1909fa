package planner

// =============================================================================
// MODIFICATION STRATEGIES - How reassignment rebuilds its requests
// =============================================================================

// ModificationStrategy turns a task's staged allocation copies into the
// requests the allocation algorithms consume. Hours is only consulted in
// RESOURCES_PER_DAY mode.
type ModificationStrategy struct {
	Name            string
	ResourcesPerDay func(t *Task, allocations []*ResourceAllocation) ([]ResourcesPerDayModification, error)
	Hours           func(t *Task, allocations []*ResourceAllocation) ([]HoursModification, error)
}

// SameHoursAndResourcesPerDay recomputes every allocation with its current
// ratio, hours and workers against the task's (new) dates.
func SameHoursAndResourcesPerDay() ModificationStrategy {
	return ModificationStrategy{
		Name: "same_hours_and_resources_per_day",
		ResourcesPerDay: func(_ *Task, allocations []*ResourceAllocation) ([]ResourcesPerDayModification, error) {
			mods := make([]ResourcesPerDayModification, 0, len(allocations))
			for _, a := range allocations {
				mods = append(mods, ResourcesPerDayModification{
					Allocation:      a,
					ResourcesPerDay: a.resourcesPerDay,
					Resources:       existingWorkers(a),
				})
			}
			return mods, nil
		},
		Hours: func(_ *Task, allocations []*ResourceAllocation) ([]HoursModification, error) {
			mods := make([]HoursModification, 0, len(allocations))
			for _, a := range allocations {
				mods = append(mods, HoursModification{
					Allocation: a,
					Hours:      a.AssignedHours(),
					Resources:  existingWorkers(a),
				})
			}
			return mods, nil
		},
	}
}

// WithNewResources re-resolves resources through finder: specific
// allocations whose resource left the pool are rebound to a replacement
// satisfying the same criteria, generic allocations search their criteria
// again.
func WithNewResources(finder ResourceFinder) ModificationStrategy {
	return ModificationStrategy{
		Name: "with_new_resources",
		ResourcesPerDay: func(t *Task, allocations []*ResourceAllocation) ([]ResourcesPerDayModification, error) {
			if err := rebindUnavailable(t, allocations, finder); err != nil {
				return nil, err
			}
			mods := make([]ResourcesPerDayModification, 0, len(allocations))
			for _, a := range allocations {
				mods = append(mods, NewResourcesPerDayModification(a, a.resourcesPerDay, finder))
			}
			return mods, nil
		},
		Hours: func(t *Task, allocations []*ResourceAllocation) ([]HoursModification, error) {
			if err := rebindUnavailable(t, allocations, finder); err != nil {
				return nil, err
			}
			mods := make([]HoursModification, 0, len(allocations))
			for _, a := range allocations {
				mods = append(mods, NewHoursModification(a, a.AssignedHours(), finder))
			}
			return mods, nil
		},
	}
}

func existingWorkers(a *ResourceAllocation) []*Resource {
	if a.kind != AllocationGeneric {
		return nil
	}
	return a.AssociatedResources()
}

// rebindUnavailable replaces the resource of every specific allocation that
// finder no longer knows. Replacements are never a worker already bound by
// another specific allocation of the batch. Running it twice is a no-op.
func rebindUnavailable(t *Task, allocations []*ResourceAllocation, finder ResourceFinder) error {
	taken := make(map[ResourceID]bool)
	var pending []*ResourceAllocation
	for _, a := range OfKind(AllocationSpecific, allocations) {
		if _, ok := finder.FindResource(a.specific.Resource.ID); ok {
			taken[a.specific.Resource.ID] = true
			continue
		}
		pending = append(pending, a)
	}

	for _, a := range pending {
		removed := a.specific.Resource
		required := a.requiredCriteria(t)
		var replacement *Resource
		for _, candidate := range sortResources(finder.FindWorkersMatching(required)) {
			if !taken[candidate.ID] {
				replacement = candidate
				break
			}
		}
		if replacement == nil {
			return &NoReplacementError{
				AllocationID: a.originID(),
				Removed:      removed.ID,
				Criteria:     CriterionIDs(required),
			}
		}
		taken[replacement.ID] = true
		a.specific.Resource = replacement
	}
	return nil
}
