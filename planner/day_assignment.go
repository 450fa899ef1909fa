package planner

import "fmt"

// =============================================================================
// DAY ASSIGNMENT - One resource, one day, N hours
// =============================================================================

// DayAssignment is the atomic unit of scheduled work. It is owned by exactly
// one allocation (primary or derived) at a time; ownership is transferred,
// never shared. Hours are not re-validated against the calendar here: the
// allocation algorithms enforce capacity when they create assignments.
type DayAssignment struct {
	Day      Date
	Hours    int
	Resource *Resource

	owner any // *ResourceAllocation or *DerivedAllocation
}

// NewDayAssignment builds a detached assignment.
func NewDayAssignment(day Date, hours int, resource *Resource) *DayAssignment {
	return &DayAssignment{Day: day, Hours: hours, Resource: resource}
}

// IsAttached reports whether some allocation owns the assignment.
func (da *DayAssignment) IsAttached() bool { return da.owner != nil }

// attachTo sets the owner. The owner cannot be changed once set; detach first.
func (da *DayAssignment) attachTo(owner any) error {
	if da.owner != nil && da.owner != owner {
		return invalidState("day assignment %s already belongs to another allocation", da)
	}
	da.owner = owner
	return nil
}

func (da *DayAssignment) detach() { da.owner = nil }

// clone returns a detached copy.
func (da *DayAssignment) clone() *DayAssignment {
	return &DayAssignment{Day: da.Day, Hours: da.Hours, Resource: da.Resource}
}

func (da *DayAssignment) resourceID() ResourceID {
	if da.Resource == nil {
		return ""
	}
	return da.Resource.ID
}

func (da *DayAssignment) String() string {
	return fmt.Sprintf("%s:%dh@%s", da.Day, da.Hours, da.resourceID())
}

// valuesOf snapshots assignments into values so callers can't reach the
// engine-owned records.
func valuesOf(assignments []*DayAssignment) []DayAssignment {
	result := make([]DayAssignment, len(assignments))
	for i, a := range assignments {
		result[i] = DayAssignment{Day: a.Day, Hours: a.Hours, Resource: a.Resource}
	}
	return result
}
