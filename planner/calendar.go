/*
calendar.go - Capacity calendars

PURPOSE:
  The engine never defines working days itself. It asks a Calendar how many
  hours a resource can work on a given day. Zero means a non-working day, and
  no assignment is ever created for it.

CONTRACT:
  Capacity must be pure and total: the same (resource, day) always yields the
  same non-negative number, for any day an algorithm may visit.

IMPLEMENTATIONS:
  WorkweekCalendar:  hours per weekday, minus holidays
  ResourceCalendars: per-resource overrides on top of a default
  CalendarFunc:      adapter for tests and ad-hoc rules

SEE ALSO:
  - allocator.go: The only consumer of capacities
  - store/sqlite/sqlite.go: HolidayCalendar backed by the holidays table
*/
package planner

import "time"

// =============================================================================
// CALENDAR
// =============================================================================

// Calendar returns a resource's capacity in hours for one day.
type Calendar interface {
	Capacity(resource *Resource, day Date) int
}

// CalendarFunc adapts a function to Calendar.
type CalendarFunc func(resource *Resource, day Date) int

func (f CalendarFunc) Capacity(resource *Resource, day Date) int { return f(resource, day) }

// =============================================================================
// HOLIDAY CALENDAR - Company-specific non-working days
// =============================================================================

// Holiday represents a company holiday with no capacity.
type Holiday struct {
	ID        string
	CompanyID string // Empty string = global/default holidays
	Date      Date
	Name      string
	Recurring bool // true = same month/day every year
}

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	// IsHoliday checks company-specific holidays first, then global ones.
	IsHoliday(companyID string, date Date) bool
}

// HolidaySet is an in-memory HolidayCalendar.
type HolidaySet []Holiday

func (hs HolidaySet) IsHoliday(companyID string, date Date) bool {
	for _, h := range hs {
		if h.CompanyID != "" && h.CompanyID != companyID {
			continue
		}
		if h.Date.Equal(date) {
			return true
		}
		if h.Recurring && h.Date.Month() == date.Month() && h.Date.Day() == date.Day() {
			return true
		}
	}
	return false
}

// =============================================================================
// WORKWEEK CALENDAR
// =============================================================================

// WorkweekCalendar gives every resource the same hours per weekday.
type WorkweekCalendar struct {
	Hours     [7]int // indexed by time.Weekday
	Holidays  HolidayCalendar
	CompanyID string
}

// StandardWorkweek is 8 hours Monday to Friday, nothing on weekends.
func StandardWorkweek(hoursPerDay int) *WorkweekCalendar {
	c := &WorkweekCalendar{}
	for wd := time.Monday; wd <= time.Friday; wd++ {
		c.Hours[wd] = hoursPerDay
	}
	return c
}

func (c *WorkweekCalendar) Capacity(_ *Resource, day Date) int {
	if c.Holidays != nil && c.Holidays.IsHoliday(c.CompanyID, day) {
		return 0
	}
	return max(c.Hours[day.Weekday()], 0)
}

// =============================================================================
// RESOURCE CALENDARS - Per-resource overrides
// =============================================================================

type ResourceCalendars struct {
	Default    Calendar
	ByResource map[ResourceID]Calendar
}

func (rc *ResourceCalendars) Capacity(resource *Resource, day Date) int {
	if resource != nil {
		if cal, ok := rc.ByResource[resource.ID]; ok {
			return cal.Capacity(resource, day)
		}
	}
	if rc.Default == nil {
		return 0
	}
	return rc.Default.Capacity(resource, day)
}
