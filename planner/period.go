package planner

// =============================================================================
// DATE RANGE - Half-open [Start, End) interval used by every allocation walk
// =============================================================================

// DateRange is the half-open interval [Start, End). Task dates follow the
// same convention: EndDate is the first day that is NOT part of the task.
type DateRange struct {
	Start Date
	End   Date
}

// NewDateRange builds a range, rejecting empty or inverted intervals.
func NewDateRange(start, end Date) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate fails with ErrInvalidAllocationState when the range is empty or
// inverted. Day-generation algorithms refuse to run on such ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return invalidState("date range has an unset bound: %s", r)
	}
	if !r.Start.Before(r.End) {
		return invalidState("date range is empty or inverted: %s", r)
	}
	return nil
}

// Contains returns true if the day is within [Start, End).
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.Before(r.End)
}

// Len returns the number of days in the range.
func (r DateRange) Len() int {
	if !r.Start.Before(r.End) {
		return 0
	}
	return DaysBetween(r.Start, r.End)
}

// Days returns every day of the range in order.
func (r DateRange) Days() []Date {
	days := make([]Date, 0, r.Len())
	for current := r.Start; current.Before(r.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + ")"
}

// =============================================================================
// PERIOD - Closed interval with an optional open end (criterion activity)
// =============================================================================

// Period is an inclusive interval [Start, End]. A nil End means the period
// is still open.
type Period struct {
	Start Date
	End   *Date
}

// OpenPeriod starts a period with no end.
func OpenPeriod(start Date) Period {
	return Period{Start: start}
}

// ClosedPeriod builds a period ending (inclusively) on end.
func ClosedPeriod(start, end Date) Period {
	return Period{Start: start, End: &end}
}

// Contains returns true if the day falls within the period.
func (p Period) Contains(d Date) bool {
	if !p.Start.IsZero() && d.Before(p.Start) {
		return false
	}
	if p.End != nil && d.After(*p.End) {
		return false
	}
	return true
}

// Validate fails with ErrInvalidPeriod when End precedes Start.
func (p Period) Validate() error {
	if p.End != nil && p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) String() string {
	if p.End == nil {
		return "[" + p.Start.String() + ", ...)"
	}
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
