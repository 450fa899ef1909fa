package planner

import (
	"time"
)

// =============================================================================
// DATE - Calendar day (the engine never schedules below day granularity)
// =============================================================================

// Date is a calendar day normalized to midnight UTC. The zero Date is used as
// the "no date" sentinel by aggregates over empty sets.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func Today() Date {
	return DateOf(time.Now())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Time() time.Time       { return d.t }
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) String() string        { return d.t.Format(dateLayout) }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// MinDate returns the earlier of two dates.
func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxDate returns the later of two dates.
func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// DaysBetween returns the number of days from "from" to "to" (negative when
// "to" is earlier).
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}
