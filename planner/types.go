/*
Package planner provides the resource-allocation engine.

PURPOSE:
  This package converts high-level allocation requests ("two welders at half
  time", "80 hours of this worker", "finish by Friday") into day-by-day
  assignments of hours, keeps aggregates consistent as allocations are merged,
  modified or removed, and re-derives assignments when a task moves or its
  resources change.

KEY CONCEPTS IN THIS FILE (types.go):
  - ResourcesPerDay: decimal ratio of resource-days per calendar day
  - CalculatedValue: which of {end date, hours, resources/day} is computed
  - Identifiers: type-safe IDs for tasks, allocations, resources, criteria

DESIGN PRINCIPLES:
  1. Precision: ratios use decimal.Decimal; hours are whole numbers
  2. Ownership: a task owns its allocations, an allocation owns its day
     assignments; resources are only referenced
  3. Determinism: every algorithm is a pure function of its inputs and the
     calendar, so a failed call can be retried after fixing the input

USAGE:
  rpd := planner.MustResourcesPerDay("0.5")
  mod := planner.ResourcesPerDayModification{Allocation: alloc, ResourcesPerDay: rpd}
  err := planner.Allocating(cal, mod).AllocateOnTaskLength(task.Range())

SEE ALSO:
  - allocation.go: ResourceAllocation and its day assignments
  - allocator.go: The three allocation algorithms
  - task.go: Merge and reassignment coordinator
*/
package planner

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TaskID string
type AllocationID string
type ResourceID string
type CriterionID string

func newAllocationID() AllocationID { return AllocationID(uuid.New().String()) }

// NewTaskID returns a fresh random task identifier.
func NewTaskID() TaskID { return TaskID(uuid.New().String()) }

// =============================================================================
// RESOURCES PER DAY - How many resource-days are spent per calendar day
// =============================================================================

// ResourcesPerDay is the allocation ratio. 1 means one full resource-day per
// working day, 0.5 half a day, 2 two resources.
type ResourcesPerDay struct {
	Amount decimal.Decimal
}

// ratioPlaces is the precision kept when a ratio is derived from hours.
const ratioPlaces = 2

// MaxResourcesPerDay is the largest ratio ParseResourcesPerDay accepts.
// HoursFor clamps larger ratios built by other means.
const MaxResourcesPerDay = 1000

var maxRatio = decimal.NewFromInt(MaxResourcesPerDay)

func NewResourcesPerDay(value float64) ResourcesPerDay {
	return ResourcesPerDay{Amount: decimal.NewFromFloat(value)}
}

func ResourcesPerDayFromInt(value int) ResourcesPerDay {
	return ResourcesPerDay{Amount: decimal.NewFromInt(int64(value))}
}

// ParseResourcesPerDay parses a decimal ratio such as "0.75".
func ParseResourcesPerDay(s string) (ResourcesPerDay, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ResourcesPerDay{}, fmt.Errorf("parse resources per day %q: %w", s, err)
	}
	if d.IsNegative() {
		return ResourcesPerDay{}, fmt.Errorf("%w: resources per day must not be negative: %s", ErrIllegalArgument, s)
	}
	if d.GreaterThan(maxRatio) {
		return ResourcesPerDay{}, fmt.Errorf("%w: resources per day %s exceeds %d", ErrIllegalArgument, s, MaxResourcesPerDay)
	}
	return ResourcesPerDay{Amount: d}, nil
}

func MustResourcesPerDay(s string) ResourcesPerDay {
	r, err := ParseResourcesPerDay(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r ResourcesPerDay) IsZero() bool                   { return r.Amount.IsZero() }
func (r ResourcesPerDay) Equal(other ResourcesPerDay) bool { return r.Amount.Equal(other.Amount) }
func (r ResourcesPerDay) String() string                 { return r.Amount.String() }

// HoursFor applies the ratio, capped at MaxResourcesPerDay, to a day's
// capacity. The product is rounded half-up to whole hours.
func (r ResourcesPerDay) HoursFor(capacity int) int {
	if capacity <= 0 || r.Amount.Sign() <= 0 {
		return 0
	}
	ratio := decimal.Min(r.Amount, maxRatio)
	return int(ratio.Mul(decimal.NewFromInt(int64(capacity))).Round(0).IntPart())
}

// ratioOf computes assigned/capacity at ratioPlaces precision.
func ratioOf(assigned, capacity int) ResourcesPerDay {
	if capacity <= 0 {
		return ResourcesPerDay{Amount: decimal.Zero}
	}
	ratio := decimal.NewFromInt(int64(assigned)).
		DivRound(decimal.NewFromInt(int64(capacity)), ratioPlaces)
	return ResourcesPerDay{Amount: ratio}
}

// =============================================================================
// CALCULATED VALUE - The dependent variable of a task
// =============================================================================

type CalculatedValue string

const (
	// CalculatedEndDate fixes hours and ratio, computes the end date.
	CalculatedEndDate CalculatedValue = "END_DATE"
	// CalculatedNumberOfHours fixes the dates and ratio, computes hours.
	CalculatedNumberOfHours CalculatedValue = "NUMBER_OF_HOURS"
	// CalculatedResourcesPerDay fixes dates and hours, computes the ratio.
	CalculatedResourcesPerDay CalculatedValue = "RESOURCES_PER_DAY"
)

// ParseCalculatedValue maps a string onto the closed set of modes.
func ParseCalculatedValue(s string) (CalculatedValue, error) {
	v := CalculatedValue(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCalculatedValue, s)
	}
	return v, nil
}

func (v CalculatedValue) Valid() bool {
	switch v {
	case CalculatedEndDate, CalculatedNumberOfHours, CalculatedResourcesPerDay:
		return true
	}
	return false
}
