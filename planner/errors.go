/*
errors.go - Centralized error types for the allocation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Outer layers (store, api) wrap these with fmt.Errorf("...: %w", err).

ERROR CATEGORIES:
  1. Contract violations - programming errors in the caller. Fatal, no retry.
     (invalid allocation state, foreign modification, task pointer mismatch,
     unknown calculated value)
  2. Validation failures - business rule violations naming the offending
     entity. The caller decides whether to re-prompt or abort.
     (duplicate worker, no replacement worker, unreachable hours, constraint)
  3. Store errors - lookups and optimistic locking.

DEGENERATE DATA:
  An allocation that ends up with zero assignments is NOT an error. It is
  logged and excluded from the task's live set (see task.go).

USAGE:
  if errors.Is(err, planner.ErrDuplicateWorker) {
      var dup *planner.DuplicateWorkerError
      errors.As(err, &dup)
      fmt.Println(dup.Worker)
  }

SEE ALSO:
  - task.go: Raises contract and validation errors during merges
  - allocator.go: Raises invalid-state and unreachable-hours errors
*/
package planner

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAllocationState is returned when an allocation is built without
	// its resource/criteria, or an algorithm runs over an empty/inverted range.
	ErrInvalidAllocationState = errors.New("invalid allocation state")

	// ErrInconsistentModification is returned when a modification's original
	// allocation is not owned by the task being merged.
	ErrInconsistentModification = errors.New("inconsistent modification")

	// ErrIllegalArgument is returned when a new allocation points at another task,
	// or an allocation's task pointer is reassigned.
	ErrIllegalArgument = errors.New("illegal argument")

	// ErrUnknownCalculatedValue is returned for a calculated value outside the
	// closed set. Unreachable through the public constructors.
	ErrUnknownCalculatedValue = errors.New("unknown calculated value")

	// ErrDuplicateWorker is returned when two specific allocations of one task
	// would bind the same worker.
	ErrDuplicateWorker = errors.New("worker allocated twice in the same task")

	// ErrNoSuitableWorker is returned when reassignment cannot find a
	// replacement satisfying the required criteria.
	ErrNoSuitableWorker = errors.New("no suitable worker")

	// ErrUnreachableHours is returned when the requested hours cannot be placed
	// given the calendar capacity in range.
	ErrUnreachableHours = errors.New("hours not reachable with available capacity")

	// ErrConstraintViolated is returned when a value does not satisfy a
	// constraint after all constraints have been applied.
	ErrConstraintViolated = errors.New("constraint violated")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrTaskNotFound is returned when a referenced task doesn't exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrResourceNotFound is returned when a referenced resource doesn't exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrCriterionNotFound is returned when a referenced criterion doesn't exist.
	ErrCriterionNotFound = errors.New("criterion not found")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidStateError describes a contract violation on an allocation.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "invalid allocation state: " + e.Reason
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidAllocationState
}

func invalidState(format string, args ...any) error {
	return &InvalidStateError{Reason: fmt.Sprintf(format, args...)}
}

// DuplicateWorkerError names the worker bound by more than one specific
// allocation of a task.
type DuplicateWorkerError struct {
	TaskID TaskID
	Worker ResourceID
}

func (e *DuplicateWorkerError) Error() string {
	return fmt.Sprintf("worker %s allocated twice in task %s", e.Worker, e.TaskID)
}

func (e *DuplicateWorkerError) Unwrap() error {
	return ErrDuplicateWorker
}

// NoReplacementError names the allocation whose worker left the pool with no
// candidate satisfying the required criteria.
type NoReplacementError struct {
	AllocationID AllocationID
	Removed      ResourceID
	Criteria     []CriterionID
}

func (e *NoReplacementError) Error() string {
	return fmt.Sprintf("no replacement for worker %s on allocation %s (criteria %v)",
		e.Removed, e.AllocationID, e.Criteria)
}

func (e *NoReplacementError) Unwrap() error {
	return ErrNoSuitableWorker
}

// UnreachableHoursError reports how many hours could be placed.
type UnreachableHoursError struct {
	Requested int
	Allocated int
}

func (e *UnreachableHoursError) Error() string {
	return fmt.Sprintf("hours not reachable: requested %d, allocated %d, shortfall %d",
		e.Requested, e.Allocated, e.Requested-e.Allocated)
}

func (e *UnreachableHoursError) Unwrap() error {
	return ErrUnreachableHours
}

// ConstraintViolationError reports the value that failed a constraint.
type ConstraintViolationError struct {
	Constraint string
	Value      string
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("%s doesn't fulfill constraint: %s", e.Value, e.Constraint)
}

func (e *ConstraintViolationError) Unwrap() error {
	return ErrConstraintViolated
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsContractViolation returns true if the error indicates a programming error
// in the caller. These must not be retried.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrInvalidAllocationState) ||
		errors.Is(err, ErrInconsistentModification) ||
		errors.Is(err, ErrIllegalArgument) ||
		errors.Is(err, ErrUnknownCalculatedValue)
}

// IsValidationError returns true if the error is a business rule violation
// the caller may fix and retry.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrDuplicateWorker) ||
		errors.Is(err, ErrNoSuitableWorker) ||
		errors.Is(err, ErrUnreachableHours) ||
		errors.Is(err, ErrConstraintViolated) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrCriterionNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
