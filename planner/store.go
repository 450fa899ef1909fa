/*
store.go - Persistence interface for tasks, resources and criteria

PURPOSE:
  Defines the boundary between the engine and the database. Stores persist
  value snapshots (snapshot.go) and return them unchanged on reload; the
  engine never calls a store mid-algorithm.

KEY INTERFACES:
  Store:        Criteria, resources and tasks
  TxStore:      Atomic multi-task writes
  HolidayStore: Company holidays feeding WorkweekCalendar

OPTIMISTIC VERSIONING:
  Every task snapshot carries the version it was loaded at. SaveTask accepts
  it only if it still matches the stored version and returns the next one;
  otherwise it fails with ErrConcurrentModification. A new task is saved
  with version 0 and comes back as version 1. This serializes mutations per
  task without holding locks across requests.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - planner/store/memory.go: In-memory for testing and demos

SEE ALSO:
  - repository.go: Higher-level access that restores live tasks
*/
package planner

import "context"

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// SaveCriterion inserts or replaces a criterion.
	SaveCriterion(ctx context.Context, c CriterionSnapshot) error

	// LoadCriteria returns every criterion, ordered by ID.
	LoadCriteria(ctx context.Context) ([]CriterionSnapshot, error)

	// SaveResource inserts or replaces a resource with its satisfactions.
	SaveResource(ctx context.Context, r ResourceSnapshot) error

	// DeleteResource removes a resource. Tasks keep referencing it until
	// they are reassigned. Returns ErrResourceNotFound if absent.
	DeleteResource(ctx context.Context, id ResourceID) error

	// LoadResources returns every resource, ordered by ID.
	LoadResources(ctx context.Context) ([]ResourceSnapshot, error)

	// SaveTask persists a task and returns its new version.
	SaveTask(ctx context.Context, t TaskSnapshot) (int, error)

	// LoadTask returns a task or ErrTaskNotFound.
	LoadTask(ctx context.Context, id TaskID) (TaskSnapshot, error)

	// LoadTasks returns every task, ordered by ID.
	LoadTasks(ctx context.Context) ([]TaskSnapshot, error)

	// DeleteTask removes a task with its allocations. Returns ErrTaskNotFound
	// if absent.
	DeleteTask(ctx context.Context, id TaskID) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// HOLIDAY STORE
// =============================================================================

type HolidayStore interface {
	SaveHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, id string) error
	// LoadHolidays returns company-specific and global holidays.
	LoadHolidays(ctx context.Context, companyID string) ([]Holiday, error)
}

// NextVersion applies the optimistic versioning rule shared by stores:
// stored is the persisted version (if exists), submitted the snapshot's.
func NextVersion(stored int, exists bool, submitted int) (int, error) {
	if !exists {
		if submitted != 0 {
			return 0, ErrConcurrentModification
		}
		return 1, nil
	}
	if submitted != stored {
		return 0, ErrConcurrentModification
	}
	return stored + 1, nil
}
