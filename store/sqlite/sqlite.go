/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements planner.Store, planner.TxStore and planner.HolidayStore using
  SQLite, and planner.HolidayCalendar on top of the holidays table. In
  production the same patterns apply to PostgreSQL with minor dialect
  differences.

KEY TABLES:
  criteria:             Criterion tree (parent_id)
  resources:            Workers and machines
  satisfactions:        Resource -> criterion over an activity period
  tasks:                Task header with its optimistic version
  task_criteria:        Criteria a replacement worker must satisfy
  allocations:          Specific (resource_id) or generic allocations
  allocation_criteria:  Required criteria (generic) or criteria the bound
                        resource met when saved (specific)
  derived_allocations:  Per-worker allocations derived from generic ones
  day_assignments:      One row per (owner, day, resource)
  holidays:             Company-specific and global non-working days

TASK WRITES:
  A task is written as a whole: the header row is upserted and every child
  row is replaced, inside one SQL transaction. The version check happens in
  the same transaction, so two writers racing on one task cannot both win.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so that
  ":memory:" databases are shared by every call. In production with
  PostgreSQL, database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/planner.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  repo := planner.NewRepository(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - planner/store.go: Interface definitions
  - planner/snapshot.go: The snapshots mapped onto these tables
  - planner/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/allocation-engine/planner"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS criteria (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		parent_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS satisfactions (
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		criterion_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_satisfactions_resource
		ON satisfactions(resource_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		calculated_value TEXT NOT NULL,
		constraint_type TEXT NOT NULL DEFAULT '',
		constraint_date TEXT,
		hours_at_order INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_criteria (
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		criterion_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_task_criteria_task
		ON task_criteria(task_id);

	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		resource_id TEXT,
		resources_per_day TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_task
		ON allocations(task_id, position);

	CREATE TABLE IF NOT EXISTS allocation_criteria (
		allocation_id TEXT NOT NULL REFERENCES allocations(id) ON DELETE CASCADE,
		criterion_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocation_criteria_allocation
		ON allocation_criteria(allocation_id);

	CREATE TABLE IF NOT EXISTS derived_allocations (
		id TEXT PRIMARY KEY,
		allocation_id TEXT NOT NULL REFERENCES allocations(id) ON DELETE CASCADE,
		task_id TEXT NOT NULL,
		worker_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_derived_task
		ON derived_allocations(task_id);

	-- owner_id is an allocation or a derived allocation
	CREATE TABLE IF NOT EXISTS day_assignments (
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		owner_id TEXT NOT NULL,
		day TEXT NOT NULL,
		hours INTEGER NOT NULL CHECK (hours >= 0),
		resource_id TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_day_assignments_task
		ON day_assignments(task_id);
	CREATE INDEX IF NOT EXISTS idx_day_assignments_resource_day
		ON day_assignments(resource_id, day);

	-- Holidays (company-specific and global)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_company_date
		ON holidays(company_id, date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(company_id, date, name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CRITERIA
// =============================================================================

func (s *Store) SaveCriterion(ctx context.Context, c planner.CriterionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCriterion(ctx, s.db, c)
}

func saveCriterion(ctx context.Context, q queryer, c planner.CriterionSnapshot) error {
	query := `
		INSERT INTO criteria (id, name, type, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			parent_id = excluded.parent_id
	`
	_, err := q.ExecContext(ctx, query,
		string(c.ID), c.Name, c.Type, nullString(string(c.ParentID)),
		time.Now().Format(time.RFC3339),
	)
	return err
}

func (s *Store) LoadCriteria(ctx context.Context) ([]planner.CriterionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadCriteria(ctx, s.db)
}

func loadCriteria(ctx context.Context, q queryer) ([]planner.CriterionSnapshot, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, type, parent_id FROM criteria ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []planner.CriterionSnapshot
	for rows.Next() {
		var c planner.CriterionSnapshot
		var parent sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &parent); err != nil {
			return nil, err
		}
		c.ParentID = planner.CriterionID(parent.String)
		result = append(result, c)
	}
	return result, rows.Err()
}

// =============================================================================
// RESOURCES
// =============================================================================

func (s *Store) SaveResource(ctx context.Context, r planner.ResourceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveResource(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

func saveResource(ctx context.Context, q queryer, r planner.ResourceSnapshot) error {
	query := `
		INSERT INTO resources (id, name, kind, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			updated_at = excluded.updated_at
	`
	if _, err := q.ExecContext(ctx, query, string(r.ID), r.Name, string(r.Kind), time.Now().Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM satisfactions WHERE resource_id = ?`, string(r.ID)); err != nil {
		return err
	}
	for i, sat := range r.Satisfactions {
		_, err := q.ExecContext(ctx, `
			INSERT INTO satisfactions (resource_id, criterion_id, position, start_date, end_date)
			VALUES (?, ?, ?, ?, ?)`,
			string(r.ID), string(sat.CriterionID), i, formatDate(sat.Start), nullDate(sat.End),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteResource(ctx context.Context, id planner.ResourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteResource(ctx, s.db, id)
}

func deleteResource(ctx context.Context, q queryer, id planner.ResourceID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", planner.ErrResourceNotFound, id)
	}
	return nil
}

func (s *Store) LoadResources(ctx context.Context) ([]planner.ResourceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadResources(ctx, s.db)
}

func loadResources(ctx context.Context, q queryer) ([]planner.ResourceSnapshot, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, kind FROM resources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	var result []planner.ResourceSnapshot
	index := make(map[planner.ResourceID]int)
	for rows.Next() {
		var r planner.ResourceSnapshot
		if err := rows.Scan(&r.ID, &r.Name, &r.Kind); err != nil {
			rows.Close()
			return nil, err
		}
		index[r.ID] = len(result)
		result = append(result, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT resource_id, criterion_id, start_date, end_date
		FROM satisfactions ORDER BY resource_id, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var resourceID planner.ResourceID
		var sat planner.SatisfactionSnapshot
		var start string
		var end sql.NullString
		if err := rows.Scan(&resourceID, &sat.CriterionID, &start, &end); err != nil {
			return nil, err
		}
		if sat.Start, err = parseDate(start); err != nil {
			return nil, err
		}
		if sat.End, err = parseNullDate(end); err != nil {
			return nil, err
		}
		if i, ok := index[resourceID]; ok {
			result[i].Satisfactions = append(result[i].Satisfactions, sat)
		}
	}
	return result, rows.Err()
}

// =============================================================================
// TASKS (planner.Store interface)
// =============================================================================

// SaveTask writes the whole task under optimistic versioning.
func (s *Store) SaveTask(ctx context.Context, t planner.TaskSnapshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	version, err := saveTask(ctx, tx, t)
	if err != nil {
		return 0, err
	}
	return version, tx.Commit()
}

func saveTask(ctx context.Context, q queryer, t planner.TaskSnapshot) (int, error) {
	var stored int
	err := q.QueryRowContext(ctx, `SELECT version FROM tasks WHERE id = ?`, string(t.ID)).Scan(&stored)
	exists := true
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return 0, err
	}
	version, err := planner.NextVersion(stored, exists, t.Version)
	if err != nil {
		return 0, fmt.Errorf("task %s at version %d: %w", t.ID, t.Version, err)
	}

	var constraintDate *planner.Date
	if !t.StartConstraint.Date.IsZero() {
		constraintDate = &t.StartConstraint.Date
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO tasks (id, name, start_date, end_date, calculated_value,
			constraint_type, constraint_date, hours_at_order, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			calculated_value = excluded.calculated_value,
			constraint_type = excluded.constraint_type,
			constraint_date = excluded.constraint_date,
			hours_at_order = excluded.hours_at_order,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		string(t.ID), t.Name, formatDate(t.Start), formatDate(t.End), string(t.CalculatedValue),
		string(t.StartConstraint.Type), nullDate(constraintDate), t.HoursAtOrder, version,
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}

	if err := deleteTaskChildren(ctx, q, t.ID); err != nil {
		return 0, err
	}
	for _, id := range t.Criteria {
		if _, err := q.ExecContext(ctx, `INSERT INTO task_criteria (task_id, criterion_id) VALUES (?, ?)`,
			string(t.ID), string(id)); err != nil {
			return 0, err
		}
	}
	for i, a := range t.Allocations {
		if err := insertAllocation(ctx, q, t.ID, i, a); err != nil {
			return 0, fmt.Errorf("allocation %s: %w", a.ID, err)
		}
	}
	return version, nil
}

func deleteTaskChildren(ctx context.Context, q queryer, id planner.TaskID) error {
	statements := []string{
		`DELETE FROM day_assignments WHERE task_id = ?`,
		`DELETE FROM derived_allocations WHERE task_id = ?`,
		`DELETE FROM allocation_criteria WHERE allocation_id IN (SELECT id FROM allocations WHERE task_id = ?)`,
		`DELETE FROM allocations WHERE task_id = ?`,
		`DELETE FROM task_criteria WHERE task_id = ?`,
	}
	for _, stmt := range statements {
		if _, err := q.ExecContext(ctx, stmt, string(id)); err != nil {
			return err
		}
	}
	return nil
}

func insertAllocation(ctx context.Context, q queryer, taskID planner.TaskID, position int, a planner.AllocationSnapshot) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO allocations (id, task_id, position, kind, resource_id, resources_per_day)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(a.ID), string(taskID), position, a.Kind.String(),
		nullString(string(a.ResourceID)), a.ResourcesPerDay.Amount,
	)
	if err != nil {
		return err
	}
	for _, id := range a.Criteria {
		if _, err := q.ExecContext(ctx, `INSERT INTO allocation_criteria (allocation_id, criterion_id) VALUES (?, ?)`,
			string(a.ID), string(id)); err != nil {
			return err
		}
	}
	if err := insertAssignments(ctx, q, taskID, string(a.ID), a.Assignments); err != nil {
		return err
	}
	for _, d := range a.Derived {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO derived_allocations (id, allocation_id, task_id, worker_id)
			VALUES (?, ?, ?, ?)`,
			string(d.ID), string(a.ID), string(taskID), string(d.WorkerID)); err != nil {
			return err
		}
		if err := insertAssignments(ctx, q, taskID, string(d.ID), d.Assignments); err != nil {
			return err
		}
	}
	return nil
}

func insertAssignments(ctx context.Context, q queryer, taskID planner.TaskID, ownerID string, assignments []planner.AssignmentSnapshot) error {
	for _, da := range assignments {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO day_assignments (task_id, owner_id, day, hours, resource_id)
			VALUES (?, ?, ?, ?, ?)`,
			string(taskID), ownerID, formatDate(da.Day), da.Hours, string(da.ResourceID)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LoadTask(ctx context.Context, id planner.TaskID) (planner.TaskSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadTask(ctx, s.db, id)
}

func loadTask(ctx context.Context, q queryer, id planner.TaskID) (planner.TaskSnapshot, error) {
	var t planner.TaskSnapshot
	var start, end, calculated, constraintType string
	var constraintDate sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, name, start_date, end_date, calculated_value, constraint_type, constraint_date,
			hours_at_order, version
		FROM tasks WHERE id = ?`, string(id)).
		Scan(&t.ID, &t.Name, &start, &end, &calculated, &constraintType, &constraintDate,
			&t.HoursAtOrder, &t.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return planner.TaskSnapshot{}, fmt.Errorf("%w: %s", planner.ErrTaskNotFound, id)
	}
	if err != nil {
		return planner.TaskSnapshot{}, err
	}
	if t.Start, err = parseDate(start); err != nil {
		return planner.TaskSnapshot{}, err
	}
	if t.End, err = parseDate(end); err != nil {
		return planner.TaskSnapshot{}, err
	}
	t.CalculatedValue = planner.CalculatedValue(calculated)
	t.StartConstraint.Type = planner.StartConstraintType(constraintType)
	if cd, err := parseNullDate(constraintDate); err != nil {
		return planner.TaskSnapshot{}, err
	} else if cd != nil {
		t.StartConstraint.Date = *cd
	}

	if t.Criteria, err = loadIDs[planner.CriterionID](ctx, q,
		`SELECT criterion_id FROM task_criteria WHERE task_id = ? ORDER BY criterion_id`, string(id)); err != nil {
		return planner.TaskSnapshot{}, err
	}
	if t.Allocations, err = loadAllocations(ctx, q, id); err != nil {
		return planner.TaskSnapshot{}, err
	}
	return t, nil
}

func loadAllocations(ctx context.Context, q queryer, taskID planner.TaskID) ([]planner.AllocationSnapshot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, kind, resource_id, resources_per_day
		FROM allocations WHERE task_id = ? ORDER BY position`, string(taskID))
	if err != nil {
		return nil, err
	}
	var result []planner.AllocationSnapshot
	for rows.Next() {
		var a planner.AllocationSnapshot
		var kind string
		var resourceID sql.NullString
		var rpd decimal.Decimal
		if err := rows.Scan(&a.ID, &kind, &resourceID, &rpd); err != nil {
			rows.Close()
			return nil, err
		}
		if a.Kind, err = planner.ParseAllocationKind(kind); err != nil {
			rows.Close()
			return nil, err
		}
		a.ResourceID = planner.ResourceID(resourceID.String)
		a.ResourcesPerDay = planner.ResourcesPerDay{Amount: rpd}
		result = append(result, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	assignments, err := loadAssignments(ctx, q, taskID)
	if err != nil {
		return nil, err
	}
	for i := range result {
		a := &result[i]
		if a.Criteria, err = loadIDs[planner.CriterionID](ctx, q,
			`SELECT criterion_id FROM allocation_criteria WHERE allocation_id = ? ORDER BY criterion_id`,
			string(a.ID)); err != nil {
			return nil, err
		}
		a.Assignments = assignments[string(a.ID)]
		if a.Derived, err = loadDerived(ctx, q, a.ID, assignments); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func loadDerived(ctx context.Context, q queryer, allocationID planner.AllocationID, assignments map[string][]planner.AssignmentSnapshot) ([]planner.DerivedSnapshot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, worker_id FROM derived_allocations
		WHERE allocation_id = ? ORDER BY worker_id`, string(allocationID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []planner.DerivedSnapshot
	for rows.Next() {
		var d planner.DerivedSnapshot
		if err := rows.Scan(&d.ID, &d.WorkerID); err != nil {
			return nil, err
		}
		d.Assignments = assignments[string(d.ID)]
		result = append(result, d)
	}
	return result, rows.Err()
}

// loadAssignments groups a task's day assignments by owner.
func loadAssignments(ctx context.Context, q queryer, taskID planner.TaskID) (map[string][]planner.AssignmentSnapshot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT owner_id, day, hours, resource_id FROM day_assignments
		WHERE task_id = ? ORDER BY owner_id, day, resource_id`, string(taskID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]planner.AssignmentSnapshot)
	for rows.Next() {
		var owner, day string
		var da planner.AssignmentSnapshot
		if err := rows.Scan(&owner, &day, &da.Hours, &da.ResourceID); err != nil {
			return nil, err
		}
		if da.Day, err = parseDate(day); err != nil {
			return nil, err
		}
		result[owner] = append(result[owner], da)
	}
	return result, rows.Err()
}

func loadIDs[T ~string](ctx context.Context, q queryer, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []T
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, T(id))
	}
	return result, rows.Err()
}

func (s *Store) LoadTasks(ctx context.Context) ([]planner.TaskSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadTasks(ctx, s.db)
}

func loadTasks(ctx context.Context, q queryer) ([]planner.TaskSnapshot, error) {
	ids, err := loadIDs[planner.TaskID](ctx, q, `SELECT id FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	result := make([]planner.TaskSnapshot, 0, len(ids))
	for _, id := range ids {
		t, err := loadTask(ctx, q, id)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}

func (s *Store) DeleteTask(ctx context.Context, id planner.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteTask(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteTask(ctx context.Context, q queryer, id planner.TaskID) error {
	if err := deleteTaskChildren(ctx, q, id); err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", planner.ErrTaskNotFound, id)
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (planner.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store planner.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every call on the open transaction. The parent lock is
// already held.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveCriterion(ctx context.Context, c planner.CriterionSnapshot) error {
	return saveCriterion(ctx, ts.tx, c)
}

func (ts *txStore) LoadCriteria(ctx context.Context) ([]planner.CriterionSnapshot, error) {
	return loadCriteria(ctx, ts.tx)
}

func (ts *txStore) SaveResource(ctx context.Context, r planner.ResourceSnapshot) error {
	return saveResource(ctx, ts.tx, r)
}

func (ts *txStore) DeleteResource(ctx context.Context, id planner.ResourceID) error {
	return deleteResource(ctx, ts.tx, id)
}

func (ts *txStore) LoadResources(ctx context.Context) ([]planner.ResourceSnapshot, error) {
	return loadResources(ctx, ts.tx)
}

func (ts *txStore) SaveTask(ctx context.Context, t planner.TaskSnapshot) (int, error) {
	return saveTask(ctx, ts.tx, t)
}

func (ts *txStore) LoadTask(ctx context.Context, id planner.TaskID) (planner.TaskSnapshot, error) {
	return loadTask(ctx, ts.tx, id)
}

func (ts *txStore) LoadTasks(ctx context.Context) ([]planner.TaskSnapshot, error) {
	return loadTasks(ctx, ts.tx)
}

func (ts *txStore) DeleteTask(ctx context.Context, id planner.TaskID) error {
	return deleteTask(ctx, ts.tx, id)
}

// =============================================================================
// HOLIDAY CALENDAR IMPLEMENTATION
// =============================================================================

// SaveHoliday saves a holiday to the database.
func (s *Store) SaveHoliday(ctx context.Context, h planner.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, company_id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, date, name) DO UPDATE SET
			recurring = excluded.recurring
	`

	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		h.CompanyID,
		formatDate(h.Date),
		h.Name,
		h.Recurring,
		time.Now().Format(time.RFC3339),
	)
	return err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// HolidaysInYear returns the holidays falling in year, with recurring ones
// moved into that year. Includes both company-specific and global holidays.
func (s *Store) HolidaysInYear(ctx context.Context, companyID string, year int) ([]planner.Holiday, error) {
	all, err := s.LoadHolidays(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var result []planner.Holiday
	for _, h := range all {
		if h.Recurring {
			h.Date = planner.NewDate(year, h.Date.Month(), h.Date.Day())
		} else if h.Date.Year() != year {
			continue
		}
		result = append(result, h)
	}
	return result, nil
}

// IsHoliday checks if a date is a holiday for the given company.
// Implements planner.HolidayCalendar; lookup failures count as working days.
func (s *Store) IsHoliday(companyID string, date planner.Date) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COUNT(*) FROM holidays
		WHERE (company_id = ? OR company_id = '')
		  AND (
			(recurring = FALSE AND date = ?)
			OR (recurring = TRUE AND strftime('%m-%d', date) = ?)
		  )
	`

	var count int
	err := s.db.QueryRow(query, companyID, formatDate(date), date.Time().Format("01-02")).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// LoadHolidays returns all holidays visible to a company.
func (s *Store) LoadHolidays(ctx context.Context, companyID string) ([]planner.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, company_id, date, name, recurring
		FROM holidays
		WHERE company_id = ? OR company_id = ''
		ORDER BY date ASC
	`

	rows, err := s.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []planner.Holiday
	for rows.Next() {
		var h planner.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &h.CompanyID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = parseDate(dateStr); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}

	return holidays, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all data (for demo/testing).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"day_assignments", "derived_allocations", "allocation_criteria", "allocations",
		"task_criteria", "tasks", "satisfactions", "resources", "criteria", "holidays",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatDate(d planner.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateLayout)
}

func nullDate(d *planner.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*d), Valid: true}
}

func parseDate(s string) (planner.Date, error) {
	if s == "" {
		return planner.Date{}, nil
	}
	return planner.ParseDate(s)
}

func parseNullDate(s sql.NullString) (*planner.Date, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := planner.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
