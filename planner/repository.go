/*
repository.go - Live tasks and resources on top of a Store

PURPOSE:
  The Repository pairs a Store with the in-process ResourcePool. Resource
  and criteria writes go to both; task reads restore live tasks against the
  pool; task writes snapshot the task and record the new version on it.

EXAMPLE FLOW:
  1. repo.Task(ctx, id)                       -> restored *Task (version n)
  2. task.ReassignAllocationsWithNewResources -> mutated in memory
  3. repo.SaveTask(ctx, task)                 -> version n+1, or
                                                 ErrConcurrentModification if
                                                 someone saved in between

SEE ALSO:
  - store.go: Store interface
  - snapshot.go: RestoreTask and BuildPool
*/
package planner

import (
	"context"
	"fmt"
)

// =============================================================================
// REPOSITORY
// =============================================================================

type Repository struct {
	Store Store
	Pool  *ResourcePool
}

// NewRepository wraps store with an empty pool. Call Load to fill the pool
// from the store.
func NewRepository(store Store) *Repository {
	return &Repository{Store: store, Pool: NewResourcePool()}
}

// Load replaces the pool with the criteria and resources in the store.
func (r *Repository) Load(ctx context.Context) error {
	criteria, err := r.Store.LoadCriteria(ctx)
	if err != nil {
		return fmt.Errorf("load criteria: %w", err)
	}
	resources, err := r.Store.LoadResources(ctx)
	if err != nil {
		return fmt.Errorf("load resources: %w", err)
	}
	pool, err := BuildPool(criteria, resources)
	if err != nil {
		return fmt.Errorf("build pool: %w", err)
	}
	r.Pool = pool
	return nil
}

// AddCriterion persists c with its ancestors and registers them in the pool.
func (r *Repository) AddCriterion(ctx context.Context, c *Criterion) error {
	var chain []*Criterion
	for current := c; current != nil; current = current.Parent {
		chain = append(chain, current)
	}
	// ancestors first
	for i := len(chain) - 1; i >= 0; i-- {
		if err := r.Store.SaveCriterion(ctx, SnapshotCriterion(chain[i])); err != nil {
			return fmt.Errorf("save criterion %s: %w", chain[i].ID, err)
		}
	}
	r.Pool.AddCriterion(c)
	return nil
}

// AddResource persists res (and the criteria it satisfies) and registers it.
func (r *Repository) AddResource(ctx context.Context, res *Resource) error {
	for _, c := range res.SatisfiedCriteria() {
		if err := r.AddCriterion(ctx, c); err != nil {
			return err
		}
	}
	if err := r.Store.SaveResource(ctx, SnapshotResource(res)); err != nil {
		return fmt.Errorf("save resource %s: %w", res.ID, err)
	}
	r.Pool.Add(res)
	return nil
}

// RemoveResource deletes a resource. Tasks still bound to it keep a
// reference until they are reassigned.
func (r *Repository) RemoveResource(ctx context.Context, id ResourceID) error {
	if err := r.Store.DeleteResource(ctx, id); err != nil {
		return err
	}
	r.Pool.Remove(id)
	return nil
}

// Task restores a live task.
func (r *Repository) Task(ctx context.Context, id TaskID) (*Task, error) {
	snap, err := r.Store.LoadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return RestoreTask(snap, r.Pool)
}

// Tasks restores every task.
func (r *Repository) Tasks(ctx context.Context) ([]*Task, error) {
	snaps, err := r.Store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	tasks := make([]*Task, 0, len(snaps))
	for _, snap := range snaps {
		t, err := RestoreTask(snap, r.Pool)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// SaveTask persists t and records its new version.
func (r *Repository) SaveTask(ctx context.Context, t *Task) error {
	version, err := r.Store.SaveTask(ctx, t.Snapshot())
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID(), err)
	}
	t.SetVersion(version)
	return nil
}

// SaveTasks persists several tasks, atomically when the store supports
// transactions. Versions are recorded only after every save succeeded.
func (r *Repository) SaveTasks(ctx context.Context, tasks []*Task) error {
	versions := make([]int, len(tasks))
	save := func(s Store) error {
		for i, t := range tasks {
			v, err := s.SaveTask(ctx, t.Snapshot())
			if err != nil {
				return fmt.Errorf("save task %s: %w", t.ID(), err)
			}
			versions[i] = v
		}
		return nil
	}

	var err error
	if tx, ok := r.Store.(TxStore); ok {
		err = tx.WithTx(ctx, save)
	} else {
		err = save(r.Store)
	}
	if err != nil {
		return err
	}
	for i, t := range tasks {
		t.SetVersion(versions[i])
	}
	return nil
}

func (r *Repository) DeleteTask(ctx context.Context, id TaskID) error {
	return r.Store.DeleteTask(ctx, id)
}
