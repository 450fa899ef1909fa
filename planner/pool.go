/*
pool.go - Resource pool and worker finders

PURPOSE:
  The pool is the in-process registry of resources and criteria available
  for allocation. It answers the two questions the engine asks:
  - WorkerFinder:   which workers match these criteria?
  - ResourceFinder: is this resource still available, and if not, who
                    can replace it?

HOW IT WORKS:
  1. The plan factory or the store fills the pool (AddCriterion, Add)
  2. Allocation requests resolve generic criteria through FindWorkersMatching
  3. Removing a worker (Remove) makes reassignment pick a replacement

WHY A POOL:
  - The engine stays independent of persistence
  - Lookups are safe for concurrent readers (sync.RWMutex)
  - Tests build small pools without any storage

SEE ALSO:
  - resource.go: Resource and criteria matching
  - task.go: ReassignAllocationsWithNewResources consumes a ResourceFinder
*/
package planner

import (
	"strings"
	"sync"
)

// =============================================================================
// FINDER INTERFACES
// =============================================================================

// WorkerFinder resolves criteria into concrete workers. An empty criteria set
// must yield an empty result.
type WorkerFinder interface {
	FindWorkersMatching(criteria []*Criterion) []*Resource
}

// WorkerFinderFunc adapts a function to WorkerFinder.
type WorkerFinderFunc func(criteria []*Criterion) []*Resource

func (f WorkerFinderFunc) FindWorkersMatching(criteria []*Criterion) []*Resource {
	return f(criteria)
}

// ResourceFinder adds availability lookups to WorkerFinder. Used when
// allocations are reassigned with new resources.
type ResourceFinder interface {
	WorkerFinder
	FindResource(id ResourceID) (*Resource, bool)
}

// WorkersAmong returns a finder restricted to the given workers.
func WorkersAmong(workers []*Resource) WorkerFinder {
	candidates := sortResources(uniqueResources(workers))
	return WorkerFinderFunc(func(criteria []*Criterion) []*Resource {
		if len(criteria) == 0 {
			return nil
		}
		var result []*Resource
		for _, w := range candidates {
			if w.SatisfiesCriteria(criteria) {
				result = append(result, w)
			}
		}
		return result
	})
}

// =============================================================================
// RESOURCE POOL
// =============================================================================

type ResourcePool struct {
	mu        sync.RWMutex
	resources map[ResourceID]*Resource
	criteria  map[CriterionID]*Criterion
}

func NewResourcePool() *ResourcePool {
	return &ResourcePool{
		resources: make(map[ResourceID]*Resource),
		criteria:  make(map[CriterionID]*Criterion),
	}
}

// AddCriterion registers a criterion (and its ancestors).
func (p *ResourcePool) AddCriterion(c *Criterion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for current := c; current != nil; current = current.Parent {
		p.criteria[current.ID] = current
	}
}

// Criterion finds a registered criterion by ID.
func (p *ResourcePool) Criterion(id CriterionID) (*Criterion, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.criteria[id]
	return c, ok
}

// CriteriaByID resolves a list of IDs, failing on the first unknown one.
func (p *ResourcePool) CriteriaByID(ids []CriterionID) ([]*Criterion, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]*Criterion, 0, len(ids))
	for _, id := range ids {
		c, ok := p.criteria[id]
		if !ok {
			return nil, &lookupError{kind: ErrCriterionNotFound, id: string(id)}
		}
		result = append(result, c)
	}
	return result, nil
}

// ListCriteria returns every registered criterion, ordered by ID.
func (p *ResourcePool) ListCriteria() []*Criterion {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]*Criterion, 0, len(p.criteria))
	for _, c := range p.criteria {
		result = append(result, c)
	}
	sortCriteria(result)
	return result
}

// Add registers a resource and every criterion it satisfies.
func (p *ResourcePool) Add(r *Resource) {
	for _, s := range r.Satisfactions {
		if s.Criterion != nil {
			p.AddCriterion(s.Criterion)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resources[r.ID] = r
}

// Remove drops a resource from the pool. Allocations keep their reference;
// reassignment will look for a replacement.
func (p *ResourcePool) Remove(id ResourceID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.resources[id]
	delete(p.resources, id)
	return ok
}

// FindResource implements ResourceFinder.
func (p *ResourcePool) FindResource(id ResourceID) (*Resource, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.resources[id]
	return r, ok
}

// Resources returns all resources, ordered by ID.
func (p *ResourcePool) Resources() []*Resource {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]*Resource, 0, len(p.resources))
	for _, r := range p.resources {
		result = append(result, r)
	}
	return sortResources(result)
}

// Workers returns every worker in the pool, ordered by ID.
func (p *ResourcePool) Workers() []*Resource {
	return Workers(p.Resources())
}

// FindWorkersMatching implements WorkerFinder.
func (p *ResourcePool) FindWorkersMatching(criteria []*Criterion) []*Resource {
	if len(criteria) == 0 {
		return nil
	}
	var result []*Resource
	for _, w := range p.Workers() {
		if w.SatisfiesCriteria(criteria) {
			result = append(result, w)
		}
	}
	return result
}

// FindResources searches by name fragment and criteria. With neither filter
// every resource is returned; an unmatched criteria filter short-circuits to
// an empty result.
func (p *ResourcePool) FindResources(name string, criteria []*Criterion) []*Resource {
	all := p.Resources()
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" && len(criteria) == 0 {
		return all
	}
	var result []*Resource
	for _, r := range all {
		if len(criteria) > 0 && !r.SatisfiesCriteria(criteria) {
			continue
		}
		if name != "" &&
			!strings.Contains(strings.ToLower(r.Name), name) &&
			!strings.Contains(strings.ToLower(string(r.ID)), name) {
			continue
		}
		result = append(result, r)
	}
	return result
}

type lookupError struct {
	kind error
	id   string
}

func (e *lookupError) Error() string { return e.kind.Error() + ": " + e.id }
func (e *lookupError) Unwrap() error { return e.kind }
