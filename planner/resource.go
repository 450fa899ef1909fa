/*
resource.go - Workers and machines that receive hours

PURPOSE:
  A Resource is referenced (never owned) by day assignments and allocations
  across many tasks. It carries the criteria it satisfies over time; the
  capacity it offers per day comes from a Calendar (see calendar.go).

CRITERIA MATCHING:
  A resource satisfies a set of criteria on a day when, for every required
  criterion, one of its satisfactions active on that day is that criterion or
  a descendant of it. An empty requirement set matches nobody: callers that
  want "everyone" ask the pool for Workers() explicitly.

SEE ALSO:
  - criterion.go: Criterion tree and satisfactions
  - pool.go: ResourcePool, the in-process worker finder
*/
package planner

import "sort"

// =============================================================================
// RESOURCE
// =============================================================================

type ResourceKind string

const (
	KindWorker  ResourceKind = "worker"
	KindMachine ResourceKind = "machine"
)

type Resource struct {
	ID            ResourceID
	Name          string
	Kind          ResourceKind
	Satisfactions []CriterionSatisfaction
}

// NewWorker creates a worker with no criteria.
func NewWorker(id ResourceID, name string) *Resource {
	return &Resource{ID: id, Name: name, Kind: KindWorker}
}

// NewMachine creates a machine with no criteria.
func NewMachine(id ResourceID, name string) *Resource {
	return &Resource{ID: id, Name: name, Kind: KindMachine}
}

// Satisfy records that the resource meets c during period.
func (r *Resource) Satisfy(c *Criterion, period Period) *Resource {
	r.Satisfactions = append(r.Satisfactions, CriterionSatisfaction{Criterion: c, Period: period})
	return r
}

func (r *Resource) IsWorker() bool { return r.Kind == KindWorker }

// SatisfiesCriteria reports whether every criterion is satisfied at some
// point in time, regardless of activity periods.
func (r *Resource) SatisfiesCriteria(criteria []*Criterion) bool {
	if len(criteria) == 0 {
		return false
	}
	for _, required := range criteria {
		if !r.satisfies(required, nil) {
			return false
		}
	}
	return true
}

// SatisfiesCriteriaAt reports whether every criterion is satisfied on day.
func (r *Resource) SatisfiesCriteriaAt(criteria []*Criterion, day Date) bool {
	if len(criteria) == 0 {
		return false
	}
	for _, required := range criteria {
		if !r.satisfies(required, &day) {
			return false
		}
	}
	return true
}

func (r *Resource) satisfies(required *Criterion, day *Date) bool {
	for _, s := range r.Satisfactions {
		if s.Criterion == nil || !required.Includes(s.Criterion) {
			continue
		}
		if day == nil || s.IsActiveAt(*day) {
			return true
		}
	}
	return false
}

// SatisfiedCriteria returns the distinct criteria the resource has ever
// satisfied, ordered by ID.
func (r *Resource) SatisfiedCriteria() []*Criterion {
	seen := make(map[CriterionID]bool)
	var result []*Criterion
	for _, s := range r.Satisfactions {
		if s.Criterion == nil || seen[s.Criterion.ID] {
			continue
		}
		seen[s.Criterion.ID] = true
		result = append(result, s.Criterion)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *Resource) String() string {
	if r.Name == "" {
		return string(r.ID)
	}
	return r.Name + " (" + string(r.ID) + ")"
}

// Workers filters resources down to workers.
func Workers(resources []*Resource) []*Resource {
	var result []*Resource
	for _, r := range resources {
		if r.IsWorker() {
			result = append(result, r)
		}
	}
	return result
}

// sortResources orders resources by ID so every distribution is deterministic.
func sortResources(resources []*Resource) []*Resource {
	sorted := append([]*Resource(nil), resources...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}

// uniqueResources removes duplicate IDs, keeping first occurrences.
func uniqueResources(resources []*Resource) []*Resource {
	seen := make(map[ResourceID]bool, len(resources))
	var result []*Resource
	for _, r := range resources {
		if r == nil || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		result = append(result, r)
	}
	return result
}
