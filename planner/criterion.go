package planner

import "sort"

// =============================================================================
// CRITERION - Hierarchical tag a resource may satisfy
// =============================================================================

// Criterion selects resources generically ("welder", "night shift").
// Criteria form a tree: satisfying a child satisfies every ancestor.
type Criterion struct {
	ID     CriterionID
	Name   string
	Type   string
	Parent *Criterion
}

// NewCriterion creates a root criterion.
func NewCriterion(id CriterionID, name, criterionType string) *Criterion {
	return &Criterion{ID: id, Name: name, Type: criterionType}
}

// Child creates a criterion under c.
func (c *Criterion) Child(id CriterionID, name string) *Criterion {
	return &Criterion{ID: id, Name: name, Type: c.Type, Parent: c}
}

// Includes reports whether other is c or one of its descendants.
func (c *Criterion) Includes(other *Criterion) bool {
	for current := other; current != nil; current = current.Parent {
		if current.ID == c.ID {
			return true
		}
	}
	return false
}

func (c *Criterion) String() string {
	if c.Parent == nil {
		return c.Name
	}
	return c.Parent.String() + "/" + c.Name
}

// CriterionIDs returns the IDs of criteria, sorted.
func CriterionIDs(criteria []*Criterion) []CriterionID {
	ids := make([]CriterionID, 0, len(criteria))
	for _, c := range criteria {
		ids = append(ids, c.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// =============================================================================
// CRITERION SATISFACTION - A resource meets a criterion during a period
// =============================================================================

type CriterionSatisfaction struct {
	Criterion *Criterion
	Period    Period
}

// IsActiveAt reports whether the satisfaction applies on day.
func (cs CriterionSatisfaction) IsActiveAt(day Date) bool {
	return cs.Period.Contains(day)
}

func sortCriteria(criteria []*Criterion) {
	sort.Slice(criteria, func(i, j int) bool { return criteria[i].ID < criteria[j].ID })
}
