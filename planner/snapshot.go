/*
snapshot.go - Value snapshots of the object graph

PURPOSE:
  Stores never see engine-owned pointers. They receive value snapshots,
  persist them unchanged, and hand them back; RestoreTask rebuilds the live
  object graph (ownership included) against a resource pool.

GRAPH:
  TaskSnapshot
    └─ AllocationSnapshot (specific: ResourceID, Criteria)
         ├─ AssignmentSnapshot (day, hours, resource)
         └─ DerivedSnapshot
              └─ AssignmentSnapshot

MISSING RESOURCES:
  A resource referenced by a task may have left the pool since the task was
  saved. Restoring keeps the reference as a worker stand-in that satisfies
  the criteria recorded with the allocation, so the reassignment sweeper
  can find it unavailable and pick a replacement of the same kind.

SEE ALSO:
  - store.go: The Store interface these snapshots cross
  - store/sqlite/sqlite.go: Relational mapping of the snapshots
*/
package planner

import (
	"fmt"
	"log"
)

// =============================================================================
// SNAPSHOT TYPES
// =============================================================================

type TaskSnapshot struct {
	ID              TaskID
	Name            string
	Start           Date
	End             Date
	CalculatedValue CalculatedValue
	Criteria        []CriterionID
	StartConstraint StartConstraint
	HoursAtOrder    int
	Version         int
	Allocations     []AllocationSnapshot
}

type AllocationSnapshot struct {
	ID              AllocationID
	Kind            AllocationKind
	ResourceID      ResourceID    // specific only
	Criteria        []CriterionID // generic: required; specific: met by ResourceID
	ResourcesPerDay ResourcesPerDay
	Assignments     []AssignmentSnapshot
	Derived         []DerivedSnapshot
}

type AssignmentSnapshot struct {
	Day        Date
	Hours      int
	ResourceID ResourceID
}

type DerivedSnapshot struct {
	ID          AllocationID
	WorkerID    ResourceID
	Assignments []AssignmentSnapshot
}

type CriterionSnapshot struct {
	ID       CriterionID
	Name     string
	Type     string
	ParentID CriterionID
}

type SatisfactionSnapshot struct {
	CriterionID CriterionID
	Start       Date
	End         *Date
}

type ResourceSnapshot struct {
	ID            ResourceID
	Name          string
	Kind          ResourceKind
	Satisfactions []SatisfactionSnapshot
}

// =============================================================================
// TAKING SNAPSHOTS
// =============================================================================

// Snapshot captures the task and its live allocations.
func (t *Task) Snapshot() TaskSnapshot {
	snap := TaskSnapshot{
		ID:              t.id,
		Name:            t.name,
		Start:           t.startDate,
		End:             t.endDate,
		CalculatedValue: t.calculatedValue,
		Criteria:        CriterionIDs(t.criteria),
		StartConstraint: t.startConstraint,
		HoursAtOrder:    t.hoursAtOrder,
		Version:         t.version,
	}
	for _, a := range t.allocations {
		snap.Allocations = append(snap.Allocations, snapshotAllocation(a))
	}
	return snap
}

func snapshotAllocation(a *ResourceAllocation) AllocationSnapshot {
	snap := AllocationSnapshot{
		ID:              a.id,
		Kind:            a.kind,
		ResourcesPerDay: a.resourcesPerDay,
		Assignments:     snapshotAssignments(a.Assignments()),
	}
	switch a.kind {
	case AllocationSpecific:
		snap.ResourceID = a.specific.Resource.ID
		if met := a.specific.Resource.SatisfiedCriteria(); len(met) > 0 {
			snap.Criteria = CriterionIDs(met)
		}
	case AllocationGeneric:
		snap.Criteria = CriterionIDs(a.generic.Criteria)
	}
	for _, d := range a.derived {
		snap.Derived = append(snap.Derived, DerivedSnapshot{
			ID:          d.id,
			WorkerID:    d.worker.ID,
			Assignments: snapshotAssignments(d.Assignments()),
		})
	}
	return snap
}

func snapshotAssignments(assignments []DayAssignment) []AssignmentSnapshot {
	result := make([]AssignmentSnapshot, 0, len(assignments))
	for _, da := range assignments {
		result = append(result, AssignmentSnapshot{Day: da.Day, Hours: da.Hours, ResourceID: da.resourceID()})
	}
	return result
}

// SnapshotCriterion captures a criterion with a reference to its parent.
func SnapshotCriterion(c *Criterion) CriterionSnapshot {
	snap := CriterionSnapshot{ID: c.ID, Name: c.Name, Type: c.Type}
	if c.Parent != nil {
		snap.ParentID = c.Parent.ID
	}
	return snap
}

// SnapshotResource captures a resource and its satisfactions.
func SnapshotResource(r *Resource) ResourceSnapshot {
	snap := ResourceSnapshot{ID: r.ID, Name: r.Name, Kind: r.Kind}
	for _, s := range r.Satisfactions {
		if s.Criterion == nil {
			continue
		}
		snap.Satisfactions = append(snap.Satisfactions, SatisfactionSnapshot{
			CriterionID: s.Criterion.ID,
			Start:       s.Period.Start,
			End:         s.Period.End,
		})
	}
	return snap
}

// =============================================================================
// RESTORING
// =============================================================================

// Resolver looks up the criteria and resources a snapshot references.
// *ResourcePool implements it.
type Resolver interface {
	FindResource(id ResourceID) (*Resource, bool)
	Criterion(id CriterionID) (*Criterion, bool)
}

// RestoreTask rebuilds a task from its snapshot.
func RestoreTask(snap TaskSnapshot, resolver Resolver) (*Task, error) {
	if !snap.CalculatedValue.Valid() {
		return nil, fmt.Errorf("restore task %s: %w: %q", snap.ID, ErrUnknownCalculatedValue, snap.CalculatedValue)
	}
	r := &restorer{resolver: resolver, standIns: make(map[ResourceID]*Resource)}

	criteria, err := r.criteria(snap.Criteria)
	if err != nil {
		return nil, fmt.Errorf("restore task %s: %w", snap.ID, err)
	}
	t := &Task{
		id:              snap.ID,
		name:            snap.Name,
		startDate:       snap.Start,
		endDate:         snap.End,
		calculatedValue: snap.CalculatedValue,
		criteria:        criteria,
		startConstraint: snap.StartConstraint,
		hoursAtOrder:    snap.HoursAtOrder,
		version:         snap.Version,
	}
	for _, as := range snap.Allocations {
		a, err := r.allocation(t, as)
		if err != nil {
			return nil, fmt.Errorf("restore task %s: %w", snap.ID, err)
		}
		t.allocations = append(t.allocations, a)
	}
	t.dropEmpty()
	return t, nil
}

type restorer struct {
	resolver Resolver
	standIns map[ResourceID]*Resource
}

// resource resolves id through the pool, falling back to a stand-in. A
// stand-in satisfies the known criteria among met; unknown ones are skipped.
func (r *restorer) resource(id ResourceID, met ...CriterionID) *Resource {
	if res, ok := r.resolver.FindResource(id); ok {
		return res
	}
	res, ok := r.standIns[id]
	if !ok {
		log.Printf("[Task] resource %s is no longer in the pool, restoring a stand-in", id)
		res = NewWorker(id, "")
		r.standIns[id] = res
	}
	if len(res.Satisfactions) == 0 {
		for _, cid := range met {
			if c, ok := r.resolver.Criterion(cid); ok {
				res.Satisfy(c, OpenPeriod(Date{}))
			}
		}
	}
	return res
}

func (r *restorer) criteria(ids []CriterionID) ([]*Criterion, error) {
	result := make([]*Criterion, 0, len(ids))
	for _, id := range ids {
		c, ok := r.resolver.Criterion(id)
		if !ok {
			return nil, &lookupError{kind: ErrCriterionNotFound, id: string(id)}
		}
		result = append(result, c)
	}
	return result, nil
}

func (r *restorer) allocation(t *Task, snap AllocationSnapshot) (*ResourceAllocation, error) {
	a := &ResourceAllocation{
		id:              snap.ID,
		kind:            snap.Kind,
		task:            t,
		resourcesPerDay: snap.ResourcesPerDay,
	}
	switch snap.Kind {
	case AllocationSpecific:
		a.specific = &SpecificPayload{Resource: r.resource(snap.ResourceID, snap.Criteria...)}
	case AllocationGeneric:
		criteria, err := r.criteria(snap.Criteria)
		if err != nil {
			return nil, err
		}
		if len(criteria) == 0 {
			return nil, invalidState("generic allocation %s has no criteria", snap.ID)
		}
		a.generic = &GenericPayload{Criteria: criteria}
	default:
		return nil, invalidState("allocation %s has unknown kind %s", snap.ID, snap.Kind)
	}

	if err := a.replaceAssignments(r.assignments(snap.Assignments)); err != nil {
		return nil, err
	}
	for _, ds := range snap.Derived {
		d := &DerivedAllocation{id: ds.ID, parent: a, worker: r.resource(ds.WorkerID)}
		for _, da := range r.assignments(ds.Assignments) {
			if err := da.attachTo(d); err != nil {
				return nil, err
			}
			d.assignments = append(d.assignments, da)
		}
		a.derived = append(a.derived, d)
	}
	return a, nil
}

func (r *restorer) assignments(snaps []AssignmentSnapshot) []*DayAssignment {
	result := make([]*DayAssignment, 0, len(snaps))
	for _, s := range snaps {
		result = append(result, NewDayAssignment(s.Day, s.Hours, r.resource(s.ResourceID)))
	}
	return result
}

// BuildPool rebuilds a resource pool from criteria and resource snapshots.
// Parents may appear in any order.
func BuildPool(criteria []CriterionSnapshot, resources []ResourceSnapshot) (*ResourcePool, error) {
	pool := NewResourcePool()
	byID := make(map[CriterionID]CriterionSnapshot, len(criteria))
	for _, c := range criteria {
		byID[c.ID] = c
	}
	built := make(map[CriterionID]*Criterion, len(criteria))
	var build func(id CriterionID, depth int) (*Criterion, error)
	build = func(id CriterionID, depth int) (*Criterion, error) {
		if c, ok := built[id]; ok {
			return c, nil
		}
		snap, ok := byID[id]
		if !ok {
			return nil, &lookupError{kind: ErrCriterionNotFound, id: string(id)}
		}
		if depth > len(criteria) {
			return nil, fmt.Errorf("criterion %s: parent cycle", id)
		}
		c := &Criterion{ID: snap.ID, Name: snap.Name, Type: snap.Type}
		if snap.ParentID != "" {
			parent, err := build(snap.ParentID, depth+1)
			if err != nil {
				return nil, err
			}
			c.Parent = parent
		}
		built[id] = c
		return c, nil
	}
	for _, c := range criteria {
		criterion, err := build(c.ID, 0)
		if err != nil {
			return nil, err
		}
		pool.AddCriterion(criterion)
	}

	for _, rs := range resources {
		res := &Resource{ID: rs.ID, Name: rs.Name, Kind: rs.Kind}
		for _, s := range rs.Satisfactions {
			c, ok := built[s.CriterionID]
			if !ok {
				return nil, fmt.Errorf("resource %s: %w", rs.ID, &lookupError{kind: ErrCriterionNotFound, id: string(s.CriterionID)})
			}
			res.Satisfy(c, Period{Start: s.Start, End: s.End})
		}
		pool.Add(res)
	}
	return pool, nil
}
