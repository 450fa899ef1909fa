/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the planner's live object graph (tasks, allocations, assignments with
  ownership) from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Criteria / Resources:
    CriterionDTO, ResourceDTO, SatisfactionDTO, CreateResourceRequest

  Tasks:
    TaskDTO, CreateTaskRequest, AllocationDTO, AssignmentDTO, DerivedDTO,
    AggregateDTO

  Operations:
    AllocateRequest, ModifyAllocationRequest, MoveTaskRequest,
    ReassignRequest, SweepResultDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VERSIONS:
  Mutating requests may carry the task version the client last read. A
  stale version is answered with 409 Conflict.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: AllocationDoc, reused for allocation requests
*/
package api

import (
	"sort"

	"github.com/warp/allocation-engine/factory"
	"github.com/warp/allocation-engine/planner"
)

// =============================================================================
// CRITERIA AND RESOURCES
// =============================================================================

type CriterionDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

type SatisfactionDTO struct {
	CriterionID string `json:"criterion_id"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
}

type ResourceDTO struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     string            `json:"kind"`
	Criteria []SatisfactionDTO `json:"criteria"`
}

// CreateResourceRequest reuses the plan document schema.
type CreateResourceRequest = factory.ResourceDoc

// =============================================================================
// TASKS
// =============================================================================

type CreateTaskRequest struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	CalculatedValue string   `json:"calculated_value,omitempty"`
	Criteria        []string `json:"criteria,omitempty"`
	HoursAtOrder    int      `json:"hours_at_order,omitempty"`
}

type StartConstraintDTO struct {
	Type string `json:"type"`
	Date string `json:"date,omitempty"`
}

type TaskDTO struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Start           string             `json:"start"`
	End             string             `json:"end"`
	CalculatedValue string             `json:"calculated_value"`
	Criteria        []string           `json:"criteria"`
	StartConstraint StartConstraintDTO `json:"start_constraint"`
	HoursAtOrder    int                `json:"hours_at_order"`
	Version         int                `json:"version"`
	AssignedHours   int                `json:"assigned_hours"`
	Allocations     []AllocationDTO    `json:"allocations"`
}

type AssignmentDTO struct {
	Day        string `json:"day"`
	Hours      int    `json:"hours"`
	ResourceID string `json:"resource_id"`
}

type DerivedDTO struct {
	ID            string          `json:"id"`
	WorkerID      string          `json:"worker_id"`
	AssignedHours int             `json:"assigned_hours"`
	Assignments   []AssignmentDTO `json:"assignments"`
}

type AllocationDTO struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	ResourceID      string          `json:"resource_id,omitempty"`
	Criteria        []string        `json:"criteria,omitempty"`
	ResourcesPerDay string          `json:"resources_per_day"`
	AssignedHours   int             `json:"assigned_hours"`
	Assignments     []AssignmentDTO `json:"assignments"`
	Derived         []DerivedDTO    `json:"derived,omitempty"`
}

// AggregateDTO summarizes the primary assignments of a task.
type AggregateDTO struct {
	Start           string             `json:"start,omitempty"`
	End             string             `json:"end,omitempty"`
	TotalHours      int                `json:"total_hours"`
	Allocations     int                `json:"allocations"`
	HoursByDay      map[string]int     `json:"hours_by_day"`
	HoursByResource map[string]int     `json:"hours_by_resource"`
	ByCriteria      []CriteriaHoursDTO `json:"by_criteria"`
}

type CriteriaHoursDTO struct {
	Criteria    []string `json:"criteria"`
	Hours       int      `json:"hours"`
	Allocations int      `json:"allocations"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

// AllocateRequest adds allocations computed in Mode (defaults to the task's
// calculated value).
type AllocateRequest struct {
	Mode        string                  `json:"mode,omitempty"`
	Version     *int                    `json:"version,omitempty"`
	Allocations []factory.AllocationDoc `json:"allocations"`
}

type ModifyAllocationRequest struct {
	Mode            string `json:"mode,omitempty"`
	Version         *int   `json:"version,omitempty"`
	ResourcesPerDay string `json:"resources_per_day,omitempty"`
	Hours           int    `json:"hours,omitempty"`
}

type MoveTaskRequest struct {
	Date    string `json:"date"`
	Version *int   `json:"version,omitempty"`
}

// ReassignRequest picks the strategy: "same" keeps ratios and workers,
// "new_resources" (default) rebinds workers that left the pool.
type ReassignRequest struct {
	Strategy string `json:"strategy,omitempty"`
	Version  *int   `json:"version,omitempty"`
}

type SweepResultDTO struct {
	Checked    int      `json:"checked"`
	Reassigned []string `json:"reassigned"`
	Failed     []string `json:"failed"`
}

// =============================================================================
// HOLIDAYS AND SCENARIOS
// =============================================================================

type HolidayDTO struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCriterionDTO(c *planner.Criterion) CriterionDTO {
	dto := CriterionDTO{ID: string(c.ID), Name: c.Name, Type: c.Type}
	if c.Parent != nil {
		dto.ParentID = string(c.Parent.ID)
	}
	return dto
}

func toResourceDTO(r *planner.Resource) ResourceDTO {
	dto := ResourceDTO{
		ID:       string(r.ID),
		Name:     r.Name,
		Kind:     string(r.Kind),
		Criteria: make([]SatisfactionDTO, 0, len(r.Satisfactions)),
	}
	for _, s := range r.Satisfactions {
		sd := SatisfactionDTO{CriterionID: string(s.Criterion.ID)}
		if !s.Period.Start.IsZero() {
			sd.Start = s.Period.Start.String()
		}
		if s.Period.End != nil {
			sd.End = s.Period.End.String()
		}
		dto.Criteria = append(dto.Criteria, sd)
	}
	return dto
}

func toAssignmentDTOs(assignments []planner.DayAssignment) []AssignmentDTO {
	dtos := make([]AssignmentDTO, 0, len(assignments))
	for _, da := range assignments {
		dto := AssignmentDTO{Day: da.Day.String(), Hours: da.Hours}
		if da.Resource != nil {
			dto.ResourceID = string(da.Resource.ID)
		}
		dtos = append(dtos, dto)
	}
	return dtos
}

func toAllocationDTO(a *planner.ResourceAllocation) AllocationDTO {
	dto := AllocationDTO{
		ID:              string(a.ID()),
		Kind:            a.Kind().String(),
		ResourcesPerDay: a.ResourcesPerDay().String(),
		AssignedHours:   a.AssignedHours(),
		Assignments:     toAssignmentDTOs(a.Assignments()),
	}
	if r := a.Resource(); r != nil {
		dto.ResourceID = string(r.ID)
	}
	for _, id := range planner.CriterionIDs(a.Criteria()) {
		dto.Criteria = append(dto.Criteria, string(id))
	}
	for _, d := range a.DerivedAllocations() {
		dto.Derived = append(dto.Derived, DerivedDTO{
			ID:            string(d.ID()),
			WorkerID:      string(d.Worker().ID),
			AssignedHours: d.AssignedHours(),
			Assignments:   toAssignmentDTOs(d.Assignments()),
		})
	}
	return dto
}

func toTaskDTO(t *planner.Task) TaskDTO {
	sc := t.StartConstraint()
	dto := TaskDTO{
		ID:              string(t.ID()),
		Name:            t.Name(),
		Start:           t.StartDate().String(),
		End:             t.EndDate().String(),
		CalculatedValue: string(t.CalculatedValue()),
		Criteria:        make([]string, 0, len(t.Criteria())),
		StartConstraint: StartConstraintDTO{Type: string(planner.AsSoonAsPossible)},
		HoursAtOrder:    t.HoursSpecifiedAtOrder(),
		Version:         t.Version(),
		AssignedHours:   t.AssignedHours(),
		Allocations:     make([]AllocationDTO, 0, len(t.ResourceAllocations())),
	}
	if sc.Type != "" && sc.Type != planner.AsSoonAsPossible {
		dto.StartConstraint = StartConstraintDTO{Type: string(sc.Type), Date: sc.Date.String()}
	}
	for _, id := range planner.CriterionIDs(t.Criteria()) {
		dto.Criteria = append(dto.Criteria, string(id))
	}
	for _, a := range t.ResourceAllocations() {
		dto.Allocations = append(dto.Allocations, toAllocationDTO(a))
	}
	return dto
}

func toAggregateDTO(t *planner.Task) AggregateDTO {
	agg := t.Aggregate()
	dto := AggregateDTO{
		TotalHours:      agg.TotalHours(),
		Allocations:     agg.AllocationCount(),
		HoursByDay:      make(map[string]int),
		HoursByResource: make(map[string]int),
		ByCriteria:      make([]CriteriaHoursDTO, 0),
	}
	if !agg.IsEmpty() {
		dto.Start = agg.Start().String()
		dto.End = agg.End().String()
	}
	for day, hours := range agg.HoursByDay() {
		dto.HoursByDay[day.String()] = hours
	}
	for id, hours := range agg.HoursByResource() {
		dto.HoursByResource[string(id)] = hours
	}
	for _, g := range t.AggregatedByCriteria() {
		group := CriteriaHoursDTO{Hours: g.Hours, Allocations: g.Allocations}
		for _, c := range g.Criteria {
			group.Criteria = append(group.Criteria, string(c.ID))
		}
		dto.ByCriteria = append(dto.ByCriteria, group)
	}
	return dto
}

func toHolidayDTOs(holidays []planner.Holiday) []HolidayDTO {
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, h := range holidays {
		dtos = append(dtos, HolidayDTO{
			ID:        h.ID,
			CompanyID: h.CompanyID,
			Date:      h.Date.String(),
			Name:      h.Name,
			Recurring: h.Recurring,
		})
	}
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].Date < dtos[j].Date })
	return dtos
}
