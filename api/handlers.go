/*
handlers.go - HTTP API handlers for the allocation engine

PURPOSE:
  Exposes the planner via REST API. Handles HTTP request/response and JSON
  serialization, restores live tasks from the store, delegates to the
  engine, and saves the result under optimistic versioning.

ENDPOINTS:
  Criteria:
    GET    /api/criteria                         List criteria
    POST   /api/criteria                         Create criterion

  Resources:
    GET    /api/resources?name=&criteria=a,b     Search resources
    POST   /api/resources                        Create worker or machine
    GET    /api/resources/{id}                   Get resource
    DELETE /api/resources/{id}                   Remove from the pool

  Tasks:
    GET    /api/tasks                            List tasks
    POST   /api/tasks                            Create task
    GET    /api/tasks/{id}                       Get task with allocations
    DELETE /api/tasks/{id}                       Delete task
    GET    /api/tasks/{id}/aggregate             Hours by day and resource
    POST   /api/tasks/{id}/allocations           Allocate (mode in body)
    PUT    /api/tasks/{id}/allocations/{aid}     Modify one allocation
    DELETE /api/tasks/{id}/allocations/{aid}     Remove one allocation
    POST   /api/tasks/{id}/move                  Move the start date
    POST   /api/tasks/{id}/reassign              Reassign all allocations

  Admin:
    POST   /api/sweep                            Run the reassignment sweep

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Repo: Store plus the live ResourcePool
  - PlanFactory: Plan documents for scenarios and resource creation
  - calendar: Capacity source for every algorithm run

  Handlers run one at a time (mu). The pool and calendar are shared state and
  tasks are read-modify-written; concurrent writers from other processes
  are caught by the store's version check.

ERROR HANDLING:
  Errors are returned as JSON with a status derived from the error class:
  - 400: Contract violations, malformed input
  - 404: Task, resource or criterion not found
  - 409: Stale version (concurrent modification)
  - 422: Validation (duplicate worker, no replacement, unreachable hours,
         constraint violated)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo plans
  - scheduler.go: Background reassignment sweeper
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/allocation-engine/factory"
	"github.com/warp/allocation-engine/planner"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo        *planner.Repository
	PlanFactory *factory.PlanFactory
	Company     string

	mu       sync.Mutex
	calendar planner.Calendar

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a handler over store with an 8-hour workweek calendar.
// Holidays come from the store when it implements planner.HolidayCalendar.
func NewHandler(store planner.Store, company string) *Handler {
	h := &Handler{
		Repo:        planner.NewRepository(store),
		PlanFactory: factory.NewPlanFactory(),
		Company:     company,
	}
	if hc, ok := store.(planner.HolidayCalendar); ok {
		h.PlanFactory.Holidays = hc
	}
	h.calendar = h.defaultCalendar()
	return h
}

func (h *Handler) defaultCalendar() planner.Calendar {
	cal := planner.StandardWorkweek(8)
	cal.CompanyID = h.Company
	if hc, ok := h.Repo.Store.(planner.HolidayCalendar); ok {
		cal.Holidays = hc
	}
	return cal
}

// Load fills the pool from the store.
func (h *Handler) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Repo.Load(ctx)
}

// Calendar returns the calendar algorithms run against.
func (h *Handler) Calendar() planner.Calendar {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calendar
}

// ApplyPlan persists a parsed plan (criteria, resources, holidays, seed
// tasks) and switches to its calendar.
func (h *Handler) ApplyPlan(ctx context.Context, plan *factory.Plan) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.applyPlanLocked(ctx, plan)
}

func (h *Handler) applyPlanLocked(ctx context.Context, plan *factory.Plan) error {
	for _, c := range plan.Pool.ListCriteria() {
		if err := h.Repo.AddCriterion(ctx, c); err != nil {
			return err
		}
	}
	for _, r := range plan.Pool.Resources() {
		if err := h.Repo.AddResource(ctx, r); err != nil {
			return err
		}
	}
	if hs, ok := h.Repo.Store.(planner.HolidayStore); ok {
		for _, hol := range plan.Holidays {
			if err := hs.SaveHoliday(ctx, hol); err != nil {
				return fmt.Errorf("save holiday %s: %w", hol.Name, err)
			}
		}
	}
	if err := h.Repo.SaveTasks(ctx, plan.Tasks); err != nil {
		return err
	}
	if plan.Company != "" {
		h.Company = plan.Company
	}
	h.calendar = plan.Calendar
	return nil
}

// =============================================================================
// CRITERIA ENDPOINTS
// =============================================================================

// ListCriteria returns every criterion.
// GET /api/criteria
func (h *Handler) ListCriteria(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	criteria := h.Repo.Pool.ListCriteria()
	dtos := make([]CriterionDTO, 0, len(criteria))
	for _, c := range criteria {
		dtos = append(dtos, toCriterionDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCriterion adds a criterion, optionally under a parent.
// POST /api/criteria
func (h *Handler) CreateCriterion(w http.ResponseWriter, r *http.Request) {
	var req CriterionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	if req.Name == "" {
		req.Name = req.ID
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.Repo.Pool.Criterion(planner.CriterionID(req.ID)); exists {
		writeError(w, http.StatusConflict, "Criterion already exists", nil)
		return
	}
	var c *planner.Criterion
	if req.ParentID != "" {
		parent, ok := h.Repo.Pool.Criterion(planner.CriterionID(req.ParentID))
		if !ok {
			writeError(w, http.StatusNotFound, "Parent criterion not found", nil)
			return
		}
		c = parent.Child(planner.CriterionID(req.ID), req.Name)
		if req.Type != "" {
			c.Type = req.Type
		}
	} else {
		c = planner.NewCriterion(planner.CriterionID(req.ID), req.Name, req.Type)
	}

	if err := h.Repo.AddCriterion(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to save criterion", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCriterionDTO(c))
}

// =============================================================================
// RESOURCE ENDPOINTS
// =============================================================================

// ListResources searches resources by name substring and criteria.
// GET /api/resources?name=ana&criteria=welder,night
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var criteria []*planner.Criterion
	if raw := r.URL.Query().Get("criteria"); raw != "" {
		ids := make([]planner.CriterionID, 0)
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, planner.CriterionID(id))
			}
		}
		var err error
		if criteria, err = h.Repo.Pool.CriteriaByID(ids); err != nil {
			writeDomainError(w, "Unknown criterion", err)
			return
		}
	}

	resources := h.Repo.Pool.FindResources(r.URL.Query().Get("name"), criteria)
	dtos := make([]ResourceDTO, 0, len(resources))
	for _, res := range resources {
		dtos = append(dtos, toResourceDTO(res))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateResource adds a worker or machine.
// POST /api/resources
func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.Repo.Pool.FindResource(planner.ResourceID(req.ID)); exists {
		writeError(w, http.StatusConflict, "Resource already exists", nil)
		return
	}
	res, err := factory.ParseResource(h.Repo.Pool, req)
	if err != nil {
		writeDomainError(w, "Invalid resource", err)
		return
	}
	if err := h.Repo.AddResource(r.Context(), res); err != nil {
		writeDomainError(w, "Failed to save resource", err)
		return
	}
	writeJSON(w, http.StatusCreated, toResourceDTO(res))
}

// GetResource returns a single resource.
// GET /api/resources/{id}
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	res, ok := h.Repo.Pool.FindResource(planner.ResourceID(chi.URLParam(r, "id")))
	if !ok {
		writeError(w, http.StatusNotFound, "Resource not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toResourceDTO(res))
}

// DeleteResource removes a resource from the pool. Tasks still bound to it
// are picked up by the reassignment sweep.
// DELETE /api/resources/{id}
func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Repo.RemoveResource(r.Context(), planner.ResourceID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete resource", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TASK ENDPOINTS
// =============================================================================

// ListTasks returns every task.
// GET /api/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	tasks, err := h.Repo.Tasks(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to load tasks", err)
		return
	}
	dtos := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, toTaskDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTask creates an unallocated task.
// POST /api/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := planner.ParseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)", err)
		return
	}
	end, err := planner.ParseDate(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date (use YYYY-MM-DD)", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := planner.NewTask(planner.TaskID(req.ID), req.Name, start, end)
	if err != nil {
		writeDomainError(w, "Invalid task", err)
		return
	}
	if req.CalculatedValue != "" {
		mode, err := planner.ParseCalculatedValue(req.CalculatedValue)
		if err == nil {
			err = t.SetCalculatedValue(mode)
		}
		if err != nil {
			writeDomainError(w, "Invalid calculated value", err)
			return
		}
	}
	if len(req.Criteria) > 0 {
		ids := make([]planner.CriterionID, len(req.Criteria))
		for i, id := range req.Criteria {
			ids[i] = planner.CriterionID(id)
		}
		criteria, err := h.Repo.Pool.CriteriaByID(ids)
		if err != nil {
			writeDomainError(w, "Unknown criterion", err)
			return
		}
		t.SetCriteria(criteria)
	}
	if err := t.SetHoursSpecifiedAtOrder(req.HoursAtOrder); err != nil {
		writeDomainError(w, "Invalid hours at order", err)
		return
	}

	if err := h.Repo.SaveTask(r.Context(), t); err != nil {
		writeDomainError(w, "Failed to save task", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(t))
}

// GetTask returns a task with its allocations.
// GET /api/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.Repo.Task(r.Context(), taskID(r))
	if err != nil {
		writeDomainError(w, "Failed to load task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(t))
}

// DeleteTask removes a task.
// DELETE /api/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Repo.DeleteTask(r.Context(), taskID(r)); err != nil {
		writeDomainError(w, "Failed to delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAggregate summarizes the task's primary assignments.
// GET /api/tasks/{id}/aggregate
func (h *Handler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.Repo.Task(r.Context(), taskID(r))
	if err != nil {
		writeDomainError(w, "Failed to load task", err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTO(t))
}

// =============================================================================
// ALLOCATION ENDPOINTS
// =============================================================================

// Allocate adds allocations to a task in the requested mode.
// POST /api/tasks/{id}/allocations
//
// Request body:
//
//	{"mode": "NUMBER_OF_HOURS", "version": 1, "allocations": [
//	  {"resource": "w1", "resources_per_day": "1"},
//	  {"criteria": ["welder"], "resources_per_day": "0.5", "derive": true}]}
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Allocations) == 0 {
		writeError(w, http.StatusBadRequest, "At least one allocation is required", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.mutateTask(r.Context(), taskID(r), req.Version, func(t *planner.Task) error {
		mode, err := parseMode(req.Mode, t.CalculatedValue())
		if err != nil {
			return err
		}
		requests := make([]planner.AllocationRequest, 0, len(req.Allocations))
		for _, ad := range req.Allocations {
			ar, err := factory.ParseAllocationRequest(h.Repo.Pool, ad)
			if err != nil {
				return err
			}
			requests = append(requests, ar)
		}
		_, err = t.Allocate(h.calendar, h.Repo.Pool, mode, requests...)
		return err
	})
	if err != nil {
		writeDomainError(w, "Allocation failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(t))
}

// ModifyAllocation recomputes one allocation with new parameters.
// PUT /api/tasks/{id}/allocations/{allocationID}
func (h *Handler) ModifyAllocation(w http.ResponseWriter, r *http.Request) {
	var req ModifyAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Hours < 0 {
		writeError(w, http.StatusBadRequest, "hours must not be negative", nil)
		return
	}
	change := planner.AllocationChange{
		ID:    planner.AllocationID(chi.URLParam(r, "allocationID")),
		Hours: req.Hours,
	}
	if req.ResourcesPerDay != "" {
		rpd, err := planner.ParseResourcesPerDay(req.ResourcesPerDay)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid resources_per_day", err)
			return
		}
		change.ResourcesPerDay = rpd
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.mutateTask(r.Context(), taskID(r), req.Version, func(t *planner.Task) error {
		mode, err := parseMode(req.Mode, t.CalculatedValue())
		if err != nil {
			return err
		}
		return t.ModifyAllocations(h.calendar, h.Repo.Pool, mode, change)
	})
	if err != nil {
		writeDomainError(w, "Modification failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(t))
}

// RemoveAllocation detaches one allocation from its task.
// DELETE /api/tasks/{id}/allocations/{allocationID}?version=3
func (h *Handler) RemoveAllocation(w http.ResponseWriter, r *http.Request) {
	version, err := queryVersion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid version", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	id := planner.AllocationID(chi.URLParam(r, "allocationID"))
	t, err := h.mutateTask(r.Context(), taskID(r), version, func(t *planner.Task) error {
		a, ok := t.AllocationByID(id)
		if !ok {
			return fmt.Errorf("%w: allocation %s is not part of task %s", planner.ErrInconsistentModification, id, t.ID())
		}
		return t.RemoveResourceAllocation(a)
	})
	if err != nil {
		writeDomainError(w, "Removal failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(t))
}

// MoveTask records an explicit move and shifts the allocations.
// POST /api/tasks/{id}/move
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	var req MoveTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := planner.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.mutateTask(r.Context(), taskID(r), req.Version, func(t *planner.Task) error {
		t.ExplicitlyMoved(date)
		return t.MoveTo(h.calendar, date)
	})
	if err != nil {
		writeDomainError(w, "Move failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(t))
}

// ReassignTask recomputes every allocation of a task.
// POST /api/tasks/{id}/reassign
func (h *Handler) ReassignTask(w http.ResponseWriter, r *http.Request) {
	var req ReassignRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := h.mutateTask(r.Context(), taskID(r), req.Version, func(t *planner.Task) error {
		switch req.Strategy {
		case "same":
			return t.MoveAllocations(h.calendar)
		case "", "new_resources":
			return t.ReassignAllocationsWithNewResources(h.calendar, h.Repo.Pool)
		default:
			return fmt.Errorf("%w: unknown strategy %q", planner.ErrIllegalArgument, req.Strategy)
		}
	})
	if err != nil {
		writeDomainError(w, "Reassignment failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(t))
}

// =============================================================================
// SWEEP
// =============================================================================

// TriggerSweep runs the reassignment sweep now.
// POST /api/sweep
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Sweep(r.Context())
	if err != nil {
		writeDomainError(w, "Sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Sweep reassigns every task bound to a resource that left the pool. Tasks
// that cannot be reassigned are reported and left as they are; the others
// are saved together.
func (h *Handler) Sweep(ctx context.Context) (SweepResultDTO, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := SweepResultDTO{Reassigned: []string{}, Failed: []string{}}
	tasks, err := h.Repo.Tasks(ctx)
	if err != nil {
		return result, err
	}
	result.Checked = len(tasks)

	var changed []*planner.Task
	for _, t := range tasks {
		if !h.boundToMissingResource(t) {
			continue
		}
		if err := t.ReassignAllocationsWithNewResources(h.calendar, h.Repo.Pool); err != nil {
			log.Printf("[Sweeper] Task %s not reassigned: %v", t.ID(), err)
			result.Failed = append(result.Failed, string(t.ID()))
			continue
		}
		changed = append(changed, t)
	}
	if len(changed) == 0 {
		return result, nil
	}
	if err := h.Repo.SaveTasks(ctx, changed); err != nil {
		return result, err
	}
	for _, t := range changed {
		result.Reassigned = append(result.Reassigned, string(t.ID()))
	}
	return result, nil
}

func (h *Handler) boundToMissingResource(t *planner.Task) bool {
	for _, a := range t.SpecificAllocations() {
		res := a.Resource()
		if res == nil {
			continue
		}
		if current, ok := h.Repo.Pool.FindResource(res.ID); !ok || current != res {
			return true
		}
	}
	return false
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

func (h *Handler) holidayStore(w http.ResponseWriter) (planner.HolidayStore, bool) {
	hs, ok := h.Repo.Store.(planner.HolidayStore)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not keep holidays", nil)
	}
	return hs, ok
}

// ListHolidays returns the holidays visible to a company.
// GET /api/holidays?company_id=acme
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.holidayStore(w)
	if !ok {
		return
	}
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		companyID = h.Company
	}
	holidays, err := hs.LoadHolidays(r.Context(), companyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayDTOs(holidays))
}

// CreateHoliday adds a holiday. Subsequent allocations see it immediately;
// existing ones change on their next recomputation.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.holidayStore(w)
	if !ok {
		return
	}
	var req HolidayDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Date == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Date and name are required", nil)
		return
	}
	date, err := planner.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	holiday := planner.Holiday{
		ID:        req.ID,
		CompanyID: req.CompanyID,
		Date:      date,
		Name:      req.Name,
		Recurring: req.Recurring,
	}
	if holiday.ID == "" {
		holiday.ID = uuid.New().String()
	}
	if err := hs.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTOs([]planner.Holiday{holiday})[0])
}

// DeleteHoliday removes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	hs, ok := h.holidayStore(w)
	if !ok {
		return
	}
	if err := hs.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

// mutateTask restores a task, checks the client's version, applies fn and
// saves. Nothing is saved when fn fails.
func (h *Handler) mutateTask(ctx context.Context, id planner.TaskID, version *int, fn func(t *planner.Task) error) (*planner.Task, error) {
	t, err := h.Repo.Task(ctx, id)
	if err != nil {
		return nil, err
	}
	if version != nil && *version != t.Version() {
		return nil, fmt.Errorf("task %s is at version %d, request was for %d: %w",
			id, t.Version(), *version, planner.ErrConcurrentModification)
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := h.Repo.SaveTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func taskID(r *http.Request) planner.TaskID {
	return planner.TaskID(chi.URLParam(r, "id"))
}

func parseMode(s string, fallback planner.CalculatedValue) (planner.CalculatedValue, error) {
	if s == "" {
		return fallback, nil
	}
	return planner.ParseCalculatedValue(s)
}

func queryVersion(r *http.Request) (*int, error) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// statusFor maps engine error classes onto HTTP statuses.
func statusFor(err error) int {
	var syntaxErr *json.SyntaxError
	switch {
	case planner.IsNotFound(err):
		return http.StatusNotFound
	case planner.IsRetryable(err):
		return http.StatusConflict
	case planner.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case planner.IsContractViolation(err), errors.As(err, &syntaxErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s: %v", message, err)
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
