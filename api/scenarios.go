/*
scenarios.go - Demo plans for testing and demonstrations

PURPOSE:
  Provides pre-built plan documents that populate the store with realistic
  data for demos. Each scenario exercises one calculation mode or engine
  feature end to end: criteria, resources, holidays and seeded tasks.

AVAILABLE SCENARIOS:
  shipyard:   NUMBER_OF_HOURS, a specific welder plus a generic welder
              allocation with derived per-worker allocations
  deadline:   END_DATE across Christmas holidays
  staffing:   RESOURCES_PER_DAY with a part-time worker calendar
  departure:  A welder leaves; the sweep reassigns the task to a colleague

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Parse the plan YAML via the factory (seed tasks are allocated there)
 3. Persist criteria, resources, holidays and tasks
 4. Run the scenario's follow-up step, if any

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "shipyard"}

NOTE:
	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - factory/plan.go: Plan document schema
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/allocation-engine/planner"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "shipyard",
		Name:        "Shipyard",
		Description: "Fixed dates, hours computed: specific and generic welders",
		Category:    "number_of_hours",
	},
	{
		ID:          "deadline",
		Name:        "Deadline",
		Description: "Fixed hours, end date computed across holidays",
		Category:    "end_date",
	},
	{
		ID:          "staffing",
		Name:        "Staffing",
		Description: "Fixed dates and hours, resources per day computed",
		Category:    "resources_per_day",
	},
	{
		ID:          "departure",
		Name:        "Departure",
		Description: "A welder leaves the pool; the sweep reassigns their task",
		Category:    "reassignment",
	},
}

const basePlan = `
company: acme
criteria:
  - id: skill
    name: Skill
    type: skill
    children:
      - {id: welder, name: Welder}
      - {id: painter, name: Painter}
  - id: equipment
    name: Equipment
    children:
      - {id: crane, name: Crane}
resources:
  - id: w1
    name: Ana
    criteria: [{id: welder, start: "2024-01-01"}]
  - id: w2
    name: Ben
    criteria: [{id: welder, start: "2024-01-01"}]
  - id: w3
    name: Cleo
    criteria: [{id: painter}]
  - id: w4
    name: Dev
    criteria: [{id: painter}]
  - id: m1
    name: Tower crane
    kind: machine
    criteria: [{id: crane}]
`

var scenarioPlans = map[string]string{
	"shipyard": basePlan + `
calendar:
  hours_per_day: 8
tasks:
  - id: hull
    name: Hull welding
    start: "2024-01-08"
    end: "2024-01-13"
    calculated_value: NUMBER_OF_HOURS
    allocations:
      - {resource: w1, resources_per_day: "1"}
      - {criteria: [welder], resources_per_day: "1", derive: true}
  - id: lift
    name: Crane lift
    start: "2024-01-08"
    end: "2024-01-10"
    calculated_value: NUMBER_OF_HOURS
    allocations:
      - {resource: m1, resources_per_day: "0.5"}
`,
	"deadline": basePlan + `
calendar:
  hours_per_day: 8
  holidays:
    - {id: xmas, date: "2024-12-25", name: Christmas, recurring: true}
    - {id: boxing, date: "2024-12-26", name: Boxing Day}
tasks:
  - id: paint
    name: Deck painting
    start: "2024-12-23"
    end: "2024-12-24"
    calculated_value: END_DATE
    allocations:
      - {resource: w3, resources_per_day: "1", hours: 40}
`,
	"staffing": basePlan + `
calendar:
  hours_per_day: 8
  resources:
    w4: {hours_per_day: 4}
tasks:
  - id: survey
    name: Hull survey
    start: "2024-02-05"
    end: "2024-02-10"
    calculated_value: RESOURCES_PER_DAY
    allocations:
      - {resource: w3, hours: 20}
      - {resource: w4, hours: 10}
`,
	"departure": basePlan + `
calendar:
  hours_per_day: 8
tasks:
  - id: refit
    name: Engine room refit
    start: "2024-03-04"
    end: "2024-03-09"
    calculated_value: NUMBER_OF_HOURS
    criteria: [welder]
    allocations:
      - {resource: w2, resources_per_day: "1"}
`,
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns all available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, ok := scenarioPlans[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.resetLocked(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type resetter interface {
	Reset(ctx context.Context) error
}

func (h *Handler) resetLocked(ctx context.Context) error {
	rs, ok := h.Repo.Store.(resetter)
	if !ok {
		return fmt.Errorf("store cannot be reset")
	}
	if err := rs.Reset(ctx); err != nil {
		return err
	}
	h.Repo.Pool = planner.NewResourcePool()
	h.calendar = h.defaultCalendar()
	h.currentScenario = ""
	return nil
}

// LoadScenarioByID resets the store and loads a scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	doc, ok := scenarioPlans[id]
	if !ok {
		return fmt.Errorf("unknown scenario %q", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.resetLocked(ctx); err != nil {
		return err
	}
	plan, err := h.PlanFactory.ParseYAML([]byte(doc))
	if err != nil {
		return err
	}
	if err := h.applyPlanLocked(ctx, plan); err != nil {
		return err
	}

	if id == "departure" {
		if err := h.Repo.RemoveResource(ctx, "w2"); err != nil {
			return err
		}
	}

	h.currentScenario = id
	return nil
}
