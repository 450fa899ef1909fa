/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Criteria and resources are created
	- Seed tasks are allocated with the scenario's calendar
	- Follow-up steps (a departing welder) leave work for the sweep

These tests double as integration tests over the sqlite store.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/allocation-engine/planner"
)

func TestScenarios_List(t *testing.T) {
	s := setupTestServer(t)

	var list []ScenarioDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/scenarios", nil, &list))

	ids := make([]string, 0, len(list))
	for _, sc := range list {
		ids = append(ids, sc.ID)
		_, ok := scenarioPlans[sc.ID]
		assert.True(t, ok, "scenario %s has a plan", sc.ID)
	}
	assert.Equal(t, []string{"shipyard", "deadline", "staffing", "departure"}, ids)
}

func TestScenario_Shipyard(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.handler.LoadScenarioByID(context.Background(), "shipyard"))

	var lift TaskDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/tasks/lift", nil, &lift))
	assert.Equal(t, 8, lift.AssignedHours, "half a crane for two days")

	var hull TaskDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/tasks/hull", nil, &hull))
	assert.Equal(t, 80, hull.AssignedHours, "Ana plus one welder-day every weekday")
	require.Len(t, hull.Allocations, 2)

	var resources []ResourceDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/resources", nil, &resources))
	assert.Len(t, resources, 5)
}

func TestScenario_DeadlineSkipsHolidays(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.handler.LoadScenarioByID(context.Background(), "deadline"))

	var paint TaskDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/tasks/paint", nil, &paint))

	// 23, 24, 27, 30, 31 December
	assert.Equal(t, 40, paint.AssignedHours)
	assert.Equal(t, "2025-01-01", paint.End)

	// Recurring Christmas applies to later years through the store
	cal := s.handler.Calendar()
	assert.Equal(t, 0, cal.Capacity(nil, planner.NewDate(2026, time.December, 25)))
	assert.Equal(t, 8, cal.Capacity(nil, planner.NewDate(2026, time.December, 28)))
}

func TestScenario_StaffingComputesRatios(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.handler.LoadScenarioByID(context.Background(), "staffing"))

	var survey TaskDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/tasks/survey", nil, &survey))

	assert.Equal(t, "RESOURCES_PER_DAY", survey.CalculatedValue)
	assert.Equal(t, 30, survey.AssignedHours)
	assert.Equal(t, 20, allocationFor(t, survey, "w3").AssignedHours)
	assert.Equal(t, 10, allocationFor(t, survey, "w4").AssignedHours, "part-timer gets the same hours")
}

func TestScenario_DepartureThenSweep(t *testing.T) {
	s := setupTestServer(t)

	// GIVEN: Ben left after being put on the refit
	var resp map[string]string
	require.Equal(t, http.StatusOK, s.do("POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "departure"}, &resp))
	assert.Equal(t, "departure", resp["scenario"])
	assert.Equal(t, http.StatusNotFound, s.do("GET", "/api/resources/w2", nil, nil))

	var current ScenarioDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/scenarios/current", nil, &current))
	assert.Equal(t, "Departure", current.Name)

	// WHEN: Running the sweep
	var result SweepResultDTO
	require.Equal(t, http.StatusOK, s.do("POST", "/api/sweep", nil, &result))

	// THEN: The refit moves to Ana with the same hours
	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, []string{"refit"}, result.Reassigned)
	assert.Empty(t, result.Failed)

	var refit TaskDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/tasks/refit", nil, &refit))
	require.Len(t, refit.Allocations, 1)
	assert.Equal(t, "w1", refit.Allocations[0].ResourceID)
	assert.Equal(t, 40, refit.AssignedHours)
	assert.Equal(t, 2, refit.Version)

	// AND: A second sweep has nothing to do
	require.Equal(t, http.StatusOK, s.do("POST", "/api/sweep", nil, &result))
	assert.Empty(t, result.Reassigned)
}

func TestScenario_SweepWithoutReplacement(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.handler.LoadScenarioByID(ctx, "departure"))

	// Ana leaves too
	require.Equal(t, http.StatusNoContent, s.do("DELETE", "/api/resources/w1", nil, nil))

	result, err := s.handler.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"refit"}, result.Failed)
	assert.Empty(t, result.Reassigned)

	var refit TaskDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/tasks/refit", nil, &refit))
	assert.Equal(t, 1, refit.Version, "failed tasks are not saved")
}

func TestReassignmentSweeper(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.handler.LoadScenarioByID(context.Background(), "departure"))

	sweeper := NewReassignmentSweeper(s.handler)
	sweeper.CheckInterval = time.Hour

	// Start runs one sweep immediately; Stop waits for it
	sweeper.Start()
	sweeper.Stop()
	assert.Equal(t, []string{"refit"}, sweeper.LastResult().Reassigned)

	result := sweeper.RunNow()
	assert.Equal(t, 1, result.Checked)
	assert.Empty(t, result.Reassigned)
}

func TestReassignmentSweeper_Disabled(t *testing.T) {
	s := setupTestServer(t)
	sweeper := NewReassignmentSweeper(s.handler)
	sweeper.Enabled = false

	sweeper.Start()
	sweeper.Stop()

	assert.Zero(t, sweeper.LastResult().Checked)
}

func TestScenarios_LoadErrorsAndReset(t *testing.T) {
	s := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do("POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "ghost"}, nil))

	require.NoError(t, s.handler.LoadScenarioByID(context.Background(), "shipyard"))
	require.Equal(t, http.StatusOK, s.do("POST", "/api/scenarios/reset", nil, nil))

	var tasks []TaskDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/tasks", nil, &tasks))
	assert.Empty(t, tasks)
	var criteria []CriterionDTO
	require.Equal(t, http.StatusOK, s.do("GET", "/api/criteria", nil, &criteria))
	assert.Empty(t, criteria)

	rec := s.do("GET", "/api/scenarios/current", nil, nil)
	assert.Equal(t, http.StatusOK, rec)
}
