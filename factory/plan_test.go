package factory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/allocation-engine/planner"
)

const shopYAML = `
company: acme
calendar:
  hours_per_day: 8
  weekdays: {saturday: 4}
  holidays:
    - {date: "2024-01-10", name: Midweek}
  resources:
    w2: {hours_per_day: 4}
criteria:
  - id: skill
    name: Skill
    type: skill
    children:
      - {id: welder, name: Welder}
      - {id: painter}
resources:
  - id: w1
    name: Ana
    criteria: [{id: welder, start: "2024-01-01"}]
  - id: w2
    name: Ben
    criteria: [{id: welder, start: "2024-01-01", end: "2024-12-31"}]
  - id: m1
    name: Crane
    kind: machine
tasks:
  - id: hull
    name: Hull
    start: "2024-01-08"
    end: "2024-01-14"
    calculated_value: NUMBER_OF_HOURS
    allocations:
      - {resource: w1, resources_per_day: "1"}
  - id: survey
    name: Survey
    start: "2024-01-08"
    end: "2024-01-09"
    criteria: [welder]
    allocations:
      - {resource: w2, resources_per_day: "1", hours: 12}
`

func TestParseYAML_Plan(t *testing.T) {
	// GIVEN: A plan with a saturday override, a holiday and a part-timer
	f := NewPlanFactory()

	// WHEN: Parsing
	plan, err := f.ParseYAML([]byte(shopYAML))
	require.NoError(t, err)

	// THEN: The criteria tree is linked
	welder, ok := plan.Pool.Criterion("welder")
	require.True(t, ok)
	require.NotNil(t, welder.Parent)
	assert.Equal(t, planner.CriterionID("skill"), welder.Parent.ID)
	assert.Equal(t, "skill", welder.Type, "children inherit the type")
	painter, ok := plan.Pool.Criterion("painter")
	require.True(t, ok)
	assert.Equal(t, "painter", painter.Name, "name defaults to id")

	// AND: Resources carry kinds and periods
	crane, ok := plan.Pool.FindResource("m1")
	require.True(t, ok)
	assert.Equal(t, planner.KindMachine, crane.Kind)
	ben, ok := plan.Pool.FindResource("w2")
	require.True(t, ok)
	require.NotNil(t, ben.Satisfactions[0].Period.End)
	assert.Len(t, plan.Pool.FindWorkersMatching([]*planner.Criterion{welder}), 2)

	// AND: Holidays belong to the company with generated ids
	require.Len(t, plan.Holidays, 1)
	assert.Equal(t, "holiday-1", plan.Holidays[0].ID)
	assert.Equal(t, "acme", plan.Holidays[0].CompanyID)

	// AND: The hull task skips Wednesday and works half of Saturday
	require.Len(t, plan.Tasks, 2)
	hull := plan.Tasks[0]
	assert.Equal(t, planner.CalculatedNumberOfHours, hull.CalculatedValue())
	assert.Equal(t, 8+8+0+8+8+4, hull.AssignedHours())

	// AND: The survey task follows Ben's 4-hour workweek in END_DATE mode
	survey := plan.Tasks[1]
	assert.Equal(t, planner.CalculatedEndDate, survey.CalculatedValue())
	assert.Equal(t, 12, survey.AssignedHours())
	assert.Equal(t, planner.NewDate(2024, time.January, 12), survey.EndDate(), "Mon, Tue, Thu")
	assert.Equal(t, []*planner.Criterion{welder}, survey.Criteria())
}

func TestParseJSON_Plan(t *testing.T) {
	f := NewPlanFactory()
	doc := `{
		"criteria": [{"id": "crane", "name": "Crane"}],
		"resources": [{"id": "m1", "name": "Tower crane", "kind": "machine", "criteria": [{"id": "crane"}]}],
		"tasks": [{
			"id": "lift", "name": "Lift", "start": "2024-01-08", "end": "2024-01-10",
			"calculated_value": "NUMBER_OF_HOURS",
			"allocations": [{"resource": "m1", "resources_per_day": "0.5"}]
		}]
	}`

	plan, err := f.ParseJSON([]byte(doc))

	require.NoError(t, err)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, 8, plan.Tasks[0].AssignedHours(), "default 8-hour workweek")
	assert.Equal(t, 8, plan.Calendar.Capacity(nil, planner.NewDate(2024, time.January, 8)))
	assert.Equal(t, 0, plan.Calendar.Capacity(nil, planner.NewDate(2024, time.January, 13)))
}

func TestParseFile_PicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "plan.yml")
	jsonPath := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte(shopYAML), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"company": "acme"}`), 0o644))

	f := NewPlanFactory()
	fromYAML, err := f.ParseFile(yamlPath)
	require.NoError(t, err)
	assert.Len(t, fromYAML.Tasks, 2)

	fromJSON, err := f.ParseFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "acme", fromJSON.Company)

	_, err = f.ParseFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFromDoc_RuntimeHolidaySource(t *testing.T) {
	// GIVEN: A factory whose runtime holiday source knows nothing yet
	f := &PlanFactory{Holidays: planner.HolidaySet{}}

	// WHEN: Parsing a plan with a Wednesday holiday
	plan, err := f.ParseYAML([]byte(shopYAML))
	require.NoError(t, err)

	// THEN: Seed tasks saw the document's holiday, the runtime calendar asks the source
	assert.Equal(t, 36, plan.Tasks[0].AssignedHours())
	wednesday := planner.NewDate(2024, time.January, 10)
	ana, _ := plan.Pool.FindResource("w1")
	assert.Equal(t, 8, plan.Calendar.Capacity(ana, wednesday))
}

func TestFromDoc_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		expected error
	}{
		{
			name:     "unknown kind",
			doc:      `resources: [{id: x, kind: robot}]`,
			expected: planner.ErrIllegalArgument,
		},
		{
			name:     "unknown satisfied criterion",
			doc:      `resources: [{id: w1, criteria: [{id: ghost}]}]`,
			expected: planner.ErrCriterionNotFound,
		},
		{
			name:     "bad period",
			doc:      "criteria: [{id: c}]\nresources: [{id: w1, criteria: [{id: c, start: 'soon'}]}]",
			expected: planner.ErrIllegalArgument,
		},
		{
			name:     "allocation without resource or criteria",
			doc:      `tasks: [{name: t, start: "2024-01-08", end: "2024-01-09", allocations: [{hours: 4}]}]`,
			expected: planner.ErrIllegalArgument,
		},
		{
			name:     "allocation to unknown resource",
			doc:      `tasks: [{name: t, start: "2024-01-08", end: "2024-01-09", allocations: [{resource: ghost}]}]`,
			expected: planner.ErrResourceNotFound,
		},
		{
			name:     "unknown calculated value",
			doc:      `tasks: [{name: t, start: "2024-01-08", end: "2024-01-09", calculated_value: FOREVER}]`,
			expected: planner.ErrUnknownCalculatedValue,
		},
		{
			name:     "inverted task range",
			doc:      `tasks: [{name: t, start: "2024-01-09", end: "2024-01-08"}]`,
			expected: planner.ErrInvalidAllocationState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlanFactory().ParseYAML([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestFromDoc_InvalidDocuments(t *testing.T) {
	docs := map[string]string{
		"duplicate criterion": "criteria: [{id: a}, {id: a}]",
		"unknown weekday":     "calendar: {weekdays: {funday: 8}}",
		"negative hours":      "calendar: {hours_per_day: -1}",
		"bad holiday date":    "calendar: {holidays: [{date: tomorrow, name: x}]}",
		"not yaml":            "criteria: [",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := NewPlanFactory().ParseYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestToDoc_RoundTrip(t *testing.T) {
	f := NewPlanFactory()
	plan, err := f.ParseYAML([]byte(shopYAML))
	require.NoError(t, err)

	doc := f.ToDoc("acme", plan.Pool)
	again, err := f.FromDoc(doc)
	require.NoError(t, err)

	assert.Equal(t, doc, f.ToDoc("acme", again.Pool))
	require.Len(t, doc.Criteria, 1)
	assert.Len(t, doc.Criteria[0].Children, 2)
	assert.Len(t, doc.Resources, 3)
}
