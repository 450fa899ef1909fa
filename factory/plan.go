/*
Package factory provides JSON/YAML to Go plan conversion.

PURPOSE:
  Converts plan documents into a planner.ResourcePool, a planner.Calendar
  and seed tasks. Plans let an operator describe the workforce (criteria
  tree, workers, machines, working hours, holidays) without code changes.

WHY DOCUMENTS?
  - Non-developers can describe the workforce
  - The same document seeds the server (-plan) and the demo scenarios
  - Version control for plan definitions

SCHEMA (YAML shown; JSON uses the same keys):
  company: acme
  calendar:
    hours_per_day: 8            # Monday to Friday
    weekdays: {saturday: 4}     # overrides per weekday
    holidays:
      - {id: xmas, date: 2024-12-25, name: Christmas, recurring: true}
    resources:
      w3: {hours_per_day: 4}    # per-resource workweek
  criteria:
    - id: skill
      name: Skill
      children:
        - {id: welder, name: Welder}
  resources:
    - id: w1
      name: Ana
      kind: worker
      criteria:
        - {id: welder, start: 2024-01-01}
  tasks:
    - id: hull
      name: Hull
      start: 2024-01-08
      end: 2024-01-13
      calculated_value: NUMBER_OF_HOURS
      allocations:
        - {resource: w1, resources_per_day: "1"}
        - {criteria: [welder], resources_per_day: "0.5", derive: true}

USAGE:
  f := factory.NewPlanFactory()
  plan, err := f.ParseFile("plan.yaml")
  pool, cal := plan.Pool, plan.Calendar

SEE ALSO:
  - planner/pool.go: ResourcePool
  - planner/calendar.go: WorkweekCalendar, ResourceCalendars
  - api/scenarios.go: Demo plans
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/warp/allocation-engine/planner"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// PlanDoc is the document representation of a plan.
type PlanDoc struct {
	Company   string         `json:"company,omitempty" yaml:"company,omitempty"`
	Calendar  CalendarDoc    `json:"calendar" yaml:"calendar"`
	Criteria  []CriterionDoc `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	Resources []ResourceDoc  `json:"resources,omitempty" yaml:"resources,omitempty"`
	Tasks     []TaskDoc      `json:"tasks,omitempty" yaml:"tasks,omitempty"`
}

// CalendarDoc describes working hours.
type CalendarDoc struct {
	HoursPerDay int                    `json:"hours_per_day,omitempty" yaml:"hours_per_day,omitempty"`
	Weekdays    map[string]int         `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
	Holidays    []HolidayDoc           `json:"holidays,omitempty" yaml:"holidays,omitempty"`
	Resources   map[string]CalendarDoc `json:"resources,omitempty" yaml:"resources,omitempty"`
}

type HolidayDoc struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Date      string `json:"date" yaml:"date"`
	Name      string `json:"name" yaml:"name"`
	Recurring bool   `json:"recurring,omitempty" yaml:"recurring,omitempty"`
}

// CriterionDoc is a node of the criteria tree.
type CriterionDoc struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Type     string         `json:"type,omitempty" yaml:"type,omitempty"`
	Children []CriterionDoc `json:"children,omitempty" yaml:"children,omitempty"`
}

type ResourceDoc struct {
	ID       string            `json:"id" yaml:"id"`
	Name     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Kind     string            `json:"kind,omitempty" yaml:"kind,omitempty"` // worker (default), machine
	Criteria []SatisfactionDoc `json:"criteria,omitempty" yaml:"criteria,omitempty"`
}

// SatisfactionDoc binds a resource to a criterion. Empty start/end leave
// the period open.
type SatisfactionDoc struct {
	ID    string `json:"id" yaml:"id"`
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	End   string `json:"end,omitempty" yaml:"end,omitempty"`
}

type TaskDoc struct {
	ID              string          `json:"id,omitempty" yaml:"id,omitempty"`
	Name            string          `json:"name" yaml:"name"`
	Start           string          `json:"start" yaml:"start"`
	End             string          `json:"end" yaml:"end"`
	CalculatedValue string          `json:"calculated_value,omitempty" yaml:"calculated_value,omitempty"`
	Criteria        []string        `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	HoursAtOrder    int             `json:"hours_at_order,omitempty" yaml:"hours_at_order,omitempty"`
	Allocations     []AllocationDoc `json:"allocations,omitempty" yaml:"allocations,omitempty"`
}

type AllocationDoc struct {
	Resource        string   `json:"resource,omitempty" yaml:"resource,omitempty"`
	Criteria        []string `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	ResourcesPerDay string   `json:"resources_per_day,omitempty" yaml:"resources_per_day,omitempty"`
	Hours           int      `json:"hours,omitempty" yaml:"hours,omitempty"`
	Derive          bool     `json:"derive,omitempty" yaml:"derive,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// Plan is a parsed document ready for the engine.
type Plan struct {
	Company  string
	Pool     *planner.ResourcePool
	Calendar planner.Calendar
	Holidays []planner.Holiday
	Tasks    []*planner.Task
}

// PlanFactory converts plan documents to Go structs.
type PlanFactory struct {
	// Holidays, when set, replaces the document's holiday list as the
	// calendar's source (e.g. the sqlite store).
	Holidays planner.HolidayCalendar
}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParseFile reads a plan, choosing YAML or JSON by extension.
func (f *PlanFactory) ParseFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return f.ParseYAML(data)
	default:
		return f.ParseJSON(data)
	}
}

// ParseJSON parses a JSON plan document.
func (f *PlanFactory) ParseJSON(data []byte) (*Plan, error) {
	var doc PlanDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid plan JSON: %w", err)
	}
	return f.FromDoc(doc)
}

// ParseYAML parses a YAML plan document.
func (f *PlanFactory) ParseYAML(data []byte) (*Plan, error) {
	var doc PlanDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid plan YAML: %w", err)
	}
	return f.FromDoc(doc)
}

// FromDoc converts a parsed document. Seed tasks are allocated against the
// plan's own pool and calendar.
func (f *PlanFactory) FromDoc(doc PlanDoc) (*Plan, error) {
	plan := &Plan{Company: doc.Company, Pool: planner.NewResourcePool()}

	for _, c := range doc.Criteria {
		if err := addCriterionTree(plan.Pool, c, nil); err != nil {
			return nil, err
		}
	}
	for _, rd := range doc.Resources {
		r, err := ParseResource(plan.Pool, rd)
		if err != nil {
			return nil, err
		}
		plan.Pool.Add(r)
	}

	holidays, err := parseHolidays(doc.Company, doc.Calendar.Holidays)
	if err != nil {
		return nil, err
	}
	plan.Holidays = holidays
	// seed tasks see the document's holidays even when the runtime source
	// has not stored them yet
	seedCal, err := parseCalendar(doc.Company, doc.Calendar, planner.HolidaySet(holidays))
	if err != nil {
		return nil, err
	}
	plan.Calendar = seedCal
	if f.Holidays != nil {
		if plan.Calendar, err = parseCalendar(doc.Company, doc.Calendar, f.Holidays); err != nil {
			return nil, err
		}
	}

	for _, td := range doc.Tasks {
		t, err := parseTask(plan.Pool, seedCal, td)
		if err != nil {
			return nil, err
		}
		plan.Tasks = append(plan.Tasks, t)
	}
	return plan, nil
}

// ToDoc converts a pool back into document form (criteria and resources).
func (f *PlanFactory) ToDoc(company string, pool *planner.ResourcePool) PlanDoc {
	doc := PlanDoc{Company: company}

	children := make(map[planner.CriterionID][]*planner.Criterion)
	var roots []*planner.Criterion
	for _, c := range pool.ListCriteria() {
		if c.Parent == nil {
			roots = append(roots, c)
			continue
		}
		children[c.Parent.ID] = append(children[c.Parent.ID], c)
	}
	var toDoc func(c *planner.Criterion) CriterionDoc
	toDoc = func(c *planner.Criterion) CriterionDoc {
		cd := CriterionDoc{ID: string(c.ID), Name: c.Name, Type: c.Type}
		for _, child := range children[c.ID] {
			cd.Children = append(cd.Children, toDoc(child))
		}
		return cd
	}
	for _, root := range roots {
		doc.Criteria = append(doc.Criteria, toDoc(root))
	}

	for _, r := range pool.Resources() {
		rd := ResourceDoc{ID: string(r.ID), Name: r.Name, Kind: string(r.Kind)}
		for _, s := range r.Satisfactions {
			sd := SatisfactionDoc{ID: string(s.Criterion.ID)}
			if !s.Period.Start.IsZero() {
				sd.Start = s.Period.Start.String()
			}
			if s.Period.End != nil {
				sd.End = s.Period.End.String()
			}
			rd.Criteria = append(rd.Criteria, sd)
		}
		doc.Resources = append(doc.Resources, rd)
	}
	return doc
}

// =============================================================================
// PARSERS
// =============================================================================

func addCriterionTree(pool *planner.ResourcePool, cd CriterionDoc, parent *planner.Criterion) error {
	if cd.ID == "" {
		return fmt.Errorf("criterion without id under %v", parent)
	}
	if _, exists := pool.Criterion(planner.CriterionID(cd.ID)); exists {
		return fmt.Errorf("duplicate criterion %q", cd.ID)
	}
	name := cd.Name
	if name == "" {
		name = cd.ID
	}
	var c *planner.Criterion
	if parent == nil {
		c = planner.NewCriterion(planner.CriterionID(cd.ID), name, cd.Type)
	} else {
		c = parent.Child(planner.CriterionID(cd.ID), name)
		if cd.Type != "" {
			c.Type = cd.Type
		}
	}
	pool.AddCriterion(c)
	for _, child := range cd.Children {
		if err := addCriterionTree(pool, child, c); err != nil {
			return err
		}
	}
	return nil
}

// ParseResource builds a resource whose criteria are resolved against pool.
func ParseResource(pool *planner.ResourcePool, rd ResourceDoc) (*planner.Resource, error) {
	if rd.ID == "" {
		return nil, fmt.Errorf("%w: resource without id", planner.ErrIllegalArgument)
	}
	var r *planner.Resource
	switch strings.ToLower(rd.Kind) {
	case "", "worker":
		r = planner.NewWorker(planner.ResourceID(rd.ID), rd.Name)
	case "machine":
		r = planner.NewMachine(planner.ResourceID(rd.ID), rd.Name)
	default:
		return nil, fmt.Errorf("%w: resource %s: unknown kind %q", planner.ErrIllegalArgument, rd.ID, rd.Kind)
	}
	for _, sd := range rd.Criteria {
		c, ok := pool.Criterion(planner.CriterionID(sd.ID))
		if !ok {
			return nil, fmt.Errorf("resource %s: %w: %s", rd.ID, planner.ErrCriterionNotFound, sd.ID)
		}
		period, err := parsePeriod(sd.Start, sd.End)
		if err != nil {
			return nil, fmt.Errorf("resource %s, criterion %s: %w", rd.ID, sd.ID, err)
		}
		r.Satisfy(c, period)
	}
	return r, nil
}

func parsePeriod(start, end string) (planner.Period, error) {
	var p planner.Period
	if start != "" {
		d, err := planner.ParseDate(start)
		if err != nil {
			return p, fmt.Errorf("%w: %v", planner.ErrIllegalArgument, err)
		}
		p.Start = d
	}
	if end != "" {
		d, err := planner.ParseDate(end)
		if err != nil {
			return p, fmt.Errorf("%w: %v", planner.ErrIllegalArgument, err)
		}
		p.End = &d
	}
	return p, p.Validate()
}

func parseHolidays(company string, docs []HolidayDoc) ([]planner.Holiday, error) {
	holidays := make([]planner.Holiday, 0, len(docs))
	for i, hd := range docs {
		d, err := planner.ParseDate(hd.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", hd.Name, err)
		}
		id := hd.ID
		if id == "" {
			id = fmt.Sprintf("holiday-%d", i+1)
		}
		holidays = append(holidays, planner.Holiday{
			ID:        id,
			CompanyID: company,
			Date:      d,
			Name:      hd.Name,
			Recurring: hd.Recurring,
		})
	}
	return holidays, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWorkweek(company string, cd CalendarDoc, holidays planner.HolidayCalendar) (*planner.WorkweekCalendar, error) {
	hours := cd.HoursPerDay
	if hours == 0 && len(cd.Weekdays) == 0 {
		hours = 8
	}
	if hours < 0 {
		return nil, fmt.Errorf("hours_per_day must not be negative: %d", hours)
	}
	cal := planner.StandardWorkweek(hours)
	cal.CompanyID = company
	cal.Holidays = holidays

	names := make([]string, 0, len(cd.Weekdays))
	for name := range cd.Weekdays {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		wd, ok := weekdays[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		if cd.Weekdays[name] < 0 {
			return nil, fmt.Errorf("%s hours must not be negative", name)
		}
		cal.Hours[wd] = cd.Weekdays[name]
	}
	return cal, nil
}

func parseCalendar(company string, cd CalendarDoc, holidays planner.HolidayCalendar) (planner.Calendar, error) {
	base, err := parseWorkweek(company, cd, holidays)
	if err != nil {
		return nil, err
	}
	if len(cd.Resources) == 0 {
		return base, nil
	}
	cals := &planner.ResourceCalendars{
		Default:    base,
		ByResource: make(map[planner.ResourceID]planner.Calendar, len(cd.Resources)),
	}
	for id, rd := range cd.Resources {
		rc, err := parseWorkweek(company, rd, holidays)
		if err != nil {
			return nil, fmt.Errorf("calendar of %s: %w", id, err)
		}
		cals.ByResource[planner.ResourceID(id)] = rc
	}
	return cals, nil
}

func parseTask(pool *planner.ResourcePool, cal planner.Calendar, td TaskDoc) (*planner.Task, error) {
	start, err := planner.ParseDate(td.Start)
	if err != nil {
		return nil, fmt.Errorf("task %q start: %w", td.Name, err)
	}
	end, err := planner.ParseDate(td.End)
	if err != nil {
		return nil, fmt.Errorf("task %q end: %w", td.Name, err)
	}
	t, err := planner.NewTask(planner.TaskID(td.ID), td.Name, start, end)
	if err != nil {
		return nil, err
	}
	mode := planner.CalculatedEndDate
	if td.CalculatedValue != "" {
		if mode, err = planner.ParseCalculatedValue(td.CalculatedValue); err != nil {
			return nil, fmt.Errorf("task %q: %w", td.Name, err)
		}
	}
	criteria, err := pool.CriteriaByID(toCriterionIDs(td.Criteria))
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", td.Name, err)
	}
	t.SetCriteria(criteria)
	if err := t.SetHoursSpecifiedAtOrder(td.HoursAtOrder); err != nil {
		return nil, fmt.Errorf("task %q: %w", td.Name, err)
	}

	requests := make([]planner.AllocationRequest, 0, len(td.Allocations))
	for _, ad := range td.Allocations {
		req, err := ParseAllocationRequest(pool, ad)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", td.Name, err)
		}
		requests = append(requests, req)
	}
	if _, err := t.Allocate(cal, pool, mode, requests...); err != nil {
		return nil, fmt.Errorf("task %q: %w", td.Name, err)
	}
	if err := t.SetCalculatedValue(mode); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseAllocationRequest resolves an allocation document against pool.
func ParseAllocationRequest(pool *planner.ResourcePool, ad AllocationDoc) (planner.AllocationRequest, error) {
	var req planner.AllocationRequest
	if ad.Resource != "" {
		r, ok := pool.FindResource(planner.ResourceID(ad.Resource))
		if !ok {
			return req, fmt.Errorf("%w: %s", planner.ErrResourceNotFound, ad.Resource)
		}
		req.Resource = r
	}
	if len(ad.Criteria) > 0 {
		criteria, err := pool.CriteriaByID(toCriterionIDs(ad.Criteria))
		if err != nil {
			return req, err
		}
		req.Criteria = criteria
	}
	if req.Resource == nil && len(req.Criteria) == 0 {
		return req, fmt.Errorf("%w: allocation needs a resource or criteria", planner.ErrIllegalArgument)
	}
	if ad.ResourcesPerDay != "" {
		rpd, err := planner.ParseResourcesPerDay(ad.ResourcesPerDay)
		if err != nil {
			return req, fmt.Errorf("%w: %v", planner.ErrIllegalArgument, err)
		}
		req.ResourcesPerDay = rpd
	}
	if ad.Hours < 0 {
		return req, fmt.Errorf("%w: negative hours %d", planner.ErrIllegalArgument, ad.Hours)
	}
	req.Hours = ad.Hours
	req.Derive = ad.Derive
	return req, nil
}

func toCriterionIDs(ids []string) []planner.CriterionID {
	result := make([]planner.CriterionID, len(ids))
	for i, id := range ids {
		result[i] = planner.CriterionID(id)
	}
	return result
}
