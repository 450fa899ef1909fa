// Package store provides Store implementations.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/warp/allocation-engine/planner"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	criteria  map[planner.CriterionID]planner.CriterionSnapshot
	resources map[planner.ResourceID]planner.ResourceSnapshot
	tasks     map[planner.TaskID]planner.TaskSnapshot
	holidays  map[string]planner.Holiday
}

func NewMemory() *Memory {
	return &Memory{
		criteria:  make(map[planner.CriterionID]planner.CriterionSnapshot),
		resources: make(map[planner.ResourceID]planner.ResourceSnapshot),
		tasks:     make(map[planner.TaskID]planner.TaskSnapshot),
		holidays:  make(map[string]planner.Holiday),
	}
}

func (m *Memory) SaveCriterion(_ context.Context, c planner.CriterionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria[c.ID] = c
	return nil
}

func (m *Memory) LoadCriteria(_ context.Context) ([]planner.CriterionSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]planner.CriterionSnapshot, 0, len(m.criteria))
	for _, c := range m.criteria {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SaveResource(_ context.Context, r planner.ResourceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Satisfactions = append([]planner.SatisfactionSnapshot(nil), r.Satisfactions...)
	m.resources[r.ID] = r
	return nil
}

func (m *Memory) DeleteResource(_ context.Context, id planner.ResourceID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[id]; !ok {
		return planner.ErrResourceNotFound
	}
	delete(m.resources, id)
	return nil
}

func (m *Memory) LoadResources(_ context.Context) ([]planner.ResourceSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]planner.ResourceSnapshot, 0, len(m.resources))
	for _, r := range m.resources {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SaveTask stores a snapshot under optimistic versioning.
func (m *Memory) SaveTask(_ context.Context, t planner.TaskSnapshot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveTaskLocked(t)
}

func (m *Memory) saveTaskLocked(t planner.TaskSnapshot) (int, error) {
	stored, exists := m.tasks[t.ID]
	version, err := planner.NextVersion(stored.Version, exists, t.Version)
	if err != nil {
		return 0, err
	}
	t.Version = version
	m.tasks[t.ID] = cloneTask(t)
	return version, nil
}

func (m *Memory) LoadTask(_ context.Context, id planner.TaskID) (planner.TaskSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return planner.TaskSnapshot{}, planner.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (m *Memory) LoadTasks(_ context.Context) ([]planner.TaskSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]planner.TaskSnapshot, 0, len(m.tasks))
	for _, t := range m.tasks {
		result = append(result, cloneTask(t))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) DeleteTask(_ context.Context, id planner.TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return planner.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) SaveHoliday(_ context.Context, h planner.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[h.ID] = h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holidays, id)
	return nil
}

func (m *Memory) LoadHolidays(_ context.Context, companyID string) ([]planner.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []planner.Holiday
	for _, h := range m.holidays {
		if h.CompanyID == "" || h.CompanyID == companyID {
			result = append(result, h)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// IsHoliday lets the store back a WorkweekCalendar directly.
func (m *Memory) IsHoliday(companyID string, date planner.Date) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.holidays {
		if (planner.HolidaySet{h}).IsHoliday(companyID, date) {
			return true
		}
	}
	return false
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.criteria = make(map[planner.CriterionID]planner.CriterionSnapshot)
	m.resources = make(map[planner.ResourceID]planner.ResourceSnapshot)
	m.tasks = make(map[planner.TaskID]planner.TaskSnapshot)
	m.holidays = make(map[string]planner.Holiday)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(planner.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	saved := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(saved)
		return err
	}
	return nil
}

type memorySnapshot struct {
	criteria  map[planner.CriterionID]planner.CriterionSnapshot
	resources map[planner.ResourceID]planner.ResourceSnapshot
	tasks     map[planner.TaskID]planner.TaskSnapshot
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		criteria:  make(map[planner.CriterionID]planner.CriterionSnapshot, len(tm.criteria)),
		resources: make(map[planner.ResourceID]planner.ResourceSnapshot, len(tm.resources)),
		tasks:     make(map[planner.TaskID]planner.TaskSnapshot, len(tm.tasks)),
	}
	for k, v := range tm.criteria {
		s.criteria[k] = v
	}
	for k, v := range tm.resources {
		s.resources[k] = v
	}
	for k, v := range tm.tasks {
		s.tasks[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.criteria = s.criteria
	tm.resources = s.resources
	tm.tasks = s.tasks
}

// txMemoryView runs store calls while TxMemory already holds the lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) SaveCriterion(_ context.Context, c planner.CriterionSnapshot) error {
	tv.parent.criteria[c.ID] = c
	return nil
}

func (tv *txMemoryView) LoadCriteria(_ context.Context) ([]planner.CriterionSnapshot, error) {
	result := make([]planner.CriterionSnapshot, 0, len(tv.parent.criteria))
	for _, c := range tv.parent.criteria {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txMemoryView) SaveResource(_ context.Context, r planner.ResourceSnapshot) error {
	tv.parent.resources[r.ID] = r
	return nil
}

func (tv *txMemoryView) DeleteResource(_ context.Context, id planner.ResourceID) error {
	if _, ok := tv.parent.resources[id]; !ok {
		return planner.ErrResourceNotFound
	}
	delete(tv.parent.resources, id)
	return nil
}

func (tv *txMemoryView) LoadResources(_ context.Context) ([]planner.ResourceSnapshot, error) {
	result := make([]planner.ResourceSnapshot, 0, len(tv.parent.resources))
	for _, r := range tv.parent.resources {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txMemoryView) SaveTask(_ context.Context, t planner.TaskSnapshot) (int, error) {
	return tv.parent.saveTaskLocked(t)
}

func (tv *txMemoryView) LoadTask(_ context.Context, id planner.TaskID) (planner.TaskSnapshot, error) {
	t, ok := tv.parent.tasks[id]
	if !ok {
		return planner.TaskSnapshot{}, planner.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (tv *txMemoryView) LoadTasks(_ context.Context) ([]planner.TaskSnapshot, error) {
	result := make([]planner.TaskSnapshot, 0, len(tv.parent.tasks))
	for _, t := range tv.parent.tasks {
		result = append(result, cloneTask(t))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txMemoryView) DeleteTask(_ context.Context, id planner.TaskID) error {
	if _, ok := tv.parent.tasks[id]; !ok {
		return planner.ErrTaskNotFound
	}
	delete(tv.parent.tasks, id)
	return nil
}

// cloneTask deep-copies the slices of a snapshot so callers can't alias
// stored state.
func cloneTask(t planner.TaskSnapshot) planner.TaskSnapshot {
	t.Criteria = slices.Clone(t.Criteria)
	if t.Allocations == nil {
		return t
	}
	allocations := make([]planner.AllocationSnapshot, len(t.Allocations))
	for i, a := range t.Allocations {
		a.Criteria = slices.Clone(a.Criteria)
		a.Assignments = slices.Clone(a.Assignments)
		var derived []planner.DerivedSnapshot
		for _, d := range a.Derived {
			d.Assignments = slices.Clone(d.Assignments)
			derived = append(derived, d)
		}
		a.Derived = derived
		allocations[i] = a
	}
	t.Allocations = allocations
	return t
}
