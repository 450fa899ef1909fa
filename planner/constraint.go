/*
constraint.go - Constraints over values, with explicit violation listeners

PURPOSE:
  A Constraint rewrites a proposed value (e.g. a task start) into one it
  accepts. ApplyConstraints chains several; any constraint still unsatisfied
  by the final value notifies its listeners and fails the call.

LISTENERS:
  Listeners are registered explicitly and removed by calling the returned
  unregister func. Nothing is collected implicitly.

USAGE:
  unregister := task.StartListeners().Register(func(c planner.Constraint[planner.Date], d planner.Date) {
      log.Printf("start %s violates %s", d, c)
  })
  defer unregister()

SEE ALSO:
  - task.go: MoveTo applies the task's StartConstraint
*/
package planner

import (
	"fmt"
	"sort"
	"sync"
)

// =============================================================================
// CONSTRAINT
// =============================================================================

type Constraint[T any] interface {
	// ApplyTo returns the closest value the constraint accepts.
	ApplyTo(current T) T
	// IsSatisfiedBy reports whether value is acceptable.
	IsSatisfiedBy(value T) bool
	fmt.Stringer
}

// ViolationListener is notified when a value fails a constraint.
type ViolationListener[T any] func(c Constraint[T], value T)

// Listeners is a registry of violation listeners. The zero value is ready.
type Listeners[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]ViolationListener[T]
}

// Register adds fn and returns a func that removes it.
func (l *Listeners[T]) Register(fn ViolationListener[T]) (unregister func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]ViolationListener[T])
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *Listeners[T]) fire(c Constraint[T], value T) {
	if l == nil {
		return
	}
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]ViolationListener[T], 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(c, value)
	}
}

// ApplyConstraints applies each constraint in order to initial. Constraints
// the final value does not satisfy are reported to listeners (which may be
// nil) and the first one is returned as a *ConstraintViolationError.
func ApplyConstraints[T any](initial T, listeners *Listeners[T], constraints ...Constraint[T]) (T, error) {
	result := initial
	for _, c := range constraints {
		result = c.ApplyTo(result)
	}
	var firstErr error
	for _, c := range constraints {
		if c.IsSatisfiedBy(result) {
			continue
		}
		listeners.fire(c, result)
		if firstErr == nil {
			firstErr = &ConstraintViolationError{Constraint: c.String(), Value: fmt.Sprint(result)}
		}
	}
	return result, firstErr
}

// =============================================================================
// DATE CONSTRAINTS
// =============================================================================

type StartConstraintType string

const (
	AsSoonAsPossible    StartConstraintType = "AS_SOON_AS_POSSIBLE"
	StartNotEarlierThan StartConstraintType = "START_NOT_EARLIER_THAN"
	StartInFixedDate    StartConstraintType = "START_IN_FIXED_DATE"
)

// StartConstraint restricts when a task may start.
type StartConstraint struct {
	Type StartConstraintType
	Date Date
}

func (sc StartConstraint) ApplyTo(current Date) Date {
	switch sc.Type {
	case StartNotEarlierThan:
		return MaxDate(current, sc.Date)
	case StartInFixedDate:
		return sc.Date
	default:
		return current
	}
}

func (sc StartConstraint) IsSatisfiedBy(value Date) bool {
	switch sc.Type {
	case StartNotEarlierThan:
		return !value.Before(sc.Date)
	case StartInFixedDate:
		return value.Equal(sc.Date)
	default:
		return true
	}
}

// ExplicitlyMovedTo records a user move: an as-soon-as-possible task becomes
// start-not-earlier-than the new date; other types just take the new date.
func (sc StartConstraint) ExplicitlyMovedTo(date Date) StartConstraint {
	next := sc.Type
	if next == "" || next == AsSoonAsPossible {
		next = StartNotEarlierThan
	}
	return StartConstraint{Type: next, Date: date}
}

func (sc StartConstraint) String() string {
	if sc.Type == "" || sc.Type == AsSoonAsPossible {
		return string(AsSoonAsPossible)
	}
	return string(sc.Type) + " " + sc.Date.String()
}

// NotAfter caps a date, e.g. a deadline the start must respect.
type NotAfter struct {
	Limit Date
}

func (n NotAfter) ApplyTo(current Date) Date { return MinDate(current, n.Limit) }
func (n NotAfter) IsSatisfiedBy(v Date) bool { return !v.After(n.Limit) }
func (n NotAfter) String() string            { return "NOT_AFTER " + n.Limit.String() }
