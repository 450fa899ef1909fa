/*
scheduler.go - Background reassignment sweeper

PURPOSE:
  Periodically looks for tasks whose specific allocations still point at
  resources that were removed from the pool, and reassigns them with new
  resources satisfying the same criteria.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Delegates to Handler.Sweep, so manual (POST /api/sweep) and scheduled
    runs share locking and persistence
  - Tasks with no replacement are logged and retried on the next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewReassignmentSweeper(handler)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: Sweep, TriggerSweep
  - planner/strategy.go: WithNewResources
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// ReassignmentSweeper reassigns tasks bound to departed resources.
type ReassignmentSweeper struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// guards last; separate from mu, which Stop holds while the loop drains
	lastMu sync.Mutex
	last   SweepResultDTO
}

// NewReassignmentSweeper creates a new sweeper.
func NewReassignmentSweeper(handler *Handler) *ReassignmentSweeper {
	return &ReassignmentSweeper{
		Handler:       handler,
		CheckInterval: time.Minute,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the sweeper.
func (s *ReassignmentSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.CheckInterval <= 0 {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	log.Printf("[Sweeper] Started with check interval: %v", s.CheckInterval)
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *ReassignmentSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		log.Println("[Sweeper] Stopped")
	}
}

func (s *ReassignmentSweeper) run() {
	defer s.wg.Done()

	s.sweep()

	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *ReassignmentSweeper) sweep() {
	result, err := s.Handler.Sweep(context.Background())
	if err != nil {
		log.Printf("[Sweeper] Error: %v", err)
		return
	}
	s.lastMu.Lock()
	s.last = result
	s.lastMu.Unlock()

	if len(result.Reassigned) > 0 || len(result.Failed) > 0 {
		log.Printf("[Sweeper] Completed: %d checked, %d reassigned, %d without replacement",
			result.Checked, len(result.Reassigned), len(result.Failed))
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (s *ReassignmentSweeper) RunNow() SweepResultDTO {
	s.sweep()
	return s.LastResult()
}

// LastResult returns the outcome of the most recent successful sweep.
func (s *ReassignmentSweeper) LastResult() SweepResultDTO {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.last
}
