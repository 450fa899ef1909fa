/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the allocation engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Create API handler and load the resource pool
  4. Seed from a plan document (-plan), if given
  5. Start the reassignment sweeper
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: allocations.db)
                   Use ":memory:" for in-memory database
  -plan            Plan document (.json, .yaml) to seed criteria, resources,
                   calendar, holidays and tasks
  -sweep-interval  Reassignment sweep interval, 0 disables (default: 1m)
  -company         Company whose holidays apply (default: from plan)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/plan.db"

  # Seed an in-memory database from a plan
  ./server -db=":memory:" -plan=./plans/shipyard.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Reassignment sweeper
  - factory/plan.go: Plan documents
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/allocation-engine/api"
	"github.com/warp/allocation-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "allocations.db", "SQLite database path")
	planPath := flag.String("plan", "", "Plan document to seed from (.json, .yaml)")
	sweepInterval := flag.Duration("sweep-interval", time.Minute, "Reassignment sweep interval (0 disables)")
	company := flag.String("company", "", "Company whose holidays apply")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("[Server] Failed to initialize database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Initialize handler
	handler := api.NewHandler(store, *company)
	if err := handler.Load(ctx); err != nil {
		log.Fatalf("[Server] Failed to load resource pool: %v", err)
	}

	if *planPath != "" {
		plan, err := handler.PlanFactory.ParseFile(*planPath)
		if err != nil {
			log.Fatalf("[Server] Failed to parse plan: %v", err)
		}
		if *company != "" {
			plan.Company = *company
		}
		if err := handler.ApplyPlan(ctx, plan); err != nil {
			log.Fatalf("[Server] Failed to apply plan: %v", err)
		}
		log.Printf("[Server] Seeded %d resources and %d tasks from %s",
			len(plan.Pool.Resources()), len(plan.Tasks), *planPath)
	}

	sweeper := api.NewReassignmentSweeper(handler)
	sweeper.CheckInterval = *sweepInterval
	sweeper.Enabled = *sweepInterval > 0
	sweeper.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("[Server] Listening on http://localhost:%d", *port)
		log.Printf("[Server] API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] Failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Server] Shutting down...")
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("[Server] Forced to shutdown: %v", err)
	}

	log.Println("[Server] Stopped")
}
