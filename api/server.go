/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for a planning frontend

ROUTE GROUPS:
  /api/criteria/*       Criteria tree
  /api/resources/*      Workers and machines
  /api/tasks/*          Tasks, allocations, moves, reassignment
  /api/holidays/*       Company holidays
  /api/scenarios/*      Demo plans
  /api/sweep            Manual reassignment sweep

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/criteria", func(r chi.Router) {
			r.Get("/", h.ListCriteria)
			r.Post("/", h.CreateCriterion)
		})

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", h.ListResources)
			r.Post("/", h.CreateResource)
			r.Get("/{id}", h.GetResource)
			r.Delete("/{id}", h.DeleteResource)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTask)
				r.Delete("/", h.DeleteTask)
				r.Get("/aggregate", h.GetAggregate)
				r.Post("/allocations", h.Allocate)
				r.Put("/allocations/{allocationID}", h.ModifyAllocation)
				r.Delete("/allocations/{allocationID}", h.RemoveAllocation)
				r.Post("/move", h.MoveTask)
				r.Post("/reassign", h.ReassignTask)
			})
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		r.Post("/sweep", h.TriggerSweep)
	})

	return r
}
