package app

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hotelpms/server/internal/handlers"
	custommw "github.com/hotelpms/server/internal/middleware"
	"github.com/hotelpms/server/internal/observability"
)

// Router builds the HTTP API. httpMetrics may be nil.
func (a *App) Router(httpMetrics *observability.HTTPMetrics) chi.Router {
	conflictHandler := handlers.NewConflictHandler(a.Conflicts)
	schedulerHandler := handlers.NewSchedulerHandler(a.Scheduler)
	healthHandler := handlers.NewHealthHandler(a.DB)
	wsHandler := handlers.NewWebSocketHandler(a.Hub)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.TracingMiddleware("hotelpms-conflicts"))
	if httpMetrics != nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	}
	r.Use(custommw.APIKeyAuth(a.Config.Security.APIKey, a.Config.Security.APIKeyHeader))
	r.Use(custommw.OperatorIdentity(a.Config.Security.OperatorHeader))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)
	r.Get("/api/version", handlers.VersionHandler)

	r.Route("/api/properties/{propertyId}/conflicts", func(r chi.Router) {
		r.Get("/", conflictHandler.ListConflicts)
		r.Post("/detect", conflictHandler.DetectConflicts)
		r.Post("/auto-resolve", conflictHandler.AutoResolveConflicts)
		r.Get("/stats", conflictHandler.GetConflictStats)
		r.Get("/runs/latest", conflictHandler.GetLatestRun)
	})

	r.Route("/api/conflicts/{id}", func(r chi.Router) {
		r.Get("/", conflictHandler.GetConflict)
		r.With(custommw.RequireOperator).Post("/resolve", conflictHandler.ResolveConflict)
		r.With(custommw.RequireOperator).Post("/ignore", conflictHandler.IgnoreConflict)
	})

	r.Route("/api/scheduler", func(r chi.Router) {
		r.Get("/status", schedulerHandler.GetStatus)
		r.Post("/start", schedulerHandler.Start)
		r.Post("/stop", schedulerHandler.Stop)
		r.Post("/run", schedulerHandler.RunNow)
	})

	r.Get("/ws/conflicts", wsHandler.HandleConnection)

	return r
}
