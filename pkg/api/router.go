// Package api serves the dispatch admin API.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/goclaw/dispatch/config"
	"github.com/goclaw/dispatch/pkg/api/handlers"
	"github.com/goclaw/dispatch/pkg/api/middleware"
	"github.com/goclaw/dispatch/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Signals exposes the hub.
	Signals *handlers.SignalHandler

	// Health serves the probes.
	Health *handlers.HealthHandler

	// Metrics is the optional metrics recorder.
	Metrics middleware.MetricsRecorder

	// MetricsHandler serves the scrape endpoint when set.
	MetricsHandler http.Handler
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))

	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics, cfg.Metrics.Path))
	}
	if cfg.Admin.WriteTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Admin.WriteTimeout))
	}

	RegisterRoutes(r, cfg, handlers)
	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, cfg *config.Config, handlers *Handlers) {
	if handlers.Signals != nil {
		r.Route("/api/v1/signals", func(r chi.Router) {
			r.Get("/", handlers.Signals.List)
			r.Get("/{name}", handlers.Signals.Get)
			r.Post("/{name}/send", handlers.Signals.Send)
		})
	}

	if handlers.Health != nil {
		r.Get("/healthz", handlers.Health.Health)
		r.Get("/readyz", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}

	if handlers.MetricsHandler != nil && cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, handlers.MetricsHandler)
	}
}
