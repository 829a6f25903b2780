// Package ops provides the local HTTP API the host platform uses to feed
// location signals into the daemon and to inspect and tune it.
package ops

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/pigeonline/pigeon/internal/intervention"
	"github.com/pigeonline/pigeon/internal/monitor"
	"github.com/pigeonline/pigeon/internal/ops/handler"
	"github.com/pigeonline/pigeon/internal/ops/middleware"
	"github.com/pigeonline/pigeon/internal/settings"
	"github.com/pigeonline/pigeon/internal/zone"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	Session  *monitor.Session
	Registry *zone.Registry
	Settings *settings.Service
	Feedback *intervention.FeedbackLoop

	// Positions and Entries receive host-pushed location signals.
	Positions handler.PositionSink
	Entries   handler.EntrySink

	// Checker proxies on-demand risk checks to the backend.
	Checker handler.LocationChecker

	// DB may be nil when running with in-memory storage.
	DB handler.Pinger
}

// NewRouter creates a new chi router with all ops API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequireJSON)
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Session, cfg.Registry, cfg.DB)
	settingsHandler := handler.NewSettingsHandler(cfg.Settings)
	monitorHandler := handler.NewMonitorHandler(cfg.Positions, cfg.Entries, cfg.Checker)
	feedbackHandler := handler.NewFeedbackHandler(cfg.Feedback)

	locationRateLimit := middleware.RateLimitByIP(middleware.LocationRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", settingsHandler.GetSettings)
			r.Put("/", settingsHandler.UpdateSettings)
		})

		r.Route("/location", func(r chi.Router) {
			r.With(locationRateLimit).Post("/update", monitorHandler.UpdateLocation)
			r.With(standardRateLimit).Post("/check", monitorHandler.CheckLocation)
		})

		r.With(locationRateLimit).Post("/geofence/entry", monitorHandler.GeofenceEntry)

		r.With(standardRateLimit).Post("/interventions/{interventionID}/feedback", feedbackHandler.SubmitFeedback)
	})

	return r
}
