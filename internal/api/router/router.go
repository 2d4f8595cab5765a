package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scamshield-ai/honeypot-platform/internal/honeypot"
	httpmiddleware "github.com/scamshield-ai/honeypot-platform/internal/http/middleware"
	"github.com/scamshield-ai/honeypot-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	HoneypotHandler *honeypot.Handler
	MetricsHandler  http.Handler
	AdminAuthSecret string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.HoneypotHandler.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Post("/api/v1/engage", cfg.HoneypotHandler.Engage)
	})

	// Admin endpoints
	r.Group(func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		admin.Route("/admin/sessions", func(r chi.Router) {
			r.Get("/{sessionID}", cfg.HoneypotHandler.GetSession)
			r.Post("/{sessionID}/end", cfg.HoneypotHandler.EndSession)
		})
	})

	return r
}
