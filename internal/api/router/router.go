// Package router wires the HTTP surface of the support platform.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/globalmind/support-platform/internal/http/handlers"
	httpmiddleware "github.com/globalmind/support-platform/internal/http/middleware"
	"github.com/globalmind/support-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger          *logging.Logger
	SupportHandler  *handlers.SupportHandler
	WSHandler       *handlers.WSHandler
	AdminHandler    *handlers.AdminHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
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

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.SupportHandler.Health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Route("/v1", func(v1 chi.Router) {
			v1.Post("/chat", cfg.SupportHandler.Chat)
			v1.Post("/feedback", cfg.SupportHandler.Feedback)
			v1.Post("/progress", cfg.SupportHandler.RecordProgress)
			v1.Get("/progress/{anonID}", cfg.SupportHandler.Progress)
		})
		if cfg.WSHandler != nil {
			public.Get("/ws/chat", cfg.WSHandler.Chat)
		}
	})

	// Admin endpoints, JWT-gated.
	if cfg.AdminHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Delete("/users/{anonID}", cfg.AdminHandler.EraseUser)
			admin.Get("/users/{anonID}/conversations", cfg.AdminHandler.UserConversations)
			admin.Post("/retention/purge", cfg.AdminHandler.RunPurge)
			admin.Post("/keys/rotate", cfg.AdminHandler.RotateKey)
			admin.Post("/backup", cfg.AdminHandler.RunBackup)
			admin.Get("/audit", cfg.AdminHandler.Audit)
		})
	}

	return r
}
