package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)
		r.Post("/waitlist", h.Waitlist)

		// Guarded by a shared-secret query parameter instead of the API key
		// so schedulers can trigger it without holding client credentials
		r.Post("/backfill", h.Backfill)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))
			r.Post("/sync", h.Sync)
			r.Get("/sync/status", h.SyncStatus)
			r.Post("/embeddings/retry", h.RetryEmbeddings)
			r.Get("/embeddings/progress", h.EmbeddingProgress)
			r.Post("/liked/total", h.LikedTotal)
		})
	})

	return r
}
