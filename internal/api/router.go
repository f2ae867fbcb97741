package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via token query parameter, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/pools", func(r chi.Router) {
				r.Get("/", s.handleListPools)

				r.Route("/{pool}", func(r chi.Router) {
					r.Get("/", s.handleGetPool)
					r.Get("/tables/{table}", s.handleGetTable)
					r.Get("/migrations", s.handleMigrations)
				})
			})
		})
	})

	return r
}
