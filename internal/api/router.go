package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/marginalia/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Conversion.
	r.Post("/convert", h.Convert)
	r.Post("/extract", h.Extract)
	r.Post("/inspect", h.Inspect)

	// Session of the latest conversion.
	r.Get("/session", h.ExportSession)
	r.Delete("/session", h.ResetSession)

	// Run history.
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)

	r.Get("/contract", h.Contract)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
