package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/digestservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *digestservice.Service, authEnabled bool, token string, maxUploadBytes int64, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, maxUploadBytes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Schemas.
	r.Get("/schemas", h.ListSchemas)
	r.Get("/schemas/{name}", h.GetSchema)

	// Digests.
	r.Post("/digests", h.UploadDigest)
	r.Get("/digests", h.ListDigests)
	r.Get("/digests/{id}", h.GetDigest)
	r.Delete("/digests/{id}", h.DeleteDigest)
	r.Get("/digests/{id}/matrix", h.Matrix)
	r.Get("/digests/{id}/status-counts", h.StatusCounts)
	r.Get("/digests/{id}/subjects", h.Subjects)
	r.Get("/digests/{id}/raw", h.Raw)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
