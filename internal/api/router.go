package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/viewservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// maxUploadBytes caps document uploads; non-positive means 20 MB.
func NewRouter(svc *viewservice.Service, authEnabled bool, token string, sseHandler http.Handler, maxUploadBytes int64) chi.Router {
	h := NewHandler(svc, maxUploadBytes)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Views.
	r.Get("/views", instrument("views", h.ListViews))
	r.Route("/views/{view}", func(r chi.Router) {
		r.Get("/rows", instrument("rows", h.Rows))
		r.Get("/options", instrument("options", h.Options))
		r.Get("/export", instrument("export", h.Export))
		r.Post("/refresh", instrument("refresh", h.Refresh))
		r.Get("/records/{id}", instrument("record", h.Record))
	})

	// Review documents.
	r.Post("/review-documents/download", instrument("download", h.Download))
	r.Post("/review-documents/return", instrument("return", h.Return))
	r.Get("/review-documents/returns", instrument("returns", h.Returns))

	// Dashboard.
	r.Get("/dashboard", instrument("dashboard", h.Dashboard))

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
