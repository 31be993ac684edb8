package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/marksman/internal/markservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *markservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Marks.
	r.Get("/marks", h.ListMarks)
	r.Post("/marks", h.AddMark)
	r.Delete("/marks", h.ClearMarks)
	r.Post("/marks/undo", h.UndoDelete)
	r.Get("/marks/{name}", h.GetMark)
	r.Delete("/marks/{name}", h.DeleteMark)
	r.Post("/marks/{name}/rename", h.RenameMark)
	r.Post("/marks/{name}/move", h.MoveMark)
	r.Get("/history", h.History)

	// Search and navigation.
	r.Get("/search", h.Search)
	r.Get("/navigate/{direction}", h.Navigate)

	// Transfer.
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)

	r.Get("/files/marks", h.FileMarks)
	r.Get("/projects", h.Projects)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
