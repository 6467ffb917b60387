package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/opdedupe/internal/planservice"
)

// NewRouter creates a chi router with the read-only review routes.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *planservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/report", h.ListRows)
	r.Get("/plan", h.GetPlan)
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
