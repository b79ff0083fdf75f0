package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/matcluster/internal/clusterservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *clusterservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	lh := NewLayoutHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Trees and layouts.
	r.Get("/clusters", h.GetTree)
	r.Post("/clusters/layout", h.SaveLayout)
	r.Get("/layouts/{file}", lh.ServeFile)
	r.Get("/categories", h.ListCategories)

	// Annotations.
	r.Get("/annotations", h.ListAnnotations)
	r.Post("/annotations", h.CreateAnnotation)
	r.Put("/annotations/{id}", h.AnswerAnnotation)
	r.Delete("/annotations/{id}", h.DeleteAnnotation)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
