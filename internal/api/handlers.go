package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/matcluster/internal/clusterservice"
	"github.com/starford/matcluster/internal/models"
	"github.com/starford/matcluster/internal/tree"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc *clusterservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *clusterservice.Service) *Handler {
	return &Handler{svc: svc}
}

// GetTree handles GET /api/clusters.
//
//	@Summary		Load the classification tree of a category
//	@Tags			clusters
//	@Produce		json
//	@Param			category	query		string	false	"Sub-category filter, empty or All for every material"
//	@Success		200			{object}	tree.Node
//	@Security		BearerAuth
//	@Router			/clusters [get]
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	root, err := h.svc.Tree(r.Context(), category)
	if err != nil {
		writeError(w, "load tree", err, slog.String("category", category))
		return
	}
	writeJSON(w, http.StatusOK, root)
}

// SaveLayout handles POST /api/clusters/layout.
//
//	@Summary		Save the full arrangement of a category
//	@Tags			clusters
//	@Accept			json
//	@Produce		json
//	@Param			category	query		string		false	"Category the layout belongs to"
//	@Param			body		body		tree.Node	true	"Tree snapshot"
//	@Success		200			{object}	LayoutMetadata
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/clusters/layout [post]
func (h *Handler) SaveLayout(w http.ResponseWriter, r *http.Request) {
	var root tree.Node
	if !decodeJSON(w, r, &root) {
		return
	}
	category := r.URL.Query().Get("category")
	meta, err := h.svc.SaveLayout(r.Context(), category, &root)
	if err != nil {
		writeError(w, "save layout", err, slog.String("category", category))
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// ListCategories handles GET /api/categories.
//
//	@Summary		List category filters
//	@Tags			clusters
//	@Produce		json
//	@Success		200	{object}	CategoryListResponse
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		writeError(w, "list categories", err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, CategoryListResponse{Categories: cats})
}

// ListAnnotations handles GET /api/annotations.
//
//	@Summary		List the annotations of a node
//	@Tags			annotations
//	@Produce		json
//	@Param			node_type		query		string	true	"Business type"
//	@Param			node_identifier	query		string	true	"Business identifier"
//	@Success		200				{object}	AnnotationListResponse
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations [get]
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := models.NodeKey{Type: models.BusinessType(q.Get("node_type")), Identifier: q.Get("node_identifier")}
	anns, err := h.svc.ListAnnotations(r.Context(), key)
	if err != nil {
		writeError(w, "list annotations", err, slog.String("node", key.String()))
		return
	}
	if anns == nil {
		anns = []models.Annotation{}
	}
	writeJSON(w, http.StatusOK, AnnotationListResponse{Annotations: anns})
}

// CreateAnnotation handles POST /api/annotations.
//
//	@Summary		Attach a note or question to a node
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateAnnotationRequest	true	"Annotation to create"
//	@Success		201		{object}	Annotation
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations [post]
func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req CreateAnnotationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	created, err := h.svc.CreateAnnotation(r.Context(), req.Key(), req.Annotation())
	if err != nil {
		writeError(w, "create annotation", err, slog.String("node", req.Key().String()))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// AnswerAnnotation handles PUT /api/annotations/{id}.
//
//	@Summary		Set or clear the answer of a question
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Annotation id"
//	@Param			body	body		AnswerRequest	true	"New answer, empty to reopen"
//	@Success		200		{object}	Annotation
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id} [put]
func (h *Handler) AnswerAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := annotationID(w, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.svc.AnswerAnnotation(r.Context(), id, req.Answer)
	if err != nil {
		writeError(w, "answer annotation", err, slog.Int64("id", id))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteAnnotation handles DELETE /api/annotations/{id}.
//
//	@Summary		Delete an annotation
//	@Tags			annotations
//	@Param			id	path	int	true	"Annotation id"
//	@Success		204	"Annotation deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id} [delete]
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := annotationID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAnnotation(r.Context(), id); err != nil {
		writeError(w, "delete annotation", err, slog.Int64("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func annotationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid annotation id"))
		return 0, false
	}
	return id, true
}
