package api

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/matcluster/internal/clusterservice"
)

// LayoutHandler serves saved layout files for download.
type LayoutHandler struct {
	svc *clusterservice.Service
}

// NewLayoutHandler creates a handler backed by the cluster service.
func NewLayoutHandler(svc *clusterservice.Service) *LayoutHandler {
	return &LayoutHandler{svc: svc}
}

// safeName validates that the file name is a plain name (no path separators,
// no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("file name is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name: %s", name)
	}
	return cleaned, nil
}

// ServeFile handles GET /api/layouts/{file}.
//
//	@Summary		Download a saved layout file
//	@Tags			clusters
//	@Produce		json
//	@Param			file	path	string	true	"Layout file name"
//	@Success		200
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layouts/{file} [get]
func (h *LayoutHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name, err := safeName(chi.URLParam(r, "file"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	data, err := h.svc.LayoutFile(r.Context(), name)
	if err != nil {
		writeError(w, "read layout", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}
