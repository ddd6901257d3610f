package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/jsmemes/internal/examples"
)

// ExamplesHandler serves the built-in demonstration snippets.
type ExamplesHandler struct {
	catalog *examples.Catalog
}

// NewExamplesHandler creates a new ExamplesHandler.
func NewExamplesHandler(catalog *examples.Catalog) *ExamplesHandler {
	return &ExamplesHandler{catalog: catalog}
}

// HandleList returns every example in display order.
//
// HTTP: GET /api/examples
func (h *ExamplesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List())
}

// HandleGet returns one example.
//
// HTTP: GET /api/examples/{key}
func (h *ExamplesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ex, err := h.catalog.Get(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}
