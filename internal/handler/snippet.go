package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/jsmemes/internal/model"
)

// Snippets is the part of service.SnippetService the handlers use.
type Snippets interface {
	Create(ctx context.Context, name, code, description string) (*model.Snippet, error)
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, limit, offset int) ([]model.Snippet, error)
	Update(ctx context.Context, id, name, code, description string) (*model.Snippet, error)
	Delete(ctx context.Context, id string) error
}

// SnippetHandler manages CRUD operations for saved snippets.
type SnippetHandler struct {
	svc    Snippets
	logger *slog.Logger
}

// NewSnippetHandler creates a new SnippetHandler.
func NewSnippetHandler(svc Snippets, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{svc: svc, logger: logger}
}

// snippetRequest is the body for create and update.
type snippetRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// HandleList returns saved snippets, newest first.
//
// HTTP: GET /api/snippets?limit=20&offset=0
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snippets, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleGetByID returns one snippet.
//
// HTTP: GET /api/snippets/{id}
func (h *SnippetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleCreate saves a new snippet.
//
// HTTP: POST /api/snippets
// REQUEST BODY: {"name": "closures", "code": "...", "description": "..."}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid snippet JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	snippet, err := h.svc.Create(r.Context(), req.Name, req.Code, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleUpdate replaces a snippet's fields.
//
// HTTP: PUT /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid snippet JSON", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	snippet, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req.Name, req.Code, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete removes a snippet.
//
// HTTP: DELETE /api/snippets/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent) // 204 No Content
}
