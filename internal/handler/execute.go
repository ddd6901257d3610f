package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/executor"
	"github.com/sakif/jsmemes/internal/model"
)

// Executions is the part of service.ExecutionService the handlers use.
type Executions interface {
	Execute(ctx context.Context, sessionID, code string) (*executor.ExecutionResult, error)
	RunSnippet(ctx context.Context, sessionID, snippetID string) (*executor.ExecutionResult, error)
	History(sessionID string) []executor.CapturedEvent
	ClearHistory(sessionID string)
	ListRuns(ctx context.Context, sessionID string, limit, offset int) ([]model.Run, error)
}

// ExecuteHandler handles code execution requests for the caller's session.
type ExecuteHandler struct {
	svc    Executions
	logger *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(svc Executions, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		svc:    svc,
		logger: logger,
	}
}

// HandleExecute runs a snippet.
//
// HTTP: POST /api/execute
// REQUEST BODY: {"code": "console.log(1 + 1)"}
//
// A rejected or failing snippet is still a 200: the result carries
// success=false and the error. Non-2xx means the snippet never ran.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req executor.ExecutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	result, err := h.svc.Execute(r.Context(), id, req.Code)
	if err != nil {
		h.writeExecError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleRunSnippet runs a saved snippet.
//
// HTTP: POST /api/snippets/{id}/run
func (h *ExecuteHandler) HandleRunSnippet(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.RunSnippet(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		h.writeExecError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleHistory returns the session's event log, which keeps growing after
// a run returns as setTimeout callbacks fire.
//
// HTTP: GET /api/execute/history
func (h *ExecuteHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.History(id))
}

// HandleClearHistory empties the session's event log.
//
// HTTP: DELETE /api/execute/history
func (h *ExecuteHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.svc.ClearHistory(id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListRuns returns the session's persisted runs, newest first.
//
// HTTP: GET /api/executions?limit=20&offset=0
func (h *ExecuteHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	runs, err := h.svc.ListRuns(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *ExecuteHandler) writeExecError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		h.logger.Error("code execution failed", slog.String("error", err.Error()))
	}
	writeError(w, err)
}
