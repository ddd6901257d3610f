package handler

// Every error response has the same shape:
//
//	{"error": "not_found", "message": "snippet not found with id abc123"}
//
// so the page can always read .message regardless of the status code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/session"
)

// maxBodyBytes bounds request bodies. Snippets are capped far below this;
// the slack covers JSON escaping of non-ASCII source.
const maxBodyBytes = 64 << 10

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending field, for validation errors
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be set before the body is written.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// errors.Is walks the whole chain, so a service error like
// fmt.Errorf("creating snippet: %w", apperror.ValidationFailed(...)) still
// maps to 400.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusServiceUnavailable
			errorType = "unavailable"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Never echo unknown errors; they can carry SQL or file paths.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a bounded JSON body into dst. Failures come back as
// validation errors so writeError answers 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", "request body too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// sessionID returns the ID attached by session.Ensure.
func sessionID(r *http.Request) (string, error) {
	id, ok := session.IDFromContext(r.Context())
	if !ok {
		return "", apperror.Forbidden("no playground session")
	}
	return id, nil
}

// pagination parses ?limit= and ?offset=. Missing values are zero, which the
// services turn into their defaults.
func pagination(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, apperror.ValidationFailed("limit", "limit must be an integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, apperror.ValidationFailed("offset", "offset must be an integer")
		}
	}
	return limit, offset, nil
}
