// Package apperror defines the domain errors shared by every layer.
//
// Services and executors return these; only the HTTP handlers (and the CLI)
// decide what a given sentinel means to the outside world.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	// ErrUnavailable means the server is out of a bounded resource (sessions,
	// containers) and the caller should retry later.
	ErrUnavailable = errors.New("unavailable")
)

type AppError struct {
	Err     error  // sentinel the error maps to
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unavailable returns an AppError for exhausted capacity.
// HTTP handlers map this to 503 Service Unavailable.
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}
