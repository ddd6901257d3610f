package executor

import (
	"errors"
	"fmt"

	"github.com/sakif/jsmemes/internal/apperror"
)

// ErrConcurrentExecution is returned by Execute while a previous call on the
// same executor has not returned yet. Nothing is queued; retry later.
var ErrConcurrentExecution = apperror.Conflict("an execution is already in progress")

// ErrInterrupted means the synchronous body was stopped because the caller's
// context ended or the configured run timeout elapsed.
var ErrInterrupted = errors.New("execution interrupted")

// UnsafeCodeError reports the first denylisted pattern found in a snippet.
type UnsafeCodeError struct {
	Pattern string // readable form, e.g. "while(true)"
	Expr    string // the regular expression that matched
}

func (e *UnsafeCodeError) Error() string {
	return fmt.Sprintf("code contains an unsafe operation: %s (pattern %s)", e.Pattern, e.Expr)
}

func (e *UnsafeCodeError) Unwrap() error { return apperror.ErrValidation }

// TooLongError reports a snippet over the length cap.
type TooLongError struct {
	Length int
	Max    int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("code is too long: %d characters, keep it within %d", e.Length, e.Max)
}

func (e *TooLongError) Unwrap() error { return apperror.ErrValidation }

// SyntaxError means the snippet could not be compiled, so nothing ran.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string {
	return "syntax error: " + e.Message
}

func (e *SyntaxError) Unwrap() error { return apperror.ErrValidation }
