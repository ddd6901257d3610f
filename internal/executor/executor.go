// Package executor defines the contract every snippet backend fulfils.
//
// A backend takes the raw text of a snippet, rejects it if the Validator
// says so, runs it with only the console sinks and a capped setTimeout in
// scope, and reports what the snippet printed plus its return value.
//
// THE FLOW:
//
//	caller → Executor.Execute → Validator.Validate → build sandbox → evaluate
//	       → format return value → ExecutionResult → caller renders it
//
// Backends live in subpackages: jsvm runs snippets in-process on goja,
// docker runs them under node in a throwaway container.
package executor

import (
	"context"
	"time"
)

// Channel classifies a captured console call.
type Channel string

const (
	ChannelLog   Channel = "log"
	ChannelError Channel = "error"
	ChannelWarn  Channel = "warn"
)

// ExecutionRequest represents a request to execute a JavaScript snippet.
type ExecutionRequest struct {
	Code string `json:"code"`
}

// CapturedEvent is one intercepted console call. Args are formatted one by
// one, so console.log("a", 1) yields [`"a"`, `1`].
type CapturedEvent struct {
	Channel   Channel  `json:"type"`
	Args      []string `json:"args"`
	Timestamp int64    `json:"timestamp"` // ms since epoch
}

// ExecutionResult represents the output and status of one run.
//
// JSON field names match what the playground page renders: success,
// console, result, error.
type ExecutionResult struct {
	Succeeded bool            `json:"success"`
	Events    []CapturedEvent `json:"console"`
	// ReturnValue is the formatted return value of the snippet body.
	// Set only when Succeeded.
	ReturnValue string `json:"result,omitempty"`
	// Error is the failure message. Set only when !Succeeded.
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`

	// Err is the typed failure (*UnsafeCodeError, *TooLongError,
	// *SyntaxError, ErrInterrupted). Not serialized.
	Err error `json:"-"`
}

// Executor represents the core interface for running snippets in an isolated environment.
//
// Execute returns ErrConcurrentExecution (and no result) while another call
// on the same Executor is still in flight. Every other outcome, including a
// rejected or faulting snippet, is reported through the result.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// Historian is implemented by executors that keep the event log of their
// most recent run around after Execute returns.
type Historian interface {
	History() []CapturedEvent
	ClearHistory()
}

// Failed builds the result for a run that was rejected or aborted.
func Failed(err error, events []CapturedEvent, started time.Time) *ExecutionResult {
	return &ExecutionResult{
		Succeeded: false,
		Events:    events,
		Error:     err.Error(),
		Duration:  time.Since(started),
		Err:       err,
	}
}
