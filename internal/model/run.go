package model

import (
	"time"

	"github.com/sakif/jsmemes/internal/executor"
)

// Run records one execution: what was submitted and what came back.
//
// Events holds only what was captured by the time the result was returned;
// output from setTimeout callbacks that fired later is not in it.
type Run struct {
	ID         string                   `json:"id"`
	SessionID  string                   `json:"-"`
	SnippetID  string                   `json:"snippetId,omitempty"`
	Code       string                   `json:"code"`
	Succeeded  bool                     `json:"success"`
	Events     []executor.CapturedEvent `json:"console"`
	Result     string                   `json:"result,omitempty"`
	Error      string                   `json:"error,omitempty"`
	DurationMS int64                    `json:"durationMs"`
	CreatedAt  time.Time                `json:"createdAt"`
}

// NewRun builds the record for a finished execution.
func NewRun(sessionID, snippetID, code string, res *executor.ExecutionResult) *Run {
	return &Run{
		SessionID:  sessionID,
		SnippetID:  snippetID,
		Code:       code,
		Succeeded:  res.Succeeded,
		Events:     res.Events,
		Result:     res.ReturnValue,
		Error:      res.Error,
		DurationMS: res.Duration.Milliseconds(),
	}
}
