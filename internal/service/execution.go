package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/executor"
	"github.com/sakif/jsmemes/internal/metrics"
	"github.com/sakif/jsmemes/internal/model"
	"github.com/sakif/jsmemes/internal/repository"
	"github.com/sakif/jsmemes/internal/session"
)

// Sessions resolves a session ID to its executor. *session.Registry
// implements it.
type Sessions interface {
	Get(id string) (session.Runner, error)
	Lookup(id string) (session.Runner, bool)
}

// persistTimeout bounds how long saving a run may take once the result is
// already known.
const persistTimeout = 2 * time.Second

// ExecutionService runs snippets on behalf of playground sessions.
//
// FLOW OF ONE EXECUTION:
//
//	reject blank code → look up the session's executor → Execute
//	  → record metrics → persist the run (best effort) → return the result
type ExecutionService struct {
	sessions Sessions
	runs     repository.RunRepository
	snippets repository.SnippetRepository
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewExecutionService wires the service. m may be nil to disable metrics.
func NewExecutionService(
	sessions Sessions,
	runs repository.RunRepository,
	snippets repository.SnippetRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ExecutionService {
	return &ExecutionService{
		sessions: sessions,
		runs:     runs,
		snippets: snippets,
		metrics:  m,
		logger:   logger,
	}
}

// Execute runs code in the session's executor.
//
// Errors:
//   - apperror.ErrValidation  when code is blank
//   - apperror.ErrUnavailable when no executor can be allocated
//   - apperror.ErrConflict    when the session is already running something
//
// A snippet rejected by the validator, or one that fails to compile, is not
// an error: it comes back as a result with Succeeded=false.
func (s *ExecutionService) Execute(ctx context.Context, sessionID, code string) (*executor.ExecutionResult, error) {
	return s.execute(ctx, sessionID, "", code)
}

// RunSnippet executes a saved snippet in the session's executor.
func (s *ExecutionService) RunSnippet(ctx context.Context, sessionID, snippetID string) (*executor.ExecutionResult, error) {
	snippet, err := s.snippets.GetByID(ctx, snippetID)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, sessionID, snippet.ID, snippet.Code)
}

func (s *ExecutionService) execute(ctx context.Context, sessionID, snippetID, code string) (*executor.ExecutionResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}

	runner, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := runner.Execute(ctx, executor.ExecutionRequest{Code: code})
	if s.metrics != nil {
		s.metrics.ObserveExecution(res, err, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, executor.ErrConcurrentExecution) {
			return nil, err
		}
		s.logger.Error("execution failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("executing snippet: %w", err)
	}

	s.logger.Info("snippet executed",
		slog.String("session_id", sessionID),
		slog.Bool("success", res.Succeeded),
		slog.Int("events", len(res.Events)),
		slog.Duration("duration", res.Duration),
	)

	s.persist(ctx, model.NewRun(sessionID, snippetID, code, res))
	return res, nil
}

// persist saves the run. A storage failure is logged and otherwise ignored:
// the caller already has its result.
func (s *ExecutionService) persist(ctx context.Context, run *model.Run) {
	if s.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.runs.CreateRun(ctx, run); err != nil {
		s.logger.Warn("failed to persist run",
			slog.String("session_id", run.SessionID),
			slog.String("error", err.Error()),
		)
	}
}

// History returns the session's current event log, including output from
// deferred callbacks that fired after the last run returned. A session that
// has never run anything has an empty history.
func (s *ExecutionService) History(sessionID string) []executor.CapturedEvent {
	runner, ok := s.sessions.Lookup(sessionID)
	if !ok {
		return []executor.CapturedEvent{}
	}
	return runner.History()
}

// ClearHistory empties the session's event log.
func (s *ExecutionService) ClearHistory(sessionID string) {
	if runner, ok := s.sessions.Lookup(sessionID); ok {
		runner.ClearHistory()
	}
}

// ListRuns returns the session's persisted runs, newest first.
func (s *ExecutionService) ListRuns(ctx context.Context, sessionID string, limit, offset int) ([]model.Run, error) {
	if s.runs == nil {
		return []model.Run{}, nil
	}
	runs, err := s.runs.ListRunsBySession(ctx, sessionID, clampList(limit, offset))
	if err != nil {
		s.logger.Error("failed to list runs", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}
