// Package jsvm runs playground snippets in-process on the goja JavaScript
// engine.
//
// WHY AN EMBEDDED ENGINE?
// The snippets demonstrate JavaScript's own quirks ([] + {}, 0.1 + 0.2,
// hoisting, closures), so they need real JavaScript semantics. goja is a pure
// Go ECMAScript implementation: no node binary, no container, no CGo. Each
// run gets a brand new runtime, so nothing a snippet defines survives into
// the next run.
//
// LIFECYCLE OF ONE RUN:
//
//	Idle → Running → {Succeeded, ValidationRejected, RuntimeFaulted} → Idle
//
// An Engine belongs to one playground session. It runs one snippet at a
// time; a second Execute while the first is still going is turned away with
// executor.ErrConcurrentExecution rather than queued.
package jsvm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/jsmemes/internal/executor"
)

// COMPILE-TIME INTERFACE CHECKS
var (
	_ executor.Executor  = (*Engine)(nil)
	_ executor.Historian = (*Engine)(nil)
)

// Engine implements executor.Executor on goja.
type Engine struct {
	cfg       Config
	validator *executor.Validator
	flight    executor.Flight
	events    *executor.EventLog
	timers    *timerSet
	logger    *slog.Logger

	mu sync.Mutex
	// cancelRun interrupts the run in progress, if any.
	cancelRun context.CancelFunc
}

// New creates an idle Engine. Zero Config fields take DefaultConfig values.
func New(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg.withDefaults(),
		validator: executor.NewValidator(),
		events:    executor.NewEventLog(),
		timers:    newTimerSet(),
		logger:    logger,
	}
}

// Execute runs req.Code. See Run.
func (e *Engine) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	return e.Run(ctx, req.Code)
}

// Run validates and evaluates one snippet.
//
// RESULT SHAPES:
//   - rejected by the validator      → Succeeded=false, Err is *UnsafeCodeError or *TooLongError
//   - does not compile               → Succeeded=false, Err is *SyntaxError
//   - interrupted via ctx, Timeout or Close → Succeeded=false, Err wraps ErrInterrupted
//   - threw while running            → Succeeded=true, the message is an error-channel event
//   - ran to completion              → Succeeded=true, ReturnValue is the formatted return value
//
// The only error return is ErrConcurrentExecution (or an internal failure
// building the sandbox).
//
// Callbacks passed to setTimeout may fire after Run returns. Their output
// goes to the engine's event log (see History) and may or may not be in the
// returned Events.
func (e *Engine) Run(ctx context.Context, source string) (*executor.ExecutionResult, error) {
	if !e.flight.TryAcquire() {
		return nil, executor.ErrConcurrentExecution
	}
	defer e.flight.Release()

	start := time.Now()
	e.events.Reset()

	if err := e.validator.Validate(source); err != nil {
		e.logger.Debug("snippet rejected", slog.String("reason", err.Error()))
		return executor.Failed(err, e.events.Snapshot(), start), nil
	}

	env, err := newBuilder(e.cfg, e.events, e.timers, e.logger).Build()
	if err != nil {
		return nil, fmt.Errorf("jsvm: building sandbox: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.setCancelRun(cancel)
	defer e.setCancelRun(nil)

	if e.cfg.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancelTimeout()
	}

	val, err := env.Evaluate(ctx, source)
	var rendered string
	if err == nil {
		rendered, err = env.Render(val)
	}
	if err != nil {
		e.logger.Debug("snippet failed", slog.String("error", err.Error()))
		return executor.Failed(err, e.events.Snapshot(), start), nil
	}

	res := &executor.ExecutionResult{
		Succeeded:   true,
		Events:      e.events.Snapshot(),
		ReturnValue: rendered,
		Duration:    time.Since(start),
	}

	e.logger.Debug("snippet executed",
		slog.Int("events", len(res.Events)),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

func (e *Engine) setCancelRun(cancel context.CancelFunc) {
	e.mu.Lock()
	e.cancelRun = cancel
	e.mu.Unlock()
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	return e.flight.Running()
}

// History returns the events of the current or most recent run, including
// output from deferred callbacks that fired after it returned.
func (e *Engine) History() []executor.CapturedEvent {
	return e.events.Snapshot()
}

// Pending returns how many setTimeout callbacks are scheduled or running.
func (e *Engine) Pending() int {
	return e.timers.pending()
}

// ClearHistory empties the event log.
func (e *Engine) ClearHistory() {
	e.events.Reset()
}

// Close cancels every deferred callback that has not fired yet and
// interrupts the ones running now, along with any run in progress. Runs
// after Close still work, but setTimeout no longer schedules anything and
// returns undefined.
func (e *Engine) Close() error {
	e.timers.stop()

	e.mu.Lock()
	if e.cancelRun != nil {
		e.cancelRun()
	}
	e.mu.Unlock()
	return nil
}
