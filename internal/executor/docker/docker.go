// Package docker runs playground snippets under node inside throwaway,
// network-less containers.
//
// WHY A SECOND BACKEND?
// The in-process goja engine shares the server's memory and CPU. When the
// playground is exposed to strangers, running each snippet in its own
// container with hard memory and CPU limits is the stronger boundary. Both
// backends honour the same executor contract, so the rest of the server does
// not care which one is configured.
//
// THE FLOW OF ONE RUN:
//
//	validate → take a warm container from the Pool → docker exec node -e <harness>
//	         → stream JSON lines (events, then one result) → return on the result line
//	         → keep streaming late setTimeout output → remove the container
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/jsmemes/internal/executor"
)

// Backend owns the docker client and the container pool. It hands out one
// Executor per playground session; they all draw from the same pool.
type Backend struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New connects to the docker daemon, pulls the image and starts the pool.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	cfg = cfg.withDefaults()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	_, _ = io.Copy(io.Discard, reader)
	logger.Info("docker image is ready")

	b := &Backend{
		cli:    cli,
		config: cfg,
		logger: logger,
	}
	b.pool = NewPool(cli, cfg, logger)
	b.pool.Start()

	return b, nil
}

// Close shuts down the pool and the docker client.
func (b *Backend) Close() error {
	b.pool.Stop()
	return b.cli.Close()
}

// NewExecutor returns an idle executor with its own guard and event log.
func (b *Backend) NewExecutor() *Executor {
	return &Executor{
		backend:   b,
		validator: executor.NewValidator(),
		events:    executor.NewEventLog(),
	}
}

// COMPILE-TIME INTERFACE CHECKS
var (
	_ executor.Executor  = (*Executor)(nil)
	_ executor.Historian = (*Executor)(nil)
)

// Executor implements executor.Executor on a Backend.
type Executor struct {
	backend   *Backend
	validator *executor.Validator
	flight    executor.Flight
	events    *executor.EventLog
}

// Execute validates req.Code and runs it in a pooled container. Result
// shapes match the goja engine's; see jsvm.Engine.Run.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	if !e.flight.TryAcquire() {
		return nil, executor.ErrConcurrentExecution
	}
	defer e.flight.Release()

	start := time.Now()
	e.events.Reset()

	if err := e.validator.Validate(req.Code); err != nil {
		return executor.Failed(err, e.events.Snapshot(), start), nil
	}

	b := e.backend
	containerID, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}

	// The container outlives Execute when setTimeout callbacks are pending,
	// so its lifetime is bounded separately from ctx.
	lifetime, release := context.WithTimeout(context.Background(),
		b.config.Timeout+b.config.MaxDeferredDelay+hostGrace)

	execResp, err := b.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Env:          harnessEnv(req.Code, b.config),
		Cmd:          []string{"node", "-e", harnessScript},
	})
	if err != nil {
		release()
		b.pool.discard(containerID)
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := b.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		release()
		b.pool.discard(containerID)
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}

	results := make(chan harnessMessage, 1)
	streamDone := make(chan struct{})
	var stderr strings.Builder

	go func() {
		defer close(streamDone)
		pr, pw := io.Pipe()
		go func() {
			// Use stdcopy to demultiplex stdout from stderr
			_, err := stdcopy.StdCopy(pw, &stderr, attachResp.Reader)
			pw.CloseWithError(err)
		}()
		err := readHarness(pr,
			func(ch executor.Channel, args []string) { e.events.Append(ch, args) },
			func(msg harnessMessage) { results <- msg },
		)
		if err != nil {
			b.logger.Debug("sandbox stream ended", slog.String("error", err.Error()))
		}
	}()

	go func() {
		select {
		case <-streamDone:
		case <-lifetime.Done():
		}
		release()
		attachResp.Close()
		b.pool.discard(containerID)
	}()

	deadline := time.NewTimer(b.config.Timeout + hostGrace)
	defer deadline.Stop()

	select {
	case msg := <-results:
		return e.report(msg, start), nil

	case <-streamDone:
		select {
		case msg := <-results:
			return e.report(msg, start), nil
		default:
		}
		// node exited without reporting, e.g. killed for exceeding memory.
		release()
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "no result reported"
		}
		return executor.Failed(fmt.Errorf("sandbox exited: %s", msg), e.events.Snapshot(), start), nil

	case <-deadline.C:
		release()
		return executor.Failed(fmt.Errorf("%w: no result within %s", executor.ErrInterrupted, b.config.Timeout),
			e.events.Snapshot(), start), nil

	case <-ctx.Done():
		release()
		return executor.Failed(fmt.Errorf("%w: %v", executor.ErrInterrupted, context.Cause(ctx)),
			e.events.Snapshot(), start), nil
	}
}

// report turns the harness result line into the run's result.
func (e *Executor) report(msg harnessMessage, start time.Time) *executor.ExecutionResult {
	value, err := msg.outcome()
	if err != nil {
		return executor.Failed(err, e.events.Snapshot(), start)
	}
	return &executor.ExecutionResult{
		Succeeded:   true,
		Events:      e.events.Snapshot(),
		ReturnValue: value,
		Duration:    time.Since(start),
	}
}

// Running reports whether a run is in progress.
func (e *Executor) Running() bool {
	return e.flight.Running()
}

// History returns the events of the current or most recent run.
func (e *Executor) History() []executor.CapturedEvent {
	return e.events.Snapshot()
}

// ClearHistory empties the event log.
func (e *Executor) ClearHistory() {
	e.events.Reset()
}

// Close is a no-op; containers are owned by the Backend. It exists so
// sessions can close any executor the same way.
func (e *Executor) Close() error {
	return nil
}
