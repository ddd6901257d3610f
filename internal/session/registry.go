package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/executor"
)

// Runner is the executor a session owns.
type Runner interface {
	executor.Executor
	executor.Historian
	Running() bool
	Close() error
}

// Factory creates the executor for a new session.
type Factory func() Runner

// RegistryConfig bounds how many sessions live at once and for how long.
type RegistryConfig struct {
	// MaxSessions caps live sessions; Get fails with ErrUnavailable beyond it.
	MaxSessions int
	// IdleTimeout evicts a session that has not been used for this long.
	IdleTimeout time.Duration
	// SweepInterval is how often the background loop looks for idle
	// sessions. Defaults to IdleTimeout/4.
	SweepInterval time.Duration
}

type entry struct {
	runner   Runner
	lastUsed time.Time
}

// Registry maps session IDs to their executors.
//
// Every playground session gets its own executor so one visitor's
// long-running snippet never blocks another's. Executors are created lazily
// on the first Get and closed when the session is evicted, which also cancels
// any setTimeout callbacks still pending in it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  Factory
	cfg      RegistryConfig
	logger   *slog.Logger
	now      func() time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewRegistry creates an empty registry. Call Start to enable idle eviction.
func NewRegistry(factory Factory, cfg RegistryConfig, logger *slog.Logger) *Registry {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.IdleTimeout / 4
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Registry{
		sessions: make(map[string]*entry),
		factory:  factory,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start launches the background eviction loop.
func (r *Registry) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.sweeper()
	})
}

// Get returns the executor for id, creating one if the session is new.
func (r *Registry) Get(id string) (Runner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[id]; ok {
		e.lastUsed = r.now()
		return e.runner, nil
	}

	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.logger.Warn("session limit reached", slog.Int("max_sessions", r.cfg.MaxSessions))
		return nil, apperror.Unavailable("too many active sessions, try again later")
	}

	runner := r.factory()
	r.sessions[id] = &entry{runner: runner, lastUsed: r.now()}
	r.logger.Debug("session executor created", slog.String("session_id", id))
	return runner, nil
}

// Lookup returns the executor for id without creating one.
func (r *Registry) Lookup(id string) (Runner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.runner, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts every session idle past IdleTimeout and returns how many it
// removed. A session in the middle of a run is never evicted.
func (r *Registry) Sweep() int {
	if r.cfg.IdleTimeout <= 0 {
		return 0
	}

	r.mu.Lock()
	cutoff := r.now().Add(-r.cfg.IdleTimeout)
	var evicted []Runner
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) && !e.runner.Running() {
			evicted = append(evicted, e.runner)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, runner := range evicted {
		r.closeRunner(runner)
	}
	if len(evicted) > 0 {
		r.logger.Info("evicted idle sessions", slog.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Close stops the eviction loop and closes every executor.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		r.mu.Lock()
		sessions := r.sessions
		r.sessions = make(map[string]*entry)
		r.mu.Unlock()

		for _, e := range sessions {
			r.closeRunner(e.runner)
		}
	})
}

func (r *Registry) sweeper() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) closeRunner(runner Runner) {
	if err := runner.Close(); err != nil {
		r.logger.Warn("failed to close session executor", slog.String("error", err.Error()))
	}
}
