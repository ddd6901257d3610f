package jsvm

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// ClampDelay caps a requested setTimeout delay. Anything above limit becomes
// limit; anything else passes through unchanged.
func ClampDelay(d, limit time.Duration) time.Duration {
	if d > limit {
		return limit
	}
	return d
}

// delayArg converts setTimeout's second argument the way browsers do:
// missing, NaN and negative delays all mean "as soon as possible".
func delayArg(v goja.Value) time.Duration {
	if v == nil || goja.IsUndefined(v) {
		return 0
	}
	ms := v.ToFloat()
	if math.IsNaN(ms) || ms <= 0 {
		return 0
	}
	if ms > float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// timerSet tracks the deferred callbacks an engine has scheduled so they can
// all be cancelled when the engine is closed.
//
// A callback is pending from schedule until it returns. stop cancels the
// ones that have not started; the ones already running stay counted until
// they finish, and see their context cancelled so they can be interrupted.
type timerSet struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	next   uint64
	timers map[uint64]*timer
	closed bool
}

type timer struct {
	t       *time.Timer
	running bool
}

func newTimerSet() *timerSet {
	ctx, cancel := context.WithCancel(context.Background())
	return &timerSet{
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[uint64]*timer),
	}
}

// context is cancelled by stop.
func (s *timerSet) context() context.Context {
	return s.ctx
}

// schedule runs fn on its own goroutine after d. It returns false once the
// set has been stopped.
func (s *timerSet) schedule(d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	id := s.next
	s.next++
	entry := &timer{}
	entry.t = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		entry.running = live
		s.mu.Unlock()
		if !live {
			return
		}

		fn()

		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
	})
	s.timers[id] = entry
	return true
}

// pending returns how many callbacks have not finished yet.
func (s *timerSet) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// stop cancels every callback that has not started, refuses new ones and
// cancels the set's context.
func (s *timerSet) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancel()
	for id, entry := range s.timers {
		if entry.running {
			continue
		}
		entry.t.Stop()
		delete(s.timers, id)
	}
}
