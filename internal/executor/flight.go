package executor

import (
	"sync/atomic"
)

// Flight is a single-flight guard: at most one holder at a time, and a
// second caller is turned away instead of waiting.
//
// Usage:
//
//	if !f.TryAcquire() {
//	    return nil, ErrConcurrentExecution
//	}
//	defer f.Release()
type Flight struct {
	running atomic.Bool
}

// TryAcquire claims the guard. It returns false without blocking if the
// guard is already held.
func (f *Flight) TryAcquire() bool {
	return f.running.CompareAndSwap(false, true)
}

// Release frees the guard. Always pair it with a successful TryAcquire via
// defer so every exit path releases.
func (f *Flight) Release() {
	f.running.Store(false)
}

// Running reports whether a run currently holds the guard.
func (f *Flight) Running() bool {
	return f.running.Load()
}
