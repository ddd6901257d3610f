package executor

import (
	"sync"
	"time"
)

// EventLog is the append-only record of console calls for the current run.
//
// Deferred callbacks fire on timer goroutines and may append after the run
// that scheduled them has returned, so access is serialized.
type EventLog struct {
	mu     sync.Mutex
	events []CapturedEvent
	now    func() time.Time
}

// NewEventLog returns an empty log stamped with the wall clock.
func NewEventLog() *EventLog {
	return &EventLog{now: time.Now}
}

// Append records one console call.
func (l *EventLog) Append(ch Channel, args []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, CapturedEvent{
		Channel:   ch,
		Args:      args,
		Timestamp: l.now().UnixMilli(),
	})
}

// Reset drops every recorded event.
func (l *EventLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// Snapshot returns a copy of the events recorded so far, in emission order.
// The result is never nil so it encodes as [] rather than null.
func (l *EventLog) Snapshot() []CapturedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]CapturedEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
