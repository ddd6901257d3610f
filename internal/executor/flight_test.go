package executor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlight_SecondAcquireFails(t *testing.T) {
	var f Flight

	assert.True(t, f.TryAcquire())
	assert.True(t, f.Running())
	assert.False(t, f.TryAcquire(), "second acquire must be turned away")

	f.Release()
	assert.False(t, f.Running())
	assert.True(t, f.TryAcquire(), "guard is reusable after release")
}

func TestFlight_OnlyOneWinnerUnderContention(t *testing.T) {
	var (
		f       Flight
		winners atomic.Int32
		wg      sync.WaitGroup
		start   = make(chan struct{})
	)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if f.TryAcquire() {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestEventLog_AppendSnapshotReset(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	l := NewEventLog()
	l.now = func() time.Time { return fixed }

	l.Append(ChannelLog, []string{"2"})
	l.Append(ChannelWarn, []string{`"careful"`, "1"})

	snap := l.Snapshot()
	assert.Equal(t, []CapturedEvent{
		{Channel: ChannelLog, Args: []string{"2"}, Timestamp: 1700000000000},
		{Channel: ChannelWarn, Args: []string{`"careful"`, "1"}, Timestamp: 1700000000000},
	}, snap)

	// The snapshot is a copy: later appends don't show up in it.
	l.Append(ChannelError, []string{"x"})
	assert.Len(t, snap, 2)
	assert.Equal(t, 3, l.Len())

	l.Reset()
	assert.Equal(t, 0, l.Len())
	assert.NotNil(t, l.Snapshot(), "empty snapshot encodes as [] not null")
}
