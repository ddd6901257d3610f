package jsvm

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampDelay(t *testing.T) {
	limit := 5 * time.Second

	assert.Equal(t, limit, ClampDelay(99999*time.Millisecond, limit))
	assert.Equal(t, limit, ClampDelay(limit, limit))
	assert.Equal(t, 100*time.Millisecond, ClampDelay(100*time.Millisecond, limit))
	assert.Equal(t, time.Duration(0), ClampDelay(0, limit))
}

func TestDelayArg(t *testing.T) {
	vm := goja.New()

	assert.Equal(t, time.Duration(0), delayArg(nil))
	assert.Equal(t, time.Duration(0), delayArg(goja.Undefined()))
	assert.Equal(t, time.Duration(0), delayArg(vm.ToValue(math.NaN())))
	assert.Equal(t, time.Duration(0), delayArg(vm.ToValue(-10)))
	assert.Equal(t, 250*time.Millisecond, delayArg(vm.ToValue(250)))
	assert.Equal(t, 1500*time.Microsecond, delayArg(vm.ToValue(1.5)))
	assert.Equal(t, 20*time.Millisecond, delayArg(vm.ToValue("20")))
	assert.Equal(t, time.Duration(math.MaxInt64), delayArg(vm.ToValue(math.Inf(1))))
}

func TestTimerSet(t *testing.T) {
	t.Run("fires scheduled callbacks", func(t *testing.T) {
		s := newTimerSet()
		var fired atomic.Int32

		require.True(t, s.schedule(0, func() { fired.Add(1) }))
		require.True(t, s.schedule(5*time.Millisecond, func() { fired.Add(1) }))

		assert.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)
		assert.Eventually(t, func() bool { return s.pending() == 0 }, time.Second, 5*time.Millisecond)
	})

	t.Run("stop cancels pending and refuses new callbacks", func(t *testing.T) {
		s := newTimerSet()
		var fired atomic.Int32

		require.True(t, s.schedule(time.Hour, func() { fired.Add(1) }))
		assert.Equal(t, 1, s.pending())

		s.stop()
		assert.Equal(t, 0, s.pending())
		assert.False(t, s.schedule(0, func() { fired.Add(1) }))

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, int32(0), fired.Load())
	})
}

func TestTimerSet_PendingIncludesRunningCallback(t *testing.T) {
	s := newTimerSet()
	started := make(chan struct{})
	release := make(chan struct{})

	require.True(t, s.schedule(0, func() {
		close(started)
		<-release
	}))

	<-started
	assert.Equal(t, 1, s.pending())

	close(release)
	assert.Eventually(t, func() bool { return s.pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTimerSet_StopKeepsRunningCallbackCounted(t *testing.T) {
	s := newTimerSet()
	started := make(chan struct{})
	release := make(chan struct{})

	require.True(t, s.schedule(0, func() {
		close(started)
		<-release
	}))
	require.True(t, s.schedule(time.Hour, func() {}))

	<-started
	assert.Equal(t, 2, s.pending())

	s.stop()
	assert.Equal(t, 1, s.pending(), "the running callback stays counted")
	assert.ErrorIs(t, s.context().Err(), context.Canceled)

	close(release)
	assert.Eventually(t, func() bool { return s.pending() == 0 }, time.Second, 5*time.Millisecond)
}
