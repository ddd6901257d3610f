package jsvm

import (
	"time"
)

// Config holds the configuration for the in-process engine.
type Config struct {
	// MaxDeferredDelay caps the delay a snippet may pass to setTimeout.
	MaxDeferredDelay time.Duration
	// MaxCallStackSize bounds JavaScript recursion depth. Exceeding it is
	// reported like a thrown RangeError.
	MaxCallStackSize int
	// Timeout interrupts the snippet body, and separately each setTimeout
	// callback, after this long. Zero disables it; the caller's context and
	// Engine.Close still apply.
	Timeout time.Duration
}

// DefaultConfig provides the defaults for the playground sandbox.
func DefaultConfig() Config {
	return Config{
		MaxDeferredDelay: 5 * time.Second,
		MaxCallStackSize: 1024,
		Timeout:          0,
	}
}

// withDefaults fills zero fields, so callers can set only what they care about.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxDeferredDelay <= 0 {
		c.MaxDeferredDelay = d.MaxDeferredDelay
	}
	if c.MaxCallStackSize <= 0 {
		c.MaxCallStackSize = d.MaxCallStackSize
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	return c
}
