package docker

import (
	"time"
)

// Config holds the configuration for Docker execution.
type Config struct {
	// Image must provide a `node` binary on PATH.
	Image string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Timeout bounds the synchronous part of a run. node enforces it inside
	// the container; the host gives up a little later if node does not.
	Timeout time.Duration
	// MaxDeferredDelay caps setTimeout delays inside the harness.
	MaxDeferredDelay time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
}

// DefaultConfig provides sensible defaults for a node sandbox.
func DefaultConfig() Config {
	return Config{
		Image: "node:22-alpine",
		// 128 MB memory limit
		MemoryLimit: 128 * 1024 * 1024,
		// 0.5 CPU shares
		CPULimit:         0.5,
		Timeout:          10 * time.Second,
		MaxDeferredDelay: 5 * time.Second,
		PoolSize:         3,
	}
}

// hostGrace is how long past Timeout the host waits for the harness to
// report before it kills the container itself.
const hostGrace = 2 * time.Second

// withDefaults fills unset fields. Unlike the goja engine the container
// backend always needs a timeout: nothing else stops a runaway node process.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Image == "" {
		c.Image = d.Image
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxDeferredDelay <= 0 {
		c.MaxDeferredDelay = d.MaxDeferredDelay
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 1
	}
	return c
}
