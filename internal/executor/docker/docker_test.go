package docker_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/jsmemes/internal/executor"
	"github.com/sakif/jsmemes/internal/executor/docker"
)

func TestDockerExecutor(t *testing.T) {
	// Skip in CI environments if docker is not available
	if os.Getenv("CI") != "" {
		t.Skip("Skipping docker test in CI environment")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := docker.DefaultConfig()
	// reduce pool size for local test speed
	cfg.PoolSize = 1
	cfg.Timeout = 2 * time.Second
	cfg.MaxDeferredDelay = 200 * time.Millisecond

	backend, err := docker.New(cfg, logger)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	defer backend.Close()

	exec := backend.NewExecutor()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	t.Run("successful execution", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.ExecutionRequest{Code: `console.log(1+1)`})
		require.NoError(t, err)
		assert.True(t, res.Succeeded)
		require.Len(t, res.Events, 1)
		assert.Equal(t, []string{"2"}, res.Events[0].Args)
		assert.Equal(t, "undefined", res.ReturnValue)
		assert.Greater(t, res.Duration, time.Duration(0))
	})

	t.Run("runtime fault", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.ExecutionRequest{Code: `undeclaredName`})
		require.NoError(t, err)
		assert.True(t, res.Succeeded)
		require.Len(t, res.Events, 1)
		assert.Equal(t, executor.ChannelError, res.Events[0].Channel)
		assert.Equal(t, []string{`"undeclaredName is not defined"`}, res.Events[0].Args)
	})

	t.Run("syntax error", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.ExecutionRequest{Code: `console.log("Missing parenthesis"`})
		require.NoError(t, err)
		assert.False(t, res.Succeeded)
		var syntax *executor.SyntaxError
		assert.ErrorAs(t, res.Err, &syntax)
	})

	t.Run("return value", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.ExecutionRequest{Code: `return {a: 1}`})
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"a\": 1\n}", res.ReturnValue)
	})

	t.Run("timeout", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.ExecutionRequest{Code: `let i = 0; while (i >= 0) { i++ }`})
		require.NoError(t, err)
		assert.False(t, res.Succeeded)
		assert.ErrorIs(t, res.Err, executor.ErrInterrupted)
	})

	t.Run("late callback lands in history", func(t *testing.T) {
		_, err := exec.Execute(ctx, executor.ExecutionRequest{Code: `setTimeout(() => console.log("late"), 99999)`})
		require.NoError(t, err)
		assert.Eventually(t, func() bool {
			return len(exec.History()) == 1
		}, 5*time.Second, 50*time.Millisecond)
	})
}
