package docker

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/jsmemes/internal/apperror"
	"github.com/sakif/jsmemes/internal/executor"
)

type recorded struct {
	ch   executor.Channel
	args []string
}

func collect(t *testing.T, out string) ([]recorded, []harnessMessage) {
	t.Helper()
	var events []recorded
	var results []harnessMessage
	err := readHarness(strings.NewReader(out),
		func(ch executor.Channel, args []string) { events = append(events, recorded{ch, args}) },
		func(msg harnessMessage) { results = append(results, msg) },
	)
	require.NoError(t, err)
	return events, results
}

func TestReadHarness(t *testing.T) {
	t.Run("events then result then late events", func(t *testing.T) {
		out := `{"kind":"event","type":"log","args":["2"]}
{"kind":"event","type":"warn","args":["\"careful\"","1"]}
{"kind":"result","success":true,"result":"undefined"}
{"kind":"event","type":"log","args":["\"late\""]}
`
		events, results := collect(t, out)

		require.Len(t, events, 3)
		assert.Equal(t, recorded{executor.ChannelLog, []string{"2"}}, events[0])
		assert.Equal(t, recorded{executor.ChannelWarn, []string{`"careful"`, "1"}}, events[1])
		assert.Equal(t, recorded{executor.ChannelLog, []string{`"late"`}}, events[2])

		require.Len(t, results, 1)
		assert.True(t, results[0].Success)
		assert.Equal(t, "undefined", results[0].Result)
	})

	t.Run("skips noise and unknown channels", func(t *testing.T) {
		out := `(node:1) ExperimentalWarning: something
{"kind":"event","type":"debug","args":["x"]}
{"kind":"event","type":"error","args":null}
not json at all
{"kind":"result","success":true,"result":"1"}
{"kind":"result","success":true,"result":"2"}
`
		events, results := collect(t, out)

		require.Len(t, events, 1)
		assert.Equal(t, executor.ChannelError, events[0].ch)
		assert.Equal(t, []string{}, events[0].args)

		require.Len(t, results, 1, "only the first result line counts")
		assert.Equal(t, "1", results[0].Result)
	})

	t.Run("no output", func(t *testing.T) {
		events, results := collect(t, "")
		assert.Empty(t, events)
		assert.Empty(t, results)
	})
}

func TestHarnessOutcome(t *testing.T) {
	value, err := harnessMessage{Kind: "result", Success: true, Result: `"hi"`}.outcome()
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, value)

	_, err = harnessMessage{Kind: "result", Syntax: true, Error: "Unexpected end of input"}.outcome()
	var syntax *executor.SyntaxError
	require.ErrorAs(t, err, &syntax)
	assert.Equal(t, "Unexpected end of input", syntax.Message)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = harnessMessage{Kind: "result", Interrupted: true, Error: "Script execution timed out after 10ms"}.outcome()
	assert.ErrorIs(t, err, executor.ErrInterrupted)

	_, err = harnessMessage{Kind: "result", Error: "weird"}.outcome()
	assert.Error(t, err)
}

func TestHarnessEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 1500 * time.Millisecond
	code := "console.log(\"a\")\n// ünïcode 🎉"

	env := harnessEnv(code, cfg)

	require.Len(t, env, 3)
	encoded, ok := strings.CutPrefix(env[0], "SNIPPET_B64=")
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, code, string(decoded))
	assert.Equal(t, "SNIPPET_MAX_DELAY_MS=5000", env[1])
	assert.Equal(t, "SNIPPET_TIMEOUT_MS=1500", env[2])
}

func TestHarnessScriptEmbedded(t *testing.T) {
	assert.Contains(t, harnessScript, "runInNewContext")
	assert.Contains(t, harnessScript, "SNIPPET_B64")
}

func TestExecutorRejectsBeforeTouchingDocker(t *testing.T) {
	// A Backend without a client: validation must fail the run before any
	// container is requested.
	e := (&Backend{config: DefaultConfig()}).NewExecutor()

	res, err := e.Execute(context.Background(), executor.ExecutionRequest{Code: `fetch("https://example.com")`})
	require.NoError(t, err)
	assert.False(t, res.Succeeded)

	var unsafe *executor.UnsafeCodeError
	require.ErrorAs(t, res.Err, &unsafe)
	assert.Equal(t, "fetch(", unsafe.Pattern)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "node:22-alpine", cfg.Image)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Second, cfg.MaxDeferredDelay)
	assert.Equal(t, 1, cfg.PoolSize)
}
