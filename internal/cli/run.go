package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/jsmemes/internal/examples"
	"github.com/sakif/jsmemes/internal/executor"
	"github.com/sakif/jsmemes/internal/executor/jsvm"
)

type runOptions struct {
	example    string
	jsonOutput bool
	timeout    time.Duration
	maxDelay   time.Duration
	wait       time.Duration
	noColor    bool
}

// runOutput is the --json shape: the result plus everything logged up to
// the point the command stopped waiting for timers.
type runOutput struct {
	*executor.ExecutionResult
	History []executor.CapturedEvent `json:"history"`
}

func newRunCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [file|-]",
		Short: "Run a snippet",
		Long: `Run a snippet from a file, from stdin, or from the built-in examples.

Output from setTimeout callbacks is printed as it arrives, until no callbacks
are left or --wait runs out. Exit status is 1 when the snippet was rejected,
failed to compile or was interrupted; a snippet that throws still exits 0.`,
		Example: `  snippet run quirks.js
  echo 'console.log([] + {})' | snippet run
  snippet run --example closures`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnippet(cmd, args, opts, logger(cmd))
		},
	}

	defaults := jsvm.DefaultConfig()
	cmd.Flags().StringVarP(&opts.example, "example", "e", "", "run a built-in example by key")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output the result as JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "interrupt the snippet after this long (0 disables)")
	cmd.Flags().DurationVar(&opts.maxDelay, "max-delay", defaults.MaxDeferredDelay, "cap on setTimeout delays")
	cmd.Flags().DurationVar(&opts.wait, "wait", defaults.MaxDeferredDelay+time.Second, "how long to wait for pending setTimeout callbacks")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	return cmd
}

func runSnippet(cmd *cobra.Command, args []string, opts runOptions, logger *slog.Logger) error {
	code, err := snippetSource(cmd, args, opts.example)
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "nothing to run: code is empty")
		return &ExitError{Code: 2}
	}

	engine := jsvm.New(jsvm.Config{
		MaxDeferredDelay: opts.maxDelay,
		Timeout:          opts.timeout,
	}, logger)
	defer engine.Close()

	// Ctrl-C interrupts the snippet instead of killing the process.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := engine.Run(ctx, code)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tint := !opts.noColor && !opts.jsonOutput && shouldTint(out)

	if !opts.jsonOutput {
		if err := Render(out, res, tint); err != nil {
			return err
		}
	}

	var history []executor.CapturedEvent
	if res.Succeeded {
		history = awaitTimers(ctx, engine, opts.wait)
	} else {
		history = engine.History()
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runOutput{ExecutionResult: res, History: history}); err != nil {
			return err
		}
	} else if len(history) > len(res.Events) {
		if err := RenderEvents(out, history[len(res.Events):], tint); err != nil {
			return err
		}
	}

	if !res.Succeeded {
		return &ExitError{Code: 1}
	}
	return nil
}

// awaitTimers polls until the engine has no callbacks left, wait elapses, or
// ctx ends, then returns the full event log.
func awaitTimers(ctx context.Context, engine *jsvm.Engine, wait time.Duration) []executor.CapturedEvent {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for engine.Pending() > 0 {
		select {
		case <-ctx.Done():
			return engine.History()
		case <-deadline.C:
			return engine.History()
		case <-tick.C:
		}
	}
	return engine.History()
}

// snippetSource resolves --example or the file/stdin argument.
func snippetSource(cmd *cobra.Command, args []string, example string) (string, error) {
	if example == "" {
		return readSource(args, cmd.InOrStdin(), os.ReadFile)
	}
	if len(args) > 0 {
		return "", fmt.Errorf("--example and a file argument are mutually exclusive")
	}
	catalog, err := examples.Load()
	if err != nil {
		return "", err
	}
	ex, err := catalog.Get(example)
	if err != nil {
		return "", err
	}
	return ex.Code, nil
}
