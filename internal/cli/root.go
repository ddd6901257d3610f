// Package cli implements the snippet command: run and check playground
// snippets from a terminal with the same engine the server uses.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// ExitError carries a process exit status out of a command. The message,
// if any, has already been printed.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

type globalFlags struct {
	verbose bool
}

// NewRootCmd creates the snippet command tree.
func NewRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "snippet",
		Short: "Run JavaScript playground snippets from the terminal",
		Long: `snippet runs JavaScript snippets in the same sandbox the playground
server uses: console.log/warn/error and a capped setTimeout, nothing else.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log engine activity to stderr")

	logger := func(cmd *cobra.Command) *slog.Logger {
		level := slog.LevelError
		if flags.verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	}

	rootCmd.AddCommand(newRunCmd(logger))
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newExamplesCmd())

	return rootCmd
}

// readSource returns the snippet from a file argument, or from in when the
// argument is "-" or missing.
func readSource(args []string, in io.Reader, open func(string) ([]byte, error)) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := open(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}
