// Command snippet runs playground snippets from the terminal.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sakif/jsmemes/internal/cli"
)

func main() {
	err := cli.NewRootCmd().Execute()

	// ExitError means the command already said what went wrong.
	var exit *cli.ExitError
	if err != nil && !errors.As(err, &exit) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(cli.ExitCode(err))
}
