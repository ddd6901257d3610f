package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/jsmemes/internal/executor"
)

func newCheckCmd() *cobra.Command {
	var example string

	cmd := &cobra.Command{
		Use:   "check [file|-]",
		Short: "Check a snippet against the validator without running it",
		Long: `Apply the length cap and the denylist to a snippet.
Exit status is 0 when the snippet would be allowed to run and 1 when not.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := snippetSource(cmd, args, example)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := executor.NewValidator().Validate(code); err != nil {
				fmt.Fprintf(out, "✗ %s\n", err)
				return &ExitError{Code: 1}
			}

			fmt.Fprintf(out, "✓ ok (%d/%d characters)\n", executor.SourceLength(code), executor.MaxSourceLength)
			return nil
		},
	}

	cmd.Flags().StringVarP(&example, "example", "e", "", "check a built-in example by key")

	return cmd
}
