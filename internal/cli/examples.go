package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/jsmemes/internal/examples"
)

func newExamplesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "examples [key]",
		Short: "List the built-in examples, or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := examples.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				ex, err := catalog.Get(args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return json.NewEncoder(out).Encode(ex)
				}
				_, err = fmt.Fprint(out, ex.Code)
				return err
			}

			list := catalog.List()
			if jsonOutput {
				return json.NewEncoder(out).Encode(list)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tNAME\tDESCRIPTION")
			for _, ex := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ex.Key, ex.Name, ex.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}
