package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the lineal version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lineal %s", Version)
			if GitCommit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", GitCommit)
			}
			fmt.Fprintln(cmd.OutOrStdout())
		},
	}
}
