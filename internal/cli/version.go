package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(a *app) *cobra.Command {
	var extended bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// No config is needed to print the version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "socialn %s\n", a.build.Version)
			if extended {
				fmt.Fprintf(out, "Commit: %s\n", a.build.Commit)
				fmt.Fprintf(out, "Built: %s\n", a.build.BuildDate)
				fmt.Fprintf(out, "Go: %s\n", runtime.Version())
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&extended, "extended", "e", false, "show commit, build date and Go version")
	return cmd
}
