package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/socialn/socialn/store"
)

func newMigrateCommand(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list {
				names, err := store.Migrations()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}

			pg, err := openPostgres(cmd.Context(), a.cfg.Database)
			if err != nil {
				return err
			}
			defer pg.Close()

			applied, err := store.Migrate(cmd.Context(), pg.DB())
			if err != nil {
				return err
			}
			for _, n := range applied {
				fmt.Fprintf(out, "applied %s\n", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print migration names without connecting")
	return cmd
}
