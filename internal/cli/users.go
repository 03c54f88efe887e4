package cli

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/socialn/socialn/store"
)

func newUsersCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List accounts in a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := openPostgres(cmd.Context(), a.cfg.Database)
			if err != nil {
				return err
			}
			defer pg.Close()

			users, err := pg.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			renderUsers(cmd.OutOrStdout(), users)
			return nil
		},
	})
	return cmd
}

func renderUsers(w io.Writer, users []store.User) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "User name", "Full name", "Email", "Status", "Created"})
	for _, u := range users {
		t.AppendRow(table.Row{
			u.ID,
			u.UserName,
			u.FullName,
			u.Email,
			statusLabel(u.Status),
			u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(users)})
	t.Render()
}

func statusLabel(status uint8) string {
	if status == store.UserDisabled {
		return "disabled"
	}
	return "active"
}
