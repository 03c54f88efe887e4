package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/socialn/socialn"
)

func newDoctorCommand(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Report the security posture of the auth configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			engineCfg, err := a.cfg.Engine()
			if err != nil {
				return err
			}
			report := engineCfg.SecurityReport()
			renderReport(cmd.OutOrStdout(), report)
			if strict && len(report.Findings) > 0 {
				return fmt.Errorf("%d security finding(s)", len(report.Findings))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when there are findings")
	return cmd
}

func renderReport(w io.Writer, r socialn.SecurityReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRows([]table.Row{
		{"Signing algorithm", r.SigningAlgorithm},
		{"Strict validation", r.StrictMode},
		{"Access TTL", r.AccessTTL},
		{"Refresh TTL", r.RefreshTTL},
		{"Argon2 memory (KiB)", r.Argon2.Memory},
		{"Argon2 iterations", r.Argon2.Time},
		{"Refresh rotation", r.RefreshRotation},
		{"Reuse detection", r.RefreshReuseDetection},
		{"Login rate limiting", r.LoginRateLimiting},
		{"Refresh rate limiting", r.RefreshRateLimiting},
		{"Audit", r.AuditEnabled},
	})
	t.Render()

	for _, f := range r.Findings {
		fmt.Fprintf(w, "! %s\n", f)
	}
}
