package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"postgate/internal/daemon"
	"postgate/internal/health"
	"postgate/internal/preflight"
)

func newHealthcheckCommand(ctx *commandContext) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Exit non-zero unless the role's heartbeat is fresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case daemon.RoleBot, daemon.RolePublisher, daemon.RoleDashboard:
			default:
				return fmt.Errorf("unknown role %q (want bot, publisher or dashboard)", role)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			hb, err := health.Check(cfg.Health.Dir, role, cfg.HealthMaxAge(), time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s healthy (uptime %s)", role, time.Duration(hb.UptimeSeconds*float64(time.Second)).Round(time.Second))
			if hb.PostsToday != nil {
				fmt.Fprintf(out, ", posts today %d", *hb.PostsToday)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Role to check (bot, publisher, dashboard)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check directories and provider credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			rows := make([][]string, 0, len(results))
			out := cmd.OutOrStdout()
			for _, r := range results {
				rows = append(rows, []string{r.Name, checkResult(out, r.Passed), r.Detail})
			}
			fmt.Fprint(out, renderTable(out, checkColumns, rows))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
}
