package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"filmlog/internal/api"
	"filmlog/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check local directories, site reachability, and daemon health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Local", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderField("Config", ctx.configPath))
			fmt.Fprintln(out, renderField("Database", cfg.DatabasePath()))
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				fmt.Fprintln(out, renderStatusLine(r.Name, checkKind(r.Passed), r.Detail, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			bind := ctx.apiBind()
			client, err := api.NewClient(bind, cfg.Paths.APIToken)
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("API", statusWarn, "no api_bind configured", colorize))
			} else if health, err := client.Health(cmd.Context()); err != nil {
				detail := err.Error()
				if api.IsAPIUnavailable(err) {
					detail = "not running at " + bind
				}
				fmt.Fprintln(out, renderStatusLine("API", statusWarn, detail, colorize))
			} else {
				renderHealth(out, health, colorize)
			}

			if !preflight.AllPassed(results) {
				return errors.New("one or more local checks failed")
			}
			return nil
		},
	}
}

func renderHealth(out io.Writer, health api.Health, colorize bool) {
	kind := statusOK
	if health.Status != "ok" {
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Status", kind, health.Status, colorize))
	fmt.Fprintln(out, renderField("Running", yesNo(health.Running)))
	fmt.Fprintln(out, renderField("PID", fmt.Sprintf("%d", health.PID)))
	fmt.Fprintln(out, renderField("Active jobs", fmt.Sprintf("%d", health.ActiveJobs)))
	if health.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, health.LastError, colorize))
	}
	for _, c := range health.Checks {
		fmt.Fprintln(out, renderStatusLine(c.Name, checkKind(c.Passed), c.Detail, colorize))
	}
}
