package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"filmlog/internal/api"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	var output *outputFlags

	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"ls"},
		Short:   "List synced profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				profiles, err := client.Profiles(cmd.Context())
				if err != nil {
					return err
				}
				return output.emit(cmd, profiles, func(out io.Writer, colorize bool) {
					renderProfiles(out, profiles, colorize)
				})
			})
		},
	}
	output = addOutputFlags(cmd)
	return cmd
}

func renderProfiles(out io.Writer, profiles []api.ProfileListItem, colorize bool) {
	if len(profiles) == 0 {
		fmt.Fprintln(out, "No synced profiles")
		return
	}
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{
			p.Username,
			p.DisplayName,
			fmt.Sprintf("%d", p.TotalFilms),
			formatRating(p.AverageRating),
			p.LastSyncedAt,
		})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		Headers: []string{"Username", "Name", "Films", "Avg", "Last synced"},
		Rows:    rows,
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	}, colorize))
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a profile and everything ingested for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", resp.Username)
				return nil
			})
		},
	}
}

func formatRating(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
