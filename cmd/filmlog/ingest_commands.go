package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"filmlog/internal/api"
	"filmlog/internal/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var timeout time.Duration
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "ingest <username>",
		Short: "Queue an ingestion of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if pollInterval <= 0 {
				pollInterval = cfg.PollInterval()
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Ingest(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Queued ingestion for %s (job %s)\n", resp.Username, resp.JobID)
				if !wait {
					return nil
				}

				job, err := waitForJob(cmd.Context(), client, resp.Username, pollInterval, timeout, out)
				if err != nil {
					return err
				}
				renderJob(out, job, colorize)
				if job.State != string(store.JobCompleted) {
					return fmt.Errorf("ingestion %s: %s", job.State, job.ErrorMessage)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the ingestion to finish")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Maximum time to wait (0 waits forever)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Status poll interval (defaults to jobs.poll_interval)")
	return cmd
}

// waitForJob polls the job for username until it reaches a terminal state,
// printing a line whenever its progress message changes.
func waitForJob(ctx context.Context, client *api.Client, username string, interval, timeout time.Duration, out io.Writer) (api.Job, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMessage string
	for {
		job, err := client.Status(ctx, username)
		if err != nil {
			if ctx.Err() != nil {
				return api.Job{}, fmt.Errorf("timed out waiting for %s after %s", username, timeout)
			}
			return api.Job{}, err
		}
		if state, ok := store.ParseJobState(job.State); ok && state.IsTerminal() {
			return job, nil
		}
		if job.ProgressMessage != lastMessage {
			fmt.Fprintf(out, "%s %s\n", renderProgressBar(job.ProgressPercentage), job.ProgressMessage)
			lastMessage = job.ProgressMessage
		}

		select {
		case <-ctx.Done():
			return api.Job{}, fmt.Errorf("timed out waiting for %s after %s; job is still %s", username, timeout, job.State)
		case <-ticker.C:
		}
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var output *outputFlags

	cmd := &cobra.Command{
		Use:   "status <username>",
		Short: "Show the latest ingestion job for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return output.emit(cmd, job, func(out io.Writer, colorize bool) {
					renderJob(out, job, colorize)
				})
			})
		},
	}
	output = addOutputFlags(cmd)
	return cmd
}

func renderJob(out io.Writer, job api.Job, colorize bool) {
	for _, line := range renderSectionHeader("Job "+job.Username, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("State", jobStateKind(job.State), job.State, colorize))
	fmt.Fprintln(out, renderField("Job ID", job.JobID))
	fmt.Fprintln(out, renderField("Progress", renderProgressBar(job.ProgressPercentage)))
	if job.ProgressMessage != "" {
		fmt.Fprintln(out, renderField("Message", job.ProgressMessage))
	}
	fmt.Fprintln(out, renderField("Pages", fmt.Sprintf("%d/%d fetched, %d skipped", job.PagesFetched, job.PagesTotal, job.PagesSkipped)))
	fmt.Fprintln(out, renderField("Records", fmt.Sprintf("%d", job.RecordsParsed)))
	fmt.Fprintln(out, renderField("Queued", job.QueuedAt))
	if job.CompletedAt != "" {
		fmt.Fprintln(out, renderField("Finished", job.CompletedAt))
	}
	if job.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, fmt.Sprintf("%s (%s)", job.ErrorMessage, job.ErrorKind), colorize))
	}
}
