package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"filmlog/internal/logging"
	"filmlog/internal/notifications"
	"filmlog/internal/scrape"
	"filmlog/internal/services"
	"filmlog/internal/store"
)

// Start expires jobs left active by a previous process, schedules background
// maintenance, and begins accepting requests.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.New("job orchestrator already running")
	}
	o.mu.Unlock()

	expired, err := o.store.MarkStaleJobs(ctx, o.staleCutoff(), stalledMessage)
	if err != nil {
		return fmt.Errorf("expire stalled jobs: %w", err)
	}
	if expired > 0 {
		logging.WarnWithContext(o.logger, "expired jobs left running by a previous daemon", "jobs_expired",
			logging.Int64("count", expired),
			logging.String(logging.FieldErrorHint, "request a new ingestion for affected profiles"),
		)
	}

	scheduler, err := o.newScheduler()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.baseCtx = runCtx
	o.cancel = cancel
	o.cron = scheduler
	o.running = true
	o.mu.Unlock()

	scheduler.Start()
	o.logger.Info("job orchestrator started",
		logging.Duration("heartbeat_interval", o.heartbeatInterval),
		logging.Duration("staleness_window", o.stalenessWindow),
	)
	return nil
}

// Stop cancels running jobs, waits for them to record their outcome, and
// stops the scheduler.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	scheduler := o.cron
	o.running = false
	o.cancel = nil
	o.cron = nil
	o.mu.Unlock()

	<-scheduler.Stop().Done()
	cancel()
	o.wg.Wait()
	o.logger.Info("job orchestrator stopped")
}

// runJob drives one job from queued to a terminal state.
func (o *Orchestrator) runJob(ctx context.Context, username string, handle *jobHandle) {
	defer o.wg.Done()
	defer o.release(username, handle)

	jobID := handle.jobID
	ctx = services.WithJobID(services.WithUsername(ctx, username), jobID)
	logger := logging.WithContext(ctx, o.logger)
	// Outcome writes must land even when ctx is cancelled by shutdown.
	persistCtx := context.WithoutCancel(ctx)

	if err := o.store.TransitionJob(persistCtx, store.JobTransition{
		Username: username, JobID: jobID, To: store.JobInProgress, Message: "Fetching profile",
	}); err != nil {
		logger.Error("could not start job", logging.Error(err), logging.String(logging.FieldEventType, "job_start_failed"))
		o.setLastError(err)
		return
	}
	logger.Info("ingestion started", logging.String(logging.FieldEventType, "job_started"))

	progress := make(chan scrape.Progress, 16)
	consumed := make(chan struct{})
	go o.consumeProgress(persistCtx, logger, username, jobID, progress, consumed)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	beating := make(chan struct{})
	go o.heartbeat(hbCtx, logger, username, jobID, beating)

	result, runErr := o.runner.Run(ctx, username, progress)
	close(progress)
	<-consumed
	stopHeartbeat()
	<-beating

	o.finish(persistCtx, ctx, logger, username, jobID, result, runErr)
}

// consumeProgress is the single writer of progress for a job.
func (o *Orchestrator) consumeProgress(ctx context.Context, logger *slog.Logger, username, jobID string, updates <-chan scrape.Progress, done chan<- struct{}) {
	defer close(done)
	for p := range updates {
		err := o.store.UpdateJobProgress(ctx, username, jobID, store.JobProgress{
			Percent:       p.Percent,
			Message:       p.Message,
			PagesTotal:    p.PagesTotal,
			PagesFetched:  p.PagesFetched,
			PagesSkipped:  p.PagesSkipped,
			RecordsParsed: p.RecordsParsed,
		})
		if err != nil {
			logger.Debug("progress update dropped", logging.Error(err))
			continue
		}
		logger.Debug("progress recorded",
			logging.Float64(logging.FieldProgress, p.Percent),
			logging.String("stage", p.Message),
		)
	}
}

func (o *Orchestrator) finish(persistCtx, runCtx context.Context, logger *slog.Logger, username, jobID string, result scrape.Result, runErr error) {
	tr := store.JobTransition{Username: username, JobID: jobID}
	switch {
	case runErr == nil:
		tr.To = store.JobCompleted
		tr.Message = fmt.Sprintf("Synced %d films and %d reviews", result.Films, result.Reviews)
		if result.PagesSkipped > 0 {
			tr.Message += fmt.Sprintf(" (%d pages skipped)", result.PagesSkipped)
		}
	case runCtx.Err() != nil:
		tr.To = store.JobFailed
		tr.Message = "Ingestion cancelled"
		tr.ErrorKind = "cancelled"
		tr.ErrorMessage = "daemon stopped"
	default:
		tr.To = services.FailureState(runErr)
		tr.Message = "Ingestion failed"
		tr.ErrorKind = services.Kind(runErr)
		tr.ErrorMessage = services.Message(runErr)
	}

	if err := o.store.TransitionJob(persistCtx, tr); err != nil {
		if errors.Is(err, store.ErrJobNotActive) {
			logger.Warn("job outcome discarded; job is no longer active",
				logging.String("state", string(tr.To)),
				logging.String(logging.FieldEventType, "job_outcome_discarded"),
			)
			return
		}
		logger.Error("could not record job outcome", logging.Error(err))
		o.setLastError(err)
		return
	}

	if runErr == nil {
		logger.Info("ingestion completed",
			logging.String(logging.FieldEventType, "job_completed"),
			logging.Int("films", result.Films),
			logging.Int("reviews", result.Reviews),
			logging.Int("pages_skipped", result.PagesSkipped),
			logging.Duration("duration", result.Duration),
		)
		o.publish(persistCtx, logger, notifications.EventIngestionCompleted, notifications.Payload{
			"username":      username,
			"films":         result.Films,
			"reviews":       result.Reviews,
			"pages_skipped": result.PagesSkipped,
		})
		return
	}
	o.setLastError(runErr)
	logging.ErrorWithContext(logger, "ingestion failed", "job_failed",
		logging.String("state", string(tr.To)),
		logging.String(logging.FieldErrorKind, tr.ErrorKind),
		logging.Error(runErr),
	)
	if runCtx.Err() == nil {
		o.publish(persistCtx, logger, notifications.EventIngestionFailed, notifications.Payload{
			"username": username,
			"error":    tr.ErrorMessage,
			"kind":     tr.ErrorKind,
		})
	}
}

func (o *Orchestrator) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := o.notify.Publish(ctx, event, payload); err != nil {
		logger.Warn("notification failed",
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
