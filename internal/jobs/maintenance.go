package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"filmlog/internal/logging"
	"filmlog/internal/services"
	"filmlog/internal/store"
)

// maintenanceTimeout bounds one scheduled sweep or re-sync pass.
const maintenanceTimeout = 5 * time.Minute

func (o *Orchestrator) newScheduler() (*cron.Cron, error) {
	scheduler := cron.New()
	sweep := o.cfg.SweepInterval()
	if sweep <= 0 {
		sweep = time.Minute
	}
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", sweep), o.runSweep); err != nil {
		return nil, fmt.Errorf("schedule stale sweep: %w", err)
	}
	if schedule := o.cfg.Jobs.ResyncSchedule; schedule != "" {
		if _, err := scheduler.AddFunc(schedule, o.runResync); err != nil {
			return nil, fmt.Errorf("schedule re-sync %q: %w", schedule, err)
		}
	}
	return scheduler, nil
}

func (o *Orchestrator) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()
	if _, err := o.Sweep(ctx); err != nil {
		logging.WarnWithContext(o.logger, "stale job sweep failed", "sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
}

func (o *Orchestrator) runResync() {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()
	if _, err := o.Resync(ctx); err != nil {
		logging.WarnWithContext(o.logger, "scheduled re-sync failed", "resync_failed", logging.Error(err))
	}
}

// Sweep marks active jobs that stopped heartbeating and are not running in
// this process as error. It returns how many jobs were expired.
func (o *Orchestrator) Sweep(ctx context.Context) (int, error) {
	cutoff := o.staleCutoff()
	stale, err := o.store.StaleJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, job := range stale {
		if o.isLive(job.Username, job.JobID) {
			continue
		}
		changed, err := o.store.MarkJobStale(ctx, job.Username, job.JobID, cutoff, stalledMessage)
		if err != nil {
			return expired, err
		}
		if changed {
			expired++
			o.logger.Info("expired stalled job",
				logging.String(logging.FieldUsername, job.Username),
				logging.String(logging.FieldJobID, job.JobID),
				logging.String(logging.FieldEventType, "job_expired"),
			)
		}
	}
	return expired, nil
}

// Resync requests ingestion for every synced profile whose last sync is older
// than the configured re-sync age. Profiles with an active job are skipped.
// It returns the usernames that were queued.
func (o *Orchestrator) Resync(ctx context.Context) ([]string, error) {
	due, err := o.store.ProfilesSyncedBefore(ctx, o.now().Add(-o.cfg.ResyncAfter()))
	if err != nil {
		return nil, err
	}
	var queued []string
	for _, username := range due {
		if _, err := o.RequestIngestion(ctx, username); err != nil {
			if errors.Is(err, services.ErrConflict) {
				continue
			}
			return queued, err
		}
		queued = append(queued, username)
	}
	if len(queued) > 0 {
		o.logger.Info("scheduled re-sync queued profiles",
			logging.Int("count", len(queued)),
			logging.String(logging.FieldEventType, "resync_queued"),
		)
	}
	return queued, nil
}

// Summary is a lightweight view of orchestrator health.
type Summary struct {
	Running    bool
	ActiveJobs int
	LastError  string
	JobCounts  map[store.JobState]int
}

// Summary reports whether the orchestrator runs, how many jobs are in
// flight, the last job error, and durable job counts by state.
func (o *Orchestrator) Summary(ctx context.Context) Summary {
	o.mu.RLock()
	summary := Summary{Running: o.running, ActiveJobs: len(o.handles)}
	if o.lastErr != nil {
		summary.LastError = o.lastErr.Error()
	}
	o.mu.RUnlock()

	counts, err := o.store.JobStats(ctx)
	if err != nil {
		o.logger.Warn("failed to read job stats", logging.Error(err))
	}
	summary.JobCounts = counts
	return summary
}
