package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"filmlog/internal/config"
	"filmlog/internal/logging"
	"filmlog/internal/notifications"
	"filmlog/internal/scrape"
	"filmlog/internal/services"
	"filmlog/internal/store"
)

// stalledMessage is recorded on jobs that stopped heartbeating.
const stalledMessage = "job stalled"

// ErrNotRunning is returned by RequestIngestion outside Start/Stop.
var ErrNotRunning = errors.New("job orchestrator is not running")

// Runner performs one ingestion. *scrape.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, username string, progress chan<- scrape.Progress) (scrape.Result, error)
}

// Orchestrator owns the lifecycle of ingestion jobs.
type Orchestrator struct {
	cfg    *config.Config
	store  *store.Store
	runner Runner
	notify notifications.Service
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	heartbeatInterval time.Duration
	stalenessWindow   time.Duration

	locks *userLocks

	mu      sync.RWMutex
	handles map[string]*jobHandle
	running bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	cron    *cron.Cron
}

// jobHandle is the in-memory side of a running job.
type jobHandle struct {
	jobID  string
	cancel context.CancelFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock used for staleness decisions.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithNotifier publishes job outcomes to n.
func WithNotifier(n notifications.Service) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notify = n
		}
	}
}

// WithJobIDs replaces the uuid job id generator.
func WithJobIDs(next func() string) Option {
	return func(o *Orchestrator) {
		o.newID = next
	}
}

// New builds an orchestrator. It does nothing until Start is called.
func New(cfg *config.Config, st *store.Store, runner Runner, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:               cfg,
		store:             st,
		runner:            runner,
		notify:            notifications.NewService(nil),
		logger:            logging.NewComponentLogger(logger, "jobs"),
		now:               time.Now,
		newID:             uuid.NewString,
		heartbeatInterval: cfg.HeartbeatInterval(),
		stalenessWindow:   cfg.StalenessWindow(),
		locks:             newUserLocks(),
		handles:           make(map[string]*jobHandle),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) staleCutoff() time.Time {
	return o.now().Add(-o.stalenessWindow)
}

func conflict(username string) error {
	return services.Wrap(services.ErrConflict, "jobs", "request",
		fmt.Sprintf("an ingestion for %s is already in progress", username), nil)
}

// RequestIngestion starts a job for username and returns its queued row
// without waiting for the job to run. A second request while a job is
// active fails with a conflict.
func (o *Orchestrator) RequestIngestion(ctx context.Context, username string) (*store.Job, error) {
	if err := scrape.ValidateUsername(username); err != nil {
		return nil, err
	}
	username = store.NormalizeUsername(username)

	unlock := o.locks.Lock(username)
	defer unlock()

	o.mu.RLock()
	running, baseCtx := o.running, o.baseCtx
	_, live := o.handles[username]
	o.mu.RUnlock()
	if !running {
		return nil, ErrNotRunning
	}
	if live {
		return nil, conflict(username)
	}

	if existing, err := o.store.GetJob(ctx, username); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "jobs", "request", "read job", err)
	} else if existing != nil && existing.State.IsActive() {
		if !existing.LastActivity().Before(o.staleCutoff()) {
			return nil, conflict(username)
		}
		if _, err := o.store.MarkJobStale(ctx, username, existing.JobID, o.staleCutoff(), stalledMessage); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "jobs", "request", "expire stalled job", err)
		}
	}

	if _, err := o.store.EnsureProfile(ctx, username); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "jobs", "request", "create profile", err)
	}
	jobID := o.newID()
	if _, err := o.store.CreateJob(ctx, username, jobID); err != nil {
		if errors.Is(err, store.ErrJobActive) {
			return nil, conflict(username)
		}
		return nil, services.Wrap(services.ErrPersistence, "jobs", "request", "create job", err)
	}
	if err := o.store.TransitionJob(ctx, store.JobTransition{
		Username: username, JobID: jobID, To: store.JobQueued, Message: "Queued",
	}); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "jobs", "request", "queue job", err)
	}
	job, err := o.store.GetJob(ctx, username)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "jobs", "request", "read job", err)
	}

	jobCtx, cancel := context.WithCancel(baseCtx)
	handle := &jobHandle{jobID: jobID, cancel: cancel}
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		cancel()
		_ = o.store.TransitionJob(context.WithoutCancel(ctx), store.JobTransition{
			Username: username, JobID: jobID, To: store.JobFailed,
			Message: "Ingestion cancelled", ErrorKind: "cancelled", ErrorMessage: "daemon stopped",
		})
		return nil, ErrNotRunning
	}
	o.handles[username] = handle
	o.wg.Add(1)
	o.mu.Unlock()
	go o.runJob(jobCtx, username, handle)

	logging.WithContext(services.WithJobID(services.WithUsername(ctx, username), jobID), o.logger).Info("ingestion queued",
		logging.String(logging.FieldEventType, "job_queued"),
	)
	return job, nil
}

// Status returns the durable job row for username. An active job that has
// gone quiet for longer than the staleness window and is not running in this
// process is persisted and reported as error.
func (o *Orchestrator) Status(ctx context.Context, username string) (*store.Job, error) {
	username = store.NormalizeUsername(username)
	job, err := o.store.GetJob(ctx, username)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "jobs", "status", "read job", err)
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "status",
			fmt.Sprintf("no ingestion job for %s", username), nil)
	}
	if !job.State.IsActive() || o.isLive(username, job.JobID) {
		return job, nil
	}
	cutoff := o.staleCutoff()
	if !job.LastActivity().Before(cutoff) {
		return job, nil
	}
	changed, err := o.store.MarkJobStale(ctx, username, job.JobID, cutoff, stalledMessage)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "jobs", "status", "expire stalled job", err)
	}
	if changed {
		logging.WarnWithContext(o.logger, "job stalled; marked as error", "job_stalled",
			logging.String(logging.FieldUsername, username),
			logging.String(logging.FieldJobID, job.JobID),
			logging.String(logging.FieldErrorHint, "request a new ingestion"),
		)
	}
	return o.store.GetJob(ctx, username)
}

// IsActive reports whether username has a running job or a durable active
// row that has not gone stale.
func (o *Orchestrator) IsActive(ctx context.Context, username string) (bool, error) {
	username = store.NormalizeUsername(username)
	o.mu.RLock()
	_, live := o.handles[username]
	o.mu.RUnlock()
	if live {
		return true, nil
	}
	job, err := o.store.GetJob(ctx, username)
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "jobs", "active", "read job", err)
	}
	return job != nil && job.State.IsActive() && !job.LastActivity().Before(o.staleCutoff()), nil
}

// DeleteProfile removes username and its records. It refuses while a job is
// active for that username.
func (o *Orchestrator) DeleteProfile(ctx context.Context, username string) error {
	username = store.NormalizeUsername(username)
	unlock := o.locks.Lock(username)
	defer unlock()

	active, err := o.IsActive(ctx, username)
	if err != nil {
		return err
	}
	if active {
		return services.Wrap(services.ErrConflict, "jobs", "delete",
			fmt.Sprintf("cannot delete %s while an ingestion is in progress", username), nil)
	}
	deleted, err := o.store.DeleteProfile(ctx, username)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "jobs", "delete", "delete profile", err)
	}
	if !deleted {
		return services.Wrap(services.ErrNotFound, "jobs", "delete", fmt.Sprintf("profile %s not found", username), nil)
	}
	o.logger.Info("profile deleted",
		logging.String(logging.FieldUsername, username),
		logging.String(logging.FieldEventType, "profile_deleted"),
	)
	return nil
}

func (o *Orchestrator) isLive(username, jobID string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.handles[username]
	return ok && h.jobID == jobID
}

func (o *Orchestrator) release(username string, handle *jobHandle) {
	o.mu.Lock()
	if current, ok := o.handles[username]; ok && current == handle {
		delete(o.handles, username)
	}
	o.mu.Unlock()
	handle.cancel()
}

func (o *Orchestrator) setLastError(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
}
