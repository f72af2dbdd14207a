package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"filmlog/internal/analysis"
	"filmlog/internal/config"
	"filmlog/internal/jobs"
	"filmlog/internal/logging"
	"filmlog/internal/preflight"
	"filmlog/internal/store"
)

// Daemon coordinates ingestion and the HTTP API and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	jobs   *jobs.Orchestrator
	engine *analysis.Engine
	site   *preflight.SiteCache

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	api     *apiServer
}

// siteCheckTTL is how long /api/health reuses a site reachability result.
const siteCheckTTL = time.Minute

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Jobs         jobs.Summary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, orch *jobs.Orchestrator) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, logger, and job orchestrator")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		jobs:     orch,
		engine:   analysis.New(cfg, st, logger),
		site:     preflight.NewSiteCache(cfg.Scraper.BaseURL, siteCheckTTL),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, then starts the orchestrator and the API
// server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another filmlog daemon instance is already running")
	}

	if err := d.jobs.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start job orchestrator: %w", err)
	}

	api := newAPIServer(d.cfg, d, d.logger)
	if err := api.start(); err != nil {
		d.jobs.Stop()
		_ = d.lock.Unlock()
		return err
	}
	d.api = api

	d.running.Store(true)
	d.logger.Info("filmlog daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop shuts down the API server, stops running jobs, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	d.api = nil
	d.jobs.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("filmlog daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the address the API server listens on, or nil when stopped.
func (d *Daemon) APIAddr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.api == nil || d.api.listener == nil {
		return nil
	}
	return d.api.listener.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Jobs:         d.jobs.Summary(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
