package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"filmlog/internal/config"
	"filmlog/internal/daemon"
	"filmlog/internal/jobs"
	"filmlog/internal/logging"
	"filmlog/internal/notifications"
	"filmlog/internal/scrape"
	"filmlog/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Ready, when set, receives the running daemon once it has started.
	Ready func(*daemon.Daemon)
}

// Run starts the filmlog daemon and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := cfg.LogPath()
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	pidPath := filepath.Join(cfg.Paths.DataDir, "filmlogd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open record store", logging.Error(err))
		return err
	}
	defer st.Close()

	client := scrape.NewClient(cfg, scrape.NewLimiter(cfg), logger)
	pipeline := scrape.NewPipeline(cfg, client, st, logger)
	orch := jobs.New(cfg, st, pipeline, logger, jobs.WithNotifier(notifications.NewService(cfg)))

	d, err := daemon.New(cfg, st, logger, orch)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the data directory and whether another daemon holds the lock"),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(d)
	}

	<-signalCtx.Done()
	logger.Info("filmlog daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", cfg.Paths.APIToken != ""),
		logging.String("base_url", cfg.Scraper.BaseURL),
		logging.Float64("requests_per_second", cfg.Scraper.RequestsPerSecond),
		logging.Int("global_concurrency", cfg.Scraper.GlobalConcurrency),
		logging.Int("max_pages", cfg.Scraper.MaxPages),
		logging.Duration("staleness_window", cfg.StalenessWindow()),
		logging.String("resync_schedule", cfg.Jobs.ResyncSchedule),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
	)
}
