package daemonrun_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filmlog/internal/daemon"
	"filmlog/internal/daemonrun"
	"filmlog/internal/testsupport"
)

func TestRunRequiresConfig(t *testing.T) {
	if err := daemonrun.Run(context.Background(), nil, daemonrun.Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunStartsAndStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Format = "json"

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan *daemon.Daemon, 1)
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{
			LogLevel: "error",
			Ready:    func(d *daemon.Daemon) { ready <- d },
		})
	}()

	pidPath := filepath.Join(cfg.Paths.DataDir, "filmlogd.pid")
	select {
	case d := <-ready:
		if !d.Running() || d.APIAddr() == nil {
			t.Fatal("expected running daemon with api listener")
		}
		if _, err := os.Stat(pidPath); err != nil {
			t.Fatalf("expected pid file: %v", err)
		}
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon never became ready")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not shut down")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "filmlog.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}
