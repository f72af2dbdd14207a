package logging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filmlog/internal/config"
	"filmlog/internal/logging"
	"filmlog/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content := readLog(t, filepath.Join(cfg.Paths.LogDir, "filmlog.log"))
	if !strings.Contains(content, "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerLiftsSubjectIntoHeader(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.With(logging.String(logging.FieldComponent, "pipeline")).Info("page parsed",
		logging.String(logging.FieldUsername, "alice"),
		logging.String(logging.FieldJobID, "0123456789abcdef"),
		logging.Int(logging.FieldPage, 3),
	)

	content := readLog(t, logPath)
	for _, fragment := range []string{"INFO [pipeline]", "@alice (job 01234567)", "page parsed", "- page: 3"} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("with caller")
	if content := readLog(t, logPath); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestJSONLoggerShape(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("json message", logging.String("k", "v"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["level"] != "warn" || payload["msg"] != "json message" || payload["k"] != "v" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	base, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithUsername(ctx, "bob")
	ctx = services.WithRequestID(ctx, "req-9")
	logging.WithContext(ctx, base).Info("tagged")

	content := readLog(t, logPath)
	for _, fragment := range []string{`"job_id":"job-1"`, `"username":"bob"`, `"correlation_id":"req-9"`} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %s in %s", fragment, content)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	base, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(base, "page skipped", "page_skipped")
	content := readLog(t, logPath)
	if !strings.Contains(content, `"event_type":"page_skipped"`) || !strings.Contains(content, `"error_hint"`) {
		t.Fatalf("expected injected fields, got %s", content)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected nop logger to be disabled")
	}
}

func TestConsoleLoggerFormatsFilmQuantities(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "quantities.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("profile analyzed",
		logging.Float64(logging.FieldRating, 3.7),
		logging.Float64("average_rating", 3.66666),
		logging.Float64(logging.FieldProgress, 42.04),
		logging.Duration("duration", 1234567*time.Microsecond),
		logging.Error(services.Wrap(services.ErrNotFound, "store", "get profile", "no such profile", nil)),
		logging.String("title", "Fast & Furious"),
	)

	content := readLog(t, logPath)
	for _, fragment := range []string{
		"- rating: 3.5/5",
		"- average_rating: 3.67/5",
		"- progress_percent: 42%",
		"- duration: 1.235s",
		"- error: [not_found] ",
		"- title: Fast & Furious\n",
	} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestJSONLoggerFilmFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "fields.json")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("ingestion failed",
		logging.Float64(logging.FieldProgress, 66.666),
		logging.Duration("duration", 1500*time.Millisecond),
		logging.Error(services.Wrap(services.ErrRateLimited, "scrape", "fetch", "too many requests", nil)),
	)

	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["progress_percent"] != 66.7 || payload["duration"] != "1.5s" {
		t.Fatalf("unexpected quantities: %v", payload)
	}
	errField, ok := payload["error"].(map[string]any)
	if !ok || errField["kind"] != "rate_limited" || !strings.Contains(errField["message"].(string), "too many requests") {
		t.Fatalf("unexpected error field: %v", payload["error"])
	}
}
