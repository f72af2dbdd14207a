package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Scraper controls how the external profile site is fetched and parsed.
type Scraper struct {
	BaseURL                string  `toml:"base_url"`
	UserAgent              string  `toml:"user_agent"`
	RequestTimeout         int     `toml:"request_timeout"`
	RequestsPerSecond      float64 `toml:"requests_per_second"`
	Burst                  int     `toml:"burst"`
	GlobalConcurrency      int     `toml:"global_concurrency"`
	MaxPages               int     `toml:"max_pages"`
	MaxAttempts            int     `toml:"max_attempts"`
	InitialBackoffMillis   int     `toml:"initial_backoff_ms"`
	MaxBackoffSeconds      int     `toml:"max_backoff"`
	RateLimitCooldown      int     `toml:"rate_limit_cooldown"`
	MaxRateLimitHits       int     `toml:"max_rate_limit_hits"`
	MaxParseFailureRatio   float64 `toml:"max_parse_failure_ratio"`
	MaxConsecutiveFailures int     `toml:"max_consecutive_failures"`
	FlushBatchSize         int     `toml:"flush_batch_size"`
}

// Jobs controls orchestrator liveness and background maintenance.
type Jobs struct {
	HeartbeatInterval int    `toml:"heartbeat_interval"`
	StalenessWindow   int    `toml:"staleness_window"`
	SweepInterval     int    `toml:"sweep_interval"`
	ResyncSchedule    string `toml:"resync_schedule"`
	ResyncAfterHours  int    `toml:"resync_after_hours"`
	PollInterval      int    `toml:"poll_interval"`
}

// Analysis contains aggregation thresholds.
type Analysis struct {
	TopRatedMinRatings int `toml:"top_rated_min_ratings"`
	TopRatedLimit      int `toml:"top_rated_limit"`
	TopFilmsLimit      int `toml:"top_films_limit"`
}

// Notifications configures ntfy delivery of ingestion outcomes.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OnSuccess      bool   `toml:"on_success"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for filmlog.
//
// Configuration sections by subsystem:
//   - Paths: database/log directories and API bind address
//   - Scraper: politeness budget, retries, and parse tolerance
//   - Jobs: heartbeat, staleness window, and scheduled re-sync
//   - Analysis: aggregation thresholds
//   - Notifications: optional ntfy alerts for finished ingestions
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Scraper       Scraper       `toml:"scraper"`
	Jobs          Jobs          `toml:"jobs"`
	Analysis      Analysis      `toml:"analysis"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("filmlog.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "filmlog.log")
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "filmlog.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "filmlogd.lock")
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Scraper.RequestTimeout) * time.Second
}

// InitialBackoff returns the first retry delay.
func (c *Config) InitialBackoff() time.Duration {
	return time.Duration(c.Scraper.InitialBackoffMillis) * time.Millisecond
}

// MaxBackoff caps retry delays.
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.Scraper.MaxBackoffSeconds) * time.Second
}

// RateLimitCooldown is the pipeline-wide pause applied after a 429 without Retry-After.
func (c *Config) RateLimitCooldown() time.Duration {
	return time.Duration(c.Scraper.RateLimitCooldown) * time.Second
}

// HeartbeatInterval returns how often in-flight jobs refresh their liveness.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Jobs.HeartbeatInterval) * time.Second
}

// StalenessWindow returns how long an in-flight job may go silent before it is considered dead.
func (c *Config) StalenessWindow() time.Duration {
	return time.Duration(c.Jobs.StalenessWindow) * time.Second
}

// SweepInterval returns the period of the stale job sweep.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Jobs.SweepInterval) * time.Second
}

// ResyncAfter returns the age after which a synced profile is refreshed by the scheduler.
func (c *Config) ResyncAfter() time.Duration {
	return time.Duration(c.Jobs.ResyncAfterHours) * time.Hour
}

// NotificationTimeout returns the ntfy request timeout.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// PollInterval is used by the CLI when waiting on a job.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
