package testsupport

import (
	"path/filepath"
	"testing"

	"filmlog/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Scraper budgets are relaxed so tests do not sleep on politeness delays.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Scraper.BaseURL = "http://127.0.0.1:1"
	cfgVal.Scraper.UserAgent = "filmlog-test"
	cfgVal.Scraper.RequestTimeout = 5
	cfgVal.Scraper.RequestsPerSecond = 1000
	cfgVal.Scraper.Burst = 100
	cfgVal.Scraper.InitialBackoffMillis = 1
	cfgVal.Scraper.MaxBackoffSeconds = 1
	cfgVal.Scraper.MaxAttempts = 3
	cfgVal.Scraper.RateLimitCooldown = 1
	cfgVal.Scraper.MaxPages = 50
	cfgVal.Scraper.FlushBatchSize = 7
	cfgVal.Jobs.HeartbeatInterval = 1
	cfgVal.Jobs.StalenessWindow = 30
	cfgVal.Jobs.SweepInterval = 3600
	cfgVal.Jobs.PollInterval = 1
	cfgVal.Analysis.TopRatedMinRatings = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithSite points the scraper at a fake site.
func WithSite(site *Site) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scraper.BaseURL = site.URL()
	}
}

// WithAPIToken enables bearer token auth on the API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
