package config

const (
	defaultConfigPath             = "~/.config/filmlog/config.toml"
	defaultDataDir                = "~/.local/share/filmlog"
	defaultLogDir                 = "~/.local/share/filmlog/logs"
	defaultAPIBind                = "127.0.0.1:7489"
	defaultBaseURL                = "https://letterboxd.com"
	defaultUserAgent              = "filmlog/dev"
	defaultRequestTimeout         = 30
	defaultRequestsPerSecond      = 1.0
	defaultBurst                  = 2
	defaultGlobalConcurrency      = 4
	defaultMaxPages               = 200
	defaultMaxAttempts            = 5
	defaultInitialBackoffMillis   = 1000
	defaultMaxBackoffSeconds      = 60
	defaultRateLimitCooldown      = 60
	defaultMaxRateLimitHits       = 5
	defaultMaxParseFailureRatio   = 0.25
	defaultMaxConsecutiveFailures = 3
	defaultFlushBatchSize         = 200
	defaultHeartbeatInterval      = 15
	defaultStalenessWindow        = 300
	defaultSweepInterval          = 60
	defaultResyncAfterHours       = 24
	defaultPollInterval           = 3
	defaultTopRatedMinRatings     = 3
	defaultTopRatedLimit          = 50
	defaultTopFilmsLimit          = 10
	defaultNtfyRequestTimeout     = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Scraper: Scraper{
			BaseURL:                defaultBaseURL,
			UserAgent:              defaultUserAgent,
			RequestTimeout:         defaultRequestTimeout,
			RequestsPerSecond:      defaultRequestsPerSecond,
			Burst:                  defaultBurst,
			GlobalConcurrency:      defaultGlobalConcurrency,
			MaxPages:               defaultMaxPages,
			MaxAttempts:            defaultMaxAttempts,
			InitialBackoffMillis:   defaultInitialBackoffMillis,
			MaxBackoffSeconds:      defaultMaxBackoffSeconds,
			RateLimitCooldown:      defaultRateLimitCooldown,
			MaxRateLimitHits:       defaultMaxRateLimitHits,
			MaxParseFailureRatio:   defaultMaxParseFailureRatio,
			MaxConsecutiveFailures: defaultMaxConsecutiveFailures,
			FlushBatchSize:         defaultFlushBatchSize,
		},
		Jobs: Jobs{
			HeartbeatInterval: defaultHeartbeatInterval,
			StalenessWindow:   defaultStalenessWindow,
			SweepInterval:     defaultSweepInterval,
			ResyncAfterHours:  defaultResyncAfterHours,
			PollInterval:      defaultPollInterval,
		},
		Analysis: Analysis{
			TopRatedMinRatings: defaultTopRatedMinRatings,
			TopRatedLimit:      defaultTopRatedLimit,
			TopFilmsLimit:      defaultTopFilmsLimit,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			OnSuccess:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
