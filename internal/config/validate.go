package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScraper(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScraper() error {
	parsed, err := url.Parse(c.Scraper.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("scraper.base_url must be an absolute URL, got %q", c.Scraper.BaseURL)
	}
	if err := ensurePositiveMap(map[string]int{
		"scraper.request_timeout":     c.Scraper.RequestTimeout,
		"scraper.burst":               c.Scraper.Burst,
		"scraper.global_concurrency":  c.Scraper.GlobalConcurrency,
		"scraper.max_pages":           c.Scraper.MaxPages,
		"scraper.max_attempts":        c.Scraper.MaxAttempts,
		"scraper.initial_backoff_ms":  c.Scraper.InitialBackoffMillis,
		"scraper.max_backoff":         c.Scraper.MaxBackoffSeconds,
		"scraper.rate_limit_cooldown": c.Scraper.RateLimitCooldown,
		"scraper.max_rate_limit_hits": c.Scraper.MaxRateLimitHits,
	}); err != nil {
		return err
	}
	if c.Scraper.RequestsPerSecond <= 0 {
		return errors.New("scraper.requests_per_second must be positive")
	}
	if c.Scraper.MaxParseFailureRatio < 0 || c.Scraper.MaxParseFailureRatio > 1 {
		return errors.New("scraper.max_parse_failure_ratio must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if err := ensurePositiveMap(map[string]int{
		"jobs.heartbeat_interval": c.Jobs.HeartbeatInterval,
		"jobs.staleness_window":   c.Jobs.StalenessWindow,
		"jobs.sweep_interval":     c.Jobs.SweepInterval,
	}); err != nil {
		return err
	}
	if c.Jobs.StalenessWindow <= c.Jobs.HeartbeatInterval {
		return errors.New("jobs.staleness_window must be greater than jobs.heartbeat_interval")
	}
	if c.Jobs.ResyncSchedule != "" && c.Jobs.ResyncAfterHours <= 0 {
		return errors.New("jobs.resync_after_hours must be positive when jobs.resync_schedule is set")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	return ensurePositiveMap(map[string]int{
		"analysis.top_rated_min_ratings": c.Analysis.TopRatedMinRatings,
		"analysis.top_rated_limit":       c.Analysis.TopRatedLimit,
		"analysis.top_films_limit":       c.Analysis.TopFilmsLimit,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full topic URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var problems []string
	for _, key := range keys {
		if values[key] <= 0 {
			problems = append(problems, key)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s must be positive", strings.Join(problems, ", "))
	}
	return nil
}
