package scrape

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"filmlog/internal/config"
	"filmlog/internal/logging"
)

// RetryPolicy defines per-page retry behavior with exponential backoff.
// 429 is not retried here; rate limiting pauses the whole pipeline.
type RetryPolicy struct {
	MaxAttempts          int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	RetryableStatusCodes []int
	sleep                func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds the policy from scraper config.
func NewRetryPolicy(cfg *config.Config) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       cfg.Scraper.MaxAttempts,
		InitialBackoff:    cfg.InitialBackoff(),
		MaxBackoff:        cfg.MaxBackoff(),
		BackoffMultiplier: 2.0,
		RetryableStatusCodes: []int{
			http.StatusRequestTimeout,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// ShouldRetry checks whether attempt (0-based) may be followed by another.
func (p *RetryPolicy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt+1 >= p.MaxAttempts {
		return false
	}
	if statusCode > 0 {
		return p.isRetryableStatusCode(statusCode)
	}
	return isRetryableError(err)
}

// CalculateBackoff returns the delay before attempt+1 with ±25% jitter.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	multiplier := p.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	backoff := float64(p.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if p.MaxBackoff > 0 && backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	backoff += backoff * 0.25 * (rand.Float64()*2 - 1)
	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}
	return time.Duration(backoff)
}

// Execute runs fn until it succeeds, returns a non-retryable outcome, or the
// attempt ceiling is reached. fn reports the HTTP status (0 when the request
// never produced a response) and an error for any non-success outcome.
func (p *RetryPolicy) Execute(ctx context.Context, logger *slog.Logger, fn func() (int, error)) (int, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var (
		statusCode int
		lastErr    error
	)
	for attempt := 0; attempt < max(p.MaxAttempts, 1); attempt++ {
		statusCode, lastErr = fn()
		if lastErr == nil {
			return statusCode, nil
		}
		if !p.ShouldRetry(attempt, statusCode, lastErr) {
			return statusCode, lastErr
		}
		backoff := p.CalculateBackoff(attempt)
		logger.Debug("retrying after backoff",
			logging.Int("attempt", attempt+1),
			logging.Int("status_code", statusCode),
			logging.Duration("backoff", backoff),
			logging.Error(lastErr),
		)
		if err := p.wait(ctx, backoff); err != nil {
			return statusCode, err
		}
	}
	logger.Warn("all retry attempts exhausted",
		logging.Int("max_attempts", p.MaxAttempts),
		logging.Int("status_code", statusCode),
		logging.Error(lastErr),
	)
	return statusCode, lastErr
}

func (p *RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func (p *RetryPolicy) isRetryableStatusCode(statusCode int) bool {
	for _, code := range p.RetryableStatusCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

// isRetryableError reports timeouts and connection-level failures.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
