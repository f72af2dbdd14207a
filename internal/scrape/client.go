package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"filmlog/internal/config"
	"filmlog/internal/logging"
	"filmlog/internal/services"
)

const maxBodyBytes = 8 << 20

// Fetcher retrieves a page body from the site.
type Fetcher interface {
	Fetch(ctx context.Context, username, path string) ([]byte, error)
}

// Client fetches site pages through the shared Limiter and RetryPolicy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	retry      *RetryPolicy
	limiter    *Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRetryPolicy replaces the config-derived retry policy.
func WithRetryPolicy(policy *RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient creates a site client. A nil limiter gets a private one built
// from cfg.
func NewClient(cfg *config.Config, limiter *Limiter, logger *slog.Logger, opts ...ClientOption) *Client {
	if limiter == nil {
		limiter = NewLimiter(cfg)
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		baseURL:    strings.TrimRight(cfg.Scraper.BaseURL, "/"),
		userAgent:  cfg.Scraper.UserAgent,
		retry:      NewRetryPolicy(cfg),
		limiter:    limiter,
		logger:     logging.NewComponentLogger(logger, "scrape-client"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limiter returns the limiter the client waits on.
func (c *Client) Limiter() *Limiter {
	return c.limiter
}

// Fetch GETs path (relative to the base URL) on behalf of username. Errors
// are tagged: ErrRateLimited for 429 (wrapping a *StatusError carrying
// Retry-After), ErrNotFound for 404, ErrNetwork for everything else once
// retries are exhausted. Context cancellation is returned unwrapped.
func (c *Client) Fetch(ctx context.Context, username, path string) ([]byte, error) {
	url := c.baseURL + path
	var body []byte
	_, err := c.retry.Execute(ctx, c.logger, func() (int, error) {
		var (
			status int
			err    error
		)
		body, status, err = c.once(ctx, username, url)
		return status, err
	})
	if err == nil {
		return body, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return nil, services.Wrap(services.ErrRateLimited, "scrape", "fetch", path, err)
		case http.StatusNotFound:
			return nil, services.Wrap(services.ErrNotFound, "scrape", "fetch", path, err)
		}
	}
	return nil, services.Wrap(services.ErrNetwork, "scrape", "fetch", path, err)
}

func (c *Client) once(ctx context.Context, username, url string) ([]byte, int, error) {
	release, err := c.limiter.Acquire(ctx, username)
	if err != nil {
		return nil, 0, err
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	started := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	c.logger.Debug("site request",
		logging.String("url", url),
		logging.Int("status_code", resp.StatusCode),
		logging.Duration("elapsed", c.now().Sub(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: url}
		if resp.StatusCode == http.StatusTooManyRequests {
			statusErr.RetryAfter, statusErr.HasRetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		}
		return nil, resp.StatusCode, statusErr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, nil
}
