package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrAPIUnavailable is returned when no daemon address is configured.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// Error is a non-2xx response decoded from an ErrorResponse body.
type Error struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return e.Message
}

// Client talks to the daemon HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for the daemon listening on bind. A bare
// host:port is treated as http.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Ingest queues an ingestion for username.
func (c *Client) Ingest(ctx context.Context, username string) (IngestResponse, error) {
	var out IngestResponse
	err := c.do(ctx, http.MethodPost, "/api/ingest/"+url.PathEscape(username), &out)
	return out, err
}

// Status returns the latest job for username.
func (c *Client) Status(ctx context.Context, username string) (Job, error) {
	var out Job
	err := c.do(ctx, http.MethodGet, "/api/status/"+url.PathEscape(username), &out)
	return out, err
}

// Profiles lists synced profiles.
func (c *Client) Profiles(ctx context.Context) ([]ProfileListItem, error) {
	var out ProfilesResponse
	err := c.do(ctx, http.MethodGet, "/api/profiles", &out)
	return out.Profiles, err
}

// Analysis returns the snapshot for username.
func (c *Client) Analysis(ctx context.Context, username string) (Analysis, error) {
	var out Analysis
	err := c.do(ctx, http.MethodGet, "/api/analysis/"+url.PathEscape(username), &out)
	return out, err
}

// System returns the catalog-wide snapshot.
func (c *Client) System(ctx context.Context) (System, error) {
	var out System
	err := c.do(ctx, http.MethodGet, "/api/system", &out)
	return out, err
}

// Compare returns the compatibility of two profiles.
func (c *Client) Compare(ctx context.Context, a, b string) (Compatibility, error) {
	var out Compatibility
	err := c.do(ctx, http.MethodGet, "/api/compare/"+url.PathEscape(a)+"/"+url.PathEscape(b), &out)
	return out, err
}

// Delete removes username and its records.
func (c *Client) Delete(ctx context.Context, username string) (DeleteResponse, error) {
	var out DeleteResponse
	err := c.do(ctx, http.MethodDelete, "/api/profile/"+url.PathEscape(username), &out)
	return out, err
}

// Health returns daemon runtime information.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/api/health", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var body ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Kind = body.Kind
			apiErr.Message = body.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}

// IsKind reports whether err is an API error of the given kind.
func IsKind(err error, kind string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
