package scrape_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"filmlog/internal/logging"
	"filmlog/internal/scrape"
	"filmlog/internal/services"
	"filmlog/internal/testsupport"
)

func newClient(t *testing.T) (*scrape.Client, *testsupport.Site) {
	t.Helper()
	site := testsupport.NewSite(t)
	site.AddProfile(testsupport.SiteProfile{Username: "alice", DisplayName: "Alice"})
	cfg := testsupport.NewConfig(t, testsupport.WithSite(site))
	return scrape.NewClient(cfg, nil, logging.NewNop()), site
}

func TestClientFetchesPage(t *testing.T) {
	client, site := newClient(t)

	body, err := client.Fetch(context.Background(), "alice", testsupport.ProfilePath("alice"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(string(body), `id="content"`) {
		t.Fatalf("unexpected body %q", body)
	}
	if hits := site.Hits(testsupport.ProfilePath("alice")); hits != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	client, site := newClient(t)
	path := testsupport.ProfilePath("alice")
	site.FailNext(path, http.StatusServiceUnavailable, http.StatusBadGateway)

	if _, err := client.Fetch(context.Background(), "alice", path); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if hits := site.Hits(path); hits != 3 {
		t.Fatalf("expected 3 hits, got %d", hits)
	}
}

func TestClientGivesUpAsNetworkError(t *testing.T) {
	client, site := newClient(t)
	path := testsupport.ProfilePath("alice")
	site.FailNext(path, http.StatusInternalServerError, http.StatusInternalServerError, http.StatusInternalServerError)

	_, err := client.Fetch(context.Background(), "alice", path)
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if hits := site.Hits(path); hits != 3 {
		t.Fatalf("expected max attempts (3), got %d hits", hits)
	}
}

func TestClientMapsNotFound(t *testing.T) {
	client, site := newClient(t)
	path := testsupport.ProfilePath("nobody")

	_, err := client.Fetch(context.Background(), "nobody", path)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if hits := site.Hits(path); hits != 1 {
		t.Fatalf("expected 404 not to be retried, got %d hits", hits)
	}
}

func TestClientSurfacesRateLimitWithRetryAfter(t *testing.T) {
	client, site := newClient(t)
	path := testsupport.ProfilePath("alice")
	site.RateLimitNext(path, "2")

	_, err := client.Fetch(context.Background(), "alice", path)
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	var statusErr *scrape.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError in chain, got %v", err)
	}
	if !statusErr.HasRetryAfter || statusErr.RetryAfter != 2*time.Second {
		t.Fatalf("unexpected retry-after %+v", statusErr)
	}
	if hits := site.Hits(path); hits != 1 {
		t.Fatalf("expected 429 not to be retried by the client, got %d hits", hits)
	}
}

func TestClientReturnsContextErrorUnwrapped(t *testing.T) {
	client, site := newClient(t)
	release := site.Hold()
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := client.Fetch(ctx, "alice", testsupport.ProfilePath("alice"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if services.Kind(err) != "internal" {
		t.Fatalf("expected context error to carry no marker, got kind %q", services.Kind(err))
	}
}
