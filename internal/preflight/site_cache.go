package preflight

import (
	"context"
	"sync"
	"time"
)

// SiteCache reuses a CheckSite result for ttl. Health endpoints that clients
// poll call it instead of CheckSite so polling adds at most one request per
// ttl to the site the scraper is rate limited against.
type SiteCache struct {
	baseURL string
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	result  Result
	checked time.Time
}

// NewSiteCache returns a cache for baseURL. A non-positive ttl checks on
// every call.
func NewSiteCache(baseURL string, ttl time.Duration) *SiteCache {
	return &SiteCache{baseURL: baseURL, ttl: ttl, now: time.Now}
}

// Check returns the cached result while it is younger than ttl and runs
// CheckSite otherwise. Concurrent callers share one request.
func (c *SiteCache) Check(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !c.checked.IsZero() && now.Sub(c.checked) < c.ttl {
		return c.result
	}
	c.result = CheckSite(ctx, c.baseURL)
	c.checked = now
	return c.result
}
