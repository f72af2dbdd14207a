package scrape

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// StatusError is a non-2xx response from the site.
type StatusError struct {
	StatusCode int
	URL        string
	RetryAfter time.Duration
	// HasRetryAfter distinguishes "Retry-After: 0" from a missing header.
	HasRetryAfter bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
