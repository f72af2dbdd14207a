// Package scrape fetches and parses a profile's public film diary.
//
// Client wraps net/http with a shared Limiter (token bucket, global in-flight
// ceiling, one request per username, and a site-wide cooldown after 429
// responses) and a RetryPolicy with exponential backoff for timeouts,
// connection errors, 408, and 5xx responses. The goquery-based parsers turn
// profile, films grid, diary, review, watchlist, and custom list pages into
// records. Pipeline walks the listings page by page, tolerates individual
// page failures up to a configured ratio, merges the logged listings by film
// key, and flushes the result to the store in batches whose last one commits
// the profile counters.
package scrape
