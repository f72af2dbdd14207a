// Package services defines the error taxonomy and context helpers shared by
// the scrape pipeline, job orchestrator, aggregation engine, and HTTP API.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, usernames, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into job states (failed vs error), HTTP status codes, and short kind
//     labels for API error bodies.
//
// Use these helpers when adding new operations so error handling and
// observability stay uniform across the daemon.
package services
