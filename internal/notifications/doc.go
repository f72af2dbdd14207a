// Package notifications delivers ingestion outcomes via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Events are enumerated here so the job
// orchestrator and the CLI share one set of titles and tags.
package notifications
