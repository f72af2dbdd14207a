// Package logging assembles structured slog loggers and formatting helpers used
// across filmlog.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline and orchestrator
// code can tag log lines with job IDs, usernames, and correlation IDs. A
// no-op logger is provided for tests and wiring code that cannot fail.
package logging
