// Package api defines wire-format types, converters, and the HTTP client for
// the filmlog daemon API. It translates store, analysis, and preflight models
// into transport-friendly DTOs so the CLI and other consumers can render them
// without coupling to internal types.
//
// # Key Types
//
// Job: durable ingestion job state with progress counters.
//
// Analysis / System / Compatibility: aggregation views.
//
// ErrorResponse: every non-2xx body, carrying the error kind the server
// classified the failure as.
//
// # Converters
//
// FromJob, FromProfiles, FromSnapshot, FromSystem, FromCompatibility,
// FromChecks.
//
// # Design Notes
//
// DTOs use snake_case JSON tags. Job states are exposed as the lowercase
// strings stored in the database. Timestamps use RFC3339 with milliseconds in
// UTC. Optional values (mean ratings, completion times) are omitted rather than
// zeroed.
package api
