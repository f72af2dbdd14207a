// Package daemon coordinates the long-running filmlog process.
//
// It wires configuration, the record store, the job orchestrator, and the
// analysis engine into a single lifecycle with flock-based locking to prevent
// multiple instances, and serves the HTTP API that the CLI talks to.
//
// Keep orchestration logic here: ingestion belongs to the jobs and scrape
// packages, aggregation to analysis. The daemon focuses on startup, shutdown,
// and translating requests into calls on those packages.
package daemon
