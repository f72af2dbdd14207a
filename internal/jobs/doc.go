// Package jobs runs profile ingestion jobs and keeps their durable state in
// the store.
//
// The Orchestrator accepts ingestion requests, enforces one active job per
// username, and runs each job on its own goroutine through a Runner (the
// scrape pipeline in production). Progress flows through a channel to a
// single consumer that persists it, while a heartbeat ticker proves the job
// is still alive. Jobs whose heartbeat goes quiet for longer than the
// staleness window are reported as error, either lazily when their status is
// read or by the scheduled sweep.
//
// Every state change is written to the store before it becomes visible to
// callers, so a daemon restart never loses track of a job. Terminal outcomes
// are published to the configured notifier after they are persisted.
package jobs
