// Package daemonrun assembles the filmlog daemon process: logger, record
// store, scraper pipeline, job orchestrator, notifier, and HTTP API. Both the filmlogd
// binary and "filmlog serve" call Run.
package daemonrun
