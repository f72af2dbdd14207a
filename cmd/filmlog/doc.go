// Command filmlog is the command-line client for the filmlog daemon.
//
// Most subcommands talk to a running daemon over its HTTP API (see
// internal/api). "serve" runs the daemon in the foreground; "doctor",
// "config", "logs", and "test-notify" work without one.
package main
