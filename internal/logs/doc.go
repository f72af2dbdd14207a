// Package logs reads the daemon log file for the CLI: the last N lines, the
// lines appended since an offset, and a polling follow loop. Lines can be
// narrowed to those mentioning a substring such as a username.
package logs
