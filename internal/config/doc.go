// Package config loads, normalizes, and validates filmlog configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FILMLOG_API_TOKEN and FILMLOG_BASE_URL. The Config type centralizes every
// knob the daemon and CLI need: where the database lives, how politely the
// external site is scraped, and how long an in-flight job may stay silent.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
