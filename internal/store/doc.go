// Package store persists profiles, films, ratings, reviews, watchlists,
// custom lists, and scrape jobs in SQLite.
//
// Writes are idempotent upserts keyed by natural keys: films by film key,
// ratings, reviews, and watchlist rows by (username, film key), lists by
// (username, slug), jobs by username. ApplySync writes one batch of scraped
// records per transaction. Non-final batches land in staged_* tables; the
// final batch of a run promotes them and recomputes the profile counters in
// the same transaction, so readers never see a profile whose counters
// disagree with its rows. ProfileView reads a profile and its rows inside one
// transaction for the same reason. Deleting a profile cascades to every
// per-profile row while shared film rows stay.
//
// Schema changes bump schemaVersion in schema.go; existing databases with a
// different version fail Open with ErrSchemaMismatch and must be recreated.
package store
