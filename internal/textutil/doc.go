// Package textutil normalizes film titles and builds the stable keys that
// identify films across profiles.
//
// A film scraped from a grid page usually carries the site slug, which is the
// preferred key. Rows that lack a slug fall back to a normalized title plus
// release year so the same film seen by two profiles still collapses into one
// catalog row. Normalization applies Unicode NFKC, full case folding, and
// punctuation collapsing.
package textutil
