// Package analysis derives statistics from stored profile records.
//
// The Engine reads through the store and builds three views: a per-profile
// Snapshot (rating distribution, monthly series, descriptive metrics, decade
// breakdown, top films), a catalog-wide SystemSnapshot with month-over-month
// trends, and a Compatibility report for two profiles. Nothing here writes to
// the store; every view is computed on request.
package analysis
