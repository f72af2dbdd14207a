// Package preflight provides readiness checks for the filesystem paths and
// the external site that filmlog depends on.
//
// These checks run in two contexts:
//   - The CLI "filmlog doctor" command runs RunAll and renders each Result.
//   - The daemon's /api/health endpoint reports the same results so a remote
//     client can tell a broken data directory from an unreachable site.
//
// Checks never mutate state. A failed check is reported, not fatal.
package preflight
