// Package preflight provides readiness checks for the directories and
// external services notely depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs failures without
//     aborting, since uploads simply wait while a dependency is down.
//   - The CLI "notely status" command renders the same results.
//
// Optional integrations (note store, Redis) are only checked when
// configured.
package preflight
