// Package services defines shared utilities consumed by the upload pool, the
// queue controller, and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, worker names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     as retryable (transient) or terminal.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error handling, observability, retries) stays uniform across the daemon.
package services
