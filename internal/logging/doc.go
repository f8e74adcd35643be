// Package logging assembles structured slog loggers and formatting helpers used
// across the notely daemon and CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so upload code can automatically
// tag log lines with job IDs, worker names, and correlation IDs. A bounded
// StreamHub keeps recent events in memory for the daemon's log API, and a
// no-op logger is provided for tests and wiring code that cannot fail.
package logging
