// Package logs reads daemon logs for the CLI: a client for the daemon's
// /api/logs stream and a file tailer used when the daemon is down.
package logs
