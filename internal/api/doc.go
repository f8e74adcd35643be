// Package api is the HTTP surface of notelyd and the wire format shared with
// the CLI.
//
// # Key Types
//
// Job/QueueView: transport representation of queue entries with transfer
// progress, per-job start ETAs and the queue-wide ETA.
//
// DaemonStatus: daemon runtime information including leadership,
// connectivity and preflight results.
//
// LogEvent/LogStreamResponse: structured log payloads for live tailing.
//
// StreamMessage: frames pushed over the /api/events websocket.
//
// # Routing
//
// NewRouter mounts every endpoint on a chi router. Requests carrying an
// X-Notely-Origin header publish their queue events under that origin, so a
// websocket subscribed with the same ?origin= does not receive echoes of its
// own mutations.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds. Request bodies are validated
// with go-playground/validator and rejected with per-field messages.
package api
