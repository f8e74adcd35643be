package api

import (
	"notely/internal/broadcast"
	"notely/internal/preflight"
	"notely/internal/queue"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Progress captures the live transfer state of a job.
type Progress struct {
	BytesTransferred int64   `json:"bytesTransferred"`
	TotalBytes       int64   `json:"totalBytes"`
	Percent          float64 `json:"percent"`
	Speed            float64 `json:"speed"`
	ETASeconds       *int64  `json:"etaSeconds,omitempty"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
}

// Job describes a queued upload in a transport-friendly format.
type Job struct {
	ID              string    `json:"id"`
	ParentID        string    `json:"parentId"`
	Name            string    `json:"name"`
	MimeType        string    `json:"mimeType"`
	SizeBytes       int64     `json:"sizeBytes"`
	Status          string    `json:"status"`
	Attempts        int       `json:"attempts"`
	Priority        int       `json:"priority"`
	LastError       string    `json:"lastError,omitempty"`
	CreatedAt       string    `json:"createdAt,omitempty"`
	UpdatedAt       string    `json:"updatedAt,omitempty"`
	Progress        *Progress `json:"progress,omitempty"`
	StartETASeconds *int64    `json:"startEtaSeconds,omitempty"`
}

// QueueView is the full queue with aggregate estimates.
type QueueView struct {
	Jobs                []Job   `json:"jobs"`
	GlobalSpeed         float64 `json:"globalSpeed"`
	AggregateETASeconds int64   `json:"aggregateEtaSeconds"`
	Concurrency         int     `json:"concurrency"`
	PoolRunning         bool    `json:"poolRunning"`
}

// Sample is one recorded speed measurement.
type Sample struct {
	Timestamp        string  `json:"ts"`
	BytesTransferred int64   `json:"bytesTransferred"`
	TotalBytes       int64   `json:"totalBytes"`
	Speed            float64 `json:"speed"`
}

// HistoryResponse carries a job's speed history.
type HistoryResponse struct {
	JobID   string   `json:"jobId"`
	Samples []Sample `json:"samples"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// EnqueueResponse returns the id assigned to a new upload.
type EnqueueResponse struct {
	ID string `json:"id"`
}

// RetryAllResponse lists the jobs reset by a force retry.
type RetryAllResponse struct {
	IDs []string `json:"ids"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts       map[string]int `json:"counts"`
	PendingBytes int64          `json:"pendingBytes"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool                 `json:"running"`
	PID            int                  `json:"pid"`
	Leader         bool                 `json:"leader"`
	Online         bool                 `json:"online"`
	Authenticated  bool                 `json:"authenticated"`
	QueueDBPath    string               `json:"queueDbPath"`
	LockFilePath   string               `json:"lockFilePath"`
	LeaderLockPath string               `json:"leaderLockPath"`
	Queue          QueueStatsResponse   `json:"queue"`
	Database       queue.DatabaseHealth `json:"database"`
	Checks         []preflight.Result   `json:"checks"`
}

// LogEvent is a structured log line.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     string            `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	JobID         string            `json:"jobId,omitempty"`
	Worker        string            `json:"worker,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse is a page of log events and the cursor for the next one.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// StreamMessage is one websocket frame on /api/events.
type StreamMessage struct {
	Type  string           `json:"type"`
	Event *broadcast.Event `json:"event,omitempty"`
	View  *QueueView       `json:"view,omitempty"`
}

// Stream message types.
const (
	StreamSnapshot = "snapshot"
	StreamEvent    = "event"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
