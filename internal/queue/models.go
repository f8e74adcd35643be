package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of an upload job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusProcessing, StatusError, StatusFailed}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown queue status %q", value)
}

// Job is one queued attachment upload.
type Job struct {
	ID        string
	ParentID  string
	OwnerID   string
	Name      string
	MimeType  string
	SizeBytes int64
	// Payload is only populated by GetByID and ClaimNext.
	Payload   []byte
	Status    Status
	Attempts  int
	Priority  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HealthSummary aggregates queue counts for diagnostics.
type HealthSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Error      int `json:"error"`
	Failed     int `json:"failed"`
	// PendingBytes is the payload volume still waiting to upload.
	PendingBytes int64 `json:"pending_bytes"`
}

// DatabaseHealth reports the state of the queue database file.
type DatabaseHealth struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    int64  `json:"schema_version"`
	TotalJobs        int    `json:"total_jobs"`
	IntegrityCheck   bool   `json:"integrity_check"`
	Error            string `json:"error,omitempty"`
}
