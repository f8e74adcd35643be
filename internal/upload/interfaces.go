package upload

import (
	"context"
	"errors"

	"notely/internal/attachments"
	"notely/internal/queue"
)

var (
	// ErrTransferFailed marks a transient transfer error that will be retried.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrMaxAttemptsExceeded marks a job parked in failed.
	ErrMaxAttemptsExceeded = errors.New("max upload attempts exceeded")
)

// ProgressFunc receives transfer progress. total is negative when unknown.
type ProgressFunc func(transferred, total int64)

// Transfer moves a job's payload to object storage.
type Transfer interface {
	Upload(ctx context.Context, job *queue.Job, onProgress ProgressFunc) (attachments.Meta, error)
}

// AttachmentSink records a finished upload on its note.
type AttachmentSink interface {
	Attach(ctx context.Context, noteID string, meta attachments.Meta) error
}

// Oracle reports whether uploads can run at all.
type Oracle interface {
	Online() bool
	Authenticated() bool
}

// Notifier delivers user-facing messages.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// FailureReporter is told about jobs that exhausted their attempts.
type FailureReporter interface {
	ReportFailure(ctx context.Context, job queue.Job, err error)
}
