package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"notely/internal/config"
	"notely/internal/logging"
	"notely/internal/queue"
)

const sentryFlushTimeout = 2 * time.Second

// SentryReporter records uploads that ran out of attempts.
type SentryReporter struct {
	logger  *slog.Logger
	enabled bool
}

// InitSentry configures the global Sentry client when a DSN is present.
// The returned reporter always logs; it only captures events when Sentry
// was initialized.
func InitSentry(cfg *config.Config, release string, logger *slog.Logger) (*SentryReporter, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	reporter := &SentryReporter{logger: logging.NewComponentLogger(logger, "failure-reporter")}
	if cfg == nil {
		return reporter, nil
	}
	dsn := strings.TrimSpace(cfg.Notifications.SentryDSN)
	if dsn == "" {
		return reporter, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: "notelyd",
		Release:     release,
	})
	if err != nil {
		return reporter, fmt.Errorf("sentry init: %w", err)
	}
	reporter.enabled = true
	return reporter, nil
}

// Enabled reports whether events are forwarded to Sentry.
func (r *SentryReporter) Enabled() bool {
	return r != nil && r.enabled
}

// ReportFailure logs the failed job and captures it in Sentry.
func (r *SentryReporter) ReportFailure(_ context.Context, job queue.Job, err error) {
	if r == nil {
		return
	}
	logging.ErrorWithContext(r.logger, "upload failed permanently", "upload_failed",
		logging.JobID(job.ID),
		logging.String("note_id", job.ParentID),
		logging.String("file_name", job.Name),
		logging.Int("attempts", job.Attempts),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run `notely queue retry "+job.ID+"` once the cause is fixed"),
	)
	if !r.enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job_id", job.ID)
		scope.SetTag("mime_type", job.MimeType)
		scope.SetContext("upload", sentry.Context{
			"note_id":    job.ParentID,
			"name":       job.Name,
			"size_bytes": job.SizeBytes,
			"attempts":   job.Attempts,
		})
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be delivered.
func (r *SentryReporter) Flush() {
	if !r.Enabled() {
		return
	}
	sentry.Flush(sentryFlushTimeout)
}
