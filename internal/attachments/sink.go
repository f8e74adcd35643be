package attachments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"notely/internal/config"
	"notely/internal/logging"
	"notely/internal/services"
)

// ErrNoteNotFound is returned when the owning note no longer exists.
var ErrNoteNotFound = errors.New("note not found")

// Sink appends attachment metadata to a note.
type Sink interface {
	Attach(ctx context.Context, noteID string, meta Meta) error
	Close()
}

// NewSink returns a Postgres-backed sink when a database URL is configured
// and a logging sink otherwise.
func NewSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Sink, error) {
	dsn := strings.TrimSpace(cfg.Notes.DatabaseURL)
	if dsn == "" {
		return NewLogSink(logger), nil
	}
	return NewPostgresSink(ctx, dsn, logger)
}

// PostgresSink stores attachments in notes.attachments (JSONB array).
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresSink connects to the note store and verifies the connection.
func NewPostgresSink(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "attachments", "connect", "Failed to create note store connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, services.Wrap(services.ErrTransient, "attachments", "ping", "Note store is unreachable", err)
	}
	return &PostgresSink{pool: pool, logger: logging.NewComponentLogger(logger, "attachments")}, nil
}

const appendAttachmentSQL = `
UPDATE notes
SET attachments = COALESCE(attachments, '[]'::jsonb) || $2::jsonb,
    updated_at = now()
WHERE id = $1
  AND NOT COALESCE(attachments, '[]'::jsonb) @> jsonb_build_array(jsonb_build_object('path', $3::text))`

// Attach appends meta to the note. Attaching the same path twice is a no-op.
func (s *PostgresSink) Attach(ctx context.Context, noteID string, meta Meta) error {
	encoded, err := json.Marshal([]Meta{meta})
	if err != nil {
		return fmt.Errorf("encode attachment: %w", err)
	}
	tag, err := s.pool.Exec(ctx, appendAttachmentSQL, noteID, string(encoded), meta.Path)
	if err != nil {
		return services.Wrap(services.ErrTransient, "attachments", "append", "Failed to update note attachments", err)
	}
	if tag.RowsAffected() > 0 {
		s.logger.Debug("attachment recorded", logging.String("note_id", noteID), logging.String("path", meta.Path))
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM notes WHERE id = $1)`, noteID).Scan(&exists); err != nil {
		return services.Wrap(services.ErrTransient, "attachments", "lookup", "Failed to look up note", err)
	}
	if !exists {
		return fmt.Errorf("attach to %s: %w", noteID, ErrNoteNotFound)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// LogSink only logs attachments. It is used when no note store is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.NewComponentLogger(logger, "attachments")}
}

func (s *LogSink) Attach(ctx context.Context, noteID string, meta Meta) error {
	if strings.TrimSpace(noteID) == "" {
		return services.Wrap(services.ErrValidation, "attachments", "attach", "Attachment has no owning note", nil)
	}
	s.logger.InfoContext(ctx, "attachment ready",
		logging.String("note_id", noteID),
		logging.String("path", meta.Path),
		logging.String("url", meta.URL),
		logging.Int64("size_bytes", meta.SizeBytes),
		logging.String(logging.FieldEventType, "attachment_logged"),
	)
	return nil
}

func (s *LogSink) Close() {}
