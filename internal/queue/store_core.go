package queue

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"notely/internal/broadcast"
	"notely/internal/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Publisher receives an event for every store mutation.
type Publisher interface {
	Publish(ctx context.Context, evt broadcast.Event)
}

// Store manages queue persistence backed by SQLite.
type Store struct {
	db        *sql.DB
	path      string
	publisher Publisher
	now       func() time.Time
	provider  *goose.Provider
}

const (
	sqliteBusyCode          = 5
	sqliteConstraintPK      = 1555
	sqliteConstraintUnique  = 2067
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && code&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && (code == sqliteConstraintPK || code == sqliteConstraintUnique) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the queue database in the configured data
// directory. publisher may be nil.
func Open(cfg *config.Config, publisher Publisher) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(context.Background(), cfg.QueueDBPath(), publisher)
}

// OpenPath opens the queue database at dbPath and applies pending migrations.
func OpenPath(ctx context.Context, dbPath string, publisher Publisher) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + dbPath + "?" + url.Values{
		"_pragma": []string{"journal_mode(WAL)", "foreign_keys(1)", "busy_timeout(5000)"},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath, publisher: publisher, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	s.provider = provider
	if err := retryOnBusy(ctx, func() error {
		_, upErr := provider.Up(ctx)
		return upErr
	}); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) publish(ctx context.Context, action broadcast.Action, id string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, broadcast.Event{Action: action, JobID: id})
}

func (s *Store) timestamp() int64 {
	return s.now().UTC().UnixNano()
}
