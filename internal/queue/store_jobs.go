package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"notely/internal/broadcast"
)

// DefaultPendingLimit caps Pending when no limit is supplied.
const DefaultPendingLimit = 1000

// Add inserts a new pending job. A zero CreatedAt is stamped with the
// current time.
func (s *Store) Add(ctx context.Context, job Job) (*Job, error) {
	if strings.TrimSpace(job.ID) == "" {
		return nil, errors.New("queue job id is required")
	}
	if job.Payload == nil {
		job.Payload = []byte{}
	}
	now := s.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	job.Status = StatusPending
	job.Attempts = 0
	job.LastError = ""

	_, err := s.execWithRetry(ctx,
		`INSERT INTO queue_jobs (id, parent_id, owner_id, name, mime_type, size_bytes, payload, status, attempts, priority, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		job.ID,
		job.ParentID,
		job.OwnerID,
		job.Name,
		job.MimeType,
		job.SizeBytes,
		job.Payload,
		StatusPending,
		job.Priority,
		job.CreatedAt.UTC().UnixNano(),
		job.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("add %s: %w", job.ID, ErrDuplicateID)
		}
		return nil, fmt.Errorf("insert queue job: %w", err)
	}
	s.publish(ctx, broadcast.ActionAdd, job.ID)
	return &job, nil
}

// GetByID fetches a job including its payload.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM queue_jobs WHERE id = ?`, id)
	job, err := scanJob(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get queue job: %w", err)
	}
	return job, nil
}

// Exists reports whether a job is still queued.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM queue_jobs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check queue job: %w", err)
	}
	return true, nil
}

// List returns every job ordered by priority (highest first), then creation
// time (oldest first). Payloads are not loaded.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Job, error) {
	query := `SELECT ` + summaryColumns + ` FROM queue_jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	rows, err := s.db.QueryContext(ctx, query+` `+jobOrder, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue jobs: %w", err)
	}
	return scanJobs(rows)
}

// Pending returns up to limit pending jobs in queue order. A limit <= 0
// uses DefaultPendingLimit.
func (s *Store) Pending(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM queue_jobs WHERE status = ? `+jobOrder+` LIMIT ?`,
		StatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	return scanJobs(rows)
}

// Remove deletes a job and its payload. Removing an absent job returns
// ErrNotFound and has no other effect.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove queue job: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	s.publish(ctx, broadcast.ActionRemove, id)
	return nil
}

// SetStatus updates a job's status. Moving to StatusError increments the
// attempt counter and records lastErr.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, lastErr string) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_jobs
         SET status = ?,
             attempts = attempts + CASE WHEN ? = 'error' THEN 1 ELSE 0 END,
             last_error = COALESCE(?, last_error),
             updated_at = ?
         WHERE id = ?`,
		status, status, nullableString(lastErr), s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("set queue job status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("set status %s: %w", id, ErrNotFound)
	}
	s.publish(ctx, broadcast.ActionUpdate, id)
	return nil
}

// SetPriority changes ordering only; status and attempts are untouched.
func (s *Store) SetPriority(ctx context.Context, id string, priority int) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_jobs SET priority = ?, updated_at = ? WHERE id = ?`,
		priority, s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("set queue job priority: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("set priority %s: %w", id, ErrNotFound)
	}
	s.publish(ctx, broadcast.ActionPriority, id)
	return nil
}

// MaxPriority returns the highest priority in the queue and how many jobs
// share it. An empty queue reports (0, 0).
func (s *Store) MaxPriority(ctx context.Context) (int, int, error) {
	var (
		maxPriority sql.NullInt64
		count       int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(priority), (SELECT COUNT(1) FROM queue_jobs WHERE priority = (SELECT MAX(priority) FROM queue_jobs)) FROM queue_jobs`,
	).Scan(&maxPriority, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("max queue priority: %w", err)
	}
	return int(maxPriority.Int64), count, nil
}
