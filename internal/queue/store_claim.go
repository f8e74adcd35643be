package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notely/internal/broadcast"
)

const claimRetryLimit = 8

// Claim atomically moves a pending job to processing. Only one caller can
// win for a given job; losers get (nil, false, nil).
func (s *Store) Claim(ctx context.Context, id string) (*Job, bool, error) {
	var job *Job
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`UPDATE queue_jobs SET status = ?, updated_at = ?
             WHERE id = ? AND status = ?
             RETURNING `+jobColumns,
			StatusProcessing, s.timestamp(), id, StatusPending,
		)
		var scanErr error
		job, scanErr = scanJob(row, true)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("claim queue job: %w", err)
	}
	s.publish(ctx, broadcast.ActionUpdate, job.ID)
	return job, true, nil
}

// ClaimNext claims the highest-priority pending job. It returns nil when
// nothing is pending and ErrClaimContention when every attempt lost a race.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	return s.claimNext(ctx, s.Claim)
}

func (s *Store) claimNext(ctx context.Context, claim func(context.Context, string) (*Job, bool, error)) (*Job, error) {
	for range claimRetryLimit {
		var id string
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM queue_jobs WHERE status = ? `+jobOrder+` LIMIT 1`,
			StatusPending,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select next queue job: %w", err)
		}
		job, ok, err := claim(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			return job, nil
		}
		// Another worker won this one; look again.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, ErrClaimContention
}

// Transition moves a job from one status to another only if it is still in
// the expected status. Moving to StatusError increments attempts.
func (s *Store) Transition(ctx context.Context, id string, from, to Status, lastErr string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_jobs
         SET status = ?,
             attempts = attempts + CASE WHEN ? = 'error' THEN 1 ELSE 0 END,
             last_error = COALESCE(?, last_error),
             updated_at = ?
         WHERE id = ? AND status = ?`,
		to, to, nullableString(lastErr), s.timestamp(), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition queue job: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return false, nil
	}
	s.publish(ctx, broadcast.ActionUpdate, id)
	return true, nil
}

// ResetForRetry puts a job back to pending with a fresh attempt budget. A
// job that a worker is uploading is left alone and ErrInProgress returned.
func (s *Store) ResetForRetry(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_jobs SET status = ?, attempts = 0, last_error = NULL, updated_at = ?
         WHERE id = ? AND status <> ?`,
		StatusPending, s.timestamp(), id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("reset queue job: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		exists, err := s.Exists(ctx, id)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("reset %s: %w", id, ErrInProgress)
		}
		return fmt.Errorf("reset %s: %w", id, ErrNotFound)
	}
	s.publish(ctx, broadcast.ActionUpdate, id)
	return nil
}

// ResetFailed resets every errored or failed job and returns their ids.
func (s *Store) ResetFailed(ctx context.Context) ([]string, error) {
	jobs, err := s.List(ctx, StatusError, StatusFailed)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if err := s.ResetForRetry(ctx, job.ID); err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInProgress) {
				continue
			}
			return ids, err
		}
		ids = append(ids, job.ID)
	}
	return ids, nil
}

// ReclaimStaleProcessing returns jobs left in processing or error by a
// previous process to pending. Attempt counts are kept, so a job that already
// spent its budget is failed on its next claim.
func (s *Store) ReclaimStaleProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_jobs SET status = ?, updated_at = ? WHERE status IN (?, ?)`,
		StatusPending, s.timestamp(), StatusProcessing, StatusError,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim processing jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reclaim rows affected: %w", err)
	}
	if affected > 0 {
		s.publish(ctx, broadcast.ActionRefresh, "")
	}
	return affected, nil
}
