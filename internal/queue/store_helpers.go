package queue

import (
	"database/sql"
	"time"
)

const (
	summaryColumns = "id, parent_id, owner_id, name, mime_type, size_bytes, status, attempts, priority, last_error, created_at, updated_at"
	jobColumns     = summaryColumns + ", payload"
	jobOrder       = "ORDER BY priority DESC, created_at ASC, id ASC"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner, withPayload bool) (*Job, error) {
	var (
		job       Job
		statusStr string
		lastError sql.NullString
		createdNs int64
		updatedNs int64
	)
	dest := []any{
		&job.ID,
		&job.ParentID,
		&job.OwnerID,
		&job.Name,
		&job.MimeType,
		&job.SizeBytes,
		&statusStr,
		&job.Attempts,
		&job.Priority,
		&lastError,
		&createdNs,
		&updatedNs,
	}
	if withPayload {
		dest = append(dest, &job.Payload)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	job.Status = Status(statusStr)
	job.LastError = lastError.String
	job.CreatedAt = fromUnixNano(createdNs)
	job.UpdatedAt = fromUnixNano(updatedNs)
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	defer rows.Close()
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows, false)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
