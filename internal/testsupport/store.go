package testsupport

import (
	"context"
	"testing"
	"time"

	"notely/internal/config"
	"notely/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	return MustOpenStoreWithPublisher(t, cfg, nil)
}

// MustOpenStoreWithPublisher opens a store that reports mutations to pub.
func MustOpenStoreWithPublisher(t testing.TB, cfg *config.Config, pub queue.Publisher) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, pub)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// JobOption customizes a job created by NewJob.
type JobOption func(*queue.Job)

// WithPriority sets the job priority.
func WithPriority(p int) JobOption {
	return func(j *queue.Job) { j.Priority = p }
}

// WithCreatedAt pins the job creation time.
func WithCreatedAt(ts time.Time) JobOption {
	return func(j *queue.Job) { j.CreatedAt = ts }
}

// WithPayload replaces the default payload.
func WithPayload(payload []byte) JobOption {
	return func(j *queue.Job) {
		j.Payload = payload
		j.SizeBytes = int64(len(payload))
	}
}

// NewJob inserts a pending job with the given id using the provided store.
func NewJob(t testing.TB, store *queue.Store, id string, opts ...JobOption) *queue.Job {
	t.Helper()

	payload := []byte("attachment-bytes-" + id)
	job := queue.Job{
		ID:        id,
		ParentID:  "note-1",
		OwnerID:   "owner-test",
		Name:      id + ".txt",
		MimeType:  "text/plain",
		SizeBytes: int64(len(payload)),
		Payload:   payload,
	}
	for _, opt := range opts {
		opt(&job)
	}
	added, err := store.Add(context.Background(), job)
	if err != nil {
		t.Fatalf("store.Add(%s): %v", id, err)
	}
	return added
}
