package queue

import "errors"

var (
	// ErrDuplicateID is returned by Add when the job id already exists.
	ErrDuplicateID = errors.New("queue job id already exists")
	// ErrNotFound is returned when a job id is absent from the store.
	ErrNotFound = errors.New("queue job not found")
	// ErrInProgress is returned when a job cannot change while a worker
	// owns it.
	ErrInProgress = errors.New("queue job is uploading")
	// ErrClaimContention is returned by ClaimNext when other workers kept
	// winning every pending job it tried. Pending work remains.
	ErrClaimContention = errors.New("queue claim contention")
)
