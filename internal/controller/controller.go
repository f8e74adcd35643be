// Package controller is the public face of the upload queue: enqueue,
// ordering, manual retry and removal, and the aggregated view shown to users.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"notely/internal/broadcast"
	"notely/internal/estimator"
	"notely/internal/imagecompress"
	"notely/internal/logging"
	"notely/internal/queue"
	"notely/internal/services"
)

// ErrEmptyPayload is returned when enqueueing a job without content.
var ErrEmptyPayload = errors.New("upload payload is empty")

// Runner is the worker pool surface the controller drives.
type Runner interface {
	Start(ctx context.Context, concurrency int) bool
	Running() bool
	Cancel(jobID string) bool
}

// Compressor shrinks image payloads before they are stored.
type Compressor interface {
	Compress(data []byte, mimeType string) (imagecompress.Result, error)
}

// Options wires the controller.
type Options struct {
	Store       *queue.Store
	Pool        Runner
	Estimator   *estimator.Estimator
	Compressor  Compressor
	Publisher   queue.Publisher
	Logger      *slog.Logger
	Concurrency int
	// OwnerID is used when a request does not name one.
	OwnerID string
	NewID   func() string
}

// Controller orchestrates the queue store and the worker pool.
type Controller struct {
	store       *queue.Store
	pool        Runner
	est         *estimator.Estimator
	compressor  Compressor
	publisher   queue.Publisher
	logger      *slog.Logger
	concurrency int
	ownerID     string
	newID       func() string
}

// New constructs a Controller.
func New(opts Options) *Controller {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Estimator == nil {
		opts.Estimator = estimator.New(estimator.Options{})
	}
	return &Controller{
		store:       opts.Store,
		pool:        opts.Pool,
		est:         opts.Estimator,
		compressor:  opts.Compressor,
		publisher:   opts.Publisher,
		logger:      logging.NewComponentLogger(opts.Logger, "queue-controller"),
		concurrency: opts.Concurrency,
		ownerID:     strings.TrimSpace(opts.OwnerID),
		newID:       opts.NewID,
	}
}

// EnqueueRequest describes a new upload.
type EnqueueRequest struct {
	ParentID string
	OwnerID  string
	Name     string
	MimeType string
	Payload  []byte
	Priority int
}

// Enqueue stores a new pending job and wakes the pool. It does not wait for
// the upload.
func (c *Controller) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if len(req.Payload) == 0 {
		return "", ErrEmptyPayload
	}
	parentID := strings.TrimSpace(req.ParentID)
	if parentID == "" {
		return "", services.Wrap(services.ErrValidation, "controller", "enqueue", "Upload needs an owning note", nil)
	}
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		ownerID = c.ownerID
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "file"
	}

	payload := req.Payload
	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		mimeType = mimetype.Detect(payload).String()
	}
	if c.compressor != nil && imagecompress.Supported(mimeType) {
		res, err := c.compressor.Compress(payload, mimeType)
		if err != nil {
			logging.WarnWithContext(c.logger, "image compression failed; uploading original", "image_compress_failed",
				logging.Error(err),
				logging.String("name", name),
				logging.String(logging.FieldImpact, "attachment uploads at original size"),
			)
		} else if res.Compressed {
			c.logger.Debug("image compressed",
				logging.String("name", name),
				logging.Int("original_bytes", len(payload)),
				logging.Int("compressed_bytes", len(res.Data)),
			)
			payload, mimeType = res.Data, res.MimeType
		}
	}

	job, err := c.store.Add(ctx, queue.Job{
		ID:        c.newID(),
		ParentID:  parentID,
		OwnerID:   ownerID,
		Name:      name,
		MimeType:  mimeType,
		SizeBytes: int64(len(payload)),
		Payload:   payload,
		Priority:  req.Priority,
	})
	if err != nil {
		return "", err
	}
	c.logger.Info("upload queued",
		logging.JobID(job.ID),
		logging.String("name", job.Name),
		logging.Int64("size_bytes", job.SizeBytes),
		logging.Int("priority", job.Priority),
		logging.String(logging.FieldEventType, "upload_queued"),
	)
	c.Kick(ctx)
	return job.ID, nil
}

// Kick starts the worker pool if it is idle and allowed to run.
func (c *Controller) Kick(ctx context.Context) bool {
	if c.pool == nil {
		return false
	}
	return c.pool.Start(ctx, c.concurrency)
}

// Reorder gives the listed jobs descending priorities len(ids)-index so the
// first id sorts first. Unknown and repeated ids are ignored; jobs not listed
// keep their priority.
func (c *Controller) Reorder(ctx context.Context, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for index, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if err := c.store.SetPriority(ctx, id, len(ids)-index); err != nil {
			if errors.Is(err, queue.ErrNotFound) {
				continue
			}
			return fmt.Errorf("reorder %s: %w", id, err)
		}
	}
	return nil
}

// MoveUp raises a job by one. A job tied at the top moves strictly above
// the others.
func (c *Controller) MoveUp(ctx context.Context, id string) error {
	job, err := c.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	top, count, err := c.store.MaxPriority(ctx)
	if err != nil {
		return err
	}
	next := job.Priority + 1
	if job.Priority == top && count > 1 {
		next = top + 1
	}
	return c.store.SetPriority(ctx, id, next)
}

// MoveDown lowers a job by one.
func (c *Controller) MoveDown(ctx context.Context, id string) error {
	job, err := c.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return c.store.SetPriority(ctx, id, job.Priority-1)
}

// SetPriority sets a job's priority directly.
func (c *Controller) SetPriority(ctx context.Context, id string, priority int) error {
	return c.store.SetPriority(ctx, id, priority)
}

// Retry resets a job to pending with a fresh attempt budget and wakes the
// pool.
func (c *Controller) Retry(ctx context.Context, id string) error {
	if err := c.store.ResetForRetry(ctx, id); err != nil {
		return err
	}
	c.logger.Info("upload retry requested", logging.JobID(id), logging.String(logging.FieldEventType, "upload_retry"))
	c.Kick(ctx)
	return nil
}

// RetryAll resets every errored or failed job and wakes the pool.
func (c *Controller) RetryAll(ctx context.Context) ([]string, error) {
	ids, err := c.store.ResetFailed(ctx)
	if err != nil {
		return ids, err
	}
	c.logger.Info("force retry requested",
		logging.Int("jobs", len(ids)),
		logging.String(logging.FieldEventType, "upload_retry_all"),
	)
	c.Kick(ctx)
	return ids, nil
}

// Remove deletes a job regardless of status and aborts any transfer or
// backoff in progress for it.
func (c *Controller) Remove(ctx context.Context, id string) error {
	if err := c.store.Remove(ctx, id); err != nil {
		return err
	}
	if c.pool != nil {
		c.pool.Cancel(id)
	}
	c.est.Clear(id)
	c.logger.Info("upload removed", logging.JobID(id), logging.String(logging.FieldEventType, "upload_removed"))
	return nil
}

// Refresh re-reads the queue and tells every observer to re-sync.
func (c *Controller) Refresh(ctx context.Context) (View, error) {
	view, err := c.Snapshot(ctx)
	if err != nil {
		return View{}, err
	}
	if c.publisher != nil {
		c.publisher.Publish(ctx, broadcast.Event{Action: broadcast.ActionRefresh})
	}
	return view, nil
}
