package upload

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"notely/internal/attachments"
	"notely/internal/estimator"
	"notely/internal/logging"
	"notely/internal/queue"
	"notely/internal/services"
)

func (p *Pool) runWorker(ctx context.Context, name string) {
	ctx = services.WithWorker(ctx, name)
	logger := p.logger.With(logging.String(logging.FieldWorker, name))

	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.opts.Store.ClaimNext(ctx)
		if errors.Is(err, queue.ErrClaimContention) {
			logger.Debug("lost every claim race; trying again")
			continue
		}
		if err != nil {
			if isCanceled(err) {
				return
			}
			logging.ErrorWithContext(logger, "failed to claim next upload", "queue_claim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorRetryInterval):
			}
			continue
		}
		if job == nil {
			logger.Debug("no pending uploads; worker exiting")
			return
		}

		jobLogger := logger.With(logging.JobID(job.ID))
		if job.Attempts >= p.opts.MaxAttempts {
			p.park(ctx, jobLogger, job, queue.StatusProcessing, ErrMaxAttemptsExceeded)
			continue
		}
		p.process(ctx, jobLogger, job)
	}
}

func (p *Pool) process(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	jobCtx, cancel := context.WithCancel(services.WithJobID(ctx, job.ID))
	active := p.track(job.ID, cancel)
	defer p.untrack(job.ID)

	logger.Info("upload started",
		logging.String("name", job.Name),
		logging.Int64("size_bytes", job.SizeBytes),
		logging.Int("attempt", job.Attempts+1),
		logging.String(logging.FieldEventType, "upload_started"),
	)

	started := p.opts.Now()
	p.opts.Estimator.Begin(job.ID, job.SizeBytes, started)
	meta, err := p.opts.Transfer.Upload(jobCtx, job, func(transferred, total int64) {
		p.onProgress(jobCtx, logger, job, active, transferred, total)
	})

	if ctx.Err() != nil {
		// Pool is stopping: hand the job back without spending an attempt.
		p.forget(job.ID)
		if _, terr := p.opts.Store.Transition(context.WithoutCancel(ctx), job.ID, queue.StatusProcessing, queue.StatusPending, ""); terr != nil {
			logger.Warn("failed to requeue interrupted upload", logging.Error(terr))
		}
		return
	}

	exists, existsErr := p.opts.Store.Exists(ctx, job.ID)
	if existsErr != nil {
		logger.Warn("failed to confirm job after transfer", logging.Error(existsErr))
		exists = true
	}
	if !exists {
		logger.Info("upload job removed during transfer; skipping completion",
			logging.String(logging.FieldEventType, "upload_discarded"),
		)
		p.forget(job.ID)
		return
	}

	if err != nil {
		p.handleFailure(ctx, logger, job, active, err)
		return
	}
	p.complete(ctx, logger, job, meta, p.opts.Now().Sub(started))
}

func (p *Pool) onProgress(ctx context.Context, logger *slog.Logger, job *queue.Job, active *activeJob, transferred, total int64) {
	snap := p.opts.Estimator.Tick(job.ID, transferred, total, p.opts.Now())
	if p.sampler.ShouldLog(job.ID, snap.Percent()) {
		attrs := []logging.Attr{
			logging.Int64("bytes_transferred", snap.BytesTransferred),
			logging.Int64("total_bytes", snap.TotalBytes),
			logging.Float64("speed_bps", snap.Speed),
			logging.String(logging.FieldEventType, "upload_progress"),
		}
		if snap.ETASeconds != nil {
			attrs = append(attrs, logging.Int64("eta_seconds", *snap.ETASeconds))
		}
		logger.Debug("upload progress", logging.Args(attrs...)...)
	}
	if p.nearlyDone(active, snap) {
		p.notify(ctx, logger, "Upload almost done", job.Name)
	}
}

// nearlyDone reports true once per job, when an ETA that started above the
// threshold drops to or below it.
func (p *Pool) nearlyDone(active *activeJob, snap estimator.Progress) bool {
	if snap.ETASeconds == nil {
		return false
	}
	eta := time.Duration(*snap.ETASeconds) * time.Second
	p.mu.Lock()
	defer p.mu.Unlock()
	if eta > p.opts.NotifyETAThreshold {
		active.etaAbove = true
		return false
	}
	if active.etaAbove && !active.nearNotified && eta > 0 {
		active.nearNotified = true
		return true
	}
	return false
}

func (p *Pool) complete(ctx context.Context, logger *slog.Logger, job *queue.Job, meta attachments.Meta, elapsed time.Duration) {
	if p.opts.Sink != nil {
		if err := p.opts.Sink.Attach(ctx, job.ParentID, meta); err != nil {
			logging.ErrorWithContext(logger, "failed to record attachment on note", "attachment_failed",
				logging.Error(err),
				logging.String("path", meta.Path),
				logging.String(logging.FieldErrorHint, "check the note store connection; the object is uploaded"),
			)
		}
	}
	if err := p.opts.Store.Remove(ctx, job.ID); err != nil && !errors.Is(err, queue.ErrNotFound) {
		logging.ErrorWithContext(logger, "failed to remove completed upload", "queue_remove_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
	p.forget(job.ID)
	p.completed.Add(1)

	logger.Info("upload completed",
		logging.String("url", meta.URL),
		logging.Int64("size_bytes", meta.SizeBytes),
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "upload_completed"),
	)
	p.notify(ctx, logger, "Upload complete", job.Name)
}

func (p *Pool) handleFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, active *activeJob, cause error) {
	p.forget(job.ID)
	if !services.Retryable(cause) {
		p.park(ctx, logger, job, queue.StatusProcessing, cause)
		return
	}

	message := strings.TrimSpace(cause.Error())
	ok, err := p.opts.Store.Transition(ctx, job.ID, queue.StatusProcessing, queue.StatusError, message)
	if err != nil {
		logger.Error("failed to record upload failure", logging.Error(err))
		return
	}
	if !ok {
		return
	}
	attempts := job.Attempts + 1
	if attempts >= p.opts.MaxAttempts {
		job.Attempts = attempts
		p.park(ctx, logger, job, queue.StatusError, ErrMaxAttemptsExceeded)
		return
	}
	delay := p.backoff(attempts)
	logging.WarnWithContext(logger, "upload failed; will retry", "upload_retry_scheduled",
		logging.Error(cause),
		logging.Int("attempts", attempts),
		logging.Duration("backoff", delay),
		logging.String(logging.FieldErrorHint, "check connectivity to object storage"),
		logging.String(logging.FieldImpact, "upload delayed"),
	)

	if !p.sleep(ctx, active, delay) {
		if ctx.Err() != nil {
			if _, terr := p.opts.Store.Transition(context.WithoutCancel(ctx), job.ID, queue.StatusError, queue.StatusPending, ""); terr != nil {
				logger.Warn("failed to requeue upload after shutdown", logging.Error(terr))
			}
		}
		return
	}

	if _, err := p.opts.Store.Transition(ctx, job.ID, queue.StatusError, queue.StatusPending, ""); err != nil {
		logger.Error("failed to requeue upload", logging.Error(err))
	}
}

// sleep waits for d. It returns false when the job was cancelled or the pool
// is stopping.
func (p *Pool) sleep(ctx context.Context, active *activeJob, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-active.wake:
			return false
		default:
			return ctx.Err() == nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-active.wake:
		return false
	case <-ctx.Done():
		return false
	}
}

func (p *Pool) park(ctx context.Context, logger *slog.Logger, job *queue.Job, from queue.Status, cause error) {
	ok, err := p.opts.Store.Transition(ctx, job.ID, from, queue.StatusFailed, cause.Error())
	if err != nil {
		logger.Error("failed to mark upload failed", logging.Error(err))
		return
	}
	if !ok {
		return
	}
	logging.ErrorWithContext(logger, "upload failed permanently", "upload_failed",
		logging.Error(cause),
		logging.Int("attempts", job.Attempts),
		logging.String(logging.FieldErrorHint, "retry the job manually once the cause is fixed"),
	)
	if p.opts.Reporter != nil {
		p.opts.Reporter.ReportFailure(ctx, *job, cause)
	}
	p.notify(ctx, logger, "Upload failed", job.Name)
}

func (p *Pool) notify(ctx context.Context, logger *slog.Logger, title, body string) {
	if p.opts.Notifier == nil {
		return
	}
	if err := p.opts.Notifier.Notify(ctx, title, body); err != nil {
		if isCanceled(err) {
			logger.Debug("daemon shutting down, could not send notification")
			return
		}
		logger.Debug("notification failed", logging.Error(err))
	}
}
