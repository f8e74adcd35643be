package api

import (
	"context"
	"fmt"

	"notely/internal/controller"
	"notely/internal/queue"
)

// QueueService exposes queue operations returning API DTOs. The daemon
// serves it over HTTP and the CLI uses it directly when no daemon runs.
type QueueService struct {
	ctrl  *controller.Controller
	store *queue.Store
}

// NewQueueService constructs a QueueService.
func NewQueueService(ctrl *controller.Controller, store *queue.Store) *QueueService {
	if ctrl == nil || store == nil {
		return nil
	}
	return &QueueService{ctrl: ctrl, store: store}
}

// View returns the whole queue with estimates.
func (s *QueueService) View(ctx context.Context) (QueueView, error) {
	view, err := s.ctrl.Snapshot(ctx)
	if err != nil {
		return QueueView{}, err
	}
	return FromView(view), nil
}

// List returns jobs filtered by status, in queue order.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]Job, error) {
	view, err := s.View(ctx)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return view.Jobs, nil
	}
	wanted := make(map[string]struct{}, len(statuses))
	for _, st := range statuses {
		wanted[string(st)] = struct{}{}
	}
	jobs := make([]Job, 0, len(view.Jobs))
	for _, job := range view.Jobs {
		if _, ok := wanted[job.Status]; ok {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// Describe returns one job. Missing ids yield queue.ErrNotFound.
func (s *QueueService) Describe(ctx context.Context, id string) (Job, error) {
	view, err := s.View(ctx)
	if err != nil {
		return Job{}, err
	}
	for _, job := range view.Jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return Job{}, fmt.Errorf("describe %s: %w", id, queue.ErrNotFound)
}

// Stats returns queue counts.
func (s *QueueService) Stats(ctx context.Context) (QueueStatsResponse, error) {
	health, err := s.store.Health(ctx)
	if err != nil {
		return QueueStatsResponse{}, err
	}
	return FromHealth(health), nil
}

// History returns the recorded speed samples of a job.
func (s *QueueService) History(jobID string) HistoryResponse {
	return FromSamples(jobID, s.ctrl.History(jobID))
}

// Enqueue stores a new upload.
func (s *QueueService) Enqueue(ctx context.Context, req controller.EnqueueRequest) (EnqueueResponse, error) {
	id, err := s.ctrl.Enqueue(ctx, req)
	if err != nil {
		return EnqueueResponse{}, err
	}
	return EnqueueResponse{ID: id}, nil
}

// Refresh re-reads the queue and notifies observers.
func (s *QueueService) Refresh(ctx context.Context) (QueueView, error) {
	view, err := s.ctrl.Refresh(ctx)
	if err != nil {
		return QueueView{}, err
	}
	return FromView(view), nil
}

// Reorder assigns descending priorities in list order.
func (s *QueueService) Reorder(ctx context.Context, ids []string) error {
	return s.ctrl.Reorder(ctx, ids)
}

// Move shifts a job one step up or down.
func (s *QueueService) Move(ctx context.Context, id string, up bool) error {
	if up {
		return s.ctrl.MoveUp(ctx, id)
	}
	return s.ctrl.MoveDown(ctx, id)
}

// SetPriority edits a job's priority.
func (s *QueueService) SetPriority(ctx context.Context, id string, priority int) error {
	return s.ctrl.SetPriority(ctx, id, priority)
}

// Retry resets one job.
func (s *QueueService) Retry(ctx context.Context, id string) error {
	return s.ctrl.Retry(ctx, id)
}

// RetryAll resets every errored or failed job.
func (s *QueueService) RetryAll(ctx context.Context) (RetryAllResponse, error) {
	ids, err := s.ctrl.RetryAll(ctx)
	if err != nil {
		return RetryAllResponse{}, err
	}
	if ids == nil {
		ids = []string{}
	}
	return RetryAllResponse{IDs: ids}, nil
}

// Remove deletes a job.
func (s *QueueService) Remove(ctx context.Context, id string) error {
	return s.ctrl.Remove(ctx, id)
}
