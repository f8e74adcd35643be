package controller

import (
	"context"
	"time"

	"notely/internal/estimator"
	"notely/internal/queue"
)

// JobView is one queue entry as shown to users.
type JobView struct {
	ID        string       `json:"id"`
	ParentID  string       `json:"parent_id"`
	Name      string       `json:"name"`
	MimeType  string       `json:"mime_type"`
	SizeBytes int64        `json:"size_bytes"`
	Status    queue.Status `json:"status"`
	Attempts  int          `json:"attempts"`
	Priority  int          `json:"priority"`
	LastError string       `json:"last_error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	// Progress is set while the job is transferring in this process.
	Progress *estimator.Progress `json:"progress,omitempty"`
	// StartETASeconds estimates when a pending job will start.
	StartETASeconds *int64 `json:"start_eta_seconds,omitempty"`
}

// View is the aggregated queue state.
type View struct {
	Jobs                []JobView `json:"jobs"`
	GlobalSpeed         float64   `json:"global_speed"`
	AggregateETASeconds int64     `json:"aggregate_eta_seconds"`
	Concurrency         int       `json:"concurrency"`
	PoolRunning         bool      `json:"pool_running"`
}

// Snapshot reads the queue and attaches progress and ETA estimates.
func (c *Controller) Snapshot(ctx context.Context) (View, error) {
	jobs, err := c.store.List(ctx)
	if err != nil {
		return View{}, err
	}

	concurrency := max(c.concurrency, 1)
	var (
		pending   []estimator.Item
		uploading []estimator.Item
		active    []estimator.Item
	)
	for _, job := range jobs {
		item := estimator.Item{ID: job.ID, SizeBytes: job.SizeBytes}
		switch job.Status {
		case queue.StatusFailed:
			continue
		case queue.StatusPending:
			pending = append(pending, item)
		case queue.StatusProcessing:
			uploading = append(uploading, item)
		}
		active = append(active, item)
	}
	startETAs := c.est.PendingETAs(uploading, pending, concurrency)

	view := View{
		Jobs:                make([]JobView, 0, len(jobs)),
		GlobalSpeed:         c.est.GlobalSpeed(),
		AggregateETASeconds: c.est.AggregateETA(active, concurrency),
		Concurrency:         concurrency,
	}
	if c.pool != nil {
		view.PoolRunning = c.pool.Running()
	}
	for _, job := range jobs {
		jv := JobView{
			ID:        job.ID,
			ParentID:  job.ParentID,
			Name:      job.Name,
			MimeType:  job.MimeType,
			SizeBytes: job.SizeBytes,
			Status:    job.Status,
			Attempts:  job.Attempts,
			Priority:  job.Priority,
			LastError: job.LastError,
			CreatedAt: job.CreatedAt,
			UpdatedAt: job.UpdatedAt,
		}
		if progress, ok := c.est.Progress(job.ID); ok {
			jv.Progress = &progress
		}
		if eta, ok := startETAs[job.ID]; ok {
			jv.StartETASeconds = &eta
		}
		view.Jobs = append(view.Jobs, jv)
	}
	return view, nil
}

// History returns the recorded speed samples for a job.
func (c *Controller) History(jobID string) []estimator.Sample {
	return c.est.History(jobID)
}
