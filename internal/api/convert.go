package api

import (
	"time"

	"notely/internal/controller"
	"notely/internal/estimator"
	"notely/internal/logging"
	"notely/internal/queue"
)

// FromJobView converts a controller job view to its API representation.
func FromJobView(view controller.JobView) Job {
	dto := Job{
		ID:              view.ID,
		ParentID:        view.ParentID,
		Name:            view.Name,
		MimeType:        view.MimeType,
		SizeBytes:       view.SizeBytes,
		Status:          string(view.Status),
		Attempts:        view.Attempts,
		Priority:        view.Priority,
		LastError:       view.LastError,
		CreatedAt:       formatTime(view.CreatedAt),
		UpdatedAt:       formatTime(view.UpdatedAt),
		StartETASeconds: view.StartETASeconds,
	}
	if view.Progress != nil {
		p := FromProgress(*view.Progress)
		dto.Progress = &p
	}
	return dto
}

// FromProgress converts an estimator snapshot.
func FromProgress(p estimator.Progress) Progress {
	return Progress{
		BytesTransferred: p.BytesTransferred,
		TotalBytes:       p.TotalBytes,
		Percent:          p.Percent(),
		Speed:            p.Speed,
		ETASeconds:       p.ETASeconds,
		UpdatedAt:        formatTime(p.UpdatedAt),
	}
}

// FromView converts the aggregated queue view.
func FromView(view controller.View) QueueView {
	dto := QueueView{
		Jobs:                make([]Job, 0, len(view.Jobs)),
		GlobalSpeed:         view.GlobalSpeed,
		AggregateETASeconds: view.AggregateETASeconds,
		Concurrency:         view.Concurrency,
		PoolRunning:         view.PoolRunning,
	}
	for _, job := range view.Jobs {
		dto.Jobs = append(dto.Jobs, FromJobView(job))
	}
	return dto
}

// FromSamples converts a speed history.
func FromSamples(jobID string, samples []estimator.Sample) HistoryResponse {
	resp := HistoryResponse{JobID: jobID, Samples: make([]Sample, 0, len(samples))}
	for _, s := range samples {
		resp.Samples = append(resp.Samples, Sample{
			Timestamp:        formatTime(s.Timestamp),
			BytesTransferred: s.BytesTransferred,
			TotalBytes:       s.TotalBytes,
			Speed:            s.Speed,
		})
	}
	return resp
}

// FromHealth converts queue counts keyed by status string. Every status is
// present so consumers need not special-case missing keys.
func FromHealth(health queue.HealthSummary) QueueStatsResponse {
	return QueueStatsResponse{
		Counts: map[string]int{
			string(queue.StatusPending):    health.Pending,
			string(queue.StatusProcessing): health.Processing,
			string(queue.StatusError):      health.Error,
			string(queue.StatusFailed):     health.Failed,
		},
		PendingBytes: health.PendingBytes,
	}
}

// FromLogEvents converts streamed log events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:      evt.Sequence,
			Timestamp:     formatTime(evt.Timestamp),
			Level:         evt.Level,
			Message:       evt.Message,
			Component:     evt.Component,
			JobID:         evt.JobID,
			Worker:        evt.Worker,
			CorrelationID: evt.CorrelationID,
			Fields:        evt.Fields,
		})
	}
	return out
}

// ParseTime parses a timestamp produced by this package.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
