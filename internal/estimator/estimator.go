package estimator

import (
	"math"
	"sync"
	"time"
)

const (
	DefaultAlpha       = 0.2
	DefaultNoiseFloor  = 50.0
	DefaultHistorySize = 90
)

// Options tunes the estimator. Zero values fall back to the defaults.
type Options struct {
	Alpha       float64
	NoiseFloor  float64
	HistorySize int
}

// Sample is one recorded progress tick.
type Sample struct {
	Timestamp        time.Time `json:"ts"`
	BytesTransferred int64     `json:"bytes_transferred"`
	TotalBytes       int64     `json:"total_bytes"`
	// Speed is the rounded effective speed in bytes per second.
	Speed float64 `json:"speed"`
}

// Progress is the latest view of a job's transfer.
type Progress struct {
	JobID            string  `json:"job_id"`
	BytesTransferred int64   `json:"bytes_transferred"`
	TotalBytes       int64   `json:"total_bytes"`
	Speed            float64 `json:"speed"`
	// ETASeconds is nil when the remaining time is unknown.
	ETASeconds *int64    `json:"eta_seconds"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Percent returns completion in the 0-100 range, or -1 when the total is
// unknown.
func (p Progress) Percent() float64 {
	if p.TotalBytes < 0 {
		return -1
	}
	if p.TotalBytes == 0 {
		return 100
	}
	pct := float64(p.BytesTransferred) / float64(p.TotalBytes) * 100
	return math.Min(100, math.Max(0, pct))
}

// Item is the minimal job view needed for queue-wide estimates.
type Item struct {
	ID        string
	SizeBytes int64
}

type jobState struct {
	hasBaseline bool
	lastBytes   int64
	lastTime    time.Time
	progress    Progress
	history     *ring
}

// Estimator is safe for concurrent use by multiple workers.
type Estimator struct {
	mu     sync.Mutex
	opts   Options
	global float64
	seeded bool
	jobs   map[string]*jobState
}

// New constructs an Estimator.
func New(opts Options) *Estimator {
	if opts.Alpha <= 0 || opts.Alpha > 1 {
		opts.Alpha = DefaultAlpha
	}
	if opts.NoiseFloor <= 0 {
		opts.NoiseFloor = DefaultNoiseFloor
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	return &Estimator{opts: opts, jobs: make(map[string]*jobState)}
}

func (e *Estimator) state(jobID string) *jobState {
	st, ok := e.jobs[jobID]
	if !ok {
		st = &jobState{history: newRing(e.opts.HistorySize)}
		e.jobs[jobID] = st
	}
	return st
}

// Begin marks the start of a transfer so the first progress tick already
// yields a rate.
func (e *Estimator) Begin(jobID string, totalBytes int64, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &jobState{history: newRing(e.opts.HistorySize)}
	st.hasBaseline = true
	st.lastTime = now
	st.progress = Progress{JobID: jobID, TotalBytes: totalBytes, UpdatedAt: now}
	st.progress.ETASeconds = e.eta(totalBytes, 0, e.global)
	e.jobs[jobID] = st
}

// Tick records a progress event. A negative totalBytes means the size is
// unknown. The first tick of a job without a baseline only records the
// baseline and leaves the global estimate untouched.
func (e *Estimator) Tick(jobID string, bytesTransferred, totalBytes int64, now time.Time) Progress {
	e.mu.Lock()
	defer e.mu.Unlock()

	if bytesTransferred < 0 {
		bytesTransferred = 0
	}
	st := e.state(jobID)

	var instant float64
	if st.hasBaseline {
		dt := now.Sub(st.lastTime)
		if dt < time.Millisecond {
			dt = time.Millisecond
		}
		delta := max(0, bytesTransferred-st.lastBytes)
		instant = float64(delta) / dt.Seconds()
		if e.seeded {
			e.global = e.opts.Alpha*instant + (1-e.opts.Alpha)*e.global
		} else {
			e.global = instant
			e.seeded = true
		}
	}
	st.hasBaseline = true
	st.lastBytes = bytesTransferred
	st.lastTime = now

	effective := instant
	if effective <= e.opts.NoiseFloor {
		effective = e.global
	}
	effective = math.Max(0, effective)

	st.progress = Progress{
		JobID:            jobID,
		BytesTransferred: bytesTransferred,
		TotalBytes:       totalBytes,
		Speed:            effective,
		ETASeconds:       e.eta(totalBytes, bytesTransferred, effective),
		UpdatedAt:        now,
	}
	st.history.push(Sample{
		Timestamp:        now,
		BytesTransferred: bytesTransferred,
		TotalBytes:       totalBytes,
		Speed:            math.Round(effective),
	})
	return st.progress
}

func (e *Estimator) eta(total, transferred int64, speed float64) *int64 {
	if total < 0 {
		return nil
	}
	remaining := max(0, total-transferred)
	if remaining == 0 {
		zero := int64(0)
		return &zero
	}
	if speed <= 0 {
		return nil
	}
	secs := int64(math.Ceil(float64(remaining) / speed))
	return &secs
}

// Progress returns the latest progress for a job.
func (e *Estimator) Progress(jobID string) (Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.jobs[jobID]
	if !ok {
		return Progress{}, false
	}
	return st.progress, true
}

// History returns a copy of the job's samples, oldest first.
func (e *Estimator) History(jobID string) []Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.jobs[jobID]
	if !ok {
		return nil
	}
	return st.history.items()
}

// Clear drops all in-memory state for a job.
func (e *Estimator) Clear(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.jobs, jobID)
}

// GlobalSpeed returns the process-wide speed estimate in bytes per second.
func (e *Estimator) GlobalSpeed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.global
}

func (e *Estimator) throughput(concurrency int) float64 {
	if concurrency <= 0 {
		concurrency = 1
	}
	return math.Max(e.opts.NoiseFloor, e.global*float64(concurrency))
}

func (e *Estimator) remaining(item Item) int64 {
	if st, ok := e.jobs[item.ID]; ok && st.progress.TotalBytes >= 0 && st.hasBaseline {
		return max(0, st.progress.TotalBytes-st.progress.BytesTransferred)
	}
	return max(0, item.SizeBytes)
}

// AggregateETA estimates the seconds needed to drain every item.
func (e *Estimator) AggregateETA(items []Item, concurrency int) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total int64
	for _, item := range items {
		total += e.remaining(item)
	}
	return int64(math.Ceil(float64(total) / e.throughput(concurrency)))
}

// PendingETAs estimates, for each pending item in queue order, the seconds
// until it starts: the bytes ahead of it divided by aggregate throughput.
// Bytes still to send for inFlight items count as ahead of every pending one.
func (e *Estimator) PendingETAs(inFlight, pending []Item, concurrency int) map[string]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	rate := e.throughput(concurrency)
	var ahead int64
	for _, item := range inFlight {
		ahead += e.remaining(item)
	}
	out := make(map[string]int64, len(pending))
	for _, item := range pending {
		out[item.ID] = int64(math.Ceil(float64(ahead) / rate))
		ahead += e.remaining(item)
	}
	return out
}
