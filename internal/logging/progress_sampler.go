package logging

import "sync"

// ProgressSampler suppresses repetitive transfer progress logs while keeping
// one line per percentage bucket for every job.
type ProgressSampler struct {
	mu         sync.Mutex
	bucketSize float64
	lastBucket map[string]int
}

// NewProgressSampler constructs a sampler that emits when a job's percent
// crosses bucket boundaries (default 5%).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: make(map[string]int)}
}

// ShouldLog reports whether a progress event for jobID should be logged. A
// negative percent means the total is unknown; only the first such event logs.
func (s *ProgressSampler) ShouldLog(jobID string, percent float64) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	last, seen := s.lastBucket[jobID]
	if !seen {
		last = -1
	}
	if percent < 0 {
		s.lastBucket[jobID] = max(last, 0)
		return !seen
	}
	bucket := int(min(percent, 100) / s.bucketSize)
	if bucket > last || !seen {
		s.lastBucket[jobID] = bucket
		return true
	}
	return false
}

// Forget drops sampler state for a finished job.
func (s *ProgressSampler) Forget(jobID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.lastBucket, jobID)
	s.mu.Unlock()
}
