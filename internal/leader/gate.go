package leader

import "context"

// Runner is the worker pool surface gated by leadership.
type Runner interface {
	Start(ctx context.Context, concurrency int) bool
	Running() bool
	Cancel(jobID string) bool
}

// Gate only lets the wrapped pool start while the elector leads. Followers
// still enqueue and reorder; the leader uploads.
type Gate struct {
	Elector *Elector
	Pool    Runner
}

// Start starts the pool when leading.
func (g Gate) Start(ctx context.Context, concurrency int) bool {
	if !g.Elector.Leading() {
		return false
	}
	return g.Pool.Start(ctx, concurrency)
}

// Running reports whether the pool is running.
func (g Gate) Running() bool {
	return g.Pool.Running()
}

// Cancel forwards to the pool.
func (g Gate) Cancel(jobID string) bool {
	return g.Pool.Cancel(jobID)
}
