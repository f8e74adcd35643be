// Package leader elects the single process allowed to run upload workers
// when several processes share one queue database.
package leader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"notely/internal/logging"
)

const defaultRetryInterval = 2 * time.Second

// Elector holds an exclusive file lock while its process leads.
type Elector struct {
	lock     *flock.Flock
	path     string
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	leading  atomic.Bool
	stepping atomic.Bool
}

// New returns an Elector contending for the lock at path. A non-positive
// interval uses the default retry interval.
func New(path string, interval time.Duration, logger *slog.Logger) *Elector {
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	return &Elector{
		lock:     flock.New(path),
		path:     path,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "leader"),
	}
}

// Path returns the lock file path.
func (e *Elector) Path() string {
	return e.path
}

// Leading reports whether this process currently holds the lock and is not
// stepping down.
func (e *Elector) Leading() bool {
	return e != nil && e.leading.Load() && !e.stepping.Load()
}

// TryAcquire attempts to take leadership once without blocking.
func (e *Elector) TryAcquire() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.leading.Load() {
		return true, nil
	}
	ok, err := e.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire leader lock: %w", err)
	}
	if ok {
		e.leading.Store(true)
		e.logger.Info("acquired upload leadership",
			logging.String("lock", e.path),
			logging.String(logging.FieldEventType, "leader_elected"),
		)
	}
	return ok, nil
}

// Run contends for leadership until it is won or ctx ends. onElected runs
// once after the lock is taken; the lock is held until ctx is cancelled.
// On cancellation Leading turns false, onResign runs, and only then is the
// lock released, so no other process takes over while work is winding down.
func (e *Elector) Run(ctx context.Context, onElected func(context.Context), onResign func()) error {
	for {
		ok, err := e.TryAcquire()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(e.interval):
		}
	}

	if onElected != nil {
		onElected(ctx)
	}
	<-ctx.Done()

	e.stepping.Store(true)
	defer e.stepping.Store(false)
	if onResign != nil {
		onResign()
	}
	return e.Release()
}

// Release gives up leadership. It is safe to call when not leading.
func (e *Elector) Release() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.leading.Load() {
		return nil
	}
	e.leading.Store(false)
	if err := e.lock.Unlock(); err != nil {
		return fmt.Errorf("release leader lock: %w", err)
	}
	e.logger.Info("released upload leadership", logging.String(logging.FieldEventType, "leader_released"))
	return nil
}
