package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"notely/internal/estimator"
	"notely/internal/logging"
	"notely/internal/queue"
)

const (
	DefaultConcurrency  = 2
	DefaultMaxAttempts  = 5
	DefaultBackoffBase  = time.Second
	DefaultBackoffMax   = 30 * time.Second
	DefaultNotifyETA    = 10 * time.Second
	errorRetryInterval  = 5 * time.Second
	maxBackoffExponent  = 30
	progressBucketWidth = 5
)

// Options wires a Pool to its collaborators. Store, Transfer and Estimator
// are required.
type Options struct {
	Store     *queue.Store
	Transfer  Transfer
	Sink      AttachmentSink
	Oracle    Oracle
	Notifier  Notifier
	Reporter  FailureReporter
	Estimator *estimator.Estimator
	Logger    *slog.Logger

	// Context bounds every worker. Cancelling it stops the pool for good.
	Context            context.Context
	Concurrency        int
	MaxAttempts        int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	NotifyETAThreshold time.Duration
	Now                func() time.Time
	// OnDrained runs after the queue empties with the number of uploads
	// completed since the previous drain.
	OnDrained func(completed int)
}

type activeJob struct {
	cancel       context.CancelFunc
	wake         chan struct{}
	etaAbove     bool
	nearNotified bool
}

type poolRun struct {
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	concurrency int
}

// Pool runs upload workers against the queue store.
type Pool struct {
	opts    Options
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	mu      sync.Mutex
	current *poolRun
	kick    bool
	active  map[string]*activeJob

	completed atomic.Int64
}

// New constructs a Pool. Zero option values fall back to defaults, except
// BackoffBase where zero disables the retry wait.
func New(opts Options) *Pool {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BackoffBase < 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax < opts.BackoffBase {
		opts.BackoffMax = opts.BackoffBase
	}
	if opts.NotifyETAThreshold <= 0 {
		opts.NotifyETAThreshold = DefaultNotifyETA
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Estimator == nil {
		opts.Estimator = estimator.New(estimator.Options{})
	}
	return &Pool{
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "upload-pool"),
		sampler: logging.NewProgressSampler(progressBucketWidth),
		active:  make(map[string]*activeJob),
	}
}

// Start launches concurrency workers. A value <= 0 uses the configured
// default. It is a no-op returning false when a pool is already running or
// when the oracle reports offline or unauthenticated. Workers run under the
// pool's own context; ctx only scopes the startup checks.
func (p *Pool) Start(ctx context.Context, concurrency int) bool {
	if concurrency <= 0 {
		concurrency = p.opts.Concurrency
	}
	if p.opts.Context.Err() != nil {
		return false
	}
	if oracle := p.opts.Oracle; oracle != nil {
		if !oracle.Online() {
			p.logger.DebugContext(ctx, "upload pool not started; offline")
			return false
		}
		if !oracle.Authenticated() {
			p.logger.DebugContext(ctx, "upload pool not started; not authenticated")
			return false
		}
	}

	p.mu.Lock()
	if p.current != nil {
		p.kick = true
		p.mu.Unlock()
		return false
	}
	runCtx, cancel := context.WithCancel(p.opts.Context)
	run := &poolRun{ctx: runCtx, cancel: cancel, done: make(chan struct{}), concurrency: concurrency}
	p.current = run
	p.kick = false
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "upload pool started",
		logging.Int("concurrency", concurrency),
		logging.String(logging.FieldEventType, "pool_started"),
	)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := range concurrency {
		go func(worker int) {
			defer wg.Done()
			p.runWorker(runCtx, fmt.Sprintf("w%d", worker+1))
		}(i)
	}
	go p.finish(run, &wg)
	return true
}

func (p *Pool) finish(run *poolRun, wg *sync.WaitGroup) {
	wg.Wait()
	p.mu.Lock()
	if p.current == run {
		p.current = nil
	}
	again := p.kick && run.ctx.Err() == nil
	p.kick = false
	p.mu.Unlock()
	run.cancel()
	close(run.done)

	p.logger.Debug("upload pool drained", logging.String(logging.FieldEventType, "pool_drained"))
	if again {
		p.Start(context.Background(), run.concurrency)
		return
	}
	if n := p.completed.Swap(0); n > 0 && p.opts.OnDrained != nil && p.opts.Context.Err() == nil {
		p.opts.OnDrained(int(n))
	}
}

// Running reports whether workers are active.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Wait blocks until the current run drains. It returns immediately when no
// pool is running.
func (p *Pool) Wait() {
	p.mu.Lock()
	run := p.current
	p.mu.Unlock()
	if run != nil {
		<-run.done
	}
}

// Stop cancels running workers and waits for them to exit. Jobs that were
// mid-transfer return to pending without spending an attempt.
func (p *Pool) Stop() {
	p.mu.Lock()
	run := p.current
	p.kick = false
	p.mu.Unlock()
	if run == nil {
		return
	}
	run.cancel()
	<-run.done
}

// Cancel aborts the in-flight transfer or backoff wait for jobID. It reports
// whether the job was active in this pool.
func (p *Pool) Cancel(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.active[jobID]
	if !ok {
		return false
	}
	job.cancel()
	select {
	case <-job.wake:
	default:
		close(job.wake)
	}
	return true
}

func (p *Pool) track(jobID string, cancel context.CancelFunc) *activeJob {
	job := &activeJob{cancel: cancel, wake: make(chan struct{})}
	p.mu.Lock()
	p.active[jobID] = job
	p.mu.Unlock()
	return job
}

func (p *Pool) untrack(jobID string) {
	p.mu.Lock()
	if job, ok := p.active[jobID]; ok {
		job.cancel()
		delete(p.active, jobID)
	}
	p.mu.Unlock()
}

func (p *Pool) forget(jobID string) {
	p.opts.Estimator.Clear(jobID)
	p.sampler.Forget(jobID)
}

func (p *Pool) backoff(attempts int) time.Duration {
	if p.opts.BackoffBase <= 0 {
		return 0
	}
	exp := min(max(attempts, 0), maxBackoffExponent)
	delay := p.opts.BackoffBase << exp
	if delay <= 0 || delay > p.opts.BackoffMax {
		return p.opts.BackoffMax
	}
	return delay
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
