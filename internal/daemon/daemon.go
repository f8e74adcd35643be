package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"notely/internal/api"
	"notely/internal/broadcast"
	"notely/internal/config"
	"notely/internal/connectivity"
	"notely/internal/controller"
	"notely/internal/estimator"
	"notely/internal/imagecompress"
	"notely/internal/leader"
	"notely/internal/logging"
	"notely/internal/notifications"
	"notely/internal/preflight"
	"notely/internal/queue"
	"notely/internal/upload"
)

// Deps are the collaborators a Daemon drives. Store, Hub and Transfer are
// required; the rest fall back to config-derived defaults.
type Deps struct {
	Store     *queue.Store
	Hub       *broadcast.Hub
	Transfer  upload.Transfer
	Sink      upload.AttachmentSink
	Monitor   *connectivity.Monitor
	Notifier  notifications.Service
	Reporter  upload.FailureReporter
	Elector   *leader.Elector
	Estimator *estimator.Estimator
	LogHub    *logging.StreamHub
	// Checks are the preflight results gathered at startup.
	Checks []preflight.Result
}

// Daemon coordinates the upload pool and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Deps

	pool  *upload.Pool
	ctrl  *controller.Controller
	queue *api.QueueService
	api   *apiServer

	lockPath string
	lock     *flock.Flock

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu          sync.Mutex
	running     atomic.Bool
	runCtx      context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Hub == nil || deps.Transfer == nil {
		return nil, errors.New("daemon requires config, store, hub, and transfer")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Estimator == nil {
		deps.Estimator = estimator.New(estimator.Options{
			Alpha:       cfg.Estimator.Alpha,
			NoiseFloor:  cfg.Estimator.NoiseFloor,
			HistorySize: cfg.Estimator.HistorySize,
		})
	}
	if deps.Monitor == nil {
		deps.Monitor = connectivity.New(cfg, logger)
	}
	if deps.Elector == nil {
		deps.Elector = leader.New(cfg.LeaderLockPath(), 0, logger)
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		deps:     deps,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.baseCtx, d.baseCancel = context.WithCancel(context.Background())

	d.pool = upload.New(upload.Options{
		Store:              deps.Store,
		Transfer:           deps.Transfer,
		Sink:               deps.Sink,
		Oracle:             deps.Monitor,
		Notifier:           deps.Notifier,
		Reporter:           deps.Reporter,
		Estimator:          deps.Estimator,
		Logger:             logger,
		Context:            d.baseCtx,
		Concurrency:        cfg.Queue.Concurrency,
		MaxAttempts:        cfg.Queue.MaxAttempts,
		BackoffBase:        cfg.BackoffBase(),
		BackoffMax:         cfg.BackoffMax(),
		NotifyETAThreshold: time.Duration(cfg.Queue.NotifyETASeconds) * time.Second,
		OnDrained:          d.onDrained,
	})

	ctrlOpts := controller.Options{
		Store:       deps.Store,
		Pool:        leader.Gate{Elector: deps.Elector, Pool: d.pool},
		Estimator:   deps.Estimator,
		Publisher:   deps.Hub,
		Logger:      logger,
		Concurrency: cfg.Queue.Concurrency,
		OwnerID:     cfg.Storage.OwnerID,
	}
	if compressor := imagecompress.FromConfig(cfg); compressor != nil {
		ctrlOpts.Compressor = compressor
	}
	d.ctrl = controller.New(ctrlOpts)
	d.queue = api.NewQueueService(d.ctrl, deps.Store)
	d.api = newAPIServer(cfg, d, logger)

	deps.Monitor.OnOnline(d.onOnline)
	return d, nil
}

// Start acquires the daemon lock, serves the API and competes for the
// uploader lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another notely daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}

	d.mu.Lock()
	d.runCtx = runCtx
	d.cancel = cancel
	d.unsubscribe = d.deps.Hub.Subscribe(d.deps.Hub.Origin(), d.handleEvent)
	d.mu.Unlock()

	d.wg.Go(func() {
		d.deps.Monitor.Run(runCtx)
	})
	d.wg.Go(func() {
		if err := d.deps.Elector.Run(runCtx, d.onElected, d.pool.Stop); err != nil {
			logging.WarnWithContext(d.logger, "leader election stopped", "leader_election_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on "+d.deps.Elector.Path()),
				logging.String(logging.FieldImpact, "this process will not upload"),
			)
		}
	})

	d.running.Store(true)
	d.logger.Info("notely daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop halts uploads, releases the leader lock and the daemon lock.
// Interrupted uploads return to pending before the leader lock goes.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	unsubscribe := d.unsubscribe
	cancel := d.cancel
	d.unsubscribe = nil
	d.cancel = nil
	d.runCtx = nil
	d.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	// The elector stops the pool before giving up the uploader lock, so
	// in-flight jobs are pending again before another leader can reclaim.
	d.wg.Wait()
	d.pool.Stop()
	d.api.stop()
	if err := d.deps.Elector.Release(); err != nil {
		d.logger.Warn("failed to release uploader lock", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("notely daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon for good. The injected store stays open.
func (d *Daemon) Close() error {
	d.Stop()
	d.baseCancel()
	return nil
}

// Controller exposes the queue controller.
func (d *Daemon) Controller() *controller.Controller {
	return d.ctrl
}

// Handler returns the API router.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Addr returns the address the API listens on, empty when not serving.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		Leader:         d.deps.Elector.Leading(),
		Online:         d.deps.Monitor.Online(),
		Authenticated:  d.deps.Monitor.Authenticated(),
		QueueDBPath:    d.deps.Store.Path(),
		LockFilePath:   d.lockPath,
		LeaderLockPath: d.deps.Elector.Path(),
		Checks:         d.deps.Checks,
	}
	if stats, err := d.queue.Stats(ctx); err == nil {
		status.Queue = stats
	} else {
		d.logger.Warn("queue stats unavailable", logging.Error(err))
	}
	if health, err := d.deps.Store.CheckHealth(ctx); err == nil {
		status.Database = health
	} else {
		status.Database = queue.DatabaseHealth{DBPath: d.deps.Store.Path(), Error: err.Error()}
	}
	return status
}

func (d *Daemon) context() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runCtx
}

// onElected runs once this process holds the uploader lock. Jobs left in
// processing belong to a leader that is gone, so they go back to pending.
func (d *Daemon) onElected(ctx context.Context) {
	reclaimed, err := d.deps.Store.ReclaimStaleProcessing(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "reclaim stale uploads failed", "reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `notely queue status` and retry stuck jobs manually"),
		)
	} else if reclaimed > 0 {
		d.logger.Info("reclaimed interrupted uploads",
			logging.String(logging.FieldEventType, "uploads_reclaimed"),
			logging.Int64("count", reclaimed),
		)
	}
	d.ctrl.Kick(ctx)
}

func (d *Daemon) onOnline(ctx context.Context) {
	if !d.deps.Elector.Leading() {
		return
	}
	health, err := d.deps.Store.Health(ctx)
	if err == nil && health.Pending > 0 {
		if err := d.deps.Notifier.Publish(ctx, notifications.EventBackOnline, notifications.Payload{
			"pending": health.Pending,
		}); err != nil {
			d.logger.Warn("back online notification failed", logging.Error(err))
		}
	}
	d.ctrl.Kick(ctx)
}

func (d *Daemon) onDrained(completed int) {
	if err := d.deps.Notifier.Publish(d.baseCtx, notifications.EventQueueDrained, notifications.Payload{
		"completed": completed,
	}); err != nil {
		d.logger.Warn("queue drained notification failed", logging.Error(err))
	}
}

// handleEvent reacts to queue changes made by other processes.
func (d *Daemon) handleEvent(evt broadcast.Event) {
	ctx := d.context()
	if ctx == nil {
		return
	}
	switch evt.Action {
	case broadcast.ActionRemove:
		if d.pool.Cancel(evt.JobID) {
			d.logger.Info("upload cancelled by another process",
				logging.JobID(evt.JobID),
				logging.String("origin", evt.Origin),
			)
		}
	case broadcast.ActionAdd, broadcast.ActionUpdate, broadcast.ActionRefresh:
		if d.deps.Elector.Leading() {
			d.ctrl.Kick(ctx)
		}
	}
}
