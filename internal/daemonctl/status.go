package daemonctl

import (
	"context"
	"errors"
	"time"

	"notely/internal/api"
	"notely/internal/config"
	"notely/internal/preflight"
	"notely/internal/queue"
)

// BuildStatusSnapshot returns the daemon's own status when it answers, and
// otherwise assembles an offline snapshot from the queue database and local
// preflight checks.
func BuildStatusSnapshot(ctx context.Context, d Daemon, cfg *config.Config) (api.DaemonStatus, error) {
	if cfg == nil {
		return api.DaemonStatus{}, errors.New("configuration not available")
	}
	if d != nil {
		if status, err := d.Status(ctx); err == nil {
			return status, nil
		}
	}

	status := api.DaemonStatus{
		Authenticated:  cfg.Authenticated(),
		QueueDBPath:    cfg.QueueDBPath(),
		LockFilePath:   cfg.DaemonLockPath(),
		LeaderLockPath: cfg.LeaderLockPath(),
		Queue:          api.FromHealth(queue.HealthSummary{}),
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	store, err := queue.Open(cfg, nil)
	if err != nil {
		status.Database = queue.DatabaseHealth{DBPath: cfg.QueueDBPath(), Error: err.Error()}
	} else {
		if health, err := store.Health(queryCtx); err == nil {
			status.Queue = api.FromHealth(health)
		}
		if db, err := store.CheckHealth(queryCtx); err == nil {
			status.Database = db
		} else {
			status.Database = queue.DatabaseHealth{DBPath: store.Path(), Error: err.Error()}
		}
		_ = store.Close()
	}

	checkCtx, checkCancel := context.WithTimeout(ctx, 5*time.Second)
	defer checkCancel()
	status.Checks = preflight.RunAll(checkCtx, cfg)
	return status, nil
}
