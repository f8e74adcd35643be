package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"notely/internal/attachments"
	"notely/internal/broadcast"
	"notely/internal/config"
	"notely/internal/connectivity"
	"notely/internal/daemon"
	"notely/internal/logging"
	"notely/internal/notifications"
	"notely/internal/preflight"
	"notely/internal/queue"
	"notely/internal/transfer"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// Version is reported to Sentry as the release.
	Version string
}

// Run starts the notely daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if _, err := logging.RotateDaemonLog(cfg.Paths.LogDir, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to rotate daemon log: %v\n", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logHub := logging.NewStreamHub(4096)
	logger, err := logging.NewFromConfig(cfg, logHub)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, time.Now())

	pidPath := cfg.DaemonPIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	hub := broadcast.NewHub(logger)
	startRelay(signalCtx, cfg, hub, logger)

	store, err := queue.Open(cfg, hub)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	uploader, err := transfer.New(signalCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init storage client: %w", err)
	}
	sink, err := attachments.NewSink(signalCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init note store: %w", err)
	}
	defer sink.Close()

	reporter, err := notifications.InitSentry(cfg, opts.Version, logger)
	if err != nil {
		logging.WarnWithContext(logger, "sentry disabled", "sentry_init_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.sentry_dsn"),
		)
	}
	defer reporter.Flush()

	checks := preflight.RunAll(signalCtx, cfg)
	logPreflight(logger, checks)

	d, err := daemon.New(cfg, logger, daemon.Deps{
		Store:    store,
		Hub:      hub,
		Transfer: uploader,
		Sink:     sink,
		Monitor:  connectivity.New(cfg, logger),
		Notifier: notifications.NewService(cfg),
		Reporter: reporter,
		LogHub:   logHub,
		Checks:   checks,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("notely daemon shutting down")
	return nil
}

// startRelay bridges the hub to Redis when configured. A Redis outage only
// costs cross-process events; local operation continues.
func startRelay(ctx context.Context, cfg *config.Config, hub *broadcast.Hub, logger *slog.Logger) {
	if cfg.Broadcast.RedisURL == "" {
		return
	}
	client, err := broadcast.DialRedis(ctx, cfg.Broadcast.RedisURL)
	if err != nil {
		logging.WarnWithContext(logger, "queue event relay unavailable", "notifier_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check broadcast.redis_url"),
			logging.String(logging.FieldImpact, "other processes will not see queue changes live"),
		)
		return
	}
	bridge := broadcast.NewRedisBridge(client, cfg.Broadcast.Channel, hub, logger)
	hub.SetRelay(bridge)
	go func() {
		defer client.Close()
		if err := bridge.Run(ctx); err != nil {
			hub.SetRelay(nil)
			logging.WarnWithContext(logger, "queue event relay stopped", "notifier_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "other processes will not see queue changes live"),
			)
		}
	}()
}

func logPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, r := range results {
		if r.Passed {
			logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "uploads may fail until this is fixed"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
