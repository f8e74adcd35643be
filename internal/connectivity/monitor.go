// Package connectivity answers whether uploads can run: is the storage
// endpoint reachable, and are credentials configured.
//
// Reachability is probed over HTTP on a fixed interval and again whenever a
// network interface changes (udev netlink events). Listeners registered with
// OnOnline fire on every offline to online transition.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"notely/internal/config"
	"notely/internal/logging"
)

// Monitor tracks connectivity to the storage endpoint.
type Monitor struct {
	probeURL      string
	interval      time.Duration
	client        *http.Client
	authenticated bool
	logger        *slog.Logger
	netlink       *netlinkMonitor

	online  atomic.Bool
	trigger chan struct{}

	mu        sync.Mutex
	listeners []func(context.Context)
}

// New constructs a Monitor from cfg. With no probe URL the monitor always
// reports online.
func New(cfg *config.Config, logger *slog.Logger) *Monitor {
	interval := time.Duration(cfg.Connectivity.ProbeIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := time.Duration(cfg.Connectivity.ProbeTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	m := &Monitor{
		probeURL:      strings.TrimSpace(cfg.Connectivity.ProbeURL),
		interval:      interval,
		client:        &http.Client{Timeout: timeout},
		authenticated: cfg.Authenticated(),
		logger:        logging.NewComponentLogger(logger, "connectivity"),
		trigger:       make(chan struct{}, 1),
	}
	if m.probeURL == "" {
		m.online.Store(true)
	}
	if cfg.Connectivity.Netlink {
		m.netlink = newNetlinkMonitor(m.logger, m.Trigger)
	}
	return m
}

// Online reports the last probe result.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Authenticated reports whether storage credentials and an owner are set.
func (m *Monitor) Authenticated() bool {
	return m.authenticated
}

// OnOnline registers fn to run whenever connectivity returns.
func (m *Monitor) OnOnline(fn func(context.Context)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Trigger requests an immediate probe. It never blocks.
func (m *Monitor) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Probe checks the endpoint once and updates state. Any HTTP response counts
// as reachable; only transport failures mean offline.
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.probeURL == "" {
		return m.setOnline(ctx, true)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		m.logger.Warn("invalid connectivity probe url", logging.Error(err))
		return m.setOnline(ctx, false)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Debug("connectivity probe failed", logging.Error(err))
		}
		return m.setOnline(ctx, false)
	}
	resp.Body.Close()
	return m.setOnline(ctx, true)
}

func (m *Monitor) setOnline(ctx context.Context, online bool) bool {
	was := m.online.Swap(online)
	if was == online {
		return online
	}
	if !online {
		logging.WarnWithContext(m.logger, "storage endpoint unreachable; uploads paused", "connectivity_lost",
			logging.String("probe_url", m.probeURL),
			logging.String(logging.FieldErrorHint, "check network connectivity"),
			logging.String(logging.FieldImpact, "queued uploads wait until connectivity returns"),
		)
		return online
	}
	m.logger.Info("storage endpoint reachable; resuming uploads",
		logging.String(logging.FieldEventType, "connectivity_restored"),
	)
	m.mu.Lock()
	listeners := append(([]func(context.Context))(nil), m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx)
	}
	return online
}

// Run probes until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m.netlink != nil {
		m.netlink.Start(ctx)
		defer m.netlink.Stop()
	}
	m.Probe(ctx)
	if m.probeURL == "" && m.netlink == nil {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		case <-m.trigger:
			m.Probe(ctx)
		}
	}
}
