package connectivity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"notely/internal/logging"
)

// netlinkMonitor listens for udev events on network interfaces and asks for
// a fresh connectivity probe when one appears or changes.
type netlinkMonitor struct {
	logger  *slog.Logger
	trigger func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newNetlinkMonitor(logger *slog.Logger, trigger func()) *netlinkMonitor {
	return &netlinkMonitor{
		logger:  logger.With(logging.String("source", "netlink")),
		trigger: trigger,
	}
}

// Start connects to the netlink socket. Failure is logged and ignored; the
// periodic probe still runs.
func (m *netlinkMonitor) Start(ctx context.Context) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; relying on periodic probes", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"),
			logging.String(logging.FieldImpact, "reconnects are noticed on the next probe interval"),
		)
		return
	}
	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)
	m.logger.Debug("netlink monitor started", logging.String(logging.FieldEventType, "netlink_monitor_started"))
}

// Stop shuts the monitor down. It is safe on a nil or unstarted monitor.
func (m *netlinkMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
}

func (m *netlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *netlinkMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(events, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Debug("netlink monitor error", logging.Error(err))
		}
	}
}

// buildMatcher matches interface add/change/online/move events.
func buildMatcher() netlink.Matcher {
	action := "add|change|online|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func (m *netlinkMonitor) handleEvent(uevent netlink.UEvent) {
	iface := uevent.Env["INTERFACE"]
	if iface == "lo" {
		return
	}
	m.logger.Debug("network interface event",
		logging.String("interface", iface),
		logging.String("action", string(uevent.Action)),
	)
	if m.trigger != nil {
		m.trigger()
	}
}
