package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"notely/internal/logging"
)

// Handler receives events published by other contexts. Handlers run on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Relay forwards locally produced events to other processes.
type Relay interface {
	Publish(ctx context.Context, evt Event) error
}

type subscription struct {
	origin  string
	handler Handler
}

// Hub is the in-process notifier.
type Hub struct {
	origin string
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
	relay  Relay
}

// NewHub constructs a hub with its own origin identifier.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		origin: NewOrigin(),
		logger: logging.NewComponentLogger(logger, "broadcast"),
		subs:   make(map[int]subscription),
	}
}

// Origin identifies events produced by this process.
func (h *Hub) Origin() string {
	return h.origin
}

// SetRelay attaches (or detaches, with nil) the cross-process relay.
func (h *Hub) SetRelay(relay Relay) {
	h.mu.Lock()
	h.relay = relay
	h.mu.Unlock()
}

// Subscribe registers handler for events whose origin differs from origin.
// The returned function cancels the subscription.
func (h *Hub) Subscribe(origin string, handler Handler) func() {
	if handler == nil {
		return func() {}
	}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscription{origin: origin, handler: handler}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish stamps and delivers evt locally, then relays it. Relay failures are
// logged as ErrNotifierUnavailable and never returned.
func (h *Hub) Publish(ctx context.Context, evt Event) {
	if h == nil {
		return
	}
	if evt.Origin == "" {
		if origin, ok := OriginFromContext(ctx); ok {
			evt.Origin = origin
		} else {
			evt.Origin = h.origin
		}
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	relay := h.deliver(evt)
	if relay == nil {
		return
	}
	if err := relay.Publish(ctx, evt); err != nil {
		logging.WarnWithContext(h.logger, "queue event relay failed", "notifier_unavailable",
			logging.String("action", string(evt.Action)),
			logging.JobID(evt.JobID),
			logging.Error(errors.Join(ErrNotifierUnavailable, err)),
			logging.String(logging.FieldErrorHint, "check broadcast.redis_url and that redis is reachable"),
			logging.String(logging.FieldImpact, "other processes will catch up on their next refresh"),
		)
	}
}

// Inject delivers an event received from another process to local
// subscribers without relaying it again.
func (h *Hub) Inject(evt Event) {
	if h == nil {
		return
	}
	h.deliver(evt)
}

func (h *Hub) deliver(evt Event) Relay {
	h.mu.RLock()
	targets := make([]Handler, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.origin == evt.Origin {
			continue
		}
		targets = append(targets, sub.handler)
	}
	relay := h.relay
	h.mu.RUnlock()

	for _, handler := range targets {
		handler(evt)
	}
	return relay
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
