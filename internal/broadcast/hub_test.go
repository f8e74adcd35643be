package broadcast_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"notely/internal/broadcast"
)

type recorder struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (r *recorder) handle(evt broadcast.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []broadcast.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcast.Event(nil), r.events...)
}

func TestHubSkipsPublishersOwnOrigin(t *testing.T) {
	hub := broadcast.NewHub(nil)
	var self, other recorder
	hub.Subscribe(hub.Origin(), self.handle)
	hub.Subscribe("tab-2", other.handle)

	hub.Publish(context.Background(), broadcast.Event{Action: broadcast.ActionAdd, JobID: "a"})

	if got := self.snapshot(); len(got) != 0 {
		t.Fatalf("expected no self delivery, got %+v", got)
	}
	got := other.snapshot()
	if len(got) != 1 || got[0].Action != broadcast.ActionAdd || got[0].JobID != "a" {
		t.Fatalf("unexpected delivery: %+v", got)
	}
	if got[0].Origin != hub.Origin() || got[0].Timestamp.IsZero() {
		t.Fatalf("expected stamped origin and timestamp, got %+v", got[0])
	}
}

func TestHubAttributesEventsToContextOrigin(t *testing.T) {
	hub := broadcast.NewHub(nil)
	var tab1, tab2 recorder
	hub.Subscribe("tab-1", tab1.handle)
	hub.Subscribe("tab-2", tab2.handle)

	ctx := broadcast.WithOrigin(context.Background(), "tab-1")
	hub.Publish(ctx, broadcast.Event{Action: broadcast.ActionPriority, JobID: "b"})

	if len(tab1.snapshot()) != 0 {
		t.Fatal("tab-1 should not see its own event")
	}
	if len(tab2.snapshot()) != 1 {
		t.Fatal("tab-2 should see tab-1's event")
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := broadcast.NewHub(nil)
	var rec recorder
	cancel := hub.Subscribe("tab", rec.handle)
	cancel()
	cancel()

	hub.Publish(context.Background(), broadcast.Event{Action: broadcast.ActionRemove, JobID: "x"})
	if len(rec.snapshot()) != 0 {
		t.Fatal("expected no delivery after cancel")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.Subscribers())
	}
}

type failingRelay struct {
	calls int
}

func (f *failingRelay) Publish(context.Context, broadcast.Event) error {
	f.calls++
	return errors.New("connection refused")
}

func TestHubRelayFailureIsNonFatal(t *testing.T) {
	hub := broadcast.NewHub(nil)
	relay := &failingRelay{}
	hub.SetRelay(relay)
	var rec recorder
	hub.Subscribe("tab", rec.handle)

	hub.Publish(context.Background(), broadcast.Event{Action: broadcast.ActionUpdate, JobID: "y"})

	if relay.calls != 1 {
		t.Fatalf("expected relay to be called once, got %d", relay.calls)
	}
	if len(rec.snapshot()) != 1 {
		t.Fatal("local delivery must survive relay failure")
	}
}

func TestHubInjectDoesNotRelay(t *testing.T) {
	hub := broadcast.NewHub(nil)
	relay := &failingRelay{}
	hub.SetRelay(relay)
	var rec recorder
	hub.Subscribe("tab", rec.handle)

	hub.Inject(broadcast.Event{Action: broadcast.ActionAdd, JobID: "z", Origin: "other-process"})

	if relay.calls != 0 {
		t.Fatalf("injected events must not be relayed, got %d calls", relay.calls)
	}
	if len(rec.snapshot()) != 1 {
		t.Fatal("expected injected event delivered")
	}
}

func TestNilHubPublishIsSafe(t *testing.T) {
	var hub *broadcast.Hub
	hub.Publish(context.Background(), broadcast.Event{Action: broadcast.ActionAdd})
	hub.Inject(broadcast.Event{Action: broadcast.ActionAdd})
}
