package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func TestStreamHandlerCarriesWithAttrs(t *testing.T) {
	hub := NewStreamHub(100)
	logger := slog.New(newStreamHandler(hub, slog.LevelInfo)).
		With(slog.String(FieldComponent, "upload")).
		With(slog.String(FieldJobID, "job-42"))

	logger.Info("transfer started", slog.String("name", "photo.jpg"))

	events, _ := hub.Tail(10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.JobID != "job-42" {
		t.Errorf("expected job_id=job-42, got %q", evt.JobID)
	}
	if evt.Component != "upload" {
		t.Errorf("expected component=upload, got %q", evt.Component)
	}
	if evt.Fields["name"] != "photo.jpg" {
		t.Errorf("expected name field, got %v", evt.Fields)
	}
}

func TestStreamHandlerCallSiteOverridesWithAttrs(t *testing.T) {
	hub := NewStreamHub(100)
	logger := slog.New(newStreamHandler(hub, slog.LevelInfo)).With(slog.String(FieldWorker, "worker-1"))

	logger.Info("message", slog.String(FieldWorker, "worker-2"))

	events, _ := hub.Tail(10)
	if len(events) != 1 || events[0].Worker != "worker-2" {
		t.Fatalf("expected call-site worker to win, got %+v", events)
	}
}

func TestStreamHandlerNilHub(t *testing.T) {
	if h := newStreamHandler(nil, slog.LevelInfo); h != nil {
		t.Fatalf("expected nil handler for nil hub, got %T", h)
	}
}

func TestStreamHandlerRespectsLevel(t *testing.T) {
	hub := NewStreamHub(10)
	handler := newStreamHandler(hub, slog.LevelWarn)
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected INFO to be disabled when level is WARN")
	}
	if !handler.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("expected WARN to be enabled when level is WARN")
	}
}

func TestStreamHubEvictsOldest(t *testing.T) {
	hub := NewStreamHub(2)
	for _, msg := range []string{"a", "b", "c"} {
		hub.Publish(LogEvent{Message: msg})
	}
	events, next := hub.Tail(0)
	if len(events) != 2 || events[0].Message != "b" || events[1].Message != "c" {
		t.Fatalf("unexpected buffer: %+v", events)
	}
	if next != 3 {
		t.Fatalf("expected next sequence 3, got %d", next)
	}
}

func TestStreamHubFetchSince(t *testing.T) {
	hub := NewStreamHub(10)
	hub.Publish(LogEvent{Message: "first"})
	hub.Publish(LogEvent{Message: "second"})

	events, next, err := hub.Fetch(context.Background(), 1, 10, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 || events[0].Message != "second" || next != 2 {
		t.Fatalf("unexpected fetch result: %+v next=%d", events, next)
	}
}

func TestStreamHubFetchWaitsForPublish(t *testing.T) {
	hub := NewStreamHub(10)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		hub.Publish(LogEvent{Message: "late"})
	}()

	events, _, err := hub.Fetch(ctx, 0, 10, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 || events[0].Message != "late" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestStreamHubFetchStopsOnCancel(t *testing.T) {
	hub := NewStreamHub(10)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, _, err := hub.Fetch(ctx, 0, 10, true); err == nil {
		t.Fatal("expected context error")
	}
}
