package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestFanoutCollapsesNilHandlers(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected noop handler when nothing is wired")
	}
	hub := NewStreamHub(4)
	single := newStreamHandler(hub, slog.LevelInfo)
	if got := newFanoutHandler(nil, single); got != single {
		t.Fatalf("expected the lone handler back, got %T", got)
	}
}

func TestFanoutSendsJobRecordToFileAndStream(t *testing.T) {
	var buf bytes.Buffer
	hub := NewStreamHub(8)
	logger := slog.New(newFanoutHandler(
		slog.NewJSONHandler(&buf, nil),
		newStreamHandler(hub, slog.LevelInfo),
	))

	NewComponentLogger(logger, "upload").Info("upload complete", JobID("job-7"), Int64("size_bytes", 2048))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode json line: %v (%s)", err, buf.String())
	}
	if line[FieldJobID] != "job-7" || line[FieldComponent] != "upload" {
		t.Fatalf("unexpected json record: %v", line)
	}

	events, _ := hub.Tail(8)
	if len(events) != 1 {
		t.Fatalf("expected 1 streamed event, got %d", len(events))
	}
	if events[0].JobID != "job-7" || events[0].Fields["size_bytes"] != "2048" {
		t.Fatalf("unexpected streamed event: %+v", events[0])
	}
}

func TestFanoutRoutesDebugOnlyToVerboseHandlers(t *testing.T) {
	var verbose, quiet bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewTextHandler(&verbose, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelWarn}),
	))

	logger.Debug("claimed job", JobID("job-1"))
	logger.Warn("transfer retry scheduled", JobID("job-1"))

	if !strings.Contains(verbose.String(), "claimed job") || !strings.Contains(verbose.String(), "transfer retry") {
		t.Fatalf("verbose handler missing records: %q", verbose.String())
	}
	if strings.Contains(quiet.String(), "claimed job") {
		t.Fatalf("debug record leaked to warn handler: %q", quiet.String())
	}
	if !strings.Contains(quiet.String(), "transfer retry") {
		t.Fatalf("warn handler missing warning: %q", quiet.String())
	}
}

func TestFanoutEnabledIfAnyHandlerIs(t *testing.T) {
	h := newFanoutHandler(
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	ctx := context.Background()
	if !h.Enabled(ctx, slog.LevelInfo) {
		t.Fatal("expected info enabled through second handler")
	}
	if h.Enabled(ctx, slog.LevelDebug) {
		t.Fatal("expected debug disabled everywhere")
	}
}

func TestFanoutWithAttrsReachesEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, nil),
	)).With(String(FieldWorker, "worker-2"))

	logger.Info("heartbeat")

	for name, buf := range map[string]*bytes.Buffer{"a": &a, "b": &b} {
		if !strings.Contains(buf.String(), FieldWorker+"=worker-2") {
			t.Fatalf("handler %s missing worker attr: %q", name, buf.String())
		}
	}
}
