package attachments_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"notely/internal/attachments"
	"notely/internal/logging"
	"notely/internal/services"
)

func TestObjectKeyLayout(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	got := attachments.ObjectKey("owner-1", "note-9", "photos/cat.png", now)
	want := "users/owner-1/attachments/note-9/1700000000123_cat.png"
	if got != want {
		t.Fatalf("ObjectKey = %q, want %q", got, want)
	}

	got = attachments.ObjectKey("", "a/b", "", now)
	want = "users/unknown/attachments/a_b/1700000000123_file"
	if got != want {
		t.Fatalf("ObjectKey with blanks = %q, want %q", got, want)
	}
}

func TestLogSinkRequiresNote(t *testing.T) {
	sink := attachments.NewLogSink(logging.NewNop())
	defer sink.Close()

	meta := attachments.Meta{Path: "users/o/attachments/n/1_x", Name: "x"}
	if err := sink.Attach(context.Background(), "n", meta); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	err := sink.Attach(context.Background(), " ", meta)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPostgresSinkAppendsOnce(t *testing.T) {
	dsn := os.Getenv("NOTELY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("NOTELY_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	sink, err := attachments.NewPostgresSink(ctx, dsn, logging.NewNop())
	if err != nil {
		t.Fatalf("NewPostgresSink: %v", err)
	}
	defer sink.Close()

	meta := attachments.Meta{Path: "users/o/attachments/missing/1_x", Name: "x"}
	if err := sink.Attach(ctx, "notely-test-missing-note", meta); !errors.Is(err, attachments.ErrNoteNotFound) {
		t.Fatalf("expected ErrNoteNotFound, got %v", err)
	}
}
