package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"notely/internal/logs"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) emit(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

func (r *lineRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestTailFileLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notelyd.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	var rec lineRecorder
	if err := logs.TailFile(context.Background(), path, logs.TailOptions{Lines: 2}, rec.emit); err != nil {
		t.Fatalf("TailFile: %v", err)
	}
	got := rec.snapshot()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("unexpected lines: %#v", got)
	}
}

func TestTailFileMissingFileIsEmpty(t *testing.T) {
	var rec lineRecorder
	err := logs.TailFile(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Lines: 5}, rec.emit)
	if err != nil {
		t.Fatalf("TailFile: %v", err)
	}
	if len(rec.snapshot()) != 0 {
		t.Fatal("expected no lines")
	}
}

func TestTailFileFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notelyd.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var rec lineRecorder
	done := make(chan error, 1)
	go func() {
		done <- logs.TailFile(ctx, path, logs.TailOptions{Lines: 1, Follow: true, Poll: 10 * time.Millisecond}, rec.emit)
	}()

	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := rec.snapshot(); len(got) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("TailFile: %v", err)
	}
	got := rec.snapshot()
	if len(got) != 2 || got[0] != "start" || got[1] != "later" {
		t.Fatalf("unexpected lines: %#v", got)
	}
}
