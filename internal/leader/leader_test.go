package leader_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"notely/internal/leader"
	"notely/internal/logging"
)

func TestOnlyOneElectorLeads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploader.lock")
	first := leader.New(path, 10*time.Millisecond, logging.NewNop())
	second := leader.New(path, 10*time.Millisecond, logging.NewNop())

	ok, err := first.TryAcquire()
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	t.Cleanup(func() { _ = first.Release() })

	ok, err = second.TryAcquire()
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok || second.Leading() {
		t.Fatal("expected second elector to follow")
	}

	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
	ok, err = second.TryAcquire()
	if err != nil || !ok {
		t.Fatalf("takeover = %v, %v", ok, err)
	}
	_ = second.Release()
}

func TestRunWaitsForLeadership(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploader.lock")
	holder := leader.New(path, 0, logging.NewNop())
	if ok, err := holder.TryAcquire(); err != nil || !ok {
		t.Fatalf("holder acquire = %v, %v", ok, err)
	}

	follower := leader.New(path, 10*time.Millisecond, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	elected := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- follower.Run(ctx, func(context.Context) { close(elected) }, nil)
	}()

	select {
	case <-elected:
		t.Fatal("follower elected while lock held")
	case <-time.After(50 * time.Millisecond):
	}

	if err := holder.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	select {
	case <-elected:
	case <-time.After(2 * time.Second):
		t.Fatal("follower never took over")
	}
	if !follower.Leading() {
		t.Fatal("expected follower to lead")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	if follower.Leading() {
		t.Fatal("expected leadership released after cancel")
	}
}

type countingRunner struct{ starts int }

func (r *countingRunner) Start(context.Context, int) bool { r.starts++; return true }
func (r *countingRunner) Running() bool                   { return false }
func (r *countingRunner) Cancel(string) bool              { return false }

func TestGateStartsPoolOnlyWhenLeading(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploader.lock")
	elector := leader.New(path, 0, logging.NewNop())
	runner := &countingRunner{}
	gate := leader.Gate{Elector: elector, Pool: runner}

	if gate.Start(context.Background(), 1) {
		t.Fatal("expected gate to refuse while following")
	}
	if _, err := elector.TryAcquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	t.Cleanup(func() { _ = elector.Release() })
	if !gate.Start(context.Background(), 1) || runner.starts != 1 {
		t.Fatalf("expected pool start through gate, starts=%d", runner.starts)
	}
}

func TestRunStopsWorkBeforeReleasingLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploader.lock")
	elector := leader.New(path, 10*time.Millisecond, logging.NewNop())
	rival := leader.New(path, 0, logging.NewNop())
	t.Cleanup(func() { _ = rival.Release() })

	ctx, cancel := context.WithCancel(context.Background())
	elected := make(chan struct{})
	var leadingDuringResign, rivalWonDuringResign bool
	done := make(chan error, 1)
	go func() {
		done <- elector.Run(ctx, func(context.Context) { close(elected) }, func() {
			leadingDuringResign = elector.Leading()
			rivalWonDuringResign, _ = rival.TryAcquire()
		})
	}()

	select {
	case <-elected:
	case <-time.After(2 * time.Second):
		t.Fatal("elector never took the lock")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	if leadingDuringResign {
		t.Fatal("expected Leading to be false while resigning")
	}
	if rivalWonDuringResign {
		t.Fatal("lock was released before the resign hook finished")
	}
	if ok, err := rival.TryAcquire(); err != nil || !ok {
		t.Fatalf("expected rival to lead after release, got %v %v", ok, err)
	}
}
