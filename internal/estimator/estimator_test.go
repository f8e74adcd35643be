package estimator_test

import (
	"math"
	"testing"
	"time"

	"notely/internal/estimator"
)

func TestTickComputesInstantSpeedAndETA(t *testing.T) {
	est := estimator.New(estimator.Options{})
	t0 := time.Unix(1_700_000_000, 0)

	first := est.Tick("job", 500, 1000, t0)
	if first.Speed != 0 {
		t.Fatalf("first tick speed = %v, want 0", first.Speed)
	}
	if first.ETASeconds != nil {
		t.Fatalf("first tick eta = %d, want unknown", *first.ETASeconds)
	}

	second := est.Tick("job", 1000, 1000, t0.Add(time.Second))
	if second.Speed != 500 {
		t.Fatalf("second tick speed = %v, want 500", second.Speed)
	}
	if second.ETASeconds == nil || *second.ETASeconds != 0 {
		t.Fatalf("second tick eta = %v, want 0", second.ETASeconds)
	}
	if got := est.GlobalSpeed(); got != 500 {
		t.Fatalf("global speed seeded to %v, want 500", got)
	}
}

func TestGlobalSpeedBlendsWithAlpha(t *testing.T) {
	est := estimator.New(estimator.Options{Alpha: 0.2})
	t0 := time.Unix(0, 0)

	est.Begin("a", 10_000, t0)
	est.Tick("a", 1000, 10_000, t0.Add(time.Second))
	est.Tick("a", 1000, 10_000, t0.Add(2*time.Second))

	// 0.2*0 + 0.8*1000
	if got := est.GlobalSpeed(); math.Abs(got-800) > 1e-9 {
		t.Fatalf("global speed = %v, want 800", got)
	}
	p, ok := est.Progress("a")
	if !ok {
		t.Fatal("expected progress for a")
	}
	// Instant speed 0 is under the noise floor so the EMA is used.
	if math.Abs(p.Speed-800) > 1e-9 {
		t.Fatalf("effective speed = %v, want 800", p.Speed)
	}
	if p.ETASeconds == nil || *p.ETASeconds != 12 {
		t.Fatalf("eta = %v, want 12", p.ETASeconds)
	}
}

func TestSpeedNeverNegative(t *testing.T) {
	est := estimator.New(estimator.Options{})
	t0 := time.Unix(0, 0)
	est.Begin("job", 1000, t0)
	est.Tick("job", 800, 1000, t0.Add(time.Second))
	p := est.Tick("job", 100, 1000, t0.Add(2*time.Second))
	if p.Speed < 0 || est.GlobalSpeed() < 0 {
		t.Fatalf("negative speed: job=%v global=%v", p.Speed, est.GlobalSpeed())
	}
}

func TestETAEdgeCases(t *testing.T) {
	est := estimator.New(estimator.Options{})
	t0 := time.Unix(0, 0)

	empty := est.Tick("empty", 0, 0, t0)
	if empty.ETASeconds == nil || *empty.ETASeconds != 0 {
		t.Fatalf("zero-byte eta = %v, want 0", empty.ETASeconds)
	}

	est.Begin("unknown", -1, t0)
	unknown := est.Tick("unknown", 4096, -1, t0.Add(time.Second))
	if unknown.ETASeconds != nil {
		t.Fatalf("unknown-size eta = %d, want nil", *unknown.ETASeconds)
	}
	if unknown.Percent() != -1 {
		t.Fatalf("unknown-size percent = %v, want -1", unknown.Percent())
	}

	fresh := estimator.New(estimator.Options{})
	stalled := fresh.Tick("stalled", 10, 100, t0)
	if stalled.Speed != 0 || stalled.ETASeconds != nil {
		t.Fatalf("expected unknown eta with zero speed, got %#v", stalled)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	est := estimator.New(estimator.Options{HistorySize: 3})
	t0 := time.Unix(0, 0)
	est.Begin("job", 10_000, t0)
	for i := 1; i <= 5; i++ {
		est.Tick("job", int64(i*1000), 10_000, t0.Add(time.Duration(i)*time.Second))
	}
	history := est.History("job")
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].BytesTransferred != 3000 || history[2].BytesTransferred != 5000 {
		t.Fatalf("unexpected history window: %#v", history)
	}
	for _, s := range history {
		if s.Speed != 1000 {
			t.Fatalf("sample speed = %v, want 1000", s.Speed)
		}
	}

	est.Clear("job")
	if _, ok := est.Progress("job"); ok {
		t.Fatal("expected progress to be cleared")
	}
	if est.History("job") != nil {
		t.Fatal("expected history to be cleared")
	}
}

func TestAggregateAndPendingETAs(t *testing.T) {
	est := estimator.New(estimator.Options{})
	items := []estimator.Item{
		{ID: "a", SizeBytes: 100},
		{ID: "b", SizeBytes: 200},
		{ID: "c", SizeBytes: 50},
	}

	// No observed speed yet: the 50 B/s floor applies.
	if got := est.AggregateETA(items, 2); got != 7 {
		t.Fatalf("aggregate eta = %d, want 7", got)
	}

	t0 := time.Unix(0, 0)
	est.Begin("a", 100, t0)
	est.Tick("a", 60, 100, t0.Add(time.Second))
	// global = 60 B/s, throughput = 120 B/s, remaining = 40 + 200 + 50
	if got := est.AggregateETA(items, 2); got != 3 {
		t.Fatalf("aggregate eta = %d, want 3", got)
	}

	etas := est.PendingETAs(nil, items, 2)
	if etas["a"] != 0 {
		t.Fatalf("eta[a] = %d, want 0", etas["a"])
	}
	if etas["b"] != 1 {
		t.Fatalf("eta[b] = %d, want 1", etas["b"])
	}
	if etas["c"] != 2 {
		t.Fatalf("eta[c] = %d, want 2", etas["c"])
	}

	// With a uploading, its remaining 40 bytes sit ahead of b.
	etas = est.PendingETAs(items[:1], items[1:], 2)
	if _, ok := etas["a"]; ok {
		t.Fatal("in-flight item must not get a start eta")
	}
	if etas["b"] != 1 || etas["c"] != 2 {
		t.Fatalf("etas = %v, want b=1 c=2", etas)
	}
}
