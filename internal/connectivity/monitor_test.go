package connectivity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"notely/internal/connectivity"
	"notely/internal/logging"
	"notely/internal/testsupport"
)

func TestMonitorWithoutProbeIsOnline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Connectivity.ProbeURL = ""
	m := connectivity.New(cfg, logging.NewNop())
	if !m.Online() {
		t.Fatal("expected online without a probe url")
	}
	if m.Authenticated() {
		t.Fatal("expected unauthenticated without credentials")
	}
}

func TestProbeTransitionsFireListeners(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			panic(http.ErrAbortHandler)
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithCredentials("k", "s"))
	cfg.Connectivity.ProbeURL = srv.URL
	m := connectivity.New(cfg, logging.NewNop())
	if m.Online() {
		t.Fatal("expected offline before the first probe")
	}
	if !m.Authenticated() {
		t.Fatal("expected authenticated with credentials and owner")
	}

	var fired atomic.Int32
	m.OnOnline(func(context.Context) { fired.Add(1) })

	ctx := context.Background()
	if !m.Probe(ctx) {
		t.Fatal("any HTTP response should count as online")
	}
	if fired.Load() != 1 {
		t.Fatalf("listener calls = %d, want 1", fired.Load())
	}
	m.Probe(ctx)
	if fired.Load() != 1 {
		t.Fatal("listener must only fire on transitions")
	}

	fail.Store(true)
	if m.Probe(ctx) {
		t.Fatal("expected offline after transport failure")
	}
	fail.Store(false)
	m.Probe(ctx)
	if fired.Load() != 2 {
		t.Fatalf("listener calls = %d, want 2", fired.Load())
	}
}

func TestTriggerNeverBlocks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := connectivity.New(cfg, logging.NewNop())
	for i := 0; i < 5; i++ {
		m.Trigger()
	}
}
