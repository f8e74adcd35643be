package logs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"

	"notely/internal/api"
	"notely/internal/logs"
)

func TestNewStreamClientEmptyBind(t *testing.T) {
	client, err := logs.NewStreamClient("", "")
	if err != nil {
		t.Fatalf("NewStreamClient error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
}

func TestStreamClientFetchBuildsQueryAndDecodes(t *testing.T) {
	var (
		gotQuery url.Values
		gotAuth  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []api.LogEvent{{Level: "INFO", Message: "hello"}},
			Next:   42,
		})
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewStreamClient error: %v", err)
	}

	resp, err := client.Fetch(context.Background(), logs.StreamQuery{
		Since:     3,
		Limit:     50,
		Follow:    true,
		Tail:      true,
		Component: "upload-pool",
		JobID:     "job-1",
		Level:     "warn",
	})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(resp.Events) != 1 || resp.Next != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}

	for key, want := range map[string]string{
		"since":     "3",
		"limit":     "50",
		"follow":    "1",
		"tail":      "1",
		"component": "upload-pool",
		"job":       "job-1",
		"level":     "warn",
	} {
		if got := gotQuery.Get(key); got != want {
			t.Fatalf("query[%s]: expected %q, got %q", key, want, got)
		}
	}
}

func TestStreamAdvancesCursorWhenFollowing(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
		if n > 1 && since != 1 {
			http.Error(w, "cursor not advanced", http.StatusBadRequest)
			return
		}
		if n == 2 {
			cancel()
		}
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []api.LogEvent{{Sequence: uint64(n), Message: "line"}},
			Next:   uint64(n),
		})
	}))
	defer srv.Close()

	client, _ := logs.NewStreamClient(srv.URL, "")
	var got int
	if err := client.Stream(ctx, logs.StreamQuery{Follow: true}, func(api.LogEvent) { got++ }); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got < 1 {
		t.Fatalf("expected events, got %d", got)
	}
}

func TestIsAPIUnavailable(t *testing.T) {
	if !logs.IsAPIUnavailable(logs.ErrAPIUnavailable) {
		t.Fatal("expected ErrAPIUnavailable to be unavailable")
	}
	if logs.IsAPIUnavailable(errors.New("other")) {
		t.Fatal("did not expect generic error to be unavailable")
	}
}
