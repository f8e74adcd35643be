package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"notely/internal/api"
	"notely/internal/broadcast"
	"notely/internal/controller"
	"notely/internal/logging"
	"notely/internal/queue"
	"notely/internal/services"
	"notely/internal/testsupport"
)

type testAPI struct {
	srv   *httptest.Server
	store *queue.Store
	hub   *broadcast.Hub
	token string
}

func newTestAPI(t *testing.T, token string) *testAPI {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	hub := broadcast.NewHub(logging.NewNop())
	store := testsupport.MustOpenStoreWithPublisher(t, cfg, hub)
	ctrl := controller.New(controller.Options{
		Store:       store,
		Publisher:   hub,
		Logger:      logging.NewNop(),
		Concurrency: 2,
		OwnerID:     "owner-test",
	})
	srv := httptest.NewServer(api.NewRouter(api.Options{
		Queue:  api.NewQueueService(ctrl, store),
		Hub:    hub,
		Logs:   logging.NewStreamHub(16),
		Token:  token,
		Logger: logging.NewNop(),
	}))
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, store: store, hub: hub, token: token}
}

func (a *testAPI) do(t *testing.T, method, path string, body []byte, contentType string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testAPI) doJSON(t *testing.T, method, path string, payload any) *http.Response {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	return a.do(t, method, path, body, "application/json", nil)
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return buf.Bytes(), mw.FormDataContentType()
}

func (a *testAPI) enqueue(t *testing.T, parent, filename, content string, headers map[string]string) string {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{"parentId": parent}, filename, []byte(content))
	resp := a.do(t, http.MethodPost, "/api/jobs", body, ct, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("enqueue status = %d", resp.StatusCode)
	}
	var out api.EnqueueResponse
	decode(t, resp, &out)
	if out.ID == "" {
		t.Fatal("expected job id")
	}
	return out.ID
}

func decode(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthSkipsAuthButJobsRequireToken(t *testing.T) {
	a := newTestAPI(t, "secret")

	resp, err := http.Get(a.srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	resp, err = http.Get(a.srv.URL + "/api/jobs")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	if got := a.doJSON(t, http.MethodGet, "/api/jobs", nil); got.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", got.StatusCode)
	}
}

func TestEnqueueListAndDescribe(t *testing.T) {
	a := newTestAPI(t, "")
	id := a.enqueue(t, "note-7", "todo.txt", "buy milk\n", nil)

	var view api.QueueView
	decode(t, a.doJSON(t, http.MethodGet, "/api/jobs", nil), &view)
	if len(view.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(view.Jobs))
	}
	job := view.Jobs[0]
	if job.ID != id || job.ParentID != "note-7" || job.Name != "todo.txt" {
		t.Fatalf("unexpected job %+v", job)
	}
	if !strings.HasPrefix(job.MimeType, "text/plain") {
		t.Fatalf("expected detected text/plain, got %q", job.MimeType)
	}
	if job.Status != string(queue.StatusPending) || job.SizeBytes != int64(len("buy milk\n")) {
		t.Fatalf("unexpected status/size %+v", job)
	}
	if view.AggregateETASeconds <= 0 {
		t.Fatalf("expected a positive aggregate ETA, got %d", view.AggregateETASeconds)
	}

	var single api.JobResponse
	decode(t, a.doJSON(t, http.MethodGet, "/api/jobs/"+id, nil), &single)
	if single.Job.ID != id {
		t.Fatalf("describe returned %+v", single.Job)
	}

	var history api.HistoryResponse
	decode(t, a.doJSON(t, http.MethodGet, "/api/jobs/"+id+"/history", nil), &history)
	if history.JobID != id || len(history.Samples) != 0 {
		t.Fatalf("unexpected history %+v", history)
	}

	var filtered api.QueueView
	decode(t, a.doJSON(t, http.MethodGet, "/api/jobs?status=failed", nil), &filtered)
	if len(filtered.Jobs) != 0 {
		t.Fatalf("expected no failed jobs, got %d", len(filtered.Jobs))
	}
	if resp := a.doJSON(t, http.MethodGet, "/api/jobs?status=bogus", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}
}

func TestEnqueueValidation(t *testing.T) {
	a := newTestAPI(t, "")

	body, ct := multipartBody(t, map[string]string{"name": "x.txt"}, "x.txt", []byte("data"))
	resp := a.do(t, http.MethodPost, "/api/jobs", body, ct, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var errResp api.ErrorResponse
	decode(t, resp, &errResp)
	if errResp.Fields["parentId"] != "is required" {
		t.Fatalf("unexpected field errors %+v", errResp.Fields)
	}

	body, ct = multipartBody(t, map[string]string{"parentId": "note-1"}, "", nil)
	if resp := a.do(t, http.MethodPost, "/api/jobs", body, ct, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", resp.StatusCode)
	}

	body, ct = multipartBody(t, map[string]string{"parentId": "note-1"}, "empty.txt", nil)
	if resp := a.do(t, http.MethodPost, "/api/jobs", body, ct, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty payload, got %d", resp.StatusCode)
	}
}

func TestOrderingEndpoints(t *testing.T) {
	a := newTestAPI(t, "")
	first := a.enqueue(t, "note-1", "a.txt", "aaaa", nil)
	second := a.enqueue(t, "note-1", "b.txt", "bbbb", nil)

	if resp := a.doJSON(t, http.MethodPost, "/api/jobs/reorder", api.ReorderRequest{IDs: []string{second, first}}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reorder status = %d", resp.StatusCode)
	}
	var view api.QueueView
	decode(t, a.doJSON(t, http.MethodGet, "/api/jobs", nil), &view)
	if view.Jobs[0].ID != second || view.Jobs[0].Priority != 2 || view.Jobs[1].Priority != 1 {
		t.Fatalf("unexpected order after reorder: %+v", view.Jobs)
	}

	if resp := a.doJSON(t, http.MethodPost, "/api/jobs/"+first+"/move", api.MoveRequest{Direction: "up"}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("move status = %d", resp.StatusCode)
	}
	ten := 10
	if resp := a.doJSON(t, http.MethodPut, "/api/jobs/"+second+"/priority", api.PriorityRequest{Priority: &ten}); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("priority status = %d", resp.StatusCode)
	}
	job, err := a.store.GetByID(t.Context(), second)
	if err != nil || job.Priority != 10 {
		t.Fatalf("priority not stored: %+v %v", job, err)
	}

	resp := a.doJSON(t, http.MethodPost, "/api/jobs/"+first+"/move", api.MoveRequest{Direction: "sideways"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad direction, got %d", resp.StatusCode)
	}
	if resp := a.doJSON(t, http.MethodPut, "/api/jobs/"+first+"/priority", map[string]any{}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing priority, got %d", resp.StatusCode)
	}
}

func TestRemoveAndRetryMapErrors(t *testing.T) {
	a := newTestAPI(t, "")
	id := a.enqueue(t, "note-1", "a.txt", "aaaa", nil)

	if resp := a.doJSON(t, http.MethodDelete, "/api/jobs/"+id, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp := a.doJSON(t, http.MethodDelete, "/api/jobs/"+id, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", resp.StatusCode)
	}
	if resp := a.doJSON(t, http.MethodPost, "/api/jobs/"+id+"/retry", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 retrying a missing job, got %d", resp.StatusCode)
	}

	failed := a.enqueue(t, "note-1", "b.txt", "bbbb", nil)
	if err := a.store.SetStatus(t.Context(), failed, queue.StatusFailed, "boom"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	var retried api.RetryAllResponse
	decode(t, a.doJSON(t, http.MethodPost, "/api/jobs/retry", nil), &retried)
	if len(retried.IDs) != 1 || retried.IDs[0] != failed {
		t.Fatalf("unexpected retry-all result %+v", retried)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("remove x: %w", queue.ErrNotFound), http.StatusNotFound},
		{queue.ErrDuplicateID, http.StatusConflict},
		{fmt.Errorf("reset x: %w", queue.ErrInProgress), http.StatusConflict},
		{controller.ErrEmptyPayload, http.StatusBadRequest},
		{services.Wrap(services.ErrValidation, "controller", "enqueue", "bad", nil), http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := api.StatusForError(tc.err); got != tc.want {
			t.Fatalf("StatusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestEventStreamSendsSnapshotAndForeignEvents(t *testing.T) {
	a := newTestAPI(t, "")
	a.enqueue(t, "note-1", "existing.txt", "data", nil)

	wsURL := "ws" + strings.TrimPrefix(a.srv.URL, "http") + "/api/events?origin=tab-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snapshot api.StreamMessage
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Type != api.StreamSnapshot || snapshot.View == nil || len(snapshot.View.Jobs) != 1 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	// The subscription is registered before the snapshot is written, so
	// mutations from here on are delivered.
	a.enqueue(t, "note-1", "own.txt", "mine", map[string]string{api.OriginHeader: "tab-1"})
	id := a.enqueue(t, "note-1", "other.txt", "theirs", map[string]string{api.OriginHeader: "tab-2"})

	var msg api.StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if msg.Type != api.StreamEvent || msg.Event == nil {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Event.Action != broadcast.ActionAdd || msg.Event.JobID != id || msg.Event.Origin != "tab-2" {
		t.Fatalf("expected only the foreign add event first, got %+v", msg.Event)
	}
}
