package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"notely/internal/api"
	"notely/internal/attachments"
	"notely/internal/broadcast"
	"notely/internal/config"
	"notely/internal/controller"
	"notely/internal/daemon"
	"notely/internal/logging"
	"notely/internal/queue"
	"notely/internal/testsupport"
	"notely/internal/upload"
)

type transferFunc func(ctx context.Context, job *queue.Job, onProgress upload.ProgressFunc) (attachments.Meta, error)

func (f transferFunc) Upload(ctx context.Context, job *queue.Job, onProgress upload.ProgressFunc) (attachments.Meta, error) {
	return f(ctx, job, onProgress)
}

func instant(_ context.Context, job *queue.Job, onProgress upload.ProgressFunc) (attachments.Meta, error) {
	size := int64(len(job.Payload))
	onProgress(size, size)
	return attachments.Meta{URL: "https://cdn.example.test/" + job.ID, Name: job.Name, SizeBytes: size}, nil
}

type fixture struct {
	cfg   *config.Config
	store *queue.Store
	hub   *broadcast.Hub
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithCredentials("key", "secret"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	hub := broadcast.NewHub(logging.NewNop())
	store := testsupport.MustOpenStoreWithPublisher(t, cfg, hub)
	return fixture{cfg: cfg, store: store, hub: hub}
}

func (f fixture) daemon(t *testing.T, transfer upload.Transfer) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(f.cfg, logging.NewNop(), daemon.Deps{
		Store:    f.store,
		Hub:      f.hub,
		Transfer: transfer,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRequiresCollaborators(t *testing.T) {
	f := newFixture(t)
	if _, err := daemon.New(f.cfg, nil, daemon.Deps{Store: f.store, Hub: f.hub}); err == nil {
		t.Fatal("expected error without transfer")
	}
	if _, err := daemon.New(nil, nil, daemon.Deps{}); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestDaemonStartStop(t *testing.T) {
	f := newFixture(t)
	d := f.daemon(t, transferFunc(instant))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != f.cfg.DaemonLockPath() || status.LeaderLockPath != f.cfg.LeaderLockPath() {
		t.Fatalf("unexpected lock paths: %+v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other := f.daemon(t, transferFunc(instant))
	if err := other.Start(ctx); err == nil {
		t.Fatal("expected second daemon on the same log dir to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := other.Start(ctx); err != nil {
		t.Fatalf("expected lock to be free after stop: %v", err)
	}
}

func TestDaemonUploadsQueuedJobs(t *testing.T) {
	f := newFixture(t)
	d := f.daemon(t, transferFunc(instant))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	id, err := d.Controller().Enqueue(ctx, controller.EnqueueRequest{
		ParentID: "note-1",
		Name:     "todo.txt",
		Payload:  []byte("buy milk"),
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, "upload to finish", func() bool {
		exists, err := f.store.Exists(ctx, id)
		return err == nil && !exists
	})
	if !d.Status(ctx).Leader {
		t.Fatal("expected the only daemon to lead")
	}
}

func TestDaemonServesAPI(t *testing.T) {
	f := newFixture(t)
	d := f.daemon(t, transferFunc(instant))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	addr := d.Addr()
	if addr == "" {
		t.Fatal("expected api listener address")
	}

	resp, err := http.Get("http://" + addr + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.PID == 0 {
		t.Fatalf("unexpected status payload: %+v", status)
	}

	d.Stop()
	if d.Addr() != "" {
		t.Fatal("expected listener to close on stop")
	}
}

func TestRemoteRemoveCancelsActiveUpload(t *testing.T) {
	f := newFixture(t)
	started := make(chan string, 1)
	var cancelled atomic.Bool
	blocking := func(ctx context.Context, job *queue.Job, _ upload.ProgressFunc) (attachments.Meta, error) {
		select {
		case started <- job.ID:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
		return attachments.Meta{}, ctx.Err()
	}
	d := f.daemon(t, transferFunc(blocking))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := d.Controller().Enqueue(ctx, controller.EnqueueRequest{
		ParentID: "note-1",
		Name:     "scan.pdf",
		Payload:  []byte("%PDF-1.4"),
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var id string
	select {
	case id = <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("upload never started")
	}

	f.hub.Inject(broadcast.Event{Action: broadcast.ActionRemove, JobID: id, Origin: "other-process"})
	waitFor(t, "transfer cancellation", cancelled.Load)
}

func TestStopRequeuesUploadBeforeReleasingLeadership(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	var lockFreeDuringShutdown atomic.Bool
	blocking := func(ctx context.Context, job *queue.Job, _ upload.ProgressFunc) (attachments.Meta, error) {
		close(started)
		<-ctx.Done()
		rival := flock.New(f.cfg.LeaderLockPath())
		if ok, err := rival.TryLock(); err == nil && ok {
			lockFreeDuringShutdown.Store(true)
			_ = rival.Unlock()
		}
		return attachments.Meta{}, ctx.Err()
	}
	d := f.daemon(t, transferFunc(blocking))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	id, err := d.Controller().Enqueue(ctx, controller.EnqueueRequest{
		ParentID: "note-1",
		Name:     "draft.txt",
		Payload:  []byte("half written"),
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("upload never started")
	}

	d.Stop()

	if lockFreeDuringShutdown.Load() {
		t.Fatal("uploader lock was free while the upload was still winding down")
	}
	job, err := f.store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != queue.StatusPending || job.Attempts != 0 {
		t.Fatalf("unexpected job after stop: status=%s attempts=%d", job.Status, job.Attempts)
	}
}
