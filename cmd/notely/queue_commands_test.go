package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"notely/internal/api"
	"notely/internal/queue"
	"notely/internal/testsupport"
)

func TestAddAndListWhileDaemonDown(t *testing.T) {
	env := setupCLITestEnv(t, offlineBind)
	file := filepath.Join(env.baseDir, "receipt.txt")
	if err := os.WriteFile(file, []byte("coffee 3.50"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "add", file, "--note", "note-7")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Queued receipt.txt")
	requireContains(t, out, "Daemon not running")

	out, _, err = runCLI(t, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "receipt.txt")
	requireContains(t, out, "note-7")
	requireContains(t, out, "Pending")

	out, _, err = runCLI(t, env.configPath, "--json", "queue", "list")
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	var view api.QueueView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode view: %v\n%s", err, out)
	}
	if len(view.Jobs) != 1 || view.Jobs[0].MimeType == "" {
		t.Fatalf("unexpected view: %+v", view)
	}

	out, _, err = runCLI(t, env.configPath, "queue", "stats")
	if err != nil {
		t.Fatalf("queue stats: %v", err)
	}
	requireContains(t, out, "Pending")
	requireContains(t, out, "Waiting to upload")
}

func TestAddRequiresNote(t *testing.T) {
	env := setupCLITestEnv(t, offlineBind)
	file := filepath.Join(env.baseDir, "a.bin")
	testsupport.WriteFile(t, file, 16)
	if _, _, err := runCLI(t, env.configPath, "add", file); err == nil {
		t.Fatal("expected missing --note to fail")
	}
}

func TestQueueCommandsThroughDaemon(t *testing.T) {
	bind, store := startTestAPI(t)
	env := setupCLITestEnv(t, bind)
	ctx := context.Background()

	testsupport.NewJob(t, store, "alpha")
	testsupport.NewJob(t, store, "beta")

	out, _, err := runCLI(t, env.configPath, "queue", "priority", "beta", "10")
	if err != nil {
		t.Fatalf("queue priority: %v", err)
	}
	requireContains(t, out, "Set priority of beta to 10")

	out, _, err = runCLI(t, env.configPath, "--json", "queue", "list", "--status", "pending")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	var view api.QueueView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Jobs) != 2 || view.Jobs[0].ID != "beta" {
		t.Fatalf("expected beta first, got %+v", view.Jobs)
	}

	out, _, err = runCLI(t, env.configPath, "queue", "show", "alpha")
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "alpha.txt")
	requireContains(t, out, "note-1")

	if _, _, err := runCLI(t, env.configPath, "queue", "remove", "alpha"); err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	if _, err := store.GetByID(ctx, "alpha"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected alpha removed, got %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "queue", "show", "alpha"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQueueRetryAll(t *testing.T) {
	bind, store := startTestAPI(t)
	env := setupCLITestEnv(t, bind)
	ctx := context.Background()

	testsupport.NewJob(t, store, "gamma")
	if err := store.SetStatus(ctx, "gamma", queue.StatusFailed, "upload rejected"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if _, _, err := runCLI(t, env.configPath, "queue", "retry"); err == nil {
		t.Fatal("expected retry without targets to fail")
	}

	out, _, err := runCLI(t, env.configPath, "queue", "retry", "--all")
	if err != nil {
		t.Fatalf("queue retry --all: %v", err)
	}
	requireContains(t, out, "Retrying 1 uploads")

	job, err := store.GetByID(ctx, "gamma")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != queue.StatusPending || job.Attempts != 0 {
		t.Fatalf("expected reset job, got %+v", job)
	}
}

func TestQueueReorderThroughDaemon(t *testing.T) {
	bind, store := startTestAPI(t)
	env := setupCLITestEnv(t, bind)

	testsupport.NewJob(t, store, "one")
	testsupport.NewJob(t, store, "two")
	testsupport.NewJob(t, store, "three")

	if _, _, err := runCLI(t, env.configPath, "queue", "reorder", "three", "one"); err != nil {
		t.Fatalf("queue reorder: %v", err)
	}
	jobs, err := store.Pending(context.Background(), 0)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(jobs) < 2 || jobs[0].ID != "three" || jobs[1].ID != "one" {
		t.Fatalf("unexpected order: %+v", jobs)
	}
}

func TestQueueHistoryEmpty(t *testing.T) {
	bind, store := startTestAPI(t)
	env := setupCLITestEnv(t, bind)
	testsupport.NewJob(t, store, "delta")

	out, _, err := runCLI(t, env.configPath, "queue", "history", "delta")
	if err != nil {
		t.Fatalf("queue history: %v", err)
	}
	requireContains(t, out, "No speed samples recorded")
}
