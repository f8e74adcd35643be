package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notely/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCredentials(t *testing.T) {
	cfg := config.Default()
	if CheckCredentials(&cfg).Passed {
		t.Fatal("expected failure without owner")
	}
	cfg.Storage.OwnerID = "owner"
	if r := CheckCredentials(&cfg); r.Passed || r.Detail != "access key missing" {
		t.Fatalf("unexpected result %+v", r)
	}
	cfg.Storage.AccessKeyID = "key"
	cfg.Storage.SecretAccessKey = "secret"
	if !CheckCredentials(&cfg).Passed {
		t.Fatal("expected pass with full credentials")
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckPinger(t *testing.T) {
	ok := CheckPinger(context.Background(), "svc", pingFunc(func(context.Context) error { return nil }))
	if !ok.Passed {
		t.Fatalf("expected pass, got %+v", ok)
	}
	bad := CheckPinger(context.Background(), "svc", pingFunc(func(context.Context) error { return errors.New("403 forbidden") }))
	if bad.Passed || bad.Detail != "403 forbidden" {
		t.Fatalf("unexpected failure result %+v", bad)
	}
	slow := CheckPinger(context.Background(), "svc", pingFunc(func(context.Context) error { return context.DeadlineExceeded }))
	if slow.Detail != "health check timed out" {
		t.Fatalf("unexpected timeout detail %q", slow.Detail)
	}
}

func TestRunAllSkipsUnconfiguredIntegrations(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 checks, got %d: %+v", len(results), results)
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Storage credentials" {
		t.Fatalf("unexpected failures %+v", failed)
	}
}
