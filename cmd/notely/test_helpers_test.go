package main

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notely/internal/api"
	"notely/internal/broadcast"
	"notely/internal/controller"
	"notely/internal/logging"
	"notely/internal/queue"
	"notely/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	dataDir    string
	logDir     string
	configPath string
}

// offlineBind points at a port nothing listens on.
const offlineBind = "127.0.0.1:1"

func setupCLITestEnv(t *testing.T, apiBind string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		baseDir:    base,
		dataDir:    filepath.Join(base, "data"),
		logDir:     filepath.Join(base, "logs"),
		configPath: filepath.Join(base, "config.toml"),
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
api_bind = %q

[storage]
owner_id = "owner-test"

[connectivity]
netlink = false

[notifications]
enabled = false
`, env.dataDir, env.logDir, apiBind)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

// startTestAPI serves the daemon API over a store with no upload pool, so
// jobs stay where the CLI puts them.
func startTestAPI(t *testing.T) (string, *queue.Store) {
	t.Helper()
	hub := broadcast.NewHub(logging.NewNop())
	store := testsupport.MustOpenStoreWithPublisher(t, testsupport.NewConfig(t), hub)
	ctrl := controller.New(controller.Options{
		Store:     store,
		Publisher: hub,
		Logger:    logging.NewNop(),
		OwnerID:   "owner-test",
	})
	srv := httptest.NewServer(api.NewRouter(api.Options{
		Queue:  api.NewQueueService(ctrl, store),
		Hub:    hub,
		Logger: logging.NewNop(),
	}))
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().String(), store
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
