package testsupport

import (
	"path/filepath"
	"testing"

	"notely/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Network collaborators are disabled so tests never reach out.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Storage.Bucket = "notely-test"
	cfgVal.Storage.OwnerID = "owner-test"
	cfgVal.Connectivity.Netlink = false
	cfgVal.Notifications.Enabled = false
	cfgVal.Queue.BackoffBaseSeconds = 0
	cfgVal.Queue.BackoffMaxSeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCredentials sets storage credentials so the config reports as
// authenticated.
func WithCredentials(accessKey, secret string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.AccessKeyID = accessKey
		b.cfg.Storage.SecretAccessKey = secret
	}
}

// WithStorageEndpoint points the storage client at a test server.
func WithStorageEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Endpoint = endpoint
		b.cfg.Storage.UsePathStyle = true
	}
}

// WithConcurrency overrides the worker count.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Concurrency = n
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
