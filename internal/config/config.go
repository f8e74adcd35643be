package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Queue contains upload pool and retry settings.
type Queue struct {
	Concurrency        int `toml:"concurrency"`
	MaxAttempts        int `toml:"max_attempts"`
	BackoffBaseSeconds int `toml:"backoff_base_seconds"`
	BackoffMaxSeconds  int `toml:"backoff_max_seconds"`
	PendingLimit       int `toml:"pending_limit"`
	NotifyETASeconds   int `toml:"notify_eta_seconds"`
}

// Estimator contains speed smoothing parameters.
type Estimator struct {
	Alpha       float64 `toml:"alpha"`
	NoiseFloor  float64 `toml:"noise_floor"`
	HistorySize int     `toml:"history_size"`
}

// Storage contains the S3-compatible object storage target.
type Storage struct {
	Endpoint        string `toml:"endpoint"`
	Region          string `toml:"region"`
	Bucket          string `toml:"bucket"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	PublicBaseURL   string `toml:"public_base_url"`
	OwnerID         string `toml:"owner_id"`
	UsePathStyle    bool   `toml:"use_path_style"`
}

// Notes contains the cloud note store connection.
type Notes struct {
	DatabaseURL string `toml:"database_url"`
}

// Broadcast contains cross-process queue event settings.
type Broadcast struct {
	RedisURL string `toml:"redis_url"`
	Channel  string `toml:"channel"`
}

// Connectivity contains reachability probe settings.
type Connectivity struct {
	ProbeURL             string `toml:"probe_url"`
	ProbeIntervalSeconds int    `toml:"probe_interval_seconds"`
	ProbeTimeoutSeconds  int    `toml:"probe_timeout_seconds"`
	Netlink              bool   `toml:"netlink"`
}

// Notifications contains configuration for ntfy push notifications and
// failure reporting.
type Notifications struct {
	Enabled        bool   `toml:"enabled"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	SentryDSN      string `toml:"sentry_dsn"`
}

// Images contains pre-upload image compression settings.
type Images struct {
	Compress  bool    `toml:"compress"`
	MaxWidth  int     `toml:"max_width"`
	MaxHeight int     `toml:"max_height"`
	Quality   float64 `toml:"quality"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for notely.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Queue: worker pool concurrency, retry budget and backoff
//   - Estimator: speed EMA smoothing
//   - Storage: S3-compatible upload target and owning account
//   - Notes: cloud note store receiving attachment metadata
//   - Broadcast: Redis channel shared by processes watching one queue
//   - Connectivity: online probe
//   - Notifications: ntfy push notifications and Sentry reporting
//   - Images: pre-upload compression
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Estimator     Estimator     `toml:"estimator"`
	Storage       Storage       `toml:"storage"`
	Notes         Notes         `toml:"notes"`
	Broadcast     Broadcast     `toml:"broadcast"`
	Connectivity  Connectivity  `toml:"connectivity"`
	Notifications Notifications `toml:"notifications"`
	Images        Images        `toml:"images"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/notely/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// A missing .env is the common case; only malformed files are reported.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("notely.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the SQLite database holding queued uploads.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LeaderLockPath returns the lock file that elects the process running the pool.
func (c *Config) LeaderLockPath() string {
	return filepath.Join(c.Paths.DataDir, "uploader.lock")
}

// DaemonLockPath returns the lock file guarding against duplicate daemons.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.LogDir, "notelyd.lock")
}

// DaemonPIDPath returns the file holding the running daemon's process id.
func (c *Config) DaemonPIDPath() string {
	return filepath.Join(c.Paths.LogDir, "notelyd.pid")
}

// DaemonLogPath returns the current daemon log file.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "notelyd.log")
}

// BackoffBase returns the first retry delay.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Queue.BackoffBaseSeconds) * time.Second
}

// BackoffMax returns the retry delay ceiling.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Queue.BackoffMaxSeconds) * time.Second
}

// Authenticated reports whether uploads can be attributed and signed.
func (c *Config) Authenticated() bool {
	return strings.TrimSpace(c.Storage.OwnerID) != "" &&
		strings.TrimSpace(c.Storage.AccessKeyID) != "" &&
		strings.TrimSpace(c.Storage.SecretAccessKey) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
