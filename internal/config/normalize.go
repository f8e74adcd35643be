package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeEstimator()
	c.normalizeStorage()
	c.normalizeNotes()
	c.normalizeBroadcast()
	c.normalizeConnectivity()
	c.normalizeNotifications()
	c.normalizeImages()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupEnv("NOTELY_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeQueue() {
	if c.Queue.Concurrency <= 0 {
		c.Queue.Concurrency = defaultConcurrency
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = defaultMaxAttempts
	}
	if c.Queue.BackoffBaseSeconds <= 0 {
		c.Queue.BackoffBaseSeconds = defaultBackoffBaseSeconds
	}
	if c.Queue.BackoffMaxSeconds <= 0 {
		c.Queue.BackoffMaxSeconds = defaultBackoffMaxSeconds
	}
	if c.Queue.PendingLimit <= 0 {
		c.Queue.PendingLimit = defaultPendingLimit
	}
	if c.Queue.NotifyETASeconds < 0 {
		c.Queue.NotifyETASeconds = defaultNotifyETASeconds
	}
}

func (c *Config) normalizeEstimator() {
	if c.Estimator.Alpha == 0 {
		c.Estimator.Alpha = defaultEstimatorAlpha
	}
	if c.Estimator.NoiseFloor <= 0 {
		c.Estimator.NoiseFloor = defaultEstimatorNoiseFloor
	}
	if c.Estimator.HistorySize <= 0 {
		c.Estimator.HistorySize = defaultEstimatorHistorySize
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Endpoint = strings.TrimRight(strings.TrimSpace(c.Storage.Endpoint), "/")
	if c.Storage.Endpoint == "" {
		c.Storage.Endpoint = lookupEnv("NOTELY_S3_ENDPOINT")
	}
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultStorageRegion
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = lookupEnv("NOTELY_S3_BUCKET")
	}
	c.Storage.AccessKeyID = strings.TrimSpace(c.Storage.AccessKeyID)
	if c.Storage.AccessKeyID == "" {
		c.Storage.AccessKeyID = lookupEnv("NOTELY_S3_ACCESS_KEY_ID")
	}
	c.Storage.SecretAccessKey = strings.TrimSpace(c.Storage.SecretAccessKey)
	if c.Storage.SecretAccessKey == "" {
		c.Storage.SecretAccessKey = lookupEnv("NOTELY_S3_SECRET_ACCESS_KEY")
	}
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	c.Storage.OwnerID = strings.TrimSpace(c.Storage.OwnerID)
	if c.Storage.OwnerID == "" {
		c.Storage.OwnerID = lookupEnv("NOTELY_OWNER_ID")
	}
}

func (c *Config) normalizeNotes() {
	c.Notes.DatabaseURL = strings.TrimSpace(c.Notes.DatabaseURL)
	if c.Notes.DatabaseURL == "" {
		c.Notes.DatabaseURL = lookupEnv("NOTELY_DATABASE_URL")
	}
}

func (c *Config) normalizeBroadcast() {
	c.Broadcast.RedisURL = strings.TrimSpace(c.Broadcast.RedisURL)
	if c.Broadcast.RedisURL == "" {
		c.Broadcast.RedisURL = lookupEnv("NOTELY_REDIS_URL")
	}
	c.Broadcast.Channel = strings.TrimSpace(c.Broadcast.Channel)
	if c.Broadcast.Channel == "" {
		c.Broadcast.Channel = defaultBroadcastChannel
	}
}

func (c *Config) normalizeConnectivity() {
	c.Connectivity.ProbeURL = strings.TrimSpace(c.Connectivity.ProbeURL)
	if c.Connectivity.ProbeURL == "" && c.Storage.Endpoint != "" {
		c.Connectivity.ProbeURL = c.Storage.Endpoint
	}
	if c.Connectivity.ProbeIntervalSeconds <= 0 {
		c.Connectivity.ProbeIntervalSeconds = defaultProbeIntervalSeconds
	}
	if c.Connectivity.ProbeTimeoutSeconds <= 0 {
		c.Connectivity.ProbeTimeoutSeconds = defaultProbeTimeoutSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	c.Notifications.SentryDSN = strings.TrimSpace(c.Notifications.SentryDSN)
	if c.Notifications.SentryDSN == "" {
		c.Notifications.SentryDSN = lookupEnv("NOTELY_SENTRY_DSN")
	}
}

func (c *Config) normalizeImages() {
	if c.Images.MaxWidth <= 0 {
		c.Images.MaxWidth = defaultImageMaxDimension
	}
	if c.Images.MaxHeight <= 0 {
		c.Images.MaxHeight = defaultImageMaxDimension
	}
	if c.Images.Quality == 0 {
		c.Images.Quality = defaultImageQuality
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
