package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateEstimator(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.BackoffMaxSeconds < c.Queue.BackoffBaseSeconds {
		return errors.New("queue.backoff_max_seconds must be >= queue.backoff_base_seconds")
	}
	if c.Queue.Concurrency > 16 {
		return fmt.Errorf("queue.concurrency must be between 1 and 16 (got %d)", c.Queue.Concurrency)
	}
	return nil
}

func (c *Config) validateEstimator() error {
	if c.Estimator.Alpha <= 0 || c.Estimator.Alpha > 1 {
		return errors.New("estimator.alpha must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Endpoint != "" {
		if _, err := parseHTTPURL(c.Storage.Endpoint); err != nil {
			return fmt.Errorf("storage.endpoint: %w", err)
		}
	}
	if c.Storage.PublicBaseURL != "" {
		if _, err := parseHTTPURL(c.Storage.PublicBaseURL); err != nil {
			return fmt.Errorf("storage.public_base_url: %w", err)
		}
	}
	return nil
}

func (c *Config) validateConnectivity() error {
	if c.Connectivity.ProbeURL == "" {
		return nil
	}
	if _, err := parseHTTPURL(c.Connectivity.ProbeURL); err != nil {
		return fmt.Errorf("connectivity.probe_url: %w", err)
	}
	return nil
}

func (c *Config) validateImages() error {
	if c.Images.Quality <= 0 || c.Images.Quality > 1 {
		return errors.New("images.quality must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("scheme must be http or https (got %q)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("host is required")
	}
	return parsed, nil
}
