package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"notely/internal/broadcast"
	"notely/internal/config"
	"notely/internal/logging"
	"notely/internal/queue"
	"notely/internal/queueaccess"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) jsonMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// daemonClient returns the API client for the configured bind address.
func (c *commandContext) daemonClient() (*queueaccess.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := queueaccess.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return nil, fmt.Errorf("daemon api address: %w", err)
	}
	if client == nil {
		return nil, errors.New("daemon api is disabled (paths.api_bind is empty)")
	}
	return client, nil
}

// withClient requires a running daemon.
func (c *commandContext) withClient(ctx context.Context, fn func(*queueaccess.Client) error) error {
	client, err := c.daemonClient()
	if err != nil {
		return err
	}
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("connect to daemon: %w; start it with `notely start`", err)
	}
	return fn(client)
}

// withQueue runs fn against the daemon when it answers and against the
// queue database otherwise.
func (c *commandContext) withQueue(ctx context.Context, fn func(queueaccess.Session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, err := queueaccess.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return fmt.Errorf("daemon api address: %w", err)
	}
	session, err := queueaccess.OpenWithFallback(ctx, client, func() (queueaccess.Access, func() error, error) {
		return openStoreAccess(ctx, cfg)
	})
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session)
}

// openStoreAccess opens the queue database directly. Changes are relayed
// over Redis when configured so a running daemon elsewhere still sees them.
func openStoreAccess(ctx context.Context, cfg *config.Config) (queueaccess.Access, func() error, error) {
	hub := broadcast.NewHub(logging.NewNop())
	var closers []func() error
	if cfg.Broadcast.RedisURL != "" {
		if client, err := broadcast.DialRedis(ctx, cfg.Broadcast.RedisURL); err == nil {
			hub.SetRelay(broadcast.NewRedisBridge(client, cfg.Broadcast.Channel, hub, logging.NewNop()))
			closers = append(closers, client.Close)
		}
	}
	store, err := queue.Open(cfg, hub)
	if err != nil {
		for _, closeFn := range closers {
			_ = closeFn()
		}
		return nil, nil, err
	}
	closers = append([]func() error{store.Close}, closers...)
	closeAll := func() error {
		var errs []error
		for _, closeFn := range closers {
			errs = append(errs, closeFn())
		}
		return errors.Join(errs...)
	}
	return queueaccess.NewStoreAccess(store, hub, cfg.Storage.OwnerID), closeAll, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
