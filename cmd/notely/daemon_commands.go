package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"notely/internal/daemonctl"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the notely daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, ctx.launchOptions(startLogLevel), 10*time.Second)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			default:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override the daemon log level")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the notely daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(cmd.Context(), client, ctx.configValue(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the notely daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.daemonClient()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.Restart(cmd.Context(), client, ctx.configValue(), exe,
				ctx.launchOptions(restartLogLevel), 10*time.Second, 10*time.Second)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if result.WasRunning {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Override the daemon log level")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, connectivity and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, ctx)
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func runStatus(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	var daemon daemonctl.Daemon
	if client, err := ctx.daemonClient(); err == nil {
		daemon = client
	}
	probeCtx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	status, err := daemonctl.BuildStatusSnapshot(probeCtx, daemon, cfg)
	cancel()
	if err != nil {
		return err
	}
	if ctx.jsonMode() {
		return writeJSON(cmd, status)
	}

	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)
	section := func(title string, lines []string) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(stdout, line)
		}
		for _, line := range lines {
			fmt.Fprintln(stdout, line)
		}
		fmt.Fprintln(stdout)
	}
	section("System Status", systemStatusLines(status, colorize))
	section("Checks", checkStatusLines(status, colorize))

	for _, line := range renderSectionHeader("Queue Status", colorize) {
		fmt.Fprintln(stdout, line)
	}
	rows := buildQueueStatusRows(status.Queue.Counts)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "Queue is empty")
		return nil
	}
	fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	fmt.Fprintf(stdout, "Waiting to upload: %s\n", formatBytes(status.Queue.PendingBytes))
	return nil
}

func (c *commandContext) launchOptions(logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: logLevel}
	if c.configPath != "" {
		if _, err := os.Stat(c.configPath); err == nil {
			opts.ConfigPath = c.configPath
		}
	}
	return opts
}
