package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"notely/internal/api"
	"notely/internal/config"
)

// Daemon is the subset of the API client used to control a running daemon.
type Daemon interface {
	Health(ctx context.Context) error
	Status(ctx context.Context) (api.DaemonStatus, error)
}

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// ErrDaemonNotRunning indicates the daemon API is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	Signalled  bool
	ForcedKill bool
	PID        int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

const pollInterval = 200 * time.Millisecond

// Launch starts a detached notely daemon process in its own session.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForHealthy polls the daemon health endpoint until it answers or the
// timeout passes.
func WaitForHealthy(ctx context.Context, d Daemon, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		err := d.Health(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return fmt.Errorf("daemon failed to start: %w", lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// WaitForShutdown waits until the daemon health endpoint stops answering.
func WaitForShutdown(ctx context.Context, d Daemon, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := d.Health(ctx); err != nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("daemon did not stop: still answering health checks")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// EnsureStarted launches the daemon unless one already answers.
func EnsureStarted(ctx context.Context, d Daemon, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if d.Health(ctx) == nil {
		result := StartResult{State: StartStateAlreadyRunning}
		if status, err := d.Status(ctx); err == nil {
			result.PID = status.PID
		}
		return result, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	if err := WaitForHealthy(ctx, d, waitTimeout); err != nil {
		return StartResult{}, err
	}
	result := StartResult{State: StartStateStarted, Launched: true}
	if status, err := d.Status(ctx); err == nil {
		result.PID = status.PID
	}
	return result, nil
}

// ProcessInfo reports whether the daemon answers and its PID when known.
func ProcessInfo(ctx context.Context, d Daemon) (bool, int, error) {
	if err := d.Health(ctx); err != nil {
		return false, 0, nil
	}
	status, err := d.Status(ctx)
	if err != nil {
		return true, 0, err
	}
	return true, status.PID, nil
}

// ReadPIDFile returns the PID recorded by a running daemon, or 0 when the
// file is missing.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(value)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q in %s", value, path)
	}
	return pid, nil
}

// ForceKillProcess sends SIGKILL to the daemon and cleans up its pid file.
func ForceKillProcess(pidPath string, pid int) (int, error) {
	if recorded, err := ReadPIDFile(pidPath); err != nil {
		return 0, err
	} else if recorded > 0 {
		pid = recorded
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return pid, nil
}

// StopAndTerminate sends SIGTERM to the daemon and force-kills it if it
// still answers after gracePeriod.
func StopAndTerminate(ctx context.Context, d Daemon, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	if err := d.Health(ctx); err != nil {
		return StopResult{}, ErrDaemonNotRunning
	}

	pid := 0
	if status, err := d.Status(ctx); err == nil {
		pid = status.PID
	}
	pidPath := cfg.DaemonPIDPath()
	if pid == 0 {
		recorded, err := ReadPIDFile(pidPath)
		if err != nil {
			return StopResult{}, err
		}
		pid = recorded
	}
	if pid <= 0 {
		return StopResult{}, errors.New("daemon is running but its pid is unknown")
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return result, nil
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result.Signalled = true

	if WaitForShutdown(ctx, d, gracePeriod) == nil {
		return result, nil
	}
	killed, err := ForceKillProcess(pidPath, pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	result.ForcedKill = true
	result.PID = killed
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(ctx context.Context, d Daemon, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, d, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, d, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}
