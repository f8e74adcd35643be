package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	daemonLogName    = "notelyd.log"
	rotatedLogPrefix = "notelyd-"
)

// RotateDaemonLog moves the previous run's log aside so each daemon run
// starts with a fresh notelyd.log.
func RotateDaemonLog(dir string, now time.Time) (string, error) {
	current := filepath.Join(dir, daemonLogName)
	info, err := os.Stat(current)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat daemon log: %w", err)
	}
	if info.Size() == 0 {
		return "", nil
	}
	rotated := filepath.Join(dir, rotatedLogPrefix+now.UTC().Format("20060102T150405")+".log")
	if err := os.Rename(current, rotated); err != nil {
		return "", fmt.Errorf("rotate daemon log: %w", err)
	}
	return rotated, nil
}

// CleanupOldLogs removes rotated daemon logs older than retentionDays. A
// retentionDays value of 0 disables pruning.
func CleanupOldLogs(logger *slog.Logger, dir string, retentionDays int, now time.Time) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, rotatedLogPrefix+"*.log"))
	if err != nil {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
