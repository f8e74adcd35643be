package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"notely/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// systemStatusLines summarizes the daemon's runtime state.
func systemStatusLines(status api.DaemonStatus, colorize bool) []string {
	lines := make([]string, 0, 5)
	if !status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running (run `notely start`)", colorize))
		if status.Authenticated {
			lines = append(lines, renderStatusLine("Credentials", statusOK, "Configured", colorize))
		} else {
			lines = append(lines, renderStatusLine("Credentials", statusError, "Missing: uploads stay queued", colorize))
		}
		return lines
	}

	lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	if status.Leader {
		lines = append(lines, renderStatusLine("Uploader", statusOK, "This daemon uploads", colorize))
	} else {
		lines = append(lines, renderStatusLine("Uploader", statusInfo, "Another process holds the uploader lock", colorize))
	}
	if status.Online {
		lines = append(lines, renderStatusLine("Network", statusOK, "Online", colorize))
	} else {
		lines = append(lines, renderStatusLine("Network", statusWarn, "Offline: uploads paused", colorize))
	}
	if status.Authenticated {
		lines = append(lines, renderStatusLine("Credentials", statusOK, "Configured", colorize))
	} else {
		lines = append(lines, renderStatusLine("Credentials", statusError, "Missing: uploads stay queued", colorize))
	}
	return lines
}

func checkStatusLines(status api.DaemonStatus, colorize bool) []string {
	lines := make([]string, 0, len(status.Checks)+1)
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	db := status.Database
	switch {
	case db.Error != "":
		lines = append(lines, renderStatusLine("Queue database", statusError, db.Error, colorize))
	case !db.DatabaseExists:
		lines = append(lines, renderStatusLine("Queue database", statusInfo, "Not created yet", colorize))
	default:
		lines = append(lines, renderStatusLine("Queue database", statusOK,
			fmt.Sprintf("%s (schema v%d)", db.DBPath, db.SchemaVersion), colorize))
	}
	return lines
}
