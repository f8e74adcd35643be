package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"notely/internal/logging"
)

func (s *server) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.opts.Logs
	if hub == nil {
		writeJSON(s.logger, w, http.StatusOK, LogStreamResponse{})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := flag(query.Get("follow"))
	tail := flag(query.Get("tail"))
	jobID := strings.TrimSpace(query.Get("job"))
	component := strings.TrimSpace(query.Get("component"))
	level := strings.TrimSpace(query.Get("level"))

	var (
		raw  []logging.LogEvent
		next uint64
	)
	if tail && since == 0 && !follow {
		raw, next = hub.Tail(limit)
	} else {
		var err error
		raw, next, err = hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			writeError(s.logger, w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	events := FromLogEvents(raw)
	filtered := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		if jobID != "" && evt.JobID != jobID {
			continue
		}
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if level != "" && !levelAtLeast(evt.Level, level) {
			continue
		}
		filtered = append(filtered, evt)
	}
	writeJSON(s.logger, w, http.StatusOK, LogStreamResponse{Events: filtered, Next: next})
}

func flag(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

func levelAtLeast(eventLevel, minimum string) bool {
	got, ok := levelRank[strings.ToUpper(eventLevel)]
	if !ok {
		return true
	}
	want, ok := levelRank[strings.ToUpper(minimum)]
	if !ok {
		return true
	}
	return got >= want
}
