package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"notely/internal/broadcast"
	"notely/internal/logging"
)

const (
	eventBuffer  = 64
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// handleEvents upgrades to a websocket, sends the current queue view, then
// forwards every queue event not produced by the client's own origin.
func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Hub == nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	origin := strings.TrimSpace(r.URL.Query().Get("origin"))
	if origin == "" {
		origin = broadcast.NewOrigin()
	}

	events := make(chan broadcast.Event, eventBuffer)
	unsubscribe := s.opts.Hub.Subscribe(origin, func(evt broadcast.Event) {
		select {
		case events <- evt:
		default:
			// Slow client: drop, the next event or refresh re-syncs it.
		}
	})
	defer unsubscribe()

	if s.opts.Queue != nil {
		view, err := s.opts.Queue.View(r.Context())
		if err == nil {
			if !s.send(conn, StreamMessage{Type: StreamSnapshot, View: &view}) {
				return
			}
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case evt := <-events:
			if !s.send(conn, StreamMessage{Type: StreamEvent, Event: &evt}) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *server) send(conn *websocket.Conn, msg StreamMessage) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("websocket write failed", logging.Error(err))
		return false
	}
	return true
}
