package queueaccess

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"notely/internal/api"
)

// Watch follows the daemon's websocket event stream, calling emit for the
// initial snapshot and every queue event after it. It returns nil once ctx
// is cancelled.
func (c *Client) Watch(ctx context.Context, emit func(api.StreamMessage)) error {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/events"
	q := u.Query()
	q.Set("origin", c.origin)
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("event stream: %s", resp.Status)}
		}
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		var msg api.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event stream: %w", err)
		}
		emit(msg)
	}
}
