package queueaccess

import (
	"context"
	"fmt"
)

// Session represents a queue access handle and its cleanup function.
type Session struct {
	Access Access
	// Daemon is set when the session goes through the daemon API.
	Daemon *Client
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Remote reports whether the session is served by a running daemon.
func (s Session) Remote() bool {
	return s.Daemon != nil
}

// StoreOpener opens direct store access and returns its cleanup function.
type StoreOpener func() (Access, func() error, error)

// OpenWithFallback uses the daemon API when it answers and falls back to
// direct store access otherwise.
func OpenWithFallback(ctx context.Context, client *Client, openStore StoreOpener) (Session, error) {
	if client != nil {
		if err := client.Health(ctx); err == nil {
			return Session{Access: client, Daemon: client}, nil
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open queue store: no store opener configured")
	}
	access, closer, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open queue store: %w", err)
	}
	return Session{Access: access, close: closer}, nil
}
