package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotifierUnavailable marks a failed relay to other processes. It is
// logged, never returned to the caller of a queue mutation.
var ErrNotifierUnavailable = errors.New("queue notifier unavailable")

// Action names the kind of queue mutation an event describes.
type Action string

const (
	ActionAdd      Action = "add"
	ActionRemove   Action = "remove"
	ActionUpdate   Action = "update"
	ActionPriority Action = "priority"
	ActionRefresh  Action = "refresh"
)

// Event is a "something changed, re-sync" signal. It is not an authoritative delta.
type Event struct {
	Action    Action    `json:"action"`
	JobID     string    `json:"id,omitempty"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"ts"`
}

// NewOrigin returns a fresh context identifier.
func NewOrigin() string {
	return uuid.NewString()
}

type originKey struct{}

// WithOrigin tags ctx so events published while handling it are attributed
// to origin instead of the hub's own context.
func WithOrigin(ctx context.Context, origin string) context.Context {
	if origin == "" {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFromContext returns the origin stored by WithOrigin.
func OriginFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	origin, ok := ctx.Value(originKey{}).(string)
	return origin, ok && origin != ""
}
