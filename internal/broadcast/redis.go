package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"notely/internal/logging"
)

const messageType = "queue-updated"

// envelope is the wire shape shared by every process on the channel.
type envelope struct {
	Type    string `json:"type"`
	Detail  detail `json:"detail"`
	Origin  string `json:"origin"`
	Process string `json:"process"`
	TS      int64  `json:"ts"`
}

type detail struct {
	Action Action `json:"action"`
	ID     string `json:"id,omitempty"`
}

// RedisBridge relays hub events over a Redis pub/sub channel.
type RedisBridge struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *slog.Logger
}

// DialRedis connects to the Redis server at rawURL and verifies it with PING.
func DialRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error pinging redis server: %w", err)
	}
	return client, nil
}

// NewRedisBridge wires hub to channel. Call Run to start receiving.
func NewRedisBridge(client redis.UniversalClient, channel string, hub *Hub, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logging.NewComponentLogger(logger, "broadcast-redis"),
	}
}

// Publish implements Relay.
func (b *RedisBridge) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(envelope{
		Type:    messageType,
		Detail:  detail{Action: evt.Action, ID: evt.JobID},
		Origin:  evt.Origin,
		Process: b.hub.Origin(),
		TS:      evt.Timestamp.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode queue event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish queue event: %w", err)
	}
	return nil
}

// Run subscribes to the channel and injects events from other processes
// into the hub until ctx ends.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Join(ErrNotifierUnavailable, fmt.Errorf("subscribe %s: %w", b.channel, err))
	}
	b.logger.Info("queue event relay subscribed", logging.String("channel", b.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return ErrNotifierUnavailable
			}
			if evt, ok := b.decode(msg.Payload); ok {
				b.hub.Inject(evt)
			}
		}
	}
}

func (b *RedisBridge) decode(payload string) (Event, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Debug("ignoring malformed queue event", logging.Error(err))
		return Event{}, false
	}
	if env.Type != messageType || env.Process == b.hub.Origin() {
		return Event{}, false
	}
	return Event{
		Action:    env.Detail.Action,
		JobID:     env.Detail.ID,
		Origin:    env.Origin,
		Timestamp: time.UnixMilli(env.TS).UTC(),
	}, true
}
