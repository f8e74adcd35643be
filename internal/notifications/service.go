package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"notely/internal/config"
)

const userAgent = "Notely-Go/0.1.0"

// Event identifies a notification category.
type Event string

const (
	// EventTest is sent by `notely notify test`.
	EventTest Event = "test"
	// EventBackOnline is sent when connectivity returns with uploads waiting.
	EventBackOnline Event = "back_online"
	// EventQueueDrained is sent when the last queued upload finishes.
	EventQueueDrained Event = "queue_drained"
)

// Payload carries event-specific values.
type Payload map[string]any

// Service defines the notification surface exposed to upload components.
type Service interface {
	Notify(ctx context.Context, title, body string) error
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When notifications are disabled or no topic is set, a noop implementation
// is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil || !cfg.Notifications.Enabled {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Notify(ctx context.Context, title, body string) error {
	title = strings.TrimSpace(title)
	return n.send(ctx, message{
		title: "Notely - " + title,
		body:  strings.TrimSpace(body),
		tags:  append([]string{"notely"}, tagsForTitle(title)...),
	})
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := buildMessage(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func tagsForTitle(title string) []string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "failed"):
		return []string{"upload", "warning"}
	case strings.Contains(lower, "complete"):
		return []string{"upload", "white_check_mark"}
	default:
		return []string{"upload"}
	}
}

func buildMessage(event Event, payload Payload) (message, bool) {
	switch event {
	case EventTest:
		return message{
			title: "Notely - Test",
			body:  "Test notification from notely",
			tags:  []string{"notely", "test"},
		}, true
	case EventBackOnline:
		return message{
			title: "Notely - Back Online",
			body:  fmt.Sprintf("Connection restored, resuming %d queued uploads", payloadInt(payload, "pending")),
			tags:  []string{"notely", "online"},
		}, true
	case EventQueueDrained:
		completed := payloadInt(payload, "completed")
		if completed <= 0 {
			return message{}, false
		}
		return message{
			title:    "Notely - Uploads Finished",
			body:     fmt.Sprintf("%d uploads finished", completed),
			tags:     []string{"notely", "upload", "done"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadInt(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Notify(context.Context, string, string) error   { return nil }
func (noopService) Publish(context.Context, Event, Payload) error { return nil }
