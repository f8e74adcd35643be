package queueaccess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"notely/internal/api"
	"notely/internal/broadcast"
	"notely/internal/queue"
	"notely/internal/services"
)

// APIError is a non-2xx reply from the daemon. It unwraps to the matching
// domain error so callers can use errors.Is across both backends.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return queue.ErrNotFound
	case http.StatusConflict:
		return queue.ErrDuplicateID
	case http.StatusBadRequest:
		return services.ErrValidation
	default:
		return nil
	}
}

// ErrDaemonUnavailable reports that the daemon API could not be reached.
var ErrDaemonUnavailable = errors.New("notely daemon unavailable")

var _ Access = (*Client)(nil)

// Client talks to the daemon HTTP API.
type Client struct {
	base   *url.URL
	token  string
	origin string
	http   *http.Client
}

// NewClient returns nil when bind is empty.
func NewClient(bind, token string) (*Client, error) {
	base, err := api.BaseURL(bind)
	if err != nil || base == nil {
		return nil, err
	}
	return &Client{
		base:   base,
		token:  strings.TrimSpace(token),
		origin: broadcast.NewOrigin(),
		http:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Health reports whether the daemon answers.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/api/health", nil, "", nil)
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, "", &out)
	return out, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/test", nil, "", nil)
}

func (c *Client) View(ctx context.Context) (api.QueueView, error) {
	var out api.QueueView
	err := c.do(ctx, http.MethodGet, "/api/jobs", nil, "", &out)
	return out, err
}

func (c *Client) List(ctx context.Context, statuses []string) ([]api.Job, error) {
	values := url.Values{}
	for _, s := range statuses {
		values.Add("status", s)
	}
	path := "/api/jobs"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	var out api.QueueView
	err := c.do(ctx, http.MethodGet, path, nil, "", &out)
	return out.Jobs, err
}

func (c *Client) Describe(ctx context.Context, id string) (api.Job, error) {
	var out api.JobResponse
	err := c.do(ctx, http.MethodGet, jobPath(id, ""), nil, "", &out)
	return out.Job, err
}

func (c *Client) Stats(ctx context.Context) (api.QueueStatsResponse, error) {
	var out api.QueueStatsResponse
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, "", &out)
	return out, err
}

func (c *Client) History(ctx context.Context, id string) (api.HistoryResponse, error) {
	var out api.HistoryResponse
	err := c.do(ctx, http.MethodGet, jobPath(id, "/history"), nil, "", &out)
	return out, err
}

func (c *Client) Enqueue(ctx context.Context, upload Upload) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"parentId": upload.ParentID,
		"ownerId":  upload.OwnerID,
		"name":     upload.Name,
		"mimeType": upload.MimeType,
	}
	if upload.Priority != 0 {
		fields["priority"] = strconv.Itoa(upload.Priority)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := mw.WriteField(key, value); err != nil {
			return "", err
		}
	}
	part, err := mw.CreateFormFile("file", upload.Name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(upload.Payload); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out api.EnqueueResponse
	err = c.do(ctx, http.MethodPost, "/api/jobs", &body, mw.FormDataContentType(), &out)
	return out.ID, err
}

func (c *Client) Refresh(ctx context.Context) (api.QueueView, error) {
	var out api.QueueView
	err := c.do(ctx, http.MethodPost, "/api/jobs/refresh", nil, "", &out)
	return out, err
}

func (c *Client) Reorder(ctx context.Context, ids []string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/jobs/reorder", api.ReorderRequest{IDs: ids}, nil)
}

func (c *Client) Move(ctx context.Context, id string, up bool) error {
	direction := "down"
	if up {
		direction = "up"
	}
	return c.doJSON(ctx, http.MethodPost, jobPath(id, "/move"), api.MoveRequest{Direction: direction}, nil)
}

func (c *Client) SetPriority(ctx context.Context, id string, priority int) error {
	return c.doJSON(ctx, http.MethodPut, jobPath(id, "/priority"), api.PriorityRequest{Priority: &priority}, nil)
}

func (c *Client) Retry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, jobPath(id, "/retry"), nil, "", nil)
}

func (c *Client) RetryAll(ctx context.Context) ([]string, error) {
	var out api.RetryAllResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/retry", nil, "", &out)
	return out.IDs, err
}

func (c *Client) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, jobPath(id, ""), nil, "", nil)
}

func jobPath(id, suffix string) string {
	return "/api/jobs/" + url.PathEscape(id) + suffix
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, bytes.NewReader(data), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if c == nil {
		return errors.New("daemon api not configured")
	}
	endpoint, err := c.base.Parse(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(api.OriginHeader, c.origin)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
