package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"notely/internal/api"
)

var ErrAPIUnavailable = errors.New("log API unavailable")

type StreamClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

type StreamQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	JobID     string
	Level     string
}

// NewStreamClient returns nil when bind is empty.
func NewStreamClient(bind, token string) (*StreamClient, error) {
	base, err := api.BaseURL(bind)
	if err != nil || base == nil {
		return nil, err
	}
	return &StreamClient{
		base:  base,
		token: strings.TrimSpace(token),
		// No timeout - follow mode blocks waiting for events until caller cancels.
		http: &http.Client{},
	}, nil
}

func (c *StreamClient) Fetch(ctx context.Context, q StreamQuery) (api.LogStreamResponse, error) {
	if c == nil {
		return api.LogStreamResponse{}, ErrAPIUnavailable
	}

	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if v := strings.TrimSpace(q.Component); v != "" {
		values.Set("component", v)
	}
	if v := strings.TrimSpace(q.JobID); v != "" {
		values.Set("job", v)
	}
	if v := strings.TrimSpace(q.Level); v != "" {
		values.Set("level", v)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: "/api/logs", RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return api.LogStreamResponse{}, fmt.Errorf("api logs returned status %d", resp.StatusCode)
	}

	var payload api.LogStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.LogStreamResponse{}, err
	}
	return payload, nil
}

// Stream emits events until ctx ends. Without q.Follow it returns after the
// first page.
func (c *StreamClient) Stream(ctx context.Context, q StreamQuery, emit func(api.LogEvent)) error {
	for {
		page, err := c.Fetch(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, evt := range page.Events {
			emit(evt)
		}
		if !q.Follow {
			return nil
		}
		if page.Next > q.Since {
			q.Since = page.Next
		}
		q.Tail = false
	}
}

func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
