package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"sensorviz/internal/metrics"
	"sensorviz/internal/models"
)

const userAgent = "sensorviz/1.0"

// Client reads sensor records from the backend's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the default client, e.g. to change transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) createRequest(ctx context.Context, path string, values url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(values) > 0 {
		u += "?" + values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Add("Accept", "application/json")
	req.Header.Add("User-Agent", userAgent)
	req.Header.Add("X-Request-ID", uuid.NewString())

	return req, nil
}

// TestConnection checks that the backend answers the latest-readings endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	path, values := LatestQuery().path()
	req, err := c.createRequest(ctx, path, values)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "making request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &ResponseError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode), Detail: string(body)}
	}

	return nil
}

// Fetch runs q against the backend. Records that fail to decode or lack
// their identity fields are dropped; the rest are returned in backend order.
func (c *Client) Fetch(ctx context.Context, q Query) ([]models.Reading, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	records, reqID, err := c.fetch(ctx, q)
	elapsed := time.Since(start)
	c.metrics.ObserveRequest(string(q.Mode), Outcome(err), elapsed)

	if err != nil {
		c.log.Debug("fetch failed", "request_id", reqID, "mode", q.Mode, "query", q.String(), "elapsed", elapsed, "err", err)
		return nil, err
	}
	c.log.Debug("fetched records", "request_id", reqID, "mode", q.Mode, "query", q.String(), "rows", len(records), "elapsed", elapsed)
	return records, nil
}

func (c *Client) fetch(ctx context.Context, q Query) ([]models.Reading, string, error) {
	path, values := q.path()
	req, err := c.createRequest(ctx, path, values)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %v", err)
	}
	reqID := req.Header.Get("X-Request-ID")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, reqID, &TransportError{Op: "making request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, reqID, &TransportError{Op: "reading response", Err: err}
	}

	c.log.Debug("backend response", "request_id", reqID, "path", path, "status", resp.StatusCode, "bytes", len(body))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, reqID, &ResponseError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Detail:     string(body),
		}
	}

	records, err := c.decode(body, reqID)
	return records, reqID, err
}

func (c *Client) decode(body []byte, reqID string) ([]models.Reading, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &MalformedDataError{Err: errors.New("empty body")}
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return []models.Reading{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &MalformedDataError{Err: err, Body: snippet(trimmed)}
	}

	records := make([]models.Reading, 0, len(raw))
	dropped := 0
	for i, item := range raw {
		var r models.Reading
		if err := json.Unmarshal(item, &r); err != nil {
			c.log.Debug("dropping undecodable record", "request_id", reqID, "index", i, "err", err)
			dropped++
			continue
		}
		if err := r.Validate(); err != nil {
			c.log.Debug("dropping invalid record", "request_id", reqID, "index", i, "err", err)
			dropped++
			continue
		}
		records = append(records, r)
	}
	if dropped > 0 {
		c.log.Warn("dropped malformed records", "request_id", reqID, "dropped", dropped, "kept", len(records))
	}
	return records, nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

func (c *Client) FetchRange(ctx context.Context, start, end string) ([]models.Reading, error) {
	return c.Fetch(ctx, RangeQuery(start, end))
}

func (c *Client) FetchLatest(ctx context.Context) ([]models.Reading, error) {
	return c.Fetch(ctx, LatestQuery())
}

func (c *Client) FetchLimit(ctx context.Context, n int) ([]models.Reading, error) {
	return c.Fetch(ctx, LimitQuery(n))
}
