package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/water-quality-monitor/internal/models"
	"github.com/kjstillabower/water-quality-monitor/internal/observability"
)

// SensorLog is the remote JSON database the samples are written to and read from.
type SensorLog interface {
	Post(ctx context.Context, sample models.Sample) error
	FetchAll(ctx context.Context) ([]models.Sample, error)
}

var (
	ErrUploadRejected  = errors.New("upload rejected")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrInvalidURL      = errors.New("invalid sensor log URL")
)

// maxErrorBody bounds how much of a failed response is kept for logging.
const maxErrorBody = 4 << 10

// StatusError carries the status and body of a response the endpoint did not accept.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	kind       error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.kind, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return e.kind }

// SensorLogClient talks to a Firebase-style REST collection: POST appends one entry,
// GET returns every entry keyed by push ID. Each call is a single attempt.
type SensorLogClient struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewSensorLogClient returns a client for the collection at rawURL.
func NewSensorLogClient(rawURL string, timeout time.Duration) (*SensorLogClient, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SensorLogClient{
		url:     u.String(),
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Post sends one sample. 200 and 201 are success; anything else is a *StatusError
// wrapping ErrUploadRejected.
func (c *SensorLogClient) Post(ctx context.Context, sample models.Sample) error {
	body, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	resp, err := c.do(ctx, "post", http.MethodPost, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return newStatusError("post", resp, ErrUploadRejected)
}

// FetchAll returns every stored sample in no particular order.
// An empty collection (JSON null) yields an empty slice.
func (c *SensorLogClient) FetchAll(ctx context.Context) ([]models.Sample, error) {
	resp, err := c.do(ctx, "fetch", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError("fetch", resp, ErrUpstreamFailure)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return decodeCollection(raw)
}

func (c *SensorLogClient) do(ctx context.Context, op, method string, body []byte) (*http.Response, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.url, rdr)
	if err != nil {
		cancel()
		observability.SensorLogCallsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		cancel()
		observability.SensorLogCallsTotal.WithLabelValues(op, "error").Inc()
		observability.SensorLogDuration.WithLabelValues(op, "error").Observe(duration)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	status := statusLabel(resp.StatusCode)
	observability.SensorLogCallsTotal.WithLabelValues(op, status).Inc()
	observability.SensorLogDuration.WithLabelValues(op, status).Observe(duration)

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the per-request timeout once the caller is done with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func newStatusError(op string, resp *http.Response, kind error) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b)), kind: kind}
}

// decodeCollection accepts the keyed object the endpoint returns for a collection.
// A bare array is accepted too, which is how sequential numeric keys come back.
func decodeCollection(raw []byte) ([]models.Sample, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []models.Sample{}, nil
	}

	if raw[0] == '[' {
		var arr []*models.Sample
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		out := make([]models.Sample, 0, len(arr))
		for _, s := range arr {
			if s != nil {
				out = append(out, *s)
			}
		}
		return out, nil
	}

	var keyed map[string]models.Sample
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	out := make([]models.Sample, 0, len(keyed))
	for _, s := range keyed {
		out = append(out, s)
	}
	return out, nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
