package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kindra-app/kindra-client/pkg/logger"
	"github.com/kindra-app/kindra-client/pkg/metrics"
	"go.uber.org/zap"
)

// Doer defines the interface for executing HTTP requests
// This allows for easy mocking and testing of HTTP calls
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the current bearer credential, if any.
// The session layer implements this; the client never stores tokens itself.
type TokenSource interface {
	Token() (tokenType, accessToken string, ok bool)
}

// Client issues JSON requests against the backend base URL.
//
// It deliberately carries no retry, backoff or per-request timeout logic:
// failures propagate directly to the calling state container.
type Client struct {
	baseURL string
	http    Doer
	tokens  TokenSource

	// onUnauthorized, when set, is invoked once per request after a 401
	// response; returning true causes a single replay of the request
	onUnauthorized func(ctx context.Context) bool
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP transport
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithTokenSource sets the credential seam used to build the
// Authorization header
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUnauthorizedHook wires the optional 401-intercept path
func WithUnauthorizedHook(fn func(ctx context.Context) bool) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// New creates a Client for the given base URL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource installs the credential seam after construction. The
// session layer needs the client to exist before it can register itself.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// SetUnauthorizedHook installs the 401 hook after construction
func (c *Client) SetUnauthorizedHook(fn func(ctx context.Context) bool) {
	c.onUnauthorized = fn
}

// Do issues a JSON request and decodes the response body into out when
// out is non-nil. body is JSON-encoded when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	build := func() (*http.Request, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	return c.execute(ctx, method+" "+path, build, out)
}

// Upload issues a multipart/form-data POST with a single file part.
func (c *Client) Upload(ctx context.Context, path, field, filename string, file io.Reader, out interface{}) error {
	// The whole part is buffered up front; profile pictures are small
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	contentType := writer.FormDataContentType()
	raw := buf.Bytes()

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	return c.execute(ctx, "POST "+path, build, out)
}

// execute runs the request once, replaying at most once after the
// unauthorized hook reports a recovered session.
func (c *Client) execute(ctx context.Context, operation string, build func() (*http.Request, error), out interface{}) error {
	err := c.doOnce(ctx, operation, build, out)

	var apiErr *Error
	if As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized && c.onUnauthorized != nil {
		if c.onUnauthorized(ctx) {
			logger.Debug("Replaying request after token refresh", zap.String("operation", operation))
			return c.doOnce(ctx, operation, build, out)
		}
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, operation string, build func() (*http.Request, error), out interface{}) error {
	start := time.Now()

	req, err := build()
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if c.tokens != nil {
		if tokenType, accessToken, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", tokenType+" "+accessToken)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		duration := metrics.MeasureDuration(start)
		metrics.APIRequestDuration.WithLabelValues(operation, "error").Observe(duration)
		metrics.APIRequestTotal.WithLabelValues(operation, "error").Inc()
		logger.LogAPICall(operation, "error", duration, zap.Error(err))
		return &Error{StatusText: "network error", cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: resp.StatusCode, StatusText: resp.Status, cause: err}
	}

	duration := metrics.MeasureDuration(start)
	status := "success"
	if resp.StatusCode >= http.StatusMultipleChoices {
		status = "error"
	}
	metrics.APIRequestDuration.WithLabelValues(operation, status).Observe(duration)
	metrics.APIRequestTotal.WithLabelValues(operation, status).Inc()
	logger.LogAPICall(operation, status, duration, zap.Int("http_status", resp.StatusCode))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return newError(resp.StatusCode, resp.Status, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Status: resp.StatusCode, StatusText: resp.Status, Body: raw, cause: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return nil
}
