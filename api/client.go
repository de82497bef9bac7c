// Package api implements the HTTP side of the chat backend: the streaming
// chat endpoint and the chat history endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/chatstream"
	"github.com/fwojciec/chatstream/stream"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	streamPath  = "/api/chat/stream"
	historyPath = "/api/chat/history"

	defaultBaseURL       = "http://localhost:8000"
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
)

// Interface compliance checks.
var (
	_ stream.Transport          = (*Client)(nil)
	_ chatstream.HistoryFetcher = (*Client)(nil)
)

// Client talks to the chat backend.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokens        TokenSource
	logger        *zap.Logger
	retryAttempts int
	retryDelay    time.Duration
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the API base URL. Useful for testing with httptest.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client. The client must not set a
// response timeout shorter than the stream timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetry sets how history requests are retried: up to attempts tries in
// total, delay apart. Streaming requests are never retried.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// New creates a new [Client].
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:       defaultBaseURL,
		httpClient:    http.DefaultClient,
		tokens:        StaticToken(""),
		logger:        zap.NewNop(),
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open posts req to the streaming endpoint and returns the event stream
// body. A non-2xx response is returned as an [*APIError].
func (c *Client) Open(ctx context.Context, req chatstream.ChatRequest) (io.ReadCloser, error) {
	if req.DocumentIDs == nil {
		req.DocumentIDs = []string{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, parseHTTPError(resp)
	}
	return resp.Body, nil
}

// newRequest builds an authenticated request. The request ID is taken from
// ctx when present so logs on both sides line up.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("api: token: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := chatstream.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	return httpReq, nil
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api: HTTP %d: %s", e.StatusCode, e.Detail)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("api: HTTP %d (failed to read body: %w)", resp.StatusCode, err)
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Detail: string(bytes.TrimSpace(body))}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && len(er.Detail) > 0 {
		var detail string
		if json.Unmarshal(er.Detail, &detail) == nil {
			apiErr.Detail = detail
		} else {
			apiErr.Detail = string(er.Detail)
		}
	}
	return apiErr
}
