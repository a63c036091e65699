package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/polifeed/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerRequestID     = "X-Request-ID"
)

// Config holds common client configuration
type Config struct {
	BaseURL    string
	Headers    map[string]string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8000",
		Headers: map[string]string{
			headerContentType: "application/json",
		},
		Timeout: 30 * time.Second,
	}
}

// Client issues requests against the backend. A Client is an immutable
// capability: WithAuthToken returns a new value and never changes the
// receiver, so requests already in flight keep the headers they were built with.
type Client struct {
	baseURL    string
	headers    http.Header
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a client from config, filling unset fields from DefaultConfig.
func New(config Config) (*Client, error) {
	defaults := DefaultConfig()

	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	headers := make(http.Header)
	for k, v := range defaults.Headers {
		headers.Set(k, v)
	}
	for k, v := range config.Headers {
		headers.Set(k, v)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = NewHTTPClient(TransportOptions{})
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		headers:    headers,
		timeout:    config.Timeout,
		httpClient: httpClient,
	}, nil
}

// WithAuthToken returns a copy of the client carrying a bearer token. An empty
// token returns a copy with no Authorization header at all.
func (c *Client) WithAuthToken(token string) *Client {
	cp := *c
	cp.headers = c.headers.Clone()

	if token == "" {
		cp.headers.Del(headerAuthorization)
	} else {
		cp.headers.Set(headerAuthorization, "Bearer "+token)
	}

	return &cp
}

// AuthToken returns the bearer token carried by this client, if any.
func (c *Client) AuthToken() string {
	return strings.TrimPrefix(c.headers.Get(headerAuthorization), "Bearer ")
}

// HasAuthToken reports whether an Authorization header is attached.
func (c *Client) HasAuthToken() bool {
	return c.headers.Get(headerAuthorization) != ""
}

// Timeout returns the per request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestOption customises a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers http.Header
}

// WithHeader overrides a header for one request.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.headers.Set(key, value)
	}
}

// WithHeaders overrides several headers for one request.
func WithHeaders(headers map[string]string) RequestOption {
	return func(o *requestOptions) {
		for k, v := range headers {
			o.headers.Set(k, v)
		}
	}
}

// Get issues a GET request. params are serialised into the query string;
// no body is sent.
func (c *Client) Get(ctx context.Context, endpoint string, params Params, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, endpoint, params, nil, out, opts)
}

// Post issues a POST request with data encoded as JSON.
func (c *Client) Post(ctx context.Context, endpoint string, data, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPost, endpoint, nil, data, out, opts)
}

// Put issues a PUT request with data encoded as JSON.
func (c *Client) Put(ctx context.Context, endpoint string, data, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPut, endpoint, nil, data, out, opts)
}

// Patch issues a PATCH request with data encoded as JSON.
func (c *Client) Patch(ctx context.Context, endpoint string, data, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPatch, endpoint, nil, data, out, opts)
}

// Delete issues a DELETE request with data encoded as JSON.
func (c *Client) Delete(ctx context.Context, endpoint string, data, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodDelete, endpoint, nil, data, out, opts)
}

func (c *Client) do(ctx context.Context, method, endpoint string, params Params, data, out any, opts []RequestOption) error {
	started := time.Now()

	status, err := c.send(ctx, method, endpoint, params, data, out, opts)
	recordRequest(ctx, method, status, err, time.Since(started))

	if err != nil {
		log.Debug().
			Err(err).
			Str("method", method).
			Str("endpoint", endpoint).
			Int("status", status).
			Msg("api request failed")
	}

	return err
}

// send performs one request and reports the response status, or zero when no
// response was received.
func (c *Client) send(ctx context.Context, method, endpoint string, params Params, data, out any, opts []RequestOption) (int, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, errRequestTimeout)
	defer cancel()

	target := c.url(endpoint)
	if method == http.MethodGet {
		if qs := params.Encode(); qs != "" {
			target += "?" + qs
		}
	}

	var body io.Reader
	if method != http.MethodGet && data != nil {
		buf, err := json.Marshal(data)
		if err != nil {
			return 0, c.normalize(ctx, fmt.Errorf("failed to encode request body: %w", err))
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, c.normalize(ctx, err)
	}
	req.Header = c.requestHeaders(opts)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, c.normalize(ctx, err)
	}
	defer resp.Body.Close()

	// the whole body is read before anything is decoded into out, so a response
	// cut off by the timer never leaves out half written
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, c.normalize(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, errorFromBody(resp.StatusCode, resp.Status, payload)
	}

	if resp.StatusCode == http.StatusNoContent || out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return resp.StatusCode, c.normalize(ctx, fmt.Errorf("failed to decode response: %w", err))
	}

	return resp.StatusCode, nil
}

func (c *Client) requestHeaders(opts []RequestOption) http.Header {
	ro := requestOptions{headers: make(http.Header)}
	for _, opt := range opts {
		opt(&ro)
	}

	headers := c.headers.Clone()
	for k, v := range ro.headers {
		headers[k] = v
	}

	if headers.Get(headerRequestID) == "" {
		headers.Set(headerRequestID, uuid.NewString())
	}

	return headers
}

func (c *Client) url(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

func recordRequest(ctx context.Context, method string, status int, err error, elapsed time.Duration) {
	m := telemetry.GetMetrics()
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	)

	m.APIRequestsTotal.Add(ctx, 1, attrs)
	m.APIRequestDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	if err != nil {
		m.APIRequestErrorsTotal.Add(ctx, 1, attrs)
	}
}
