// Package supabase implements [backend.Backend] against a hosted Supabase
// project: magic link auth via the GoTrue endpoints and note rows via
// PostgREST. Row-level security on the project scopes every note request to
// the bearer token's user; the client additionally filters by user id.
package supabase

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

	"github.com/cenkalti/backoff/v4"

	"github.com/stolasapp/notebook/internal/backend"
	"github.com/stolasapp/notebook/internal/config"
	"github.com/stolasapp/notebook/internal/observability"
)

const (
	requestTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20
)

// Client is a [backend.Backend] for a Supabase project. It is safe for
// concurrent use.
type Client struct {
	baseURL    *url.URL
	anonKey    string
	httpClient *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New creates a Client for the project described by cfg. A nil metrics is
// allowed.
func New(cfg config.Supabase, logger *slog.Logger, metrics *observability.Metrics) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.URL, "/"))
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid supabase url %q", cfg.URL)
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("supabase anon key is required")
	}
	return &Client{
		baseURL:    base,
		anonKey:    cfg.AnonKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		maxRetries: cfg.MaxRetries,
		newBackOff: defaultBackOff,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Close satisfies the [backend.Backend] interface.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = requestTimeout
	b.Reset()
	return b
}

// APIError is a non-2xx response from the project. It unwraps to the
// [backend.Error] matching its status code.
type APIError struct {
	StatusCode int
	Message    string
}

// Error satisfies [error].
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("supabase: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("supabase: %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto a [backend.Error].
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusBadRequest, e.StatusCode == http.StatusUnprocessableEntity:
		return backend.ErrInvalidArgument
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return backend.ErrUnauthenticated
	case e.StatusCode == http.StatusNotFound:
		return backend.ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return backend.ErrRateLimited
	case e.StatusCode >= http.StatusInternalServerError:
		return backend.ErrUnavailable
	default:
		return backend.ErrInternal
	}
}

func (e *APIError) retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// parseAPIError extracts the message from either a GoTrue or a PostgREST
// error body.
func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	apiErr := &APIError{StatusCode: status}
	if json.Unmarshal(body, &payload) == nil {
		for _, msg := range []string{payload.Msg, payload.Message, payload.ErrorDescription, payload.Error} {
			if msg != "" {
				apiErr.Message = msg
				break
			}
		}
	}
	return apiErr
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	token  string
	body   any
	prefer string
}

func (r request) idempotent() bool {
	return r.method == http.MethodGet || r.method == http.MethodDelete
}

// do executes req, decoding a successful response into out if non-nil.
// Idempotent requests are retried on transient failures.
func (c *Client) do(ctx context.Context, req request, out any) (err error) {
	start := time.Now()
	defer func() { c.metrics.BackendRequest(req.op, start, err) }()

	var payload []byte
	if req.body != nil {
		if payload, err = json.Marshal(req.body); err != nil {
			return fmt.Errorf("%w: encoding %s request: %w", backend.ErrInternal, req.op, err)
		}
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if req.idempotent() {
		policy = backoff.WithMaxRetries(c.newBackOff(), c.maxRetries)
	}
	notify := func(err error, next time.Duration) {
		c.logger.WarnContext(ctx, "retrying supabase request",
			slog.String("op", req.op),
			slog.Duration("next", next),
			slog.Any("error", err),
		)
	}
	return backoff.RetryNotify(func() error {
		return c.attempt(ctx, req, payload, out)
	}, backoff.WithContext(policy, ctx), notify)
}

func (c *Client) attempt(ctx context.Context, req request, payload []byte, out any) error {
	target := c.baseURL.JoinPath(req.path)
	target.RawQuery = req.query.Encode()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), body)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%w: creating %s request: %w", backend.ErrInternal, req.op, err))
	}
	httpReq.Header.Set("Apikey", c.anonKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.prefer != "" {
		httpReq.Header.Set("Prefer", req.prefer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("%w: %s: %w", backend.ErrUnavailable, req.op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %w", backend.ErrUnavailable, req.op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, data)
		if apiErr.retryable() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err = json.Unmarshal(data, out); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: decoding %s response: %w", backend.ErrInternal, req.op, err))
	}
	return nil
}

var _ backend.Backend = (*Client)(nil)
