package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// MaxRetries is the maximum number of retry attempts for retryable errors
	MaxRetries = 3

	// DefaultBackoff is the initial backoff duration for exponential backoff
	DefaultBackoff = 1 * time.Second

	// DefaultTimeout bounds one outbound call, retries included
	DefaultTimeout = 4 * time.Second

	maxErrorBody = 4 << 10
)

// HTTPClient wraps http.Client with a per-call deadline and retry logic
// Automatically injects:
// - X-Correlation-ID: <uuid>
//
// Handles retries for:
// - 429 Too Many Requests: respect Retry-After, exponential backoff,
//   but never wait past the call deadline
type HTTPClient struct {
	httpClient *http.Client
	timeout    time.Duration
	backoff    time.Duration
	logger     zerolog.Logger
}

// HTTPOption configures an HTTPClient
type HTTPOption func(*HTTPClient)

// WithTransport replaces the underlying http.Client
func WithTransport(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithBackoff sets the initial 429 backoff used when Retry-After is absent
func WithBackoff(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		c.backoff = d
	}
}

// WithLogger sets the base logger
func WithLogger(logger zerolog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// NewHTTPClient creates a client whose calls are bounded by timeout
func NewHTTPClient(timeout time.Duration, opts ...HTTPOption) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &HTTPClient{
		httpClient: &http.Client{},
		timeout:    timeout,
		backoff:    DefaultBackoff,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-call deadline
func (c *HTTPClient) Timeout() time.Duration {
	return c.timeout
}

// Do executes an HTTP request with retry logic and hands the final response
// to handle. The timeout covers every attempt and the handler.
func (c *HTTPClient) Do(ctx context.Context, req *http.Request, handle func(*http.Response) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Generate correlation ID for request tracing
	correlationID := uuid.New().String()

	logger := c.logger.With().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Str("correlationId", correlationID).
		Logger()

	resp, err := c.doWithRetry(ctx, req, &logger, correlationID, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return handle(resp)
}

// JSONRequest describes a JSON API call
type JSONRequest struct {
	Service string
	Method  string
	URL     string
	Header  http.Header
	Body    any
}

// DoJSON sends r with a JSON body and decodes a 2xx JSON response into out.
// Non-2xx responses become *StatusError.
func (c *HTTPClient) DoJSON(ctx context.Context, r JSONRequest, out any) error {
	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return err
	}
	for k, v := range r.Header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.Do(ctx, req, func(resp *http.Response) error {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return newStatusError(r.Service, r.URL, resp)
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", r.Service, err)
		}
		return nil
	})
}

func newStatusError(service, url string, resp *http.Response) *StatusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Service:    service,
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
	}
}

// doWithRetry handles retry logic for 429
func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	// Clone request (body may need to be re-sent on retry)
	reqClone, err := cloneRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to clone request: %w", err)
	}

	// Inject correlation ID
	reqClone.Header.Set("X-Correlation-ID", correlationID)

	// Execute request
	start := time.Now()
	resp, err := c.httpClient.Do(reqClone)
	duration := time.Since(start)

	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("HTTP request failed")
		return nil, err
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int("retryCount", retryCount).
		Msg("HTTP request completed")

	if resp.StatusCode == http.StatusTooManyRequests {
		return c.handleRateLimit(ctx, req, resp, logger, correlationID, retryCount)
	}

	// Success or non-retryable error - return as-is
	return resp, nil
}

// handleRateLimit handles 429 Too Many Requests with exponential backoff
func (c *HTTPClient) handleRateLimit(ctx context.Context, req *http.Request, resp *http.Response, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	resp.Body.Close()

	// Parse Retry-After header (seconds or HTTP-date)
	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	if retryCount >= MaxRetries {
		logger.Warn().Msg("Rate limited - max retries exceeded")
		return nil, ErrRateLimited{RetryAfter: int(retryAfter.Seconds())}
	}

	// Apply exponential backoff if no Retry-After header
	if retryAfter == 0 {
		retryAfter = c.backoff * time.Duration(1<<retryCount)
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < retryAfter {
		logger.Warn().Dur("retryAfter", retryAfter).Msg("Rate limited - backoff exceeds call deadline")
		return nil, ErrRateLimited{RetryAfter: int(retryAfter.Seconds())}
	}

	logger.Warn().
		Dur("retryAfter", retryAfter).
		Int("retryCount", retryCount).
		Str("rateLimitRemaining", resp.Header.Get("X-RateLimit-Remaining")).
		Str("rateLimitReset", resp.Header.Get("X-RateLimit-Reset")).
		Msg("Rate limited - backing off")

	// Wait before retry
	timer := time.NewTimer(retryAfter)
	defer timer.Stop()
	select {
	case <-timer.C:
		return c.doWithRetry(ctx, req, logger, correlationID, retryCount+1)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cloneRequest creates a copy of an HTTP request for retry
// Preserves the request body by reading and restoring it
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		// Restore original request body
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}

	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}
	reqClone, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, err
	}

	for k, v := range req.Header {
		reqClone.Header[k] = v
	}

	return reqClone, nil
}

// parseRetryAfter parses the Retry-After header
// Supports both integer seconds and HTTP-date format
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	// Try parsing as integer (seconds)
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP-date
	if t, err := http.ParseTime(value); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			return duration
		}
	}

	// Fallback
	return 0
}
