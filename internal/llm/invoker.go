package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/media-alt-enhancer/pkg/log"
)

// defaultMaxAttempts is the retry budget when the caller does not override it.
const defaultMaxAttempts = 6

// defaultTimeout bounds each individual HTTP attempt.
const defaultTimeout = 60

// backoffLadder holds the base retry delays indexed by attempt number.
// Attempts beyond its length reuse the final rung.
var backoffLadder = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

// Config holds the configuration for the API invoker
//
// APIKey: Credential sent as a bearer token (required)
// APIURL: Base URL of the chat completion API (required)
// Timeout: Per-attempt request timeout in seconds (default: 60)
type Config struct {
	APIKey  string `json:"api_key"`
	APIURL  string `json:"api_url"`
	Timeout int    `json:"timeout"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	return nil
}

// GetHeaders returns the headers for the API request
func (c *Config) GetHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}
}

// Invoker performs one logical request-with-retry operation against the chat
// completion API. A retryable failure (429 or 5xx) is re-sent after a backoff
// delay until success, a terminal failure, or the attempt budget runs out.
type Invoker struct {
	config      Config
	endpoint    string
	httpClient  *http.Client
	maxAttempts int

	// jitter and sleep are injectable for deterministic tests.
	jitter func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// InvokerOption configures an Invoker
type InvokerOption func(*Invoker)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) InvokerOption {
	return func(inv *Invoker) {
		inv.httpClient = client
	}
}

// WithMaxAttempts overrides the retry budget. Values below 1 fall back to the
// default budget.
func WithMaxAttempts(n int) InvokerOption {
	return func(inv *Invoker) {
		if n >= 1 {
			inv.maxAttempts = n
		}
	}
}

// WithJitter replaces the jitter multiplier source.
func WithJitter(jitter func() float64) InvokerOption {
	return func(inv *Invoker) {
		inv.jitter = jitter
	}
}

// NewInvoker creates a new Invoker with the given configuration
//
// Returns an error if the configuration is invalid
func NewInvoker(config Config, opts ...InvokerOption) (*Invoker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if config.Timeout < 1 {
		config.Timeout = defaultTimeout
	}

	inv := &Invoker{
		config:      config,
		endpoint:    strings.TrimSuffix(config.APIURL, "/") + "/chat/completions",
		maxAttempts: defaultMaxAttempts,
		jitter:      defaultJitter,
		sleep:       sleepContext,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv, nil
}

// Do sends the payload and retries per policy. It returns the raw response
// body on success, or one of the terminal errors: *TransportError,
// *HTTPStatusError, or the context error when the wait is cancelled.
func (inv *Invoker) Do(ctx context.Context, payload ChatRequest) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	attempt := 0
	for {
		attempt++

		body, status, header, err := inv.post(ctx, requestBody)
		if err != nil {
			// No HTTP response obtained: terminal, never retried.
			return nil, &TransportError{Err: err}
		}

		if status >= 200 && status < 300 {
			return body, nil
		}

		if !retryableStatus(status) {
			return nil, &HTTPStatusError{Code: status, Attempts: attempt}
		}

		if attempt >= inv.maxAttempts {
			log.Warn("Request failed with HTTP %d after %d attempts", status, attempt)
			return nil, &HTTPStatusError{Code: status, Attempts: attempt}
		}

		delay := backoffDelay(attempt)
		if hint, ok := parseRetryAfter(header.Get("Retry-After"), time.Now()); ok && hint > delay {
			delay = hint
		}
		delay = time.Duration(float64(delay) * inv.jitter())

		log.Info("Retrying request after %.2f seconds (attempt %d of %d, HTTP %d)",
			delay.Seconds(), attempt+1, inv.maxAttempts, status)

		if err := inv.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// post issues a single HTTP attempt and reads the full response body.
func (inv *Invoker) post(ctx context.Context, body []byte) ([]byte, int, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inv.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, nil, err
	}
	for key, value := range inv.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := inv.httpClient.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, nil, err
	}
	return responseBody, resp.StatusCode, resp.Header, nil
}

// retryableStatus reports whether the status is worth another attempt:
// 429 and the entire 5xx range. Everything else is terminal on first sight.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// backoffDelay returns the ladder value for a 1-based attempt number.
func backoffDelay(attempt int) time.Duration {
	idx := attempt
	if idx > len(backoffLadder) {
		idx = len(backoffLadder)
	}
	return backoffLadder[idx-1]
}

// parseRetryAfter interprets a Retry-After header value: either a number of
// seconds (floored at 0) or an HTTP date converted to an offset from now.
// Unparsable or non-positive date offsets are discarded.
func parseRetryAfter(header string, now time.Time) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}

	if seconds, err := strconv.ParseFloat(header, 64); err == nil {
		if seconds < 0 {
			seconds = 0
		}
		return time.Duration(seconds * float64(time.Second)), true
	}

	if at, err := http.ParseTime(header); err == nil {
		if offset := at.Sub(now); offset > 0 {
			return offset, true
		}
	}
	return 0, false
}

// defaultJitter draws a multiplier uniformly from [1.00, 1.25] to
// desynchronize concurrent retriers.
func defaultJitter() float64 {
	return 1.0 + rand.Float64()*0.25
}

// sleepContext blocks for the duration, honoring context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
