package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Defaults applied when an Options field is zero.
const (
	DefaultRetries = 5
	DefaultTimeout = 5 * time.Second

	// backoffBase is the wait before the first retry; it doubles per attempt.
	backoffBase = 200 * time.Millisecond
)

// retryStatuses are the HTTP status codes treated as transient.
var retryStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Options control a single probe.
type Options struct {
	// TryJSON appends f=json to the query string.
	TryJSON bool

	// Token, when non-empty, is appended as the token query parameter.
	Token string

	// Retries is the maximum number of retry attempts after the first try.
	Retries int

	// Timeout bounds each individual attempt.
	Timeout time.Duration
}

// Outcome is the result of one probe, successful or not.
type Outcome struct {
	// Success is true when an attempt completed with a non-error status.
	Success bool

	// StatusCode is the HTTP status of the last attempt, 0 if none completed.
	StatusCode int

	// Body is the response body of the successful attempt.
	Body []byte

	// RetryCount is the number of retries consumed (0 = first try succeeded).
	RetryCount int

	// Elapsed is the wall time of the successful attempt in seconds.
	Elapsed float64

	// ErrMessage describes the failure when Success is false.
	ErrMessage string
}

// Checker issues probes over a shared transport.
type Checker struct {
	client *http.Client
}

// NewChecker returns a Checker with a shared keep-alive transport.
// Per-attempt timeouts come from Options, not the client.
func NewChecker() *Checker {
	return &Checker{
		client: &http.Client{Transport: &http.Transport{}},
	}
}

// Check probes rawURL with the given query parameters. It never returns an
// error: every failure mode is folded into the Outcome so a single entity's
// bad probe cannot abort the batch.
func (c *Checker) Check(ctx context.Context, rawURL string, params url.Values, opts Options) Outcome {
	retries := opts.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	target, err := buildURL(rawURL, params, opts)
	if err != nil {
		return Outcome{ErrMessage: err.Error()}
	}

	var out Outcome
	for attempt := 0; ; attempt++ {
		body, status, elapsed, err := c.attempt(ctx, target, timeout)
		out.StatusCode = status

		if err == nil && status < 400 {
			out.Success = true
			out.Body = body
			out.Elapsed = elapsed
			out.RetryCount = attempt
			return out
		}

		retryable := err != nil || retryStatuses[status]
		if err != nil {
			out.ErrMessage = err.Error()
		} else {
			out.ErrMessage = fmt.Sprintf("unexpected status %d", status)
		}

		if !retryable || attempt >= retries || ctx.Err() != nil {
			out.RetryCount = attempt
			return out
		}

		wait := backoffBase << uint(attempt)
		slog.Debug("probe: retrying", "url", rawURL, "attempt", attempt+1, "wait", wait)
		select {
		case <-ctx.Done():
			out.RetryCount = attempt
			out.ErrMessage = ctx.Err().Error()
			return out
		case <-time.After(wait):
		}
	}
}

// attempt performs one HTTP GET bounded by timeout and returns the body,
// status code, and elapsed seconds.
func (c *Checker) attempt(ctx context.Context, target string, timeout time.Duration) ([]byte, int, float64, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return nil, resp.StatusCode, elapsed, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, elapsed, nil
}

// buildURL normalizes the scheme and folds Options into the query string.
func buildURL(rawURL string, params url.Values, opts Options) (string, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("probe: invalid url %q: %w", rawURL, err)
	}

	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if opts.TryJSON {
		q.Set("f", "json")
	}
	if opts.Token != "" {
		q.Set("token", opts.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
