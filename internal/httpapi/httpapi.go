// Package httpapi provides shared plumbing for the JSON APIs the harvest
// clients talk to: request execution with status classification and an
// adaptive per-host rate limiter.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/verdantlab/flora-cli/internal/resilience"
)

// snippetLen bounds how much of an error body ends up in error messages.
const snippetLen = 200

// NewHTTPClient returns an http.Client tuned for polite API polling.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Get executes a GET request with the given headers and returns the status
// code and fully-read body. Network failures are returned as-is so callers
// can classify them with resilience.IsTransient.
func Get(ctx context.Context, hc *http.Client, rawURL string, header http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, eris.Wrap(err, "httpapi: create request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, eris.Wrap(err, "httpapi: read response body")
	}

	return resp.StatusCode, body, nil
}

// StatusError maps a non-2xx status to the matching error class: 429 becomes
// a resilience.RateLimitError that surfaces to the coordinator unretried,
// 408 and 5xx become resilience.TransientError, and everything else is a
// permanent error carrying a body snippet. Returns nil for 2xx.
func StatusError(status int, body []byte, rawURL string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return resilience.NewRateLimitError(
			eris.Errorf("httpapi: rate limited (429) by %s", rawURL), status)
	case resilience.IsTransientHTTPStatus(status):
		return resilience.NewTransientError(
			eris.Errorf("httpapi: status %d from %s: %s", status, rawURL, Snippet(body)), status)
	default:
		return eris.Errorf("httpapi: status %d from %s: %s", status, rawURL, Snippet(body))
	}
}

// Snippet returns the leading portion of an error body for log and error
// messages, so a misbehaving upstream cannot flood them.
func Snippet(body []byte) string {
	if len(body) > snippetLen {
		return string(body[:snippetLen])
	}
	return string(body)
}
