// Package permapeople provides a client for the Permapeople plant database API.
package permapeople

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

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/verdantlab/flora-cli/internal/httpapi"
	"github.com/verdantlab/flora-cli/internal/resilience"
)

const defaultBaseURL = "https://permapeople.org/api"

// Client defines the Permapeople plant database operations.
type Client interface {
	// ListPlants fetches one page of plants, newest-id-last, paginated by
	// the last seen plant ID.
	ListPlants(ctx context.Context, opts ListOpts) (*PlantPage, error)
	// GetPlant fetches a single plant by ID.
	GetPlant(ctx context.Context, id int64) (*Plant, error)
	// Search looks plants up by name.
	Search(ctx context.Context, query string) ([]Plant, error)
}

// ListOpts narrows a ListPlants call. A zero LastID starts from the
// beginning; an empty UpdatedSince disables the incremental filter.
type ListOpts struct {
	LastID       int64
	UpdatedSince string
}

// DataEntry is one key/value attribute attached to a plant.
type DataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Images holds the image URLs attached to a plant.
type Images struct {
	Title string `json:"title"`
	Thumb string `json:"thumb"`
}

// Plant is a single plant record.
type Plant struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	ScientificName string      `json:"scientific_name"`
	Description    string      `json:"description"`
	Slug           string      `json:"slug"`
	Version        int         `json:"version"`
	CreatedAt      string      `json:"created_at"`
	UpdatedAt      string      `json:"updated_at"`
	Images         *Images     `json:"images"`
	Data           []DataEntry `json:"data"`
}

// DataValue returns the value for an attribute key, or "" when absent.
func (p *Plant) DataValue(key string) string {
	for _, d := range p.Data {
		if d.Key == key {
			return d.Value
		}
	}
	return ""
}

// DataMap flattens the attribute list into a map. Later duplicates of a key
// are ignored.
func (p *Plant) DataMap() map[string]string {
	m := make(map[string]string, len(p.Data))
	for _, d := range p.Data {
		if _, ok := m[d.Key]; !ok {
			m[d.Key] = d.Value
		}
	}
	return m
}

// ImageURL returns the best available image URL, preferring the title image.
func (p *Plant) ImageURL() string {
	if p.Images == nil {
		return ""
	}
	if p.Images.Title != "" {
		return p.Images.Title
	}
	return p.Images.Thumb
}

// PlantPage is one page of the plant list.
type PlantPage struct {
	Plants []Plant `json:"plants"`
}

// LastID returns the pagination cursor for the next page, or 0 when the page
// is empty.
func (pp *PlantPage) LastID() int64 {
	if len(pp.Plants) == 0 {
		return 0
	}
	return pp.Plants[len(pp.Plants)-1].ID
}

// APIError is a non-retryable HTTP failure, carrying the status and a body
// snippet for diagnostics.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("permapeople: status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter sets the pacing limiter used between requests.
func WithLimiter(lim *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = lim
	}
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	retry     resilience.RetryConfig
}

// NewClient creates a Permapeople API client. Requests are paced to one per
// second, and both transient failures and 429s are retried with exponential
// backoff before surfacing.
func NewClient(keyID, keySecret string, opts ...Option) Client {
	c := &httpClient{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   defaultBaseURL,
		http:      httpapi.NewHTTPClient(30 * time.Second),
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
			ShouldRetry: func(err error) bool {
				return resilience.IsTransient(err) || resilience.IsRateLimit(err)
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) header() http.Header {
	h := http.Header{}
	h.Set("x-permapeople-key-id", c.keyID)
	h.Set("x-permapeople-key-secret", c.keySecret)
	return h
}

// classify maps a response to the retry taxonomy: 429 → RateLimitError
// (retried here, unlike the Perenual client), 408/5xx → TransientError,
// other non-2xx → *APIError.
func classify(status int, body []byte, rawURL string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return resilience.NewRateLimitError(
			eris.Errorf("permapeople: rate limited (429) by %s", rawURL), status)
	case resilience.IsTransientHTTPStatus(status):
		return resilience.NewTransientError(
			eris.Errorf("permapeople: status %d from %s", status, rawURL), status)
	default:
		return &APIError{StatusCode: status, Body: httpapi.Snippet(body)}
	}
}

func (c *httpClient) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("permapeople", op)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "permapeople: rate limiter wait")
		}
		status, body, err := httpapi.Get(ctx, c.http, reqURL, c.header())
		if err != nil {
			return nil, eris.Wrap(err, "permapeople: request failed")
		}
		if err := classify(status, body, reqURL); err != nil {
			return nil, err
		}
		return body, nil
	})
}

func (c *httpClient) ListPlants(ctx context.Context, opts ListOpts) (*PlantPage, error) {
	q := url.Values{}
	if opts.LastID > 0 {
		q.Set("last_id", fmt.Sprintf("%d", opts.LastID))
	}
	if opts.UpdatedSince != "" {
		q.Set("updated_since", opts.UpdatedSince)
	}

	body, err := c.get(ctx, "list_plants", "/plants", q)
	if err != nil {
		return nil, err
	}

	var result PlantPage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "permapeople: unmarshal plant list")
	}
	return &result, nil
}

func (c *httpClient) GetPlant(ctx context.Context, id int64) (*Plant, error) {
	body, err := c.get(ctx, "get_plant", fmt.Sprintf("/plants/%d", id), nil)
	if err != nil {
		return nil, err
	}

	var result Plant
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "permapeople: unmarshal plant")
	}
	return &result, nil
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Plant, error) {
	payload, err := json.Marshal(map[string]string{"name": query})
	if err != nil {
		return nil, eris.Wrap(err, "permapeople: marshal search request")
	}

	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("permapeople", "search")
	reqURL := c.baseURL + "/search"

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "permapeople: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "permapeople: create search request")
		}
		req.Header = c.header()
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "permapeople: search request failed")
		}
		defer resp.Body.Close() //nolint:errcheck

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "permapeople: read search response")
		}
		if err := classify(resp.StatusCode, respBody, reqURL); err != nil {
			return nil, err
		}
		return respBody, nil
	})
	if err != nil {
		return nil, err
	}

	var result PlantPage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "permapeople: unmarshal search response")
	}
	return result.Plants, nil
}
