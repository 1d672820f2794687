// Package perenual provides a client for the Perenual plant species API.
package perenual

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/verdantlab/flora-cli/internal/httpapi"
	"github.com/verdantlab/flora-cli/internal/resilience"
)

const defaultBaseURL = "https://perenual.com/api"

// premiumMarker appears in response bodies once the free-tier daily quota is
// exhausted, sometimes with a 200 status. It is treated the same as a 429.
const premiumMarker = "Upgrade Plan To Premium Access"

// Client defines the Perenual species catalog operations.
type Client interface {
	// SpeciesList fetches one page of the species list.
	SpeciesList(ctx context.Context, page int) (*SpeciesPage, error)
	// SpeciesDetail fetches the detail record for a single species.
	SpeciesDetail(ctx context.Context, id int64) (*Species, error)
}

// NameList tolerates the API returning either a JSON array of strings or a
// bare string for name fields.
type NameList []string

// UnmarshalJSON implements json.Unmarshaler.
func (n *NameList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*n = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NameList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*n = NameList(list)
	return nil
}

// First returns the first name, or "" when the list is empty.
func (n NameList) First() string {
	if len(n) == 0 {
		return ""
	}
	return n[0]
}

// Image holds the image URL variants attached to a species.
type Image struct {
	OriginalURL string `json:"original_url"`
	RegularURL  string `json:"regular_url"`
	MediumURL   string `json:"medium_url"`
	SmallURL    string `json:"small_url"`
	Thumbnail   string `json:"thumbnail"`
}

// Species is a single species record from the list or detail endpoints.
type Species struct {
	ID             int64    `json:"id"`
	CommonName     string   `json:"common_name"`
	ScientificName NameList `json:"scientific_name"`
	OtherName      NameList `json:"other_name"`
	Cycle          string   `json:"cycle"`
	Watering       string   `json:"watering"`
	Sunlight       NameList `json:"sunlight"`
	DefaultImage   *Image   `json:"default_image"`
}

// PrimaryScientificName returns the first scientific name, or "".
func (s *Species) PrimaryScientificName() string {
	return s.ScientificName.First()
}

// ImageURL returns the best available image URL, preferring the original.
func (s *Species) ImageURL() string {
	if s.DefaultImage == nil {
		return ""
	}
	if s.DefaultImage.OriginalURL != "" {
		return s.DefaultImage.OriginalURL
	}
	return s.DefaultImage.RegularURL
}

// SpeciesPage is one page of the paginated species list.
type SpeciesPage struct {
	Data        []Species `json:"data"`
	To          int       `json:"to"`
	PerPage     int       `json:"per_page"`
	CurrentPage int       `json:"current_page"`
	From        int       `json:"from"`
	LastPage    int       `json:"last_page"`
	Total       int       `json:"total"`
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
func WithLimiter(lim *httpapi.AdaptiveLimiter) Option {
	return func(c *httpClient) {
		c.limiter = lim
	}
}

// WithRetryConfig overrides the transient-failure retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *httpapi.AdaptiveLimiter
	retry   resilience.RetryConfig
}

// NewClient creates a Perenual API client. Requests are paced by an adaptive
// limiter that backs off after 429s, and transient failures are retried with
// exponential backoff. Rate-limit errors are never retried here: the harvest
// engine owns quota decisions.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    httpapi.NewHTTPClient(30 * time.Second),
		limiter: httpapi.NewAdaptiveLimiter(rate.Limit(1), 1),
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get executes one paced request against path with the key attached, and
// classifies the outcome. Quota exhaustion (429 or the premium-plan marker in
// the body) surfaces as a resilience.RateLimitError.
func (c *httpClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("key", c.apiKey)
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "perenual: rate limiter wait")
	}

	status, body, err := httpapi.Get(ctx, c.http, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "perenual: request failed")
	}

	if status == http.StatusTooManyRequests || strings.Contains(string(body), premiumMarker) {
		c.limiter.OnRateLimit()
		return nil, resilience.NewRateLimitError(
			eris.Errorf("perenual: daily quota exhausted (status %d)", status), status)
	}
	if err := httpapi.StatusError(status, body, reqURL); err != nil {
		return nil, err
	}

	c.limiter.OnSuccess()
	return body, nil
}

func (c *httpClient) SpeciesList(ctx context.Context, page int) (*SpeciesPage, error) {
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("perenual", "species_list")

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		q := url.Values{}
		q.Set("page", fmt.Sprintf("%d", page))
		return c.get(ctx, "/species-list", q)
	})
	if err != nil {
		return nil, err
	}

	var result SpeciesPage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "perenual: unmarshal species list")
	}
	return &result, nil
}

func (c *httpClient) SpeciesDetail(ctx context.Context, id int64) (*Species, error) {
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("perenual", "species_detail")

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, fmt.Sprintf("/species/details/%d", id), nil)
	})
	if err != nil {
		return nil, err
	}

	var result Species
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "perenual: unmarshal species detail")
	}
	return &result, nil
}
