// Package phzmapi provides a client for the phzmapi.org USDA hardiness zone
// lookup service.
package phzmapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/verdantlab/flora-cli/internal/httpapi"
)

const defaultBaseURL = "https://phzmapi.org"

// ErrNotFound is returned when the service has no zone for a ZIP code.
var ErrNotFound = errors.New("phzmapi: zip code not found")

// Coordinates is the centroid of the looked-up ZIP code.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ZoneInfo is the hardiness zone for a ZIP code.
type ZoneInfo struct {
	Zone             string      `json:"zone"`
	TemperatureRange string      `json:"temperature_range"`
	Coordinates      Coordinates `json:"coordinates"`
}

// Client looks up USDA hardiness zones by ZIP code.
type Client interface {
	Zone(ctx context.Context, zip string) (*ZoneInfo, error)
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

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a phzmapi client. The service is keyless.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    httpapi.NewHTTPClient(15 * time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Zone(ctx context.Context, zip string) (*ZoneInfo, error) {
	zip = strings.TrimSpace(zip)
	if zip == "" {
		return nil, eris.New("phzmapi: zip code is required")
	}

	reqURL := fmt.Sprintf("%s/%s.json", c.baseURL, zip)
	status, body, err := httpapi.Get(ctx, c.http, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "phzmapi: request failed")
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err := httpapi.StatusError(status, body, reqURL); err != nil {
		return nil, err
	}

	var info ZoneInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, eris.Wrap(err, "phzmapi: unmarshal response")
	}
	if info.Zone == "" {
		return nil, eris.Errorf("phzmapi: empty zone for zip %s", zip)
	}
	return &info, nil
}
