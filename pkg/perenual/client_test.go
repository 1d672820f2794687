package perenual

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/verdantlab/flora-cli/internal/httpapi"
	"github.com/verdantlab/flora-cli/internal/resilience"
)

func fastOpts(srvURL string) []Option {
	return []Option{
		WithBaseURL(srvURL),
		WithLimiter(httpapi.NewAdaptiveLimiter(rate.Limit(1000), 100)),
		WithRetryConfig(resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 1 * time.Millisecond,
			MaxBackoff:     10 * time.Millisecond,
			Multiplier:     2.0,
		}),
	}
}

func TestSpeciesList_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/species-list", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{
					"id": 101,
					"common_name": "Tomato",
					"scientific_name": ["Solanum lycopersicum"],
					"cycle": "Annual",
					"default_image": {"original_url": "https://img/orig.jpg", "regular_url": "https://img/reg.jpg"}
				},
				{
					"id": 102,
					"common_name": "Basil",
					"scientific_name": "Ocimum basilicum",
					"default_image": null
				}
			],
			"current_page": 3,
			"last_page": 12,
			"per_page": 30,
			"total": 341
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", fastOpts(srv.URL)...)
	page, err := client.SpeciesList(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, 3, page.CurrentPage)
	assert.Equal(t, 12, page.LastPage)
	assert.Equal(t, 341, page.Total)
	require.Len(t, page.Data, 2)

	assert.Equal(t, int64(101), page.Data[0].ID)
	assert.Equal(t, "Tomato", page.Data[0].CommonName)
	assert.Equal(t, "Solanum lycopersicum", page.Data[0].PrimaryScientificName())
	assert.Equal(t, "https://img/orig.jpg", page.Data[0].ImageURL())

	// scientific_name arrives as a bare string here.
	assert.Equal(t, "Ocimum basilicum", page.Data[1].PrimaryScientificName())
	assert.Equal(t, "", page.Data[1].ImageURL())
}

func TestSpeciesList_RateLimit429_NotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"too many requests"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", fastOpts(srv.URL)...)
	_, err := client.SpeciesList(context.Background(), 1)

	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
	assert.Equal(t, int32(1), calls.Load(), "quota errors must surface without retries")
}

func TestSpeciesList_PremiumMarker_IsRateLimit(t *testing.T) {
	t.Parallel()

	// The free tier sometimes reports quota exhaustion with a 200 status.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Upgrade Plan To Premium Access https://perenual.com/subscription-api-pricing"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", fastOpts(srv.URL)...)
	_, err := client.SpeciesList(context.Background(), 1)

	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
}

func TestSpeciesList_RetriesServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data": [], "current_page": 1, "last_page": 1, "total": 0}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", fastOpts(srv.URL)...)
	page, err := client.SpeciesList(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, page.Data)
}

func TestSpeciesList_PermanentError_NotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid key"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", fastOpts(srv.URL)...)
	_, err := client.SpeciesList(context.Background(), 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSpeciesList_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("test-key", fastOpts(srv.URL)...)
	_, err := client.SpeciesList(context.Background(), 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestSpeciesDetail_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/species/details/101", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		json.NewEncoder(w).Encode(Species{
			ID:             101,
			CommonName:     "Tomato",
			ScientificName: NameList{"Solanum lycopersicum"},
			Watering:       "Frequent",
			Sunlight:       NameList{"full sun"},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", fastOpts(srv.URL)...)
	sp, err := client.SpeciesDetail(context.Background(), 101)

	require.NoError(t, err)
	assert.Equal(t, int64(101), sp.ID)
	assert.Equal(t, "Frequent", sp.Watering)
	assert.Equal(t, NameList{"full sun"}, sp.Sunlight)
}

func TestSpeciesDetail_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", fastOpts(srv.URL)...)
	_, err := client.SpeciesDetail(ctx, 101)
	require.Error(t, err)
}

func TestNameList_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want NameList
	}{
		{"array", `["Solanum lycopersicum", "Lycopersicon esculentum"]`, NameList{"Solanum lycopersicum", "Lycopersicon esculentum"}},
		{"bare string", `"Ocimum basilicum"`, NameList{"Ocimum basilicum"}},
		{"null", `null`, nil},
		{"empty array", `[]`, NameList{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got NameList
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageURL_PrefersOriginal(t *testing.T) {
	t.Parallel()

	sp := Species{DefaultImage: &Image{OriginalURL: "o.jpg", RegularURL: "r.jpg"}}
	assert.Equal(t, "o.jpg", sp.ImageURL())

	sp = Species{DefaultImage: &Image{RegularURL: "r.jpg"}}
	assert.Equal(t, "r.jpg", sp.ImageURL())

	sp = Species{}
	assert.Equal(t, "", sp.ImageURL())
}
