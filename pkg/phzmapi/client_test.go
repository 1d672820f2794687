package phzmapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZone_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/78701.json", r.URL.Path)
		w.Write([]byte(`{"zone":"8b","temperature_range":"15 to 20","coordinates":{"lat":30.27,"lon":-97.74}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	info, err := client.Zone(context.Background(), "78701")

	require.NoError(t, err)
	assert.Equal(t, "8b", info.Zone)
	assert.Equal(t, "15 to 20", info.TemperatureRange)
	assert.InDelta(t, 30.27, info.Coordinates.Lat, 0.001)
	assert.InDelta(t, -97.74, info.Coordinates.Lon, 0.001)
}

func TestZone_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Zone(context.Background(), "00000")

	require.ErrorIs(t, err, ErrNotFound)
}

func TestZone_EmptyZip(t *testing.T) {
	t.Parallel()

	client := NewClient()
	_, err := client.Zone(context.Background(), "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestZone_EmptyZoneRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Zone(context.Background(), "78701")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty zone")
}
