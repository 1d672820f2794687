package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// mockSink implements Notifier for testing.
type mockSink struct {
	calls int
	err   error
}

func (m *mockSink) Send(context.Context, string, string) error {
	m.calls++
	return m.err
}

func TestWebhook_Send(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p reportPayload
		err := json.NewDecoder(r.Body).Decode(&p)
		require.NoError(t, err)
		assert.Equal(t, "Harvest complete", p.Subject)
		assert.Contains(t, p.Body, "Pages processed")
		assert.False(t, p.Timestamp.IsZero())
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	w := NewWebhook(ts.URL)
	err := w.Send(context.Background(), "Harvest complete", "Pages processed: 12")
	require.NoError(t, err)
	assert.Equal(t, int32(1), received.Load())
}

func TestWebhook_Send_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	w := NewWebhook(ts.URL)
	err := w.Send(context.Background(), "subject", "body")
	assert.Error(t, err)
}

func TestEmail_Send_SkipsWhenUnconfigured(t *testing.T) {
	e := NewEmail(config.EmailConfig{})
	err := e.Send(context.Background(), "subject", "body")
	assert.NoError(t, err) // skipped, not failed
}

func TestEmail_Send_SkipsWithoutRecipients(t *testing.T) {
	e := NewEmail(config.EmailConfig{Host: "smtp.example.com", From: "flora@example.com"})
	err := e.Send(context.Background(), "subject", "body")
	assert.NoError(t, err)
}

func TestEmail_Send_UnreachableHost(t *testing.T) {
	e := NewEmail(config.EmailConfig{
		Host: "127.0.0.1",
		Port: 1,
		From: "flora@example.com",
		To:   []string{"grower@example.com"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := e.Send(ctx, "subject", "body")
	assert.Error(t, err)
}

func TestMulti_Send_AbsorbsSinkFailures(t *testing.T) {
	bad := &mockSink{err: eris.New("sink down")}
	good := &mockSink{}

	m := Multi{bad, good}
	err := m.Send(context.Background(), "subject", "body")
	require.NoError(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls) // later sinks still run
}

func TestNop_Send(t *testing.T) {
	assert.NoError(t, Nop{}.Send(context.Background(), "s", "b"))
}

func TestFromConfig_EmailOnly(t *testing.T) {
	n := FromConfig(&config.Config{})
	m, ok := n.(Multi)
	require.True(t, ok)
	assert.Len(t, m, 1)
}

func TestFromConfig_WithWebhook(t *testing.T) {
	n := FromConfig(&config.Config{
		Webhook: config.WebhookConfig{URL: "http://example.com/hook"},
	})
	m, ok := n.(Multi)
	require.True(t, ok)
	assert.Len(t, m, 2)
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	ts := time.Date(2025, 2, 24, 10, 0, 0, 0, time.UTC) // 4:00 AM CST

	assert.Equal(t, "Monday, Feb 24 at 4:00 AM CST", FormatTime(ts, loc))
}
