package publisher

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

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

func testRequest() ports.PublishRequest {
	return ports.PublishRequest{
		ArticleID: "a-1",
		Site:      domain.Site{ID: "s-1", URL: "https://blog.example.com", Username: "ed", Secret: "pw"},
		Title:     "Title",
		Content:   "Body",
		Metadata:  domain.PublishDefaults{AuthorID: "7", Tags: []string{"go"}},
	}
}

func fastClient(url string) *Client {
	return NewClient(Options{Endpoint: url, APIKey: "key", BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
}

func TestPublishSendsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/publish", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "a-1", r.Header.Get("Idempotency-Key"))

		var body publishPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pw", body.Site.Password)
		assert.Equal(t, "7", body.AuthorID)
		assert.Equal(t, []string{"go"}, body.Tags)

		_, _ = w.Write([]byte(`{"post_url":"https://blog.example.com/?p=42","post_id":42}`))
	}))
	defer srv.Close()

	resp, err := fastClient(srv.URL).Publish(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example.com/?p=42", resp.PostURL)
	assert.Equal(t, "42", resp.PostID)
}

func TestPublishRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{"post_url":"https://blog.example.com/?p=1","post_id":"1"}`))
		}
	}))
	defer srv.Close()

	resp, err := fastClient(srv.URL).Publish(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "1", resp.PostID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPublishClassifiesFinalStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
		calls  int32
	}{
		{status: http.StatusUnauthorized, want: domain.ErrUnauthorized, calls: 1},
		{status: http.StatusForbidden, want: domain.ErrForbidden, calls: 1},
		{status: http.StatusNotFound, want: domain.ErrNotFound, calls: 1},
		{status: http.StatusInternalServerError, want: domain.ErrServerError, calls: 1},
		{status: http.StatusBadGateway, want: domain.ErrServerError, calls: 1},
		{status: http.StatusServiceUnavailable, want: domain.ErrServerError, calls: 1},
		{status: http.StatusTooManyRequests, want: domain.ErrServerError, calls: 4},
	}
	for _, tt := range tests {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"message":"rejected"}`))
		}))

		_, err := fastClient(srv.URL).Publish(context.Background(), testRequest())
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		assert.Equal(t, tt.calls, calls.Load(), "status %d", tt.status)
		srv.Close()
	}
}

func TestPublishDoesNotResendAfterDroppedConnection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Publish(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrServerError)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPublishTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(Options{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Publish(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestScheduleSendsUTCTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/schedule", r.URL.Path)
		assert.Equal(t, "a-1@2026-03-11T09:30:00Z", r.Header.Get("Idempotency-Key"))
		var body publishPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2026-03-11T09:30:00Z", body.PublishAt)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	when := time.Date(2026, 3, 11, 12, 30, 0, 0, time.FixedZone("MSK", 3*3600))
	err := fastClient(srv.URL).Schedule(context.Background(), ports.ScheduleRequest{PublishRequest: testRequest(), When: when})
	require.NoError(t, err)
}

func TestRetryDelay(t *testing.T) {
	c := NewClient(Options{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	assert.Equal(t, 100*time.Millisecond, c.retryDelay(1, ""))
	assert.Equal(t, 400*time.Millisecond, c.retryDelay(3, ""))
	assert.Equal(t, time.Second, c.retryDelay(10, ""))
	assert.Equal(t, time.Second, c.retryDelay(1, "30"))
	assert.Equal(t, 100*time.Millisecond, c.retryDelay(1, "soon"))
}
