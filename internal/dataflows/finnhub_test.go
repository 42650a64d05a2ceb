package dataflows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestFinnhubCompanyNews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company-news", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2026-02-27", r.URL.Query().Get("from"))
		assert.Equal(t, "2026-03-02", r.URL.Query().Get("to"))
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(`[
			{"headline":"Older","summary":"a","datetime":1700000000,"source":"Reuters","id":1},
			{"headline":"","summary":"skipped","datetime":1700000500},
			{"headline":"Newer","summary":"b","datetime":1700001000,"source":"CNBC","id":2},
			{"headline":"Oldest","datetime":1600000000,"id":3}
		]`))
	}))
	defer srv.Close()

	fc := NewFinnhubClient("secret", WithFinnhubBaseURL(srv.URL), WithFinnhubRetry(fastRetry()))
	got, err := fc.CompanyNews(context.Background(), "aapl", LastDays(fixedNow, 3), 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Newer", got[0].Title)
	assert.Equal(t, "CNBC", got[0].Source)
	assert.Equal(t, "Older", got[1].Title)
	assert.Equal(t, "1", got[1].Metadata["id"])
}

func TestFinnhubRequiresKey(t *testing.T) {
	_, err := NewFinnhubClient("").CompanyNews(context.Background(), "AAPL", LastDays(fixedNow, 1), 5)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = NewFinnhubClient("").Fundamentals(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestFinnhubRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "all", r.URL.Query().Get("metric"))
		_, _ = w.Write([]byte(`{"metric":{"peTTM":28.4,"52WeekHigh":199.6,"note":"text"}}`))
	}))
	defer srv.Close()

	fc := NewFinnhubClient("k", WithFinnhubBaseURL(srv.URL), WithFinnhubRetry(fastRetry()))
	got, err := fc.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, map[string]any{"peTTM": 28.4, "52WeekHigh": 199.6}, got)
}

func TestFinnhubDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	fc := NewFinnhubClient("bad", WithFinnhubBaseURL(srv.URL), WithFinnhubRetry(fastRetry()))
	_, err := fc.CompanyNews(context.Background(), "AAPL", LastDays(fixedNow, 1), 5)
	assert.ErrorContains(t, err, "API error 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFinnhubCachesNews(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"headline":"Cached","datetime":1700000000}]`))
	}))
	defer srv.Close()

	cache := NewCacheManager(t.TempDir(), time.Hour, true)
	fc := NewFinnhubClient("k", WithFinnhubBaseURL(srv.URL), WithFinnhubCache(cache))
	for range 2 {
		got, err := fc.CompanyNews(context.Background(), "AAPL", LastDays(fixedNow, 1), 5)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Cached", got[0].Title)
	}
	assert.Equal(t, int32(1), calls.Load())
}
