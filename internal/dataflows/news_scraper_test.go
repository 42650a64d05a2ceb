package dataflows

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `<html><body>
<article>
  <a href="./articles/abc?hl=en">link</a>
  <h3>Apple unveils new chip</h3>
  <div data-n-tid="29">Reuters</div>
  <time datetime="2026-03-01T10:00:00Z">Yesterday</time>
</article>
<article>
  <a href="/read?url=https%3A%2F%2Fexample.com%2Fstory">link</a>
  <h4>Analysts lift targets</h4>
  <time>3 hours ago</time>
</article>
<article><span>no title here</span></article>
</body></html>`

func TestScraperCompanyNews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "AAPL stock after:2026-02-27 before:2026-03-03", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	ns := NewNewsScraperClient(WithScraperBaseURL(srv.URL), WithScraperRetry(fastRetry()))
	ns.now = func() time.Time { return fixedNow }

	got, err := ns.CompanyNews(context.Background(), "aapl", LastDays(fixedNow, 3), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Apple unveils new chip", got[0].Title)
	assert.Equal(t, srv.URL+"/articles/abc?hl=en", got[0].URL)
	assert.Equal(t, "Reuters", got[0].Source)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), got[0].PublishedAt)

	assert.Equal(t, "Analysts lift targets", got[1].Title)
	assert.Equal(t, "https://example.com/story", got[1].URL)
	assert.Equal(t, "Google News", got[1].Source)
	assert.Equal(t, fixedNow.Add(-3*time.Hour), got[1].PublishedAt)
}

func TestScraperLimitAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(searchPage))
	}))
	defer srv.Close()

	ns := NewNewsScraperClient(WithScraperBaseURL(srv.URL))
	got, err := ns.CompanyNews(context.Background(), "AAPL", DateRange{}, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	blocked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer blocked.Close()

	_, err = NewNewsScraperClient(WithScraperBaseURL(blocked.URL), WithScraperRetry(fastRetry())).
		CompanyNews(context.Background(), "AAPL", DateRange{}, 5)
	assert.ErrorContains(t, err, "HTTP error 403")
}

func TestParseRelativeTime(t *testing.T) {
	tests := []struct {
		text string
		want time.Duration
	}{
		{"just now", 0},
		{"5 minutes ago", 5 * time.Minute},
		{"1 hour ago", time.Hour},
		{"2 days ago", 48 * time.Hour},
		{"1 week ago", 7 * 24 * time.Hour},
		{"Yesterday", 24 * time.Hour},
		{"Mar 1", time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, fixedNow.Add(-tt.want), parseRelativeTime(fixedNow, tt.text))
		})
	}
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetry(), func() error {
		calls++
		return errors.New("flaky")
	})
	assert.ErrorContains(t, err, "max retries exceeded: flaky")
	assert.Equal(t, 3, calls)

	calls = 0
	err = WithRetry(context.Background(), fastRetry(), func() error {
		calls++
		return Permanent(errors.New("bad request"))
	})
	assert.EqualError(t, err, "bad request")
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = WithRetry(ctx, &RetryConfig{MaxRetries: 3, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2}, func() error {
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCacheManagerExpiry(t *testing.T) {
	dir := t.TempDir()
	cm := NewCacheManager(dir, time.Hour, true)
	require.NoError(t, cm.Set("src", "m", "key", []string{"a"}))

	var got []string
	require.True(t, cm.Get("src", "m", "key", &got))
	assert.Equal(t, []string{"a"}, got)
	assert.False(t, cm.Get("src", "m", "other", &got))

	expired := NewCacheManager(dir, -time.Second, true)
	assert.False(t, expired.Get("src", "m", "key", &got))
	assert.False(t, cm.Get("src", "m", "key", &got), "expired entries are removed")

	disabled := NewCacheManager(dir, time.Hour, false)
	require.NoError(t, disabled.Set("src", "m", "key", 1))
	assert.False(t, disabled.Get("src", "m", "key", &got))
}
