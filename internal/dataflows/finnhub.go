package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

var ErrMissingAPIKey = errors.New("API key not configured")

// FinnhubClient serves company news and basic financials from Finnhub.
type FinnhubClient struct {
	client *resty.Client
	cache  *CacheManager
	retry  *RetryConfig
	apiKey string
}

type FinnhubOption func(*FinnhubClient)

// WithFinnhubBaseURL points the client at another host, e.g. a test server.
func WithFinnhubBaseURL(u string) FinnhubOption {
	return func(fc *FinnhubClient) { fc.client.SetBaseURL(u) }
}

func WithFinnhubCache(c *CacheManager) FinnhubOption {
	return func(fc *FinnhubClient) { fc.cache = c }
}

func WithFinnhubRetry(r *RetryConfig) FinnhubOption {
	return func(fc *FinnhubClient) { fc.retry = r }
}

func NewFinnhubClient(apiKey string, opts ...FinnhubOption) *FinnhubClient {
	client := resty.New().
		SetBaseURL(finnhubBaseURL).
		SetTimeout(30 * time.Second)

	fc := &FinnhubClient{
		client: client,
		retry:  DefaultRetryConfig(),
		apiKey: apiKey,
	}
	for _, opt := range opts {
		opt(fc)
	}
	return fc
}

// NewFinnhubClientFromConfig caches news for six hours under DataCacheDir.
func NewFinnhubClientFromConfig(cfg *Config) *FinnhubClient {
	cache := NewCacheManager(filepath.Join(cfg.DataCacheDir, "finnhub"), 6*time.Hour, cfg.CacheEnabled)
	return NewFinnhubClient(cfg.FinnhubAPIKey, WithFinnhubCache(cache))
}

func (fc *FinnhubClient) Name() string { return "finnhub" }

// FinnhubNews represents news from Finnhub API
type FinnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// CompanyNews returns up to limit articles, newest first.
func (fc *FinnhubClient) CompanyNews(ctx context.Context, symbol string, r DateRange, limit int) ([]NewsArticle, error) {
	if fc.apiKey == "" {
		return nil, fmt.Errorf("finnhub: %w", ErrMissingAPIKey)
	}
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	params := map[string]string{
		"symbol": symbol,
		"from":   r.Start.Format(time.DateOnly),
		"to":     r.End.Format(time.DateOnly),
	}

	var articles []NewsArticle
	if !fc.cache.Get("finnhub", "company_news", params, &articles) {
		var raw []FinnhubNews
		if err := fc.get(ctx, "/company-news", params, &raw); err != nil {
			return nil, fmt.Errorf("finnhub news for %s: %w", symbol, err)
		}

		sort.SliceStable(raw, func(i, j int) bool { return raw[i].DateTime > raw[j].DateTime })
		articles = make([]NewsArticle, 0, len(raw))
		for _, n := range raw {
			if n.Headline == "" {
				continue
			}
			articles = append(articles, NewsArticle{
				Title:       n.Headline,
				Content:     n.Summary,
				URL:         n.URL,
				Source:      n.Source,
				PublishedAt: time.Unix(n.DateTime, 0).UTC(),
				Metadata: map[string]string{
					"category": n.Category,
					"related":  n.Related,
					"id":       strconv.FormatInt(n.ID, 10),
				},
			})
		}
		_ = fc.cache.Set("finnhub", "company_news", params, articles)
	}

	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

// Fundamentals returns the numeric entries of /stock/metric.
func (fc *FinnhubClient) Fundamentals(ctx context.Context, symbol string) (map[string]any, error) {
	if fc.apiKey == "" {
		return nil, fmt.Errorf("finnhub: %w", ErrMissingAPIKey)
	}
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	params := map[string]string{"symbol": symbol, "metric": "all"}
	var out map[string]any
	if fc.cache.Get("finnhub", "basic_financials", params, &out) {
		return out, nil
	}

	var raw struct {
		Metric map[string]any `json:"metric"`
	}
	if err := fc.get(ctx, "/stock/metric", params, &raw); err != nil {
		return nil, fmt.Errorf("finnhub financials for %s: %w", symbol, err)
	}

	out = make(map[string]any, len(raw.Metric))
	for k, v := range raw.Metric {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("finnhub financials for %s: empty response", symbol)
	}
	_ = fc.cache.Set("finnhub", "basic_financials", params, out)
	return out, nil
}

// get retries transport errors and 5xx/429 responses; other statuses fail at once.
func (fc *FinnhubClient) get(ctx context.Context, path string, params map[string]string, out any) error {
	return WithRetry(ctx, fc.retry, func() error {
		resp, err := fc.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetQueryParam("token", fc.apiKey).
			Get(path)
		if err != nil {
			return err
		}

		switch code := resp.StatusCode(); {
		case code == http.StatusTooManyRequests || code >= 500:
			return fmt.Errorf("API error %d", code)
		case code != http.StatusOK:
			return Permanent(fmt.Errorf("API error %d: %s", code, resp.String()))
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return Permanent(fmt.Errorf("failed to parse response: %w", err))
		}
		return nil
	})
}
