package dataflows

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const googleNewsBaseURL = "https://news.google.com"

// NewsScraperClient scrapes Google News search results.
type NewsScraperClient struct {
	client  *resty.Client
	cache   *CacheManager
	retry   *RetryConfig
	baseURL string
	now     func() time.Time
}

type ScraperOption func(*NewsScraperClient)

func WithScraperBaseURL(u string) ScraperOption {
	return func(ns *NewsScraperClient) { ns.baseURL = strings.TrimRight(u, "/") }
}

func WithScraperCache(c *CacheManager) ScraperOption {
	return func(ns *NewsScraperClient) { ns.cache = c }
}

func WithScraperRetry(r *RetryConfig) ScraperOption {
	return func(ns *NewsScraperClient) { ns.retry = r }
}

func NewNewsScraperClient(opts ...ScraperOption) *NewsScraperClient {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; CortexTrader/1.0)")

	ns := &NewsScraperClient{
		client:  client,
		retry:   DefaultRetryConfig(),
		baseURL: googleNewsBaseURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ns)
	}
	return ns
}

// NewNewsScraperClientFromConfig caches scraped results for two hours.
func NewNewsScraperClientFromConfig(cfg *Config) *NewsScraperClient {
	cache := NewCacheManager(filepath.Join(cfg.DataCacheDir, "news_scraper"), 2*time.Hour, cfg.CacheEnabled)
	return NewNewsScraperClient(WithScraperCache(cache))
}

func (ns *NewsScraperClient) Name() string { return "google_news" }

// CompanyNews searches Google News for "<symbol> stock" within r.
func (ns *NewsScraperClient) CompanyNews(ctx context.Context, symbol string, r DateRange, limit int) ([]NewsArticle, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	query := NormalizeSymbol(symbol) + " stock"
	if limit <= 0 {
		limit = 20
	}

	key := map[string]any{
		"query": query,
		"from":  r.Start.Format(time.DateOnly),
		"to":    r.End.Format(time.DateOnly),
	}
	var articles []NewsArticle
	if !ns.cache.Get("google_news", "search", key, &articles) {
		searchURL := ns.searchURL(query, r)
		err := WithRetry(ctx, ns.retry, func() error {
			resp, err := ns.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(searchURL)
			if err != nil {
				return err
			}
			body := resp.RawBody()
			defer body.Close()

			if resp.StatusCode() != http.StatusOK {
				err := fmt.Errorf("HTTP error %d when fetching Google News", resp.StatusCode())
				if resp.StatusCode() < 500 && resp.StatusCode() != http.StatusTooManyRequests {
					return Permanent(err)
				}
				return err
			}

			doc, err := goquery.NewDocumentFromReader(body)
			if err != nil {
				return Permanent(fmt.Errorf("failed to parse HTML: %w", err))
			}
			articles = ns.parseResults(doc)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("google news for %s: %w", symbol, err)
		}
		_ = ns.cache.Set("google_news", "search", key, articles)
	}

	if len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

func (ns *NewsScraperClient) searchURL(query string, r DateRange) string {
	if !r.Start.IsZero() && !r.End.IsZero() {
		query += fmt.Sprintf(" after:%s before:%s",
			r.Start.Format(time.DateOnly), r.End.AddDate(0, 0, 1).Format(time.DateOnly))
	}
	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", "en-US")
	v.Set("gl", "US")
	v.Set("ceid", "US:en")
	return ns.baseURL + "/search?" + v.Encode()
}

func (ns *NewsScraperClient) parseResults(doc *goquery.Document) []NewsArticle {
	var articles []NewsArticle
	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("h3").Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("h4").Text())
		}
		if title == "" {
			title = strings.TrimSpace(s.Find("a").Last().Text())
		}
		if title == "" {
			return
		}

		href, _ := s.Find("a").First().Attr("href")
		source := strings.TrimSpace(s.Find("div[data-n-tid]").Text())
		if source == "" {
			source = "Google News"
		}

		timeText := strings.TrimSpace(s.Find("time").Text())
		published := ns.now().Add(-time.Hour)
		if dt, ok := s.Find("time").Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, dt); err == nil {
				published = t
			}
		} else if timeText != "" {
			published = parseRelativeTime(ns.now(), timeText)
		}

		articles = append(articles, NewsArticle{
			Title:       title,
			URL:         ns.absoluteURL(href),
			Source:      source,
			PublishedAt: published,
			Metadata:    map[string]string{"scraper": "google_news", "time_text": timeText},
		})
	})
	return articles
}

// absoluteURL unwraps Google redirect links and resolves relative ones.
func (ns *NewsScraperClient) absoluteURL(href string) string {
	if _, after, ok := strings.Cut(href, "url="); ok {
		if decoded, err := url.QueryUnescape(after); err == nil {
			return decoded
		}
	}
	switch {
	case strings.HasPrefix(href, "./"):
		return ns.baseURL + href[1:]
	case strings.HasPrefix(href, "/"):
		return ns.baseURL + href
	}
	return href
}

var relativeTimeRe = regexp.MustCompile(`(\d+)\s*(minute|hour|day|week)s?\s*ago`)

// parseRelativeTime converts "3 hours ago" style strings; unknown text means an hour ago.
func parseRelativeTime(now time.Time, text string) time.Time {
	text = strings.ToLower(strings.TrimSpace(text))
	switch text {
	case "just now":
		return now
	case "yesterday":
		return now.Add(-24 * time.Hour)
	}

	m := relativeTimeRe.FindStringSubmatch(text)
	if m == nil {
		return now.Add(-time.Hour)
	}
	n, _ := strconv.Atoi(m[1])
	unit := map[string]time.Duration{
		"minute": time.Minute,
		"hour":   time.Hour,
		"day":    24 * time.Hour,
		"week":   7 * 24 * time.Hour,
	}[m[2]]
	return now.Add(-time.Duration(n) * unit)
}
