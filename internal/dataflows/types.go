package dataflows

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexTrader/config"
)

// Config is an alias for the main application config
type Config = config.Config

// PriceBar is one daily bar.
type PriceBar struct {
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// NewsArticle represents a news article
type NewsArticle struct {
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	URL         string            `json:"url"`
	Source      string            `json:"source"`
	PublishedAt time.Time         `json:"published_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Text is the article as the analysts read it: headline first, summary below.
func (a NewsArticle) Text() string {
	if a.Content == "" {
		return a.Title
	}
	return a.Title + "\n" + a.Content
}

// DateRange is an inclusive day range for news queries.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LastDays returns the range covering the days before now, now included.
func LastDays(now time.Time, days int) DateRange {
	return DateRange{Start: now.AddDate(0, 0, -days), End: now}
}

// PriceProvider serves daily bars oldest first.
type PriceProvider interface {
	Name() string
	DailyBars(ctx context.Context, symbol string, days int) ([]PriceBar, error)
}

// QuoteProvider serves the latest traded price.
type QuoteProvider interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

type NewsProvider interface {
	Name() string
	CompanyNews(ctx context.Context, symbol string, r DateRange, limit int) ([]NewsArticle, error)
}

type FundamentalsProvider interface {
	Name() string
	Fundamentals(ctx context.Context, symbol string) (map[string]any, error)
}
