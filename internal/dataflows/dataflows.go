// Package dataflows assembles market snapshots from price, news and fundamentals providers.
package dataflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/logger"
)

// ErrNoPriceData is returned when the price provider has no bars for a ticker.
var ErrNoPriceData = errors.New("no price data")

// Fetcher produces a MarketSnapshot per run. Only price data is mandatory: news and
// fundamentals fall back through their providers and degrade to empty collections.
type Fetcher struct {
	prices       PriceProvider
	quotes       QuoteProvider
	news         []NewsProvider
	fundamentals []FundamentalsProvider
	log          *logger.Logger
	now          func() time.Time
	closers      []func()
}

type Option func(*Fetcher)

func WithQuotes(q QuoteProvider) Option {
	return func(f *Fetcher) { f.quotes = q }
}

// WithNews sets the news providers in fallback order.
func WithNews(providers ...NewsProvider) Option {
	return func(f *Fetcher) { f.news = providers }
}

// WithFundamentals sets the fundamentals providers in fallback order.
func WithFundamentals(providers ...FundamentalsProvider) Option {
	return func(f *Fetcher) { f.fundamentals = providers }
}

func WithLogger(l *logger.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

func NewFetcher(prices PriceProvider, opts ...Option) *Fetcher {
	f := &Fetcher{prices: prices, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.WithComponent("dataflows")
	return f
}

// NewFetcherFromConfig wires the configured price source with Finnhub first and the
// Google News scraper and Yahoo fundamentals as fallbacks.
func NewFetcherFromConfig(cfg *Config, log *logger.Logger) (*Fetcher, error) {
	yahoo := NewYahooFinanceClientFromConfig(cfg)
	finnhub := NewFinnhubClientFromConfig(cfg)
	scraper := NewNewsScraperClientFromConfig(cfg)

	var news []NewsProvider
	var fundamentals []FundamentalsProvider
	if cfg.FinnhubAPIKey != "" {
		news = append(news, finnhub)
		fundamentals = append(fundamentals, finnhub)
	}
	news = append(news, scraper)
	fundamentals = append(fundamentals, yahoo)

	opts := []Option{WithNews(news...), WithFundamentals(fundamentals...), WithLogger(log)}

	switch cfg.PriceSource {
	case "longport":
		lp, err := NewLongportClient(cfg)
		if err != nil {
			return nil, err
		}
		f := NewFetcher(lp, opts...)
		f.closers = append(f.closers, lp.Close)
		return f, nil
	case "", "yahoo":
		return NewFetcher(yahoo, append(opts, WithQuotes(yahoo))...), nil
	}
	return nil, fmt.Errorf("unknown price source %q", cfg.PriceSource)
}

// Close releases provider connections.
func (f *Fetcher) Close() {
	for _, c := range f.closers {
		c()
	}
}

func (f *Fetcher) Fetch(ctx context.Context, ticker string, opts models.FetchOptions) (*models.MarketSnapshot, error) {
	if err := ValidateSymbol(ticker); err != nil {
		return nil, err
	}
	ticker = NormalizeSymbol(ticker)
	log := f.log.WithFields(map[string]any{"ticker": ticker, "price_source": f.prices.Name()})

	bars, err := f.prices.DailyBars(ctx, ticker, opts.PriceDays)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s from %s: %w", ticker, f.prices.Name(), ErrNoPriceData)
	}

	snap := &models.MarketSnapshot{
		Ticker:        ticker,
		PriceHistory:  make([]float64, 0, len(bars)),
		VolumeHistory: make([]float64, 0, len(bars)),
		FetchedAt:     f.now(),
	}
	for _, b := range bars {
		snap.PriceHistory = append(snap.PriceHistory, b.Close.InexactFloat64())
		snap.VolumeHistory = append(snap.VolumeHistory, float64(b.Volume))
	}
	snap.CurrentPrice = snap.PriceHistory[len(snap.PriceHistory)-1]
	if f.quotes != nil {
		if price, err := f.quotes.LatestPrice(ctx, ticker); err != nil {
			log.WithError(err).Warn("latest quote unavailable, using last close")
		} else {
			snap.CurrentPrice = price
		}
	}

	snap.NewsArticles = f.fetchNews(ctx, log, ticker, opts)
	snap.FinancialReports = f.fetchFundamentals(ctx, log, ticker)
	snap.Normalize()

	log.WithFields(map[string]any{
		"bars":     len(snap.PriceHistory),
		"articles": len(snap.NewsArticles),
		"price":    snap.CurrentPrice,
	}).Info("market snapshot fetched")
	return snap, nil
}

func (f *Fetcher) fetchNews(ctx context.Context, log *logger.Logger, ticker string, opts models.FetchOptions) []string {
	r := LastDays(f.now(), opts.NewsDays)
	for _, p := range f.news {
		articles, err := p.CompanyNews(ctx, ticker, r, opts.NewsLimit)
		if err != nil {
			log.WithError(err).WithField("provider", p.Name()).Warn("news provider failed")
			continue
		}
		if len(articles) == 0 {
			continue
		}
		out := make([]string, 0, len(articles))
		for _, a := range articles {
			out = append(out, a.Text())
		}
		if opts.NewsLimit > 0 && len(out) > opts.NewsLimit {
			out = out[:opts.NewsLimit]
		}
		return out
	}
	return []string{}
}

func (f *Fetcher) fetchFundamentals(ctx context.Context, log *logger.Logger, ticker string) map[string]any {
	for _, p := range f.fundamentals {
		data, err := p.Fundamentals(ctx, ticker)
		if err != nil {
			log.WithError(err).WithField("provider", p.Name()).Warn("fundamentals provider failed")
			continue
		}
		if len(data) > 0 {
			data["source"] = p.Name()
			return data
		}
	}
	return map[string]any{}
}
