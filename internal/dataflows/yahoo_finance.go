package dataflows

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/piquette/finance-go/quote"
)

// YahooFinanceClient serves prices, quotes and fundamentals from Yahoo Finance.
type YahooFinanceClient struct {
	cache *CacheManager
	retry *RetryConfig
	now   func() time.Time
}

func NewYahooFinanceClient(cache *CacheManager) *YahooFinanceClient {
	return &YahooFinanceClient{cache: cache, retry: DefaultRetryConfig(), now: time.Now}
}

// NewYahooFinanceClientFromConfig caches bars for a day under DataCacheDir.
func NewYahooFinanceClientFromConfig(cfg *Config) *YahooFinanceClient {
	return NewYahooFinanceClient(NewCacheManager(filepath.Join(cfg.DataCacheDir, "yahoo_finance"), 24*time.Hour, cfg.CacheEnabled))
}

func (yf *YahooFinanceClient) Name() string { return "yahoo" }

// DailyBars returns the daily bars of the last days calendar days, oldest first.
func (yf *YahooFinanceClient) DailyBars(ctx context.Context, symbol string, days int) ([]PriceBar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)
	end := yf.now()
	start := end.AddDate(0, 0, -days)

	key := map[string]any{"symbol": symbol, "start": start.Format(time.DateOnly), "end": end.Format(time.DateOnly)}
	var bars []PriceBar
	if yf.cache.Get("yahoo", "historical", key, &bars) {
		return bars, nil
	}

	err := WithRetry(ctx, yf.retry, func() error {
		iter := chart.Get(&chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		})

		bars = bars[:0]
		for iter.Next() {
			bar := iter.Bar()
			bars = append(bars, PriceBar{
				Symbol: symbol,
				Date:   time.Unix(int64(bar.Timestamp), 0).UTC(),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}
		return iter.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo history for %s: %w", symbol, err)
	}

	_ = yf.cache.Set("yahoo", "historical", key, bars)
	return bars, nil
}

func (yf *YahooFinanceClient) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var q *finance.Quote
	err := WithRetry(ctx, yf.retry, func() error {
		var err error
		q, err = quote.Get(NormalizeSymbol(symbol))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("yahoo quote for %s: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return 0, fmt.Errorf("yahoo quote for %s: no price", symbol)
	}
	return q.RegularMarketPrice, nil
}

// Fundamentals returns valuation ratios from the equity quote.
func (yf *YahooFinanceClient) Fundamentals(ctx context.Context, symbol string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	var out map[string]any
	if yf.cache.Get("yahoo", "fundamentals", symbol, &out) {
		return out, nil
	}

	e, err := equity.Get(symbol)
	if err != nil {
		return nil, fmt.Errorf("yahoo fundamentals for %s: %w", symbol, err)
	}
	if e == nil {
		return nil, fmt.Errorf("yahoo fundamentals for %s: not found", symbol)
	}

	out = map[string]any{
		"company_name":        e.LongName,
		"exchange":            e.FullExchangeName,
		"currency":            e.CurrencyID,
		"market_cap":          float64(e.MarketCap),
		"trailing_pe":         e.TrailingPE,
		"forward_pe":          e.ForwardPE,
		"eps_ttm":             e.EpsTrailingTwelveMonths,
		"eps_forward":         e.EpsForward,
		"book_value":          e.BookValue,
		"price_to_book":       e.PriceToBook,
		"dividend_yield":      e.TrailingAnnualDividendYield,
		"fifty_two_week_high": e.FiftyTwoWeekHigh,
		"fifty_two_week_low":  e.FiftyTwoWeekLow,
	}
	_ = yf.cache.Set("yahoo", "fundamentals", symbol, out)
	return out, nil
}
