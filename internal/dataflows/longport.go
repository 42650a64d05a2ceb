package dataflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
)

// candlestickAPI is the part of the Longport quote context the client uses.
type candlestickAPI interface {
	Candlesticks(ctx context.Context, symbol string, period quote.Period, count int32, adjustType quote.AdjustType) ([]*quote.Candlestick, error)
}

// LongportClient serves daily candlesticks from the Longport quote API.
type LongportClient struct {
	quotes candlestickAPI
	closer func()
}

func NewLongportClient(cfg *Config) (*LongportClient, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, fmt.Errorf("longport: %w", ErrMissingAPIKey)
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, fmt.Errorf("longport config: %w", err)
	}

	qctx, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, fmt.Errorf("longport quote context: %w", err)
	}
	return &LongportClient{quotes: qctx, closer: func() { _ = qctx.Close() }}, nil
}

func (lpc *LongportClient) Name() string { return "longport" }

func (lpc *LongportClient) Close() {
	if lpc.closer != nil {
		lpc.closer()
	}
}

// DailyBars asks for one candlestick per requested day; the API returns trading days
// only, so fewer bars than days is normal.
func (lpc *LongportClient) DailyBars(ctx context.Context, symbol string, days int) ([]PriceBar, error) {
	if lpc.quotes == nil {
		return nil, errors.New("longport: quote context is nil")
	}
	symbol = NormalizeSymbol(symbol)

	sticks, err := lpc.quotes.Candlesticks(ctx, symbol, quote.PeriodDay, int32(days), quote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks for %s: %w", symbol, err)
	}

	bars := make([]PriceBar, 0, len(sticks))
	for _, s := range sticks {
		if s == nil || s.Close == nil {
			continue
		}
		bar := PriceBar{
			Symbol: symbol,
			Date:   time.Unix(s.Timestamp, 0).UTC(),
			Close:  *s.Close,
			Volume: s.Volume,
		}
		if s.Open != nil {
			bar.Open = *s.Open
		}
		if s.High != nil {
			bar.High = *s.High
		}
		if s.Low != nil {
			bar.Low = *s.Low
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
