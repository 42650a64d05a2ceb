package models

import (
	"strings"
	"time"
)

// MarketSnapshot is the read-only market view a run is analysed against.
type MarketSnapshot struct {
	Ticker           string         `json:"ticker"`
	CurrentPrice     float64        `json:"current_price"`
	PriceHistory     []float64      `json:"price_history"`
	VolumeHistory    []float64      `json:"volume_history"`
	NewsArticles     []string       `json:"news_articles"`
	FinancialReports map[string]any `json:"financial_reports"`
	FetchedAt        time.Time      `json:"fetched_at"`
}

// Normalize replaces nil collections with empty ones and trims price and
// volume series to a common, right-aligned length.
func (s *MarketSnapshot) Normalize() {
	if s.PriceHistory == nil {
		s.PriceHistory = []float64{}
	}
	if s.VolumeHistory == nil {
		s.VolumeHistory = []float64{}
	}
	if s.NewsArticles == nil {
		s.NewsArticles = []string{}
	}
	if s.FinancialReports == nil {
		s.FinancialReports = map[string]any{}
	}
	if len(s.VolumeHistory) > 0 && len(s.VolumeHistory) != len(s.PriceHistory) {
		n := min(len(s.PriceHistory), len(s.VolumeHistory))
		s.PriceHistory = s.PriceHistory[len(s.PriceHistory)-n:]
		s.VolumeHistory = s.VolumeHistory[len(s.VolumeHistory)-n:]
	}
	if s.CurrentPrice == 0 && len(s.PriceHistory) > 0 {
		s.CurrentPrice = s.PriceHistory[len(s.PriceHistory)-1]
	}
}

// PriceChangePct is the percent move from the first to the last price.
func (s *MarketSnapshot) PriceChangePct() float64 {
	if len(s.PriceHistory) < 2 || s.PriceHistory[0] == 0 {
		return 0
	}
	first, last := s.PriceHistory[0], s.PriceHistory[len(s.PriceHistory)-1]
	return (last - first) / first * 100
}

// Headlines returns the first line of up to limit articles, each capped at maxLen runes.
func (s *MarketSnapshot) Headlines(limit, maxLen int) []string {
	out := make([]string, 0, min(limit, len(s.NewsArticles)))
	for i, article := range s.NewsArticles {
		if i >= limit {
			break
		}
		line := strings.TrimSpace(strings.SplitN(article, "\n", 2)[0])
		if r := []rune(line); len(r) > maxLen {
			line = string(r[:maxLen])
		}
		out = append(out, line)
	}
	return out
}

// FetchOptions bounds how much history and news a fetch pulls.
type FetchOptions struct {
	NewsDays  int `json:"news_days"`
	NewsLimit int `json:"news_limit"`
	PriceDays int `json:"price_days"`
}

func DefaultFetchOptions() FetchOptions {
	return FetchOptions{NewsDays: 3, NewsLimit: 10, PriceDays: 60}
}

// Position is an existing holding.
type Position struct {
	Ticker       string  `json:"ticker" yaml:"ticker"`
	Quantity     float64 `json:"quantity" yaml:"quantity"`
	AvgPrice     float64 `json:"avg_price" yaml:"avg_price"`
	CurrentPrice float64 `json:"current_price" yaml:"current_price"`
}

func (p Position) Value() float64 {
	return p.Quantity * p.CurrentPrice
}

type Portfolio []Position

func (p Portfolio) TotalValue() float64 {
	total := 0.0
	for _, pos := range p {
		total += pos.Value()
	}
	return total
}

func (p Portfolio) Find(ticker string) (Position, bool) {
	for _, pos := range p {
		if strings.EqualFold(pos.Ticker, ticker) {
			return pos, true
		}
	}
	return Position{}, false
}
