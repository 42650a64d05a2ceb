package analysts

import (
	"context"
	"fmt"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/models"
)

// SentimentAnalyst reads price action together with recent headlines.
type SentimentAnalyst struct {
	invoker agents.Invoker
}

func NewSentimentAnalyst(inv agents.Invoker) *SentimentAnalyst {
	return &SentimentAnalyst{invoker: inv}
}

func (a *SentimentAnalyst) Kind() models.AnalystKind { return models.AnalystSentiment }

func (a *SentimentAnalyst) Analyze(ctx context.Context, snap *models.MarketSnapshot) (models.Finding, error) {
	headlines := snap.Headlines(consts.MaxHeadlines, consts.MaxHeadlineLength)

	return invokeFinding(ctx, a.invoker, models.AnalystSentiment, consts.TemplateSentimentAnalyst, agents.Bindings{
		"ticker":        snap.Ticker,
		"current_price": fmt.Sprintf("%.2f", snap.CurrentPrice),
		"price_change":  fmt.Sprintf("%.2f", snap.PriceChangePct()),
		"headlines":     agents.Bullets(headlines, "No recent headlines"),
	})
}
