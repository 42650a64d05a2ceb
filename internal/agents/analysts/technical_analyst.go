package analysts

import (
	"context"
	"fmt"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/indicators"
	"github.com/dyike/CortexTrader/models"
)

const recentPoints = 20

// TechnicalAnalyst computes indicators locally and asks the model to read them.
type TechnicalAnalyst struct {
	invoker agents.Invoker
}

func NewTechnicalAnalyst(inv agents.Invoker) *TechnicalAnalyst {
	return &TechnicalAnalyst{invoker: inv}
}

func (a *TechnicalAnalyst) Kind() models.AnalystKind { return models.AnalystTechnical }

func (a *TechnicalAnalyst) Analyze(ctx context.Context, snap *models.MarketSnapshot) (models.Finding, error) {
	set := indicators.Compute(snap.PriceHistory, snap.VolumeHistory)

	return invokeFinding(ctx, a.invoker, models.AnalystTechnical, consts.TemplateTechnicalAnalyst, agents.Bindings{
		"ticker":         snap.Ticker,
		"current_price":  fmt.Sprintf("%.2f", snap.CurrentPrice),
		"price_points":   len(snap.PriceHistory),
		"recent_prices":  agents.Numbers(snap.PriceHistory, recentPoints, "%.2f"),
		"recent_volumes": agents.Numbers(snap.VolumeHistory, recentPoints, "%.0f"),
		"indicators":     set.Summary(),
	})
}
