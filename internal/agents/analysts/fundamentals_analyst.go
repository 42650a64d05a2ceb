package analysts

import (
	"context"
	"fmt"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/models"
)

type FundamentalsAnalyst struct {
	invoker agents.Invoker
}

func NewFundamentalsAnalyst(inv agents.Invoker) *FundamentalsAnalyst {
	return &FundamentalsAnalyst{invoker: inv}
}

func (a *FundamentalsAnalyst) Kind() models.AnalystKind { return models.AnalystFundamentals }

func (a *FundamentalsAnalyst) Analyze(ctx context.Context, snap *models.MarketSnapshot) (models.Finding, error) {
	if len(snap.FinancialReports) == 0 {
		return models.NewFinding(string(models.AnalystFundamentals), models.SignalHold, 0, "No financial data available", nil), nil
	}

	return invokeFinding(ctx, a.invoker, models.AnalystFundamentals, consts.TemplateFundamentalsAnalyst, agents.Bindings{
		"ticker":        snap.Ticker,
		"current_price": fmt.Sprintf("%.2f", snap.CurrentPrice),
		"financials":    agents.JSON(snap.FinancialReports),
	})
}
