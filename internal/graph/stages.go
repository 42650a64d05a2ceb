package graph

import (
	"context"

	"github.com/dyike/CortexTrader/internal/agents/analysts"
	"github.com/dyike/CortexTrader/internal/agents/managers"
	"github.com/dyike/CortexTrader/internal/agents/researchers"
	"github.com/dyike/CortexTrader/internal/agents/risk_mgmt"
	"github.com/dyike/CortexTrader/internal/agents/trader"
	"github.com/dyike/CortexTrader/models"
)

// MarketDataFetcher produces the snapshot every later stage reads. An error is fatal to
// the run.
type MarketDataFetcher interface {
	Fetch(ctx context.Context, ticker string, opts models.FetchOptions) (*models.MarketSnapshot, error)
}

// The stage contracts below never fail; degraded output carries its own errors.

type AnalystStage interface {
	Analyze(ctx context.Context, snap *models.MarketSnapshot) *models.AnalystFindings
}

type ResearchStage interface {
	Run(ctx context.Context, in researchers.DebateInput) *models.DebateState
}

// DecisionStage returns a HOLD decision together with the error when it degrades.
type DecisionStage interface {
	Decide(ctx context.Context, in managers.DecideInput) (models.Decision, error)
}

type TradeStage interface {
	Execute(ctx context.Context, in trader.TradeInput) *models.TradeState
}

type RiskStage interface {
	Assess(ctx context.Context, in risk_mgmt.RiskInput) *models.RiskState
}

var (
	_ AnalystStage  = (*analysts.Team)(nil)
	_ ResearchStage = (*researchers.Debate)(nil)
	_ DecisionStage = (*managers.CIO)(nil)
	_ TradeStage    = (*trader.Team)(nil)
	_ RiskStage     = (*risk_mgmt.Team)(nil)
)
