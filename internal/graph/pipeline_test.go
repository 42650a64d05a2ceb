package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/agents/agentstest"
	"github.com/dyike/CortexTrader/internal/agents/analysts"
	"github.com/dyike/CortexTrader/internal/agents/managers"
	"github.com/dyike/CortexTrader/internal/agents/researchers"
	"github.com/dyike/CortexTrader/internal/agents/risk_mgmt"
	"github.com/dyike/CortexTrader/internal/agents/trader"
	"github.com/dyike/CortexTrader/internal/metrics"
	"github.com/dyike/CortexTrader/internal/routing"
	"github.com/dyike/CortexTrader/models"
)

type fakeFetcher struct {
	snap  *models.MarketSnapshot
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, ticker string, _ models.FetchOptions) (*models.MarketSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	snap := *f.snap
	snap.Ticker = ticker
	return &snap, nil
}

func marketData() *fakeFetcher {
	return &fakeFetcher{snap: &models.MarketSnapshot{
		PriceHistory:  []float64{95, 96, 97, 98, 99, 100},
		VolumeHistory: []float64{1e6, 1.1e6, 1e6, 1.2e6, 1e6, 1.3e6},
		NewsArticles:  []string{"Apple beats estimates"},
		FinancialReports: map[string]any{
			"pe_ratio":       28.5,
			"revenue_growth": 0.08,
		},
	}}
}

var (
	highScore = agents.Record{"risk": 0.1, "reward": 0.9, "timing": 0.9, "alignment": 0.9, "recommendation": "APPROVE"}
	midScore  = agents.Record{"risk": 0.4, "reward": 0.7, "timing": 0.6, "alignment": 0.8, "recommendation": "APPROVE"}
)

func scripted(action string) *agentstest.Invoker {
	return agentstest.NewInvoker().
		On(consts.TemplateNewsAnalyst, agents.Record{"signal": "BUY", "confidence": 0.7}).
		On(consts.TemplateFundamentalsAnalyst, agents.Record{"signal": "BUY", "confidence": 0.6}).
		On(consts.TemplateSentimentAnalyst, agents.Record{"signal": "HOLD", "confidence": 0.5}).
		On(consts.TemplateTechnicalAnalyst, agents.Record{"signal": "BUY", "confidence": 0.65}).
		On(consts.TemplateConsolidation, agents.Record{"signal": "BUY", "confidence": 0.65, "position_size": "HALF"}).
		On(consts.TemplateBullishResearcher, agents.Record{"thesis": "growth", "confidence": 0.7, "recommended_action": "BUY"}).
		On(consts.TemplateBearishResearcher, agents.Record{"thesis": "valuation", "confidence": 0.5, "recommended_action": "HOLD"}).
		On(consts.TemplateDebateEvaluation, agents.Record{"consensus_reached": true, "recommendation": "conclude"}).
		On(consts.TemplateDebateSynthesis, agents.Record{"investment_thesis": "buy the dip", "recommended_action": "BUY", "confidence_score": 0.7}).
		On(consts.TemplateCIODecision, agents.Record{"action": action, "confidence": 0.72, "position_size": "HALF", "reasoning": "solid"}).
		On(consts.TemplateTraderDecision, agents.Record{
			"action": "BUY", "order_type": "MARKET", "quantity_fraction": 0.2,
			"stop_loss_pct": 5.0, "take_profit_pct": 10.0, "confidence": 0.7,
		}).
		On(consts.TemplateTradeScoring, highScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.2}).
		On(consts.TemplateRiskyAdvisor, agents.Record{"recommendation": "APPROVE", "position_adjustment": 1.0}).
		On(consts.TemplateNeutralAdvisor, agents.Record{"recommendation": "APPROVE", "position_adjustment": 1.0}).
		On(consts.TemplateSafeAdvisor, agents.Record{"recommendation": "REDUCE_POSITION", "position_adjustment": 0.5}).
		On(consts.TemplateRiskSynthesis, agents.Record{"action": "APPROVE", "risk_level": "MEDIUM", "approved_position_size": 0.8})
}

func newPipeline(t *testing.T, fetcher MarketDataFetcher, inv agents.Invoker, traderOpts ...trader.Option) *Pipeline {
	t.Helper()
	logic := routing.NewConditionalLogic()
	p, err := New(Deps{
		Fetcher:  fetcher,
		Analysts: analysts.NewTeam(inv),
		Research: researchers.NewDebate(inv, logic),
		CIO:      managers.NewCIO(inv, nil),
		Trader:   trader.NewTeam(inv, logic, traderOpts...),
		Risk:     risk_mgmt.NewTeam(inv),
		Logic:    logic,
		Metrics:  metrics.New(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return p
}

func request(trading bool) models.RunRequest {
	return models.RunRequest{
		Ticker:           " aapl ",
		AvailableCapital: 100000,
		RiskTolerance:    models.ToleranceModerate,
		EnableTrading:    trading,
	}
}

func TestNewRequiresStages(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorContains(t, err, "fetcher")
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	p := newPipeline(t, marketData(), scripted("BUY"))
	_, err := p.Run(context.Background(), models.RunRequest{Ticker: "AAPL", RiskTolerance: "reckless"})
	assert.ErrorContains(t, err, "unknown risk tolerance")
}

func TestRunFullPipeline(t *testing.T) {
	inv := scripted("BUY")
	p := newPipeline(t, marketData(), inv)

	details, err := p.RunWithDetails(context.Background(), request(true))
	require.NoError(t, err)
	res := details.Result

	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, models.RunCompleted, res.Status)
	assert.Equal(t, models.ActionBuy, res.Decision.Action)
	assert.Empty(t, res.Errors)
	for _, s := range models.Stages {
		assert.Equal(t, models.StageSuccess, res.Stages[s], s)
		assert.Contains(t, details.Durations, s)
	}

	require.NotNil(t, res.TradeExecution)
	exec := res.TradeExecution.Execution
	require.NotNil(t, exec)
	assert.Equal(t, models.StatusExecuted, exec.Status)
	assert.True(t, exec.AutoApproved)
	assert.Equal(t, "200", exec.Quantity.String())

	require.NotNil(t, res.RiskAssessment)
	assert.InDelta(t, 0.16, res.RiskAssessment.Adjustments.ApprovedFraction, 1e-9)

	require.NotNil(t, details.State.Debate)
	assert.True(t, details.State.Debate.ConsensusReached)
	assert.Equal(t, 100.0, details.State.Snapshot.CurrentPrice)
}

func TestRunFetchFailure(t *testing.T) {
	inv := scripted("BUY")
	p := newPipeline(t, &fakeFetcher{err: errors.New("upstream 503")}, inv)

	res, err := p.Run(context.Background(), request(true))
	require.NoError(t, err)

	assert.Equal(t, models.RunDataError, res.Status)
	assert.Equal(t, models.ActionHold, res.Decision.Action)
	assert.Equal(t, models.StageFailed, res.Stages[models.StageFetch])
	for _, s := range models.Stages[1:] {
		assert.Equal(t, models.StageSkipped, res.Stages[s], s)
	}
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "fetch: market data fetch failed: upstream 503")
	assert.Zero(t, inv.CallCount(""), "no generative call after a failed fetch")
	assert.Nil(t, res.TradeExecution)
}

func TestRunDegradedAnalystsStillDecide(t *testing.T) {
	inv := agentstest.AlwaysFailing(errors.New("llm down"))
	p := newPipeline(t, marketData(), inv)

	run, err := p.RunWithDetails(context.Background(), request(true))
	require.NoError(t, err)
	res := run.Result

	assert.Equal(t, models.RunDecisionOnly, res.Status)
	assert.Equal(t, models.ActionHold, res.Decision.Action)
	assert.Equal(t, models.StageFailed, res.Stages[models.StageAnalyze])
	assert.Equal(t, models.StageSkipped, res.Stages[models.StageResearch], "research is skipped after a failed analysis")
	assert.Equal(t, models.StageFailed, res.Stages[models.StageDecide])
	assert.Equal(t, models.StageSkipped, res.Stages[models.StageTrade])
	assert.Zero(t, inv.CallCount(consts.TemplateBullishResearcher))

	require.NotNil(t, run.State.Analysis)
	require.Len(t, run.State.Analysis.Findings, len(models.AnalystKinds))
	for _, kind := range models.AnalystKinds {
		f, ok := run.State.Analysis.Findings[kind]
		require.True(t, ok, kind)
		assert.Equal(t, models.SignalHold, f.Signal, kind)
		assert.Equal(t, 0.0, f.Confidence, kind)
	}

	// four analysts, consolidation and the CIO
	require.Len(t, res.Errors, 6)
	assert.Contains(t, res.Errors[0], "analyze: ")
	assert.Contains(t, res.Errors[5], "decide: decision failed")
}

func TestRunHoldSkipsTrading(t *testing.T) {
	inv := scripted("HOLD")
	p := newPipeline(t, marketData(), inv)

	res, err := p.Run(context.Background(), request(true))
	require.NoError(t, err)

	assert.Equal(t, models.RunDecisionOnly, res.Status)
	assert.Equal(t, models.StageSkipped, res.Stages[models.StageTrade])
	assert.Equal(t, models.StageSkipped, res.Stages[models.StageRiskAssess])
	assert.Zero(t, inv.CallCount(consts.TemplateTraderDecision))
	assert.Nil(t, res.TradeExecution)
	assert.Nil(t, res.RiskAssessment)
}

func TestRunTradingDisabled(t *testing.T) {
	inv := scripted("STRONG_BUY")
	p := newPipeline(t, marketData(), inv)

	res, err := p.Run(context.Background(), request(false))
	require.NoError(t, err)

	assert.Equal(t, models.RunDecisionOnly, res.Status)
	assert.Equal(t, models.ActionStrongBuy, res.Decision.Action)
	assert.Zero(t, inv.CallCount(consts.TemplateTraderDecision))
}

func TestRunApprovalOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		outcome models.ApprovalOutcome
		want    models.RunStatus
		order   models.OrderStatus
	}{
		{"approved", models.ApprovalApproved, models.RunCompleted, models.StatusExecuted},
		{"rejected", models.ApprovalRejected, models.RunRejected, models.StatusRejected},
		{"pending", models.ApprovalPending, models.RunAwaitingApproval, models.StatusAwaitingApproval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := scripted("BUY")
			inv.On(consts.TemplateTradeScoring, midScore)
			// drain the high score queued by scripted so midScore repeats
			_, _ = inv.Invoke(context.Background(), consts.TemplateTradeScoring, nil)

			approver := trader.ApproverFunc(func(_ context.Context, req models.ApprovalRequest) (models.ApprovalDecision, error) {
				assert.Equal(t, "AAPL", req.Ticker)
				return models.ApprovalDecision{Outcome: tt.outcome}, nil
			})
			p := newPipeline(t, marketData(), inv, trader.WithApprover(approver))

			res, err := p.Run(context.Background(), request(true))
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, tt.order, res.TradeExecution.Execution.Status)
			assert.Equal(t, models.StageSuccess, res.Stages[models.StageRiskAssess], "risk runs after every trade outcome")
		})
	}
}

type brokenAnalysts struct{}

func (brokenAnalysts) Analyze(context.Context, *models.MarketSnapshot) *models.AnalystFindings {
	return nil
}

func TestRunSurfacesContractViolations(t *testing.T) {
	inv := scripted("BUY")
	logic := routing.NewConditionalLogic()
	p, err := New(Deps{
		Fetcher:  marketData(),
		Analysts: brokenAnalysts{},
		Research: researchers.NewDebate(inv, logic),
		CIO:      managers.NewCIO(inv, nil),
		Trader:   trader.NewTeam(inv, logic),
		Risk:     risk_mgmt.NewTeam(inv),
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), request(true))
	assert.ErrorContains(t, err, "analyze stage returned no output")
}
