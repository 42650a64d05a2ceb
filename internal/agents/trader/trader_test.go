package trader

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/agents/agentstest"
	"github.com/dyike/CortexTrader/internal/routing"
	"github.com/dyike/CortexTrader/models"
)

var fixedNow = time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

var (
	lowScore  = agents.Record{"risk": 1.0, "reward": 0.0, "timing": 0.5, "alignment": 0.0, "recommendation": "REVISE", "notes": []any{"tighten the stop"}}
	highScore = agents.Record{"risk": 0.1, "reward": 0.9, "timing": 0.9, "alignment": 0.9, "recommendation": "APPROVE"}
	midScore  = agents.Record{"risk": 0.4, "reward": 0.7, "timing": 0.6, "alignment": 0.8, "recommendation": "APPROVE"}
)

func buyProposal(fraction float64) agents.Record {
	return agents.Record{
		"action": "BUY", "order_type": "MARKET", "quantity_fraction": fraction,
		"stop_loss_pct": 5.0, "take_profit_pct": 10.0, "confidence": 0.7, "reasoning": "momentum",
	}
}

func input(tolerance models.RiskTolerance) TradeInput {
	return TradeInput{
		Ticker:           "AAPL",
		CurrentPrice:     100,
		AvailableCapital: 100000,
		RiskTolerance:    tolerance,
		Decision:         models.Decision{Action: models.ActionBuy, Confidence: 0.7, PositionSize: models.SizeHalf},
	}
}

func newTeam(inv agents.Invoker, opts ...Option) *Team {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewTeam(inv, routing.NewConditionalLogic(), opts...)
}

func countingApprover(outcome models.ApprovalOutcome, feedback string) (*atomic.Int32, Approver) {
	var calls atomic.Int32
	return &calls, ApproverFunc(func(_ context.Context, _ models.ApprovalRequest) (models.ApprovalDecision, error) {
		calls.Add(1)
		return models.ApprovalDecision{Outcome: outcome, Feedback: feedback}, nil
	})
}

func TestTradeLoopStopsAtIterationCap(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, buyProposal(0.1)).
		On(consts.TemplateTradeScoring, lowScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.1})

	state := newTeam(inv).Execute(context.Background(), input(models.ToleranceModerate))

	assert.Equal(t, 3, inv.CallCount(consts.TemplateTraderDecision))
	assert.Equal(t, 3, inv.CallCount(consts.TemplateTradeScoring))
	assert.Equal(t, 1, inv.CallCount(consts.TemplatePortfolioManager))
	assert.Equal(t, 3, state.Iteration)
	require.Len(t, state.Scores, 3)
	for i, s := range state.Scores {
		assert.InDelta(t, 0.1, s.Overall, 1e-9)
		assert.Equal(t, i+1, s.Iteration)
	}
	assert.False(t, state.Converged)
	assert.True(t, state.HitCap())
	require.NotNil(t, state.Portfolio)
	assert.Equal(t, models.SignalBuy, state.Proposal.Action, "the final proposal is kept")
}

func TestTradeLoopFeedsBackNotes(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, buyProposal(0.1)).
		On(consts.TemplateTradeScoring, lowScore, midScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.1})

	state := newTeam(inv).Execute(context.Background(), input(models.ToleranceModerate))

	assert.Equal(t, 2, state.Iteration)
	assert.True(t, state.Converged)
	calls := inv.Calls(consts.TemplateTraderDecision)
	require.Len(t, calls, 2)
	assert.Equal(t, "None, this is the first proposal.", calls[0].Bindings["feedback"])
	feedback := calls[1].Bindings["feedback"].(string)
	assert.Contains(t, feedback, "Main issue: Risk too high")
	assert.Contains(t, feedback, "- tighten the stop")
	assert.Equal(t, 2, calls[1].Bindings["iteration"])
	assert.Equal(t, "Risk too high - reduce position or tighten stops", state.Scores[0].RefinementReason)
	assert.Empty(t, state.Scores[1].RefinementReason)
}

func TestPortfolioClampConservative(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, buyProposal(0.35)).
		On(consts.TemplateTradeScoring, midScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.35})
	calls, approver := countingApprover(models.ApprovalApproved, "ok")

	state := newTeam(inv, WithApprover(approver)).Execute(context.Background(), input(models.ToleranceConservative))

	require.NotNil(t, state.Portfolio)
	assert.Equal(t, 0.35, state.Portfolio.SuggestedFraction)
	assert.Equal(t, 0.20, state.Portfolio.AdjustedFraction)
	assert.True(t, state.Portfolio.Clamped)
	assert.Equal(t, 0.20, state.Proposal.QuantityFraction)
	assert.True(t, state.Proposal.PortfolioAdjusted)
	assert.Contains(t, state.Portfolio.AdjustmentReason, "20% concentration limit")

	require.NotNil(t, state.Execution)
	assert.True(t, decimal.NewFromInt(200).Equal(state.Execution.Quantity), state.Execution.Quantity.String())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, models.StatusExecuted, state.Execution.Status)
}

func TestPortfolioClampNeverRaises(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, buyProposal(0.35)).
		On(consts.TemplateTradeScoring, midScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.15})

	state := newTeam(inv).Execute(context.Background(), input(models.ToleranceAggressive))

	assert.Equal(t, 0.15, state.Portfolio.AdjustedFraction)
	assert.False(t, state.Portfolio.Clamped)
}

func TestPortfolioFailureClampsProposal(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, buyProposal(0.5)).
		On(consts.TemplateTradeScoring, midScore).
		Fail(consts.TemplatePortfolioManager, errors.New("timeout"))

	state := newTeam(inv).Execute(context.Background(), input(models.ToleranceModerate))

	assert.True(t, state.Portfolio.Degraded)
	assert.Equal(t, 0.30, state.Portfolio.AdjustedFraction)
	require.Len(t, state.Errors, 1)
	assert.Contains(t, state.Errors[0], "portfolio adjustment failed")
}

func TestAutoApprovalSkipsApprover(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, buyProposal(0.2)).
		On(consts.TemplateTradeScoring, highScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.2})
	calls, approver := countingApprover(models.ApprovalRejected, "no")

	state := newTeam(inv, WithApprover(approver)).Execute(context.Background(), input(models.ToleranceModerate))

	assert.Zero(t, calls.Load())
	assert.Nil(t, state.Approval)
	require.NotNil(t, state.Execution)
	assert.True(t, state.Execution.AutoApproved)
	assert.Equal(t, models.StatusExecuted, state.Execution.Status)
	assert.Contains(t, state.Execution.ApprovalReason, "0.90 >= 0.85")
	require.Len(t, state.ExecutedOrders, 1)
	assert.True(t, state.ExecutedOrders[0].FillPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, fixedNow, *state.ExecutedOrders[0].ExecutedAt)
}

func TestNoHumanApprovalRequired(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, buyProposal(0.2)).
		On(consts.TemplateTradeScoring, midScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.2})
	logic := routing.NewConditionalLogic()
	logic.RequireHumanApproval = false

	state := NewTeam(inv, logic).Execute(context.Background(), input(models.ToleranceModerate))

	assert.Equal(t, models.StatusExecuted, state.Execution.Status)
	assert.Equal(t, "Human approval not required", state.Execution.ApprovalReason)
}

func TestHoldProposalIsNoAction(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, agents.Record{"action": "HOLD", "quantity_fraction": 0.0}).
		On(consts.TemplateTradeScoring, highScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.0})
	calls, approver := countingApprover(models.ApprovalApproved, "")

	state := newTeam(inv, WithApprover(approver)).Execute(context.Background(), input(models.ToleranceModerate))

	require.NotNil(t, state.Execution)
	assert.Equal(t, models.StatusNoAction, state.Execution.Status)
	assert.NotEmpty(t, state.Execution.OrderID)
	assert.Empty(t, state.ExecutedOrders)
	assert.Zero(t, calls.Load())
}

func TestHumanApprovalOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		outcome  models.ApprovalOutcome
		status   models.OrderStatus
		executed int
	}{
		{"approved", models.ApprovalApproved, models.StatusExecuted, 1},
		{"rejected", models.ApprovalRejected, models.StatusRejected, 0},
		{"pending", models.ApprovalPending, models.StatusAwaitingApproval, 0},
		{"unknown outcome", models.ApprovalOutcome("MAYBE"), models.StatusAwaitingApproval, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := agentstest.NewInvoker().
				On(consts.TemplateTraderDecision, buyProposal(0.2)).
				On(consts.TemplateTradeScoring, midScore).
				On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.2})
			calls, approver := countingApprover(tt.outcome, "reviewed")

			state := newTeam(inv, WithApprover(approver)).Execute(context.Background(), input(models.ToleranceModerate))

			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, tt.status, state.Execution.Status)
			assert.Len(t, state.ExecutedOrders, tt.executed)
			assert.Equal(t, "reviewed", state.Execution.Feedback)
		})
	}
}

func TestApprovalRequestSummary(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, buyProposal(0.2)).
		On(consts.TemplateTradeScoring, midScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.2})
	var got models.ApprovalRequest
	approver := ApproverFunc(func(_ context.Context, req models.ApprovalRequest) (models.ApprovalDecision, error) {
		got = req
		return models.ApprovalDecision{Outcome: models.ApprovalApproved}, nil
	})

	state := newTeam(inv, WithApprover(approver)).Execute(context.Background(), input(models.ToleranceModerate))

	assert.Equal(t, state.Execution.OrderID, got.OrderID)
	assert.Equal(t, "200", got.Quantity)
	assert.Equal(t, "$20000.00", got.EstimatedValue)
	assert.Equal(t, "$95.00", got.StopLoss)
	assert.Equal(t, "$110.00", got.TakeProfit)
	assert.Equal(t, models.ScoreApprove, got.Recommendation)
	assert.InDelta(t, 0.4, got.RiskScore, 1e-9)
}

func TestApprovalTimeoutIsPending(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, buyProposal(0.2)).
		On(consts.TemplateTradeScoring, midScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.2})
	release := make(chan struct{})
	defer close(release)
	blocking := ApproverFunc(func(_ context.Context, _ models.ApprovalRequest) (models.ApprovalDecision, error) {
		<-release
		return models.ApprovalDecision{Outcome: models.ApprovalApproved}, nil
	})

	state := newTeam(inv, WithApprover(blocking), WithApprovalTimeout(20*time.Millisecond)).
		Execute(context.Background(), input(models.ToleranceModerate))

	require.NotNil(t, state.Approval)
	assert.Equal(t, models.ApprovalPending, state.Approval.Outcome)
	assert.Equal(t, models.StatusAwaitingApproval, state.Execution.Status)
	assert.Empty(t, state.ExecutedOrders)
}

func TestNoApproverLeavesOrderPending(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, buyProposal(0.2)).
		On(consts.TemplateTradeScoring, midScore).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": 0.2})

	state := newTeam(inv).Execute(context.Background(), input(models.ToleranceModerate))

	assert.Equal(t, models.ApprovalPending, state.Approval.Outcome)
	assert.Equal(t, models.StatusAwaitingApproval, state.Execution.Status)
}

func TestDegradedCallsRunToCap(t *testing.T) {
	state := newTeam(agentstest.AlwaysFailing(errors.New("down"))).Execute(context.Background(), input(models.ToleranceModerate))

	assert.Equal(t, 3, state.Iteration)
	assert.True(t, state.Proposal.Degraded)
	assert.Equal(t, models.SignalHold, state.Proposal.Action)
	for _, s := range state.Scores {
		assert.Equal(t, 0.0, s.Overall)
		assert.Equal(t, models.ScoreReject, s.Recommendation)
		assert.True(t, s.Degraded)
	}
	assert.Equal(t, models.StatusNoAction, state.Execution.Status)
	// 3 decisions, 3 scores, 1 portfolio
	assert.Len(t, state.Errors, 7)
}

func TestPrepareOrderPrices(t *testing.T) {
	team := newTeam(agentstest.NewInvoker())
	in := TradeInput{Ticker: "AAPL", CurrentPrice: 187.37, AvailableCapital: 50000}

	buy := team.prepareOrder(in, models.TradeProposal{Action: models.SignalBuy, QuantityFraction: 0.25, StopLossPct: 5, TakeProfitPct: 10})
	assert.Equal(t, "66", buy.Quantity.String())
	assert.Equal(t, "178.00", buy.StopLossPrice.StringFixed(2))
	assert.Equal(t, "206.11", buy.TakeProfitPrice.StringFixed(2))
	assert.Equal(t, models.StatusPending, buy.Status)
	assert.Len(t, buy.OrderID, 8)

	sell := team.prepareOrder(in, models.TradeProposal{Action: models.SignalSell, QuantityFraction: 0.25, StopLossPct: 5, TakeProfitPct: 10})
	assert.Equal(t, "196.74", sell.StopLossPrice.StringFixed(2))
	assert.Equal(t, "168.63", sell.TakeProfitPrice.StringFixed(2))
	assert.NotEqual(t, buy.OrderID, sell.OrderID)

	zero := team.prepareOrder(TradeInput{Ticker: "AAPL", AvailableCapital: 50000},
		models.TradeProposal{Action: models.SignalBuy, QuantityFraction: 0.25})
	assert.True(t, zero.Quantity.IsZero())
}

func TestNonFiniteModelValuesDegrade(t *testing.T) {
	inv := agentstest.NewInvoker().
		On(consts.TemplateTraderDecision, agents.Record{
			"action": "BUY", "quantity_fraction": "NaN", "stop_loss_pct": "Infinity",
			"take_profit_pct": "-Inf", "confidence": "NaN",
		}).
		On(consts.TemplateTradeScoring, agents.Record{"risk": "NaN", "reward": 0.9, "timing": 0.9, "alignment": 0.9}).
		On(consts.TemplatePortfolioManager, agents.Record{"suggested_fraction": "NaN"})

	var state *models.TradeState
	require.NotPanics(t, func() {
		state = newTeam(inv).Execute(context.Background(), input(models.ToleranceModerate))
	})

	assert.Equal(t, 0.0, state.Proposal.Confidence)
	assert.Equal(t, 0.0, state.Proposal.QuantityFraction)
	assert.Equal(t, consts.DefaultStopLossPct, state.Proposal.StopLossPct)
	assert.Equal(t, consts.DefaultTakeProfitPct, state.Proposal.TakeProfitPct)
	require.NotEmpty(t, state.Scores)
	overall := state.Scores[0].Overall
	assert.False(t, math.IsNaN(overall))
	assert.GreaterOrEqual(t, overall, 0.0)
	assert.LessOrEqual(t, overall, 1.0)
	require.NotNil(t, state.Execution)
	assert.True(t, state.Execution.Quantity.IsZero())
	assert.Equal(t, "95.00", state.Execution.StopLossPrice.StringFixed(2))
}

func TestPrepareOrderIgnoresNonFiniteInputs(t *testing.T) {
	team := newTeam(agentstest.NewInvoker())
	in := TradeInput{Ticker: "AAPL", CurrentPrice: math.NaN(), AvailableCapital: math.Inf(1)}

	var order models.ExecutionRecord
	require.NotPanics(t, func() {
		order = team.prepareOrder(in, models.TradeProposal{
			Action: models.SignalSell, QuantityFraction: math.NaN(), StopLossPct: math.Inf(1), TakeProfitPct: math.Inf(-1),
		})
	})
	assert.True(t, order.Quantity.IsZero())
	assert.True(t, order.CurrentPrice.IsZero())
	assert.True(t, order.StopLossPrice.IsZero())
}

func TestRefinementReason(t *testing.T) {
	tests := []struct {
		name  string
		score models.FeedbackScore
		want  string
	}{
		{"above threshold", models.FeedbackScore{Overall: 0.7}, ""},
		{"risky", models.FeedbackScore{Overall: 0.3, Risk: 0.8}, "Risk too high - reduce position or tighten stops"},
		{"misaligned", models.FeedbackScore{Overall: 0.3, Risk: 0.5, Alignment: 0.4}, "Poor alignment with analyst/researcher recommendations"},
		{"low reward", models.FeedbackScore{Overall: 0.3, Risk: 0.5, Alignment: 0.6, Reward: 0.3}, "Insufficient reward potential"},
		{"generic", models.FeedbackScore{Overall: 0.5, Risk: 0.5, Alignment: 0.6, Reward: 0.5}, "Overall score below threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, refinementReason(tt.score, 0.6))
		})
	}
}
