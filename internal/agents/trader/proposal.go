package trader

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/agents/analysts"
	"github.com/dyike/CortexTrader/internal/agents/managers"
	"github.com/dyike/CortexTrader/internal/agents/researchers"
	"github.com/dyike/CortexTrader/models"
)

// decide asks for a proposal. From the second iteration on the previous score's notes
// are passed back as corrective feedback.
func (t *Team) decide(ctx context.Context, in TradeInput, state *models.TradeState) models.TradeProposal {
	feedback := "None, this is the first proposal."
	if prev, ok := state.LastScore(); ok {
		feedback = renderFeedback(prev)
	}

	rec, err := t.invoker.Invoke(ctx, consts.TemplateTraderDecision, agents.Bindings{
		"ticker":            in.Ticker,
		"iteration":         state.Iteration,
		"current_price":     fmt.Sprintf("%.2f", in.CurrentPrice),
		"available_capital": fmt.Sprintf("%.2f", in.AvailableCapital),
		"risk_tolerance":    string(in.RiskTolerance),
		"current_position":  renderPosition(in.Portfolio, in.Ticker),
		"cio_decision":      managers.Render(in.Decision),
		"analysis":          analysts.Summary(in.Analysis),
		"research":          researchers.Summary(in.Debate),
		"feedback":          feedback,
	})
	if err != nil {
		t.log.WithError(err).WithField("iteration", state.Iteration).Warn("proposal degraded")
		state.Errors = append(state.Errors, fmt.Sprintf("decision iteration %d failed: %v", state.Iteration, err))
		return models.TradeProposal{
			Action:         models.SignalHold,
			OrderType:      models.OrderMarket,
			StopLossPct:    consts.DefaultStopLossPct,
			TakeProfitPct:  consts.DefaultTakeProfitPct,
			Reasoning:      fmt.Sprintf("Trade decision failed: %v", err),
			ExitConditions: []string{},
			Iteration:      state.Iteration,
			Degraded:       true,
		}
	}

	orderType := models.OrderMarket
	if rec.Upper("order_type") == string(models.OrderLimit) {
		orderType = models.OrderLimit
	}
	return models.TradeProposal{
		Action:           models.ParseSignal(rec.Upper("action")),
		OrderType:        orderType,
		QuantityFraction: models.ClampUnit(rec.Float("quantity_fraction")),
		LimitPrice:       rec.FloatPtr("limit_price"),
		StopLossPct:      rec.FloatOr("stop_loss_pct", consts.DefaultStopLossPct),
		TakeProfitPct:    rec.FloatOr("take_profit_pct", consts.DefaultTakeProfitPct),
		EntryTiming:      rec.String("entry_timing"),
		Confidence:       models.ClampUnit(rec.Float("confidence")),
		RiskRewardRatio:  rec.Float("risk_reward_ratio"),
		Reasoning:        rec.String("reasoning"),
		ExitConditions:   rec.Strings("exit_conditions"),
		Iteration:        state.Iteration,
	}
}

// score grades the current proposal. Overall is always recomputed from the components;
// a figure returned by the model is ignored.
func (t *Team) score(ctx context.Context, in TradeInput, state *models.TradeState) models.FeedbackScore {
	rec, err := t.invoker.Invoke(ctx, consts.TemplateTradeScoring, agents.Bindings{
		"ticker":         in.Ticker,
		"iteration":      state.Iteration,
		"current_price":  fmt.Sprintf("%.2f", in.CurrentPrice),
		"risk_tolerance": string(in.RiskTolerance),
		"proposal":       renderProposal(state.Proposal),
		"cio_decision":   managers.Render(in.Decision),
	})
	if err != nil {
		t.log.WithError(err).WithField("iteration", state.Iteration).Warn("score degraded")
		state.Errors = append(state.Errors, fmt.Sprintf("scoring iteration %d failed: %v", state.Iteration, err))
		score := models.FeedbackScore{
			Risk:           1,
			Iteration:      state.Iteration,
			Notes:          []string{fmt.Sprintf("Risk assessment failed: %v", err)},
			RiskFlags:      []string{},
			Recommendation: models.ScoreReject,
			Degraded:       true,
		}
		score.Recompute()
		score.RefinementReason = refinementReason(score, t.logic.ScoreThreshold)
		return score
	}

	score := models.FeedbackScore{
		Risk:           rec.Float("risk"),
		Reward:         rec.Float("reward"),
		Timing:         rec.Float("timing"),
		Alignment:      rec.Float("alignment"),
		Iteration:      state.Iteration,
		Notes:          rec.Strings("notes"),
		RiskFlags:      rec.Strings("risk_flags"),
		Recommendation: models.ParseScoreRecommendation(rec.Upper("recommendation")),
	}
	score.Recompute()
	score.RefinementReason = refinementReason(score, t.logic.ScoreThreshold)
	return score
}

// refinementReason names the weakest dimension of a score below threshold.
func refinementReason(s models.FeedbackScore, threshold float64) string {
	switch {
	case s.Overall >= threshold:
		return ""
	case s.Risk > 0.7:
		return "Risk too high - reduce position or tighten stops"
	case s.Alignment < 0.5:
		return "Poor alignment with analyst/researcher recommendations"
	case s.Reward < 0.4:
		return "Insufficient reward potential"
	}
	return "Overall score below threshold"
}

func renderFeedback(s models.FeedbackScore) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Iteration %d scored %.2f overall (risk %.2f, reward %.2f, timing %.2f, alignment %.2f), recommendation %s.\n",
		s.Iteration, s.Overall, s.Risk, s.Reward, s.Timing, s.Alignment, s.Recommendation)
	if s.RefinementReason != "" {
		fmt.Fprintf(&b, "Main issue: %s\n", s.RefinementReason)
	}
	b.WriteString("Reviewer notes:\n")
	b.WriteString(agents.Bullets(s.Notes, "- none"))
	return b.String()
}

func renderProposal(p models.TradeProposal) string {
	limit := "none"
	if p.LimitPrice != nil {
		limit = fmt.Sprintf("%.2f", *p.LimitPrice)
	}
	return fmt.Sprintf("Action: %s %s\nCapital fraction: %.2f\nLimit price: %s\nStop loss: %.1f%%\nTake profit: %.1f%%\nEntry timing: %s\nConfidence: %.2f\nRisk/reward: %.2f\nReasoning: %s\nExit conditions:\n%s",
		p.Action, p.OrderType, p.QuantityFraction, limit, p.StopLossPct, p.TakeProfitPct,
		p.EntryTiming, p.Confidence, p.RiskRewardRatio, p.Reasoning,
		agents.Bullets(p.ExitConditions, "- none"))
}

func renderPosition(portfolio models.Portfolio, ticker string) string {
	pos, ok := portfolio.Find(ticker)
	if !ok {
		return "No existing position"
	}
	return fmt.Sprintf("%.0f shares at average %.2f (now %.2f, value %.2f)",
		pos.Quantity, pos.AvgPrice, pos.CurrentPrice, pos.Value())
}

// RenderProposal formats a proposal for downstream prompts.
func RenderProposal(p models.TradeProposal) string {
	return renderProposal(p)
}
