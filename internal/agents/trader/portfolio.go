package trader

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/models"
)

// adjustPortfolio asks the portfolio manager for a capital fraction and clamps it to the
// concentration ceiling of the run's risk tolerance. The clamp never raises a fraction.
// When the call fails the proposal's own fraction is clamped instead.
func (t *Team) adjustPortfolio(ctx context.Context, in TradeInput, state *models.TradeState) models.PortfolioImpact {
	limit := t.concentrationLimit(in.RiskTolerance)
	impact := models.PortfolioImpact{
		ConcentrationLimit:     limit,
		RebalancingSuggestions: []string{},
	}

	rec, err := t.invoker.Invoke(ctx, consts.TemplatePortfolioManager, agents.Bindings{
		"ticker":              in.Ticker,
		"risk_tolerance":      string(in.RiskTolerance),
		"concentration_limit": fmt.Sprintf("%.2f", limit),
		"available_capital":   fmt.Sprintf("%.2f", in.AvailableCapital),
		"portfolio_value":     fmt.Sprintf("%.2f", in.Portfolio.TotalValue()),
		"proposal":            renderProposal(state.Proposal),
		"portfolio":           RenderPortfolio(in.Portfolio),
	})
	if err != nil {
		t.log.WithError(err).Warn("portfolio optimizer degraded")
		state.Errors = append(state.Errors, fmt.Sprintf("portfolio adjustment failed: %v", err))
		impact.SuggestedFraction = state.Proposal.QuantityFraction
		impact.AdjustmentReason = fmt.Sprintf("Portfolio optimizer failed: %v", err)
		impact.Degraded = true
	} else {
		impact.SuggestedFraction = models.ClampUnit(rec.FloatOr("suggested_fraction", state.Proposal.QuantityFraction))
		impact.AdjustmentReason = rec.String("adjustment_reason")
		impact.RebalancingSuggestions = rec.Strings("rebalancing_suggestions")
	}

	impact.AdjustedFraction = impact.SuggestedFraction
	if impact.SuggestedFraction > limit {
		impact.AdjustedFraction = limit
		impact.Clamped = true
		impact.AdjustmentReason = fmt.Sprintf("Reduced to %.0f%% concentration limit for %s risk", limit*100, in.RiskTolerance)
	}
	if impact.AdjustmentReason == "" {
		impact.AdjustmentReason = "No adjustment needed"
	}
	return impact
}

// RenderPortfolio lists holdings with their market value.
func RenderPortfolio(p models.Portfolio) string {
	if len(p) == 0 {
		return "No existing positions"
	}
	lines := make([]string, 0, len(p)+1)
	for _, pos := range p {
		lines = append(lines, fmt.Sprintf("%s: %.0f shares @ %.2f = %.2f",
			pos.Ticker, pos.Quantity, pos.CurrentPrice, pos.Value()))
	}
	lines = append(lines, fmt.Sprintf("Total portfolio value: %.2f", p.TotalValue()))
	return strings.Join(lines, "\n")
}
