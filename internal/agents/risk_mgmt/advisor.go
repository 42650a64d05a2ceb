package risk_mgmt

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/models"
)

// Advisor assesses a finalized trade from one risk appetite. The appetite lives in the
// template instructions; nothing here enforces the direction of the adjustment.
type Advisor struct {
	perspective models.Perspective
	template    string
	invoker     agents.Invoker
}

// NewRiskyAdvisor argues for upside and tends to suggest adjustments of 1.0 or more.
func NewRiskyAdvisor(inv agents.Invoker) *Advisor {
	return &Advisor{perspective: models.PerspectiveRisky, template: consts.TemplateRiskyAdvisor, invoker: inv}
}

func NewNeutralAdvisor(inv agents.Invoker) *Advisor {
	return &Advisor{perspective: models.PerspectiveNeutral, template: consts.TemplateNeutralAdvisor, invoker: inv}
}

// NewSafeAdvisor protects capital first and tends to suggest adjustments of 1.0 or less.
func NewSafeAdvisor(inv agents.Invoker) *Advisor {
	return &Advisor{perspective: models.PerspectiveSafe, template: consts.TemplateSafeAdvisor, invoker: inv}
}

func (a *Advisor) Perspective() models.Perspective { return a.perspective }

// Assess returns a HOLD_FOR_REVIEW assessment flagged with the error when the call fails.
func (a *Advisor) Assess(ctx context.Context, bindings agents.Bindings) (models.RiskAssessment, error) {
	rec, err := a.invoker.Invoke(ctx, a.template, bindings)
	if err != nil {
		return degradedAssessment(a.perspective, err), err
	}
	return models.RiskAssessment{
		Perspective:              a.perspective,
		OverallRiskLevel:         models.ParseRiskLevel(rec.Upper("overall_risk_level")),
		RiskScore:                models.ClampUnit(rec.Float("risk_score")),
		Recommendation:           models.ParseRiskAction(rec.Upper("recommendation")),
		PositionAdjustment:       nonNegative(rec.FloatOr("position_adjustment", 1.0)),
		MarketVolatility:         riskFactor(rec.Record("market_volatility")),
		Liquidity:                riskFactor(rec.Record("liquidity")),
		Concentration:            riskFactor(rec.Record("concentration")),
		Counterparty:             riskFactor(rec.Record("counterparty")),
		StopLossRecommendation:   rec.FloatOr("stop_loss_recommendation", consts.DefaultStopLossPct),
		TakeProfitRecommendation: rec.FloatOr("take_profit_recommendation", consts.DefaultTakeProfitPct),
		Reasoning:                rec.String("reasoning"),
		KeyConcerns:              rec.Strings("key_concerns"),
		Opportunities:            rec.Strings("opportunities"),
		WorstCase:                rec.String("worst_case_scenario"),
	}, nil
}

func degradedAssessment(p models.Perspective, err error) models.RiskAssessment {
	return models.RiskAssessment{
		Perspective:        p,
		OverallRiskLevel:   models.RiskMedium,
		RiskScore:          0.5,
		Recommendation:     models.RiskHoldForReview,
		PositionAdjustment: 1.0,
		Reasoning:          fmt.Sprintf("Assessment failed: %v", err),
		KeyConcerns:        []string{},
		Opportunities:      []string{},
		Degraded:           true,
		Error:              err.Error(),
	}
}

func riskFactor(rec agents.Record) models.RiskFactor {
	return models.RiskFactor{
		Level:       models.ParseRiskLevel(rec.Upper("level")),
		Score:       models.ClampUnit(rec.Float("score")),
		Description: rec.String("description"),
	}
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func renderAssessment(a models.RiskAssessment) string {
	if a.Degraded {
		return fmt.Sprintf("Status: assessment unavailable (%s)\nRecommendation: %s", a.Error, a.Recommendation)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recommendation: %s (risk %s, score %.2f, position adjustment %.2fx)\n",
		a.Recommendation, a.OverallRiskLevel, a.RiskScore, a.PositionAdjustment)
	fmt.Fprintf(&b, "Market volatility: %s %.2f\nLiquidity: %s %.2f\nConcentration: %s %.2f\nCounterparty: %s %.2f\n",
		a.MarketVolatility.Level, a.MarketVolatility.Score, a.Liquidity.Level, a.Liquidity.Score,
		a.Concentration.Level, a.Concentration.Score, a.Counterparty.Level, a.Counterparty.Score)
	fmt.Fprintf(&b, "Stop loss: %.1f%%, take profit: %.1f%%\n", a.StopLossRecommendation, a.TakeProfitRecommendation)
	fmt.Fprintf(&b, "Reasoning: %s\n", a.Reasoning)
	b.WriteString("Concerns:\n")
	b.WriteString(agents.Bullets(a.KeyConcerns, "- none"))
	if a.WorstCase != "" {
		fmt.Fprintf(&b, "\nWorst case: %s", a.WorstCase)
	}
	return b.String()
}
