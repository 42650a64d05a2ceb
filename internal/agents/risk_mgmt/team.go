package risk_mgmt

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/agents/analysts"
	"github.com/dyike/CortexTrader/internal/agents/managers"
	"github.com/dyike/CortexTrader/internal/agents/researchers"
	"github.com/dyike/CortexTrader/internal/agents/trader"
	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/logger"
)

// Team runs the three risk advisors over the finalized trade and folds their views.
type Team struct {
	advisors []*Advisor
	invoker  agents.Invoker
	parallel bool
	log      *logger.Logger
}

type Option func(*Team)

// WithParallel runs the advisors concurrently; synthesis still waits for all three.
func WithParallel(enabled bool) Option {
	return func(t *Team) { t.parallel = enabled }
}

func WithLogger(l *logger.Logger) Option {
	return func(t *Team) {
		if l != nil {
			t.log = l
		}
	}
}

func NewTeam(inv agents.Invoker, opts ...Option) *Team {
	t := &Team{
		advisors: []*Advisor{NewRiskyAdvisor(inv), NewNeutralAdvisor(inv), NewSafeAdvisor(inv)},
		invoker:  inv,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.WithComponent("risk")
	return t
}

// RiskInput is the finalized trade plus the context every advisor sees.
type RiskInput struct {
	Ticker        string
	CurrentPrice  float64
	RiskTolerance models.RiskTolerance
	Proposal      models.TradeProposal
	Decision      models.Decision
	Analysis      *models.AnalystFindings
	Debate        *models.DebateState
	Portfolio     models.Portfolio
}

type slot struct {
	assessment models.RiskAssessment
	err        error
}

// Assess never fails. Degraded advisors and a degraded synthesis are listed in Errors.
func (t *Team) Assess(ctx context.Context, in RiskInput) *models.RiskState {
	log := t.log.WithField("ticker", in.Ticker)
	log.Info("risk assessment started")

	bindings := agents.Bindings{
		"ticker":         in.Ticker,
		"current_price":  fmt.Sprintf("%.2f", in.CurrentPrice),
		"risk_tolerance": string(in.RiskTolerance),
		"proposal":       trader.RenderProposal(in.Proposal),
		"cio_decision":   managers.Render(in.Decision),
		"analysis":       analysts.Summary(in.Analysis),
		"research":       researchers.Summary(in.Debate),
		"portfolio":      trader.RenderPortfolio(in.Portfolio),
	}
	slots := t.runAdvisors(ctx, bindings)

	state := &models.RiskState{
		Assessments: make(map[models.Perspective]models.RiskAssessment, len(slots)),
		Errors:      []string{},
	}
	for i, s := range slots {
		p := t.advisors[i].Perspective()
		state.Assessments[p] = s.assessment
		if s.err != nil {
			log.WithError(s.err).WithField("advisor", p).Warn("advisor degraded")
			state.Errors = append(state.Errors, fmt.Sprintf("%s advisor failed: %v", p, s.err))
		}
	}

	rec, err := t.synthesize(ctx, in, state.Assessments)
	if err != nil {
		log.WithError(err).Warn("risk synthesis degraded")
		state.Errors = append(state.Errors, fmt.Sprintf("risk synthesis failed: %v", err))
	}
	state.Recommendation = rec
	state.Adjustments = models.ComposeAdjustments(in.Proposal.QuantityFraction, rec.ApprovedPositionSize)

	log.WithFields(map[string]any{
		"action":            rec.Action,
		"approved_size":     rec.ApprovedPositionSize,
		"approved_fraction": state.Adjustments.ApprovedFraction,
	}).Info("risk assessment finished")
	return state
}

// runAdvisors fills one private slot per advisor; a failing advisor never cancels the
// others.
func (t *Team) runAdvisors(ctx context.Context, bindings agents.Bindings) []slot {
	slots := make([]slot, len(t.advisors))
	if !t.parallel {
		for i, a := range t.advisors {
			assessment, err := a.Assess(ctx, bindings)
			slots[i] = slot{assessment: assessment, err: err}
		}
		return slots
	}

	var g errgroup.Group
	for i, a := range t.advisors {
		g.Go(func() error {
			assessment, err := a.Assess(ctx, bindings)
			slots[i] = slot{assessment: assessment, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

func (t *Team) synthesize(ctx context.Context, in RiskInput, assessments map[models.Perspective]models.RiskAssessment) (models.RiskRecommendation, error) {
	render := func(p models.Perspective) string {
		a, ok := assessments[p]
		if !ok {
			return "Not available"
		}
		return renderAssessment(a)
	}

	rec, err := t.invoker.Invoke(ctx, consts.TemplateRiskSynthesis, agents.Bindings{
		"ticker":             in.Ticker,
		"risk_tolerance":     string(in.RiskTolerance),
		"proposal":           trader.RenderProposal(in.Proposal),
		"risky_assessment":   render(models.PerspectiveRisky),
		"neutral_assessment": render(models.PerspectiveNeutral),
		"safe_assessment":    render(models.PerspectiveSafe),
	})
	if err != nil {
		return models.RiskRecommendation{
			Action:                 models.RiskHoldForReview,
			RiskLevel:              models.RiskHigh,
			ApprovedPositionSize:   0,
			RequiredStopLoss:       consts.DefaultStopLossPct,
			SuggestedTakeProfit:    consts.DefaultTakeProfitPct,
			RiskLimits:             map[string]float64{},
			MonitoringRequirements: []string{},
			EscalationTriggers:     []string{},
			KeyRisks:               []string{},
			Mitigations:            []string{},
			DissentingOpinions:     []string{},
			ApprovalConditions:     []string{"Manual risk review required"},
			TraderFeedback: models.TraderFeedback{
				PositionAdjustment:     1.0,
				AdditionalRequirements: []string{},
			},
			Reasoning: fmt.Sprintf("Risk synthesis failed: %v", err),
			Degraded:  true,
		}, err
	}

	feedback := rec.Record("trader_feedback")
	return models.RiskRecommendation{
		Action:                 models.ParseRiskAction(rec.Upper("action")),
		Confidence:             models.ClampUnit(rec.Float("confidence")),
		RiskLevel:              models.ParseRiskLevel(rec.Upper("risk_level")),
		ApprovedPositionSize:   models.ClampUnit(rec.FloatOr("approved_position_size", 1.0)),
		RequiredStopLoss:       rec.FloatOr("required_stop_loss", consts.DefaultStopLossPct),
		SuggestedTakeProfit:    rec.FloatOr("suggested_take_profit", consts.DefaultTakeProfitPct),
		RiskLimits:             rec.FloatMap("risk_limits"),
		MonitoringRequirements: rec.Strings("monitoring_requirements"),
		EscalationTriggers:     rec.Strings("escalation_triggers"),
		ConsensusView:          rec.String("consensus_view"),
		KeyRisks:               rec.Strings("key_risks"),
		Mitigations:            rec.Strings("mitigations"),
		DissentingOpinions:     rec.Strings("dissenting_opinions"),
		ApprovalConditions:     rec.Strings("approval_conditions"),
		TraderFeedback: models.TraderFeedback{
			PositionAdjustment:     nonNegative(feedback.FloatOr("position_adjustment", 1.0)),
			StopLossAdjustment:     feedback.Float("stop_loss_adjustment"),
			AdditionalRequirements: feedback.Strings("additional_requirements"),
		},
		Reasoning: rec.String("reasoning"),
	}, nil
}
