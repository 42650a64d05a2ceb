package researchers

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/agents/analysts"
	"github.com/dyike/CortexTrader/internal/metrics"
	"github.com/dyike/CortexTrader/internal/routing"
	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/logger"
)

type phase int

const (
	bullishTurn phase = iota
	bearishTurn
	evaluate
	synthesize
	done
)

// Debate alternates bullish and bearish arguments until the evaluator concludes or
// the round cap is reached, then synthesizes a research report.
type Debate struct {
	bull    *Researcher
	bear    *Researcher
	invoker agents.Invoker
	logic   *routing.ConditionalLogic
	log     *logger.Logger
	metrics *metrics.Collector
}

type Option func(*Debate)

func WithLogger(l *logger.Logger) Option {
	return func(d *Debate) {
		if l != nil {
			d.log = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(d *Debate) { d.metrics = m }
}

func NewDebate(inv agents.Invoker, logic *routing.ConditionalLogic, opts ...Option) *Debate {
	if logic == nil {
		logic = routing.NewConditionalLogic()
	}
	d := &Debate{
		bull:    NewBullishResearcher(inv),
		bear:    NewBearishResearcher(inv),
		invoker: inv,
		logic:   logic,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithComponent("debate")
	return d
}

type DebateInput struct {
	Ticker   string
	Analysis *models.AnalystFindings
}

// Run never fails; failed calls are recorded in the returned state's Errors.
func (d *Debate) Run(ctx context.Context, in DebateInput) *models.DebateState {
	state := &models.DebateState{
		History:     []models.Argument{},
		Round:       1,
		MaxRounds:   d.logic.MaxDebateRounds,
		Evaluations: []models.RoundEvaluation{},
		Errors:      []string{},
	}
	log := d.log.WithField("ticker", in.Ticker)
	log.WithField("max_rounds", state.MaxRounds).Info("debate started")

	analysis := analysts.Summary(in.Analysis)
	findings := analysts.Details(in.Analysis)
	argue := func(r *Researcher, counter *models.Argument) {
		arg, err := r.Argue(ctx, ArgueInput{
			Ticker:   in.Ticker,
			Round:    state.Round,
			Analysis: analysis,
			Findings: findings,
			Counter:  counter,
		})
		if err != nil {
			log.WithError(err).WithField("side", r.side).Warn("argument degraded")
			state.Errors = append(state.Errors, fmt.Sprintf("%s argument round %d failed: %v", r.side, state.Round, err))
		}
		state.History = append(state.History, arg)
	}

	for p := bullishTurn; p != done; {
		switch p {
		case bullishTurn:
			var counter *models.Argument
			if state.Round > 1 {
				if prev, ok := state.Latest(models.SideBearish); ok {
					counter = &prev
				}
			}
			argue(d.bull, counter)
			p = bearishTurn

		case bearishTurn:
			current, _ := state.Latest(models.SideBullish)
			argue(d.bear, &current)
			p = evaluate

		case evaluate:
			eval := d.evaluate(ctx, in.Ticker, state)
			state.Evaluations = append(state.Evaluations, eval)
			state.ConsensusReached = eval.ConsensusReached

			route := d.logic.ShouldContinueDebate(eval)
			log.WithFields(map[string]any{
				"round":          state.Round,
				"consensus":      eval.ConsensusReached,
				"recommendation": eval.Recommendation,
				"route":          route.String(),
			}).Debug("round evaluated")

			if route == routing.DebateNextRound {
				state.Round++
				p = bullishTurn
				continue
			}
			state.Exhausted = eval.Recommendation == models.RecommendContinue && !eval.ConsensusReached
			p = synthesize

		case synthesize:
			report := d.synthesize(ctx, in.Ticker, analysis, state)
			state.Report = &report
			p = done
		}
	}

	d.metrics.ObserveDebateRounds(state.Round)
	log.WithFields(map[string]any{
		"rounds":    state.Round,
		"consensus": state.ConsensusReached,
		"exhausted": state.Exhausted,
		"action":    state.Report.RecommendedAction,
	}).Info("debate finished")
	return state
}

// evaluate judges the current round. A failed call asks to continue so that only the
// round cap decides.
func (d *Debate) evaluate(ctx context.Context, ticker string, state *models.DebateState) models.RoundEvaluation {
	bull, _ := state.Latest(models.SideBullish)
	bear, _ := state.Latest(models.SideBearish)

	rec, err := d.invoker.Invoke(ctx, consts.TemplateDebateEvaluation, agents.Bindings{
		"ticker":           ticker,
		"round":            state.Round,
		"max_rounds":       state.MaxRounds,
		"bullish_argument": renderArgument(bull),
		"bearish_argument": renderArgument(bear),
	})
	if err != nil {
		d.log.WithError(err).Warn("evaluation degraded")
		state.Errors = append(state.Errors, fmt.Sprintf("evaluation round %d failed: %v", state.Round, err))
		return models.RoundEvaluation{
			Round:            state.Round,
			ConsensusReached: false,
			Recommendation:   models.RecommendContinue,
			KeyPoints:        []string{},
			UnresolvedIssues: []string{},
			Reasoning:        fmt.Sprintf("Evaluation failed: %v", err),
			Degraded:         true,
		}
	}

	recommendation := models.RecommendContinue
	if strings.EqualFold(rec.String("recommendation"), string(models.RecommendConclude)) {
		recommendation = models.RecommendConclude
	}
	return models.RoundEvaluation{
		Round:            state.Round,
		ConsensusReached: rec.Bool("consensus_reached"),
		Recommendation:   recommendation,
		KeyPoints:        rec.Strings("key_points"),
		UnresolvedIssues: rec.Strings("unresolved_issues"),
		QualityScore:     models.ClampUnit(rec.Float("quality_score")),
		Reasoning:        rec.String("reasoning"),
	}
}

func (d *Debate) synthesize(ctx context.Context, ticker, analysis string, state *models.DebateState) models.ResearchReport {
	var history strings.Builder
	for _, arg := range state.History {
		history.WriteString(renderArgument(arg))
		history.WriteString("\n\n")
	}
	finalBull, _ := state.Latest(models.SideBullish)
	finalBear, _ := state.Latest(models.SideBearish)

	rec, err := d.invoker.Invoke(ctx, consts.TemplateDebateSynthesis, agents.Bindings{
		"ticker":        ticker,
		"rounds":        state.Round,
		"analysis":      analysis,
		"history":       strings.TrimSpace(history.String()),
		"final_bullish": renderArgument(finalBull),
		"final_bearish": renderArgument(finalBear),
	})
	if err != nil {
		d.log.WithError(err).Warn("synthesis degraded")
		state.Errors = append(state.Errors, fmt.Sprintf("synthesis failed: %v", err))
		return models.ResearchReport{
			ConsensusPoints:    []string{},
			KeyDisagreements:   []string{},
			KeyRisks:           []string{},
			KeyOpportunities:   []string{},
			ConfidenceScore:    0,
			RecommendedAction:  models.SignalHold,
			PositionConviction: models.ConvictionLow,
			Reasoning:          fmt.Sprintf("Synthesis failed: %v", err),
			DebateRounds:       state.Round,
			Degraded:           true,
		}
	}

	return models.ResearchReport{
		InvestmentThesis:     rec.String("investment_thesis"),
		BullCaseSummary:      rec.String("bull_case_summary"),
		BearCaseSummary:      rec.String("bear_case_summary"),
		ConsensusPoints:      rec.Strings("consensus_points"),
		KeyDisagreements:     rec.Strings("key_disagreements"),
		RiskRewardAssessment: rec.String("risk_reward_assessment"),
		KeyRisks:             rec.Strings("key_risks"),
		KeyOpportunities:     rec.Strings("key_opportunities"),
		ConfidenceScore:      models.ClampUnit(rec.Float("confidence_score")),
		RecommendedAction:    models.ParseSignal(rec.Upper("recommended_action")),
		PositionConviction:   parseConviction(rec.Upper("position_conviction")),
		Reasoning:            rec.String("reasoning"),
		DebateRounds:         state.Round,
	}
}

func parseConviction(s string) models.Conviction {
	switch c := models.Conviction(s); c {
	case models.ConvictionHigh, models.ConvictionLow:
		return c
	}
	return models.ConvictionMedium
}

// Summary renders a research report for downstream prompts.
func Summary(d *models.DebateState) string {
	if d == nil || d.Report == nil {
		return "No research debate was held."
	}
	r := d.Report
	var b strings.Builder
	fmt.Fprintf(&b, "Recommended action: %s (confidence %.2f, conviction %s, %d rounds)\n",
		r.RecommendedAction, r.ConfidenceScore, r.PositionConviction, r.DebateRounds)
	fmt.Fprintf(&b, "Thesis: %s\n", r.InvestmentThesis)
	fmt.Fprintf(&b, "Bull case: %s\n", r.BullCaseSummary)
	fmt.Fprintf(&b, "Bear case: %s\n", r.BearCaseSummary)
	fmt.Fprintf(&b, "Risk/reward: %s\n", r.RiskRewardAssessment)
	b.WriteString("Key risks:\n")
	b.WriteString(agents.Bullets(r.KeyRisks, "- none"))
	b.WriteString("\nKey disagreements:\n")
	b.WriteString(agents.Bullets(r.KeyDisagreements, "- none"))
	if r.Degraded {
		b.WriteString("\nNote: the research synthesis was unavailable.")
	}
	return b.String()
}
