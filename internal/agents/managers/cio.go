package managers

import (
	"context"
	"fmt"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/agents/analysts"
	"github.com/dyike/CortexTrader/internal/agents/researchers"
	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/logger"
)

// CIO folds the analyst view and the research report into the run's final decision.
type CIO struct {
	invoker agents.Invoker
	log     *logger.Logger
}

func NewCIO(inv agents.Invoker, log *logger.Logger) *CIO {
	if log == nil {
		log = logger.Nop()
	}
	return &CIO{invoker: inv, log: log.WithComponent("cio")}
}

type DecideInput struct {
	Ticker       string
	CurrentPrice float64
	Analysis     *models.AnalystFindings
	Debate       *models.DebateState
}

// Decide returns HOLD with zero confidence when the call fails, alongside the error.
// Degraded analyst input is passed through as is.
func (c *CIO) Decide(ctx context.Context, in DecideInput) (models.Decision, error) {
	log := c.log.WithField("ticker", in.Ticker)

	rec, err := c.invoker.Invoke(ctx, consts.TemplateCIODecision, agents.Bindings{
		"ticker":        in.Ticker,
		"current_price": fmt.Sprintf("%.2f", in.CurrentPrice),
		"analysis":      analysts.Summary(in.Analysis),
		"research":      researchers.Summary(in.Debate),
	})
	if err != nil {
		log.WithError(err).Warn("decision degraded")
		return models.HoldDecision(fmt.Sprintf("Decision failed: %v", err)), err
	}

	d := models.Decision{
		Action:         models.ParseAction(rec.String("action")),
		Confidence:     models.ClampUnit(rec.Float("confidence")),
		PositionSize:   ParsePositionSize(rec.Upper("position_size")),
		TimeHorizon:    rec.String("time_horizon"),
		EntryStrategy:  rec.String("entry_strategy"),
		ExitStrategy:   rec.String("exit_strategy"),
		RiskManagement: rec.String("risk_management"),
		KeyCatalysts:   rec.Strings("key_catalysts"),
		Reasoning:      rec.String("reasoning"),
		DissentingView: rec.String("dissenting_view"),
	}
	log.WithFields(map[string]any{
		"action":     d.Action,
		"confidence": d.Confidence,
		"size":       d.PositionSize,
	}).Info("decision made")
	return d, nil
}

// ParsePositionSize accepts the five CIO sizes and falls back to NONE.
func ParsePositionSize(s string) models.PositionSize {
	switch p := models.PositionSize(s); p {
	case models.SizeFull, models.SizeThreeQuarter, models.SizeHalf, models.SizeQuarter:
		return p
	}
	return models.SizeNone
}

// Render formats a decision for downstream prompts.
func Render(d models.Decision) string {
	s := fmt.Sprintf("Action: %s (confidence %.2f, size %s, horizon %s)\nEntry: %s\nExit: %s\nRisk management: %s\nReasoning: %s\nCatalysts:\n%s",
		d.Action, d.Confidence, d.PositionSize, d.TimeHorizon, d.EntryStrategy, d.ExitStrategy,
		d.RiskManagement, d.Reasoning, agents.Bullets(d.KeyCatalysts, "- none"))
	if d.DissentingView != "" {
		s += "\nDissenting view: " + d.DissentingView
	}
	return s
}
