package analysts

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/indicators"
	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/logger"
)

// Team runs the four analysts and folds their findings into one consolidated call.
type Team struct {
	analysts []Analyst
	invoker  agents.Invoker
	parallel bool
	log      *logger.Logger
}

type Option func(*Team)

// WithParallel runs the four analysts concurrently. Output is identical to the
// sequential order.
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

// WithAnalysts replaces the default analyst line-up.
func WithAnalysts(analysts ...Analyst) Option {
	return func(t *Team) { t.analysts = analysts }
}

func NewTeam(inv agents.Invoker, opts ...Option) *Team {
	t := &Team{
		analysts: []Analyst{
			NewNewsAnalyst(inv),
			NewFundamentalsAnalyst(inv),
			NewSentimentAnalyst(inv),
			NewTechnicalAnalyst(inv),
		},
		invoker: inv,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.WithComponent("analysts")
	return t
}

type slot struct {
	finding models.Finding
	err     error
}

// Analyze never fails; failed calls become degraded findings listed in Errors.
func (t *Team) Analyze(ctx context.Context, snap *models.MarketSnapshot) *models.AnalystFindings {
	log := t.log.WithField("ticker", snap.Ticker)
	log.Info("analyst team started")

	slots := t.runAnalysts(ctx, snap)

	out := &models.AnalystFindings{
		Findings:   make(map[models.AnalystKind]models.Finding, len(slots)),
		Indicators: indicators.Compute(snap.PriceHistory, snap.VolumeHistory).Values(),
		Errors:     []string{},
	}
	for i, s := range slots {
		kind := t.analysts[i].Kind()
		out.Findings[kind] = s.finding
		if s.err != nil {
			log.WithError(s.err).WithField("analyst", kind).Warn("analyst degraded")
			out.Errors = append(out.Errors, fmt.Sprintf("%s analyst failed: %v", kind, s.err))
		}
	}

	consolidated, err := t.consolidate(ctx, snap.Ticker, out.Findings)
	if err != nil {
		log.WithError(err).Warn("consolidation failed")
		out.Failed = true
		out.Errors = append(out.Errors, fmt.Sprintf("consolidation failed: %v", err))
	}
	out.Consolidated = consolidated

	log.WithFields(map[string]any{
		"signal":     consolidated.Signal,
		"confidence": consolidated.Confidence,
		"failed":     out.Failed,
	}).Info("analyst team finished")
	return out
}

// runAnalysts fills one private slot per analyst. In parallel mode a failing analyst
// never cancels its siblings; the group only acts as the barrier.
func (t *Team) runAnalysts(ctx context.Context, snap *models.MarketSnapshot) []slot {
	slots := make([]slot, len(t.analysts))
	if !t.parallel {
		for i, a := range t.analysts {
			f, err := a.Analyze(ctx, snap)
			slots[i] = slot{finding: f, err: err}
		}
		return slots
	}

	var g errgroup.Group
	for i, a := range t.analysts {
		g.Go(func() error {
			f, err := a.Analyze(ctx, snap)
			slots[i] = slot{finding: f, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

func (t *Team) consolidate(ctx context.Context, ticker string, findings map[models.AnalystKind]models.Finding) (models.ConsolidatedFinding, error) {
	render := func(kind models.AnalystKind) string {
		f, ok := findings[kind]
		if !ok {
			return "Not available"
		}
		return renderFinding(f)
	}

	rec, err := t.invoker.Invoke(ctx, consts.TemplateConsolidation, agents.Bindings{
		"ticker":               ticker,
		"news_finding":         render(models.AnalystNews),
		"fundamentals_finding": render(models.AnalystFundamentals),
		"sentiment_finding":    render(models.AnalystSentiment),
		"technical_finding":    render(models.AnalystTechnical),
	})
	if err != nil {
		return models.ConsolidatedFinding{
			Finding:      models.DegradedFinding("consolidated", err),
			PositionSize: models.SizeNone,
			RiskFactors:  []string{},
		}, err
	}

	return models.ConsolidatedFinding{
		Finding:          findingFromRecord("consolidated", rec),
		PositionSize:     parsePositionSize(rec.Upper("position_size")),
		AnalystAgreement: rec.String("analyst_agreement"),
		RiskFactors:      rec.Strings("risk_factors"),
		TimeHorizon:      rec.String("time_horizon"),
	}, nil
}

func parsePositionSize(s string) models.PositionSize {
	switch p := models.PositionSize(s); p {
	case models.SizeFull, models.SizeHalf, models.SizeQuarter:
		return p
	}
	return models.SizeNone
}

// Summary renders the consolidated view for downstream prompts.
func Summary(f *models.AnalystFindings) string {
	if f == nil {
		return "Analyst findings unavailable"
	}
	c := f.Consolidated
	return fmt.Sprintf("%s\nPosition size: %s\nAgreement: %s\nRisk factors:\n%s",
		renderFinding(c.Finding), c.PositionSize, c.AnalystAgreement,
		agents.Bullets(c.RiskFactors, "- none"))
}

// Details renders every individual finding in trace order.
func Details(f *models.AnalystFindings) string {
	if f == nil {
		return "Analyst findings unavailable"
	}
	out := ""
	for _, kind := range models.AnalystKinds {
		finding, ok := f.Findings[kind]
		if !ok {
			continue
		}
		out += fmt.Sprintf("[%s]\n%s\n\n", kind, renderFinding(finding))
	}
	return out
}
