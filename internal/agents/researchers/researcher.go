package researchers

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/models"
)

// Researcher argues one side of the debate.
type Researcher struct {
	side     models.Side
	template string
	invoker  agents.Invoker
}

// ArgueInput is what a researcher sees for one round.
type ArgueInput struct {
	Ticker   string
	Round    int
	Analysis string
	Findings string
	// Counter is the opposing argument to answer, nil in the opening round.
	Counter *models.Argument
}

// Argue returns the argument for the round. A failed call yields a degraded argument
// that still takes its place in the history.
func (r *Researcher) Argue(ctx context.Context, in ArgueInput) (models.Argument, error) {
	counter := "No opposing argument yet."
	if in.Counter != nil {
		counter = renderArgument(*in.Counter)
	}
	bindings := agents.Bindings{
		"ticker":           in.Ticker,
		"round":            in.Round,
		"analysis":         in.Analysis,
		"findings":         in.Findings,
		"counter_argument": counter,
	}
	if r.side == models.SideBullish {
		bindings["rebuttal_instruction"] = rebuttalInstruction(in.Counter)
	}

	rec, err := r.invoker.Invoke(ctx, r.template, bindings)
	if err != nil {
		return models.Argument{
			Side:              r.side,
			Round:             in.Round,
			Thesis:            fmt.Sprintf("Argument generation failed: %v", err),
			SupportingPoints:  []string{},
			Confidence:        0,
			RecommendedAction: models.SignalHold,
			Degraded:          true,
		}, err
	}
	return models.Argument{
		Side:              r.side,
		Round:             in.Round,
		Thesis:            rec.String("thesis"),
		SupportingPoints:  rec.Strings("supporting_points"),
		Confidence:        models.ClampUnit(rec.Float("confidence")),
		RecommendedAction: models.ParseSignal(rec.Upper("recommended_action")),
		KeyRisks:          rec.Strings("key_risks"),
		Catalysts:         rec.Strings("catalysts"),
	}, nil
}

func rebuttalInstruction(counter *models.Argument) string {
	if counter == nil {
		return "Open the debate with your strongest case."
	}
	return "Rebut the bearish researcher's points above directly, then strengthen your case."
}

func renderArgument(a models.Argument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d %s argument (confidence %.2f, recommends %s)\n", a.Round, a.Side, a.Confidence, a.RecommendedAction)
	fmt.Fprintf(&b, "Thesis: %s\n", a.Thesis)
	b.WriteString("Supporting points:\n")
	b.WriteString(agents.Bullets(a.SupportingPoints, "- none"))
	if len(a.KeyRisks) > 0 {
		b.WriteString("\nAcknowledged risks:\n")
		b.WriteString(agents.Bullets(a.KeyRisks, ""))
	}
	return b.String()
}
