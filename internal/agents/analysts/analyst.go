package analysts

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/models"
)

// Analyst scores one slice of the market snapshot. On a failed call the returned
// Finding is already the degraded HOLD default and err explains why.
type Analyst interface {
	Kind() models.AnalystKind
	Analyze(ctx context.Context, snap *models.MarketSnapshot) (models.Finding, error)
}

// findingFromRecord maps an analyst response onto a Finding.
func findingFromRecord(kind models.AnalystKind, rec agents.Record) models.Finding {
	return models.NewFinding(
		string(kind),
		models.ParseSignal(rec.Upper("signal")),
		rec.Float("confidence"),
		rec.String("reasoning"),
		rec.Strings("key_factors"),
	)
}

// invokeFinding runs one analyst template and builds the degraded default on failure.
func invokeFinding(ctx context.Context, inv agents.Invoker, kind models.AnalystKind, templateID string, bindings agents.Bindings) (models.Finding, error) {
	rec, err := inv.Invoke(ctx, templateID, bindings)
	if err != nil {
		return models.DegradedFinding(string(kind), err), err
	}
	return findingFromRecord(kind, rec), nil
}

// renderFinding formats a finding for a downstream prompt.
func renderFinding(f models.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Signal: %s (confidence %.2f)\n", f.Signal, f.Confidence)
	if f.Degraded {
		b.WriteString("Status: analysis unavailable\n")
	}
	fmt.Fprintf(&b, "Reasoning: %s\n", f.Reasoning)
	b.WriteString("Key factors:\n")
	b.WriteString(agents.Bullets(f.KeyFactors, "- none"))
	return b.String()
}
