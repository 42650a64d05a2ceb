package managers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/agents/agentstest"
	"github.com/dyike/CortexTrader/models"
)

func degradedAnalysis() *models.AnalystFindings {
	out := &models.AnalystFindings{Findings: map[models.AnalystKind]models.Finding{}, Failed: true}
	for _, kind := range models.AnalystKinds {
		out.Findings[kind] = models.DegradedFinding(string(kind), errors.New("down"))
	}
	out.Consolidated = models.ConsolidatedFinding{
		Finding:      models.DegradedFinding("consolidated", errors.New("down")),
		PositionSize: models.SizeNone,
	}
	return out
}

func TestCIODecide(t *testing.T) {
	inv := agentstest.NewInvoker().On(consts.TemplateCIODecision, agents.Record{
		"action":          "strong_buy",
		"confidence":      "0.8",
		"position_size":   "three_quarter",
		"key_catalysts":   []any{"earnings"},
		"dissenting_view": "valuation is stretched",
	})

	d, err := NewCIO(inv, nil).Decide(context.Background(), DecideInput{Ticker: "AAPL", CurrentPrice: 187.456})
	require.NoError(t, err)

	assert.Equal(t, models.ActionStrongBuy, d.Action)
	assert.Equal(t, 0.8, d.Confidence)
	assert.Equal(t, models.SizeThreeQuarter, d.PositionSize)
	assert.Equal(t, []string{"earnings"}, d.KeyCatalysts)
	assert.False(t, d.Degraded)

	b := inv.Calls(consts.TemplateCIODecision)[0].Bindings
	assert.Equal(t, "187.46", b["current_price"])
	assert.Equal(t, "Analyst findings unavailable", b["analysis"])
	assert.Equal(t, "No research debate was held.", b["research"])
	assert.Contains(t, Render(d), "Dissenting view: valuation is stretched")
}

func TestCIOToleratesDegradedAnalysis(t *testing.T) {
	inv := agentstest.NewInvoker().On(consts.TemplateCIODecision, agents.Record{"action": "SELL", "confidence": 0.4})

	d, err := NewCIO(inv, nil).Decide(context.Background(), DecideInput{Ticker: "AAPL", Analysis: degradedAnalysis()})
	require.NoError(t, err)
	assert.Equal(t, models.ActionSell, d.Action)
	assert.Contains(t, inv.Calls(consts.TemplateCIODecision)[0].Bindings["analysis"], "analysis unavailable")
}

func TestCIOFailureHolds(t *testing.T) {
	d, err := NewCIO(agentstest.AlwaysFailing(errors.New("timeout")), nil).
		Decide(context.Background(), DecideInput{Ticker: "AAPL", Analysis: degradedAnalysis()})

	require.Error(t, err)
	assert.Equal(t, models.ActionHold, d.Action)
	assert.Equal(t, 0.0, d.Confidence)
	assert.Equal(t, models.SizeNone, d.PositionSize)
	assert.True(t, d.Degraded)
	assert.Contains(t, d.Reasoning, "timeout")
}

func TestParsePositionSize(t *testing.T) {
	assert.Equal(t, models.SizeQuarter, ParsePositionSize("QUARTER"))
	assert.Equal(t, models.SizeNone, ParsePositionSize("ALL_IN"))
}
