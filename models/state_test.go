package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     RunRequest
		wantErr bool
	}{
		{"ok", RunRequest{Ticker: " aapl ", AvailableCapital: 1000, RiskTolerance: ToleranceModerate}, false},
		{"empty ticker", RunRequest{Ticker: " ", RiskTolerance: ToleranceModerate}, true},
		{"negative capital", RunRequest{Ticker: "AAPL", AvailableCapital: -1, RiskTolerance: ToleranceModerate}, true},
		{"bad tolerance", RunRequest{Ticker: "AAPL", RiskTolerance: "yolo"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "AAPL", tt.req.Ticker)
		})
	}
}

func TestRunStateMergeOnce(t *testing.T) {
	s := NewRunState(RunRequest{Ticker: "AAPL", RiskTolerance: ToleranceModerate})
	for _, stage := range Stages {
		assert.Equal(t, StagePending, s.Stages[stage])
	}

	require.NoError(t, s.MergeSnapshot(&MarketSnapshot{Ticker: "AAPL", PriceHistory: []float64{1, 2}}))
	assert.NotNil(t, s.Snapshot.NewsArticles)
	assert.NotNil(t, s.Snapshot.FinancialReports)
	assert.Equal(t, 2.0, s.Snapshot.CurrentPrice)
	err := s.MergeSnapshot(&MarketSnapshot{})
	assert.True(t, errors.Is(err, ErrSectionWritten))

	require.NoError(t, s.MergeDecision(&Decision{Action: ActionBuy}))
	assert.ErrorIs(t, s.MergeDecision(&Decision{Action: ActionSell}), ErrSectionWritten)
	assert.Equal(t, ActionBuy, s.Decision.Action)

	require.NoError(t, s.MergeTrade(&TradeState{}))
	assert.ErrorIs(t, s.MergeTrade(&TradeState{}), ErrSectionWritten)
	require.NoError(t, s.MergeRisk(&RiskState{}))
	assert.ErrorIs(t, s.MergeRisk(&RiskState{}), ErrSectionWritten)
	assert.Nil(t, s.Analysis)
	assert.Nil(t, s.Debate)
}

func TestRunStateAppendError(t *testing.T) {
	s := NewRunState(RunRequest{Ticker: "AAPL"})
	s.AppendError(StageFetch, "boom")
	s.AppendError(StageDecide, "bad json")
	assert.Equal(t, []string{"fetch: boom", "decide: bad json"}, s.Errors)
}

func TestComputeOverall(t *testing.T) {
	tests := []struct {
		risk, reward, timing, alignment, want float64
	}{
		{0, 1, 1, 1, 1},
		{1, 0, 0, 0, 0},
		{0.5, 0.5, 0.5, 0.5, 0.5},
		{0.2, 0.6, 0.7, 0.8, 0.3*0.8 + 0.3*0.6 + 0.2*0.7 + 0.2*0.8},
		{-1, 2, 2, 2, 1},
	}
	for _, tt := range tests {
		got := ComputeOverall(tt.risk, tt.reward, tt.timing, tt.alignment)
		assert.InDelta(t, tt.want, got, 1e-9)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestActionDirection(t *testing.T) {
	assert.Equal(t, SignalBuy, ActionStrongBuy.Direction())
	assert.Equal(t, SignalBuy, ParseAction("buy").Direction())
	assert.Equal(t, SignalSell, ParseAction("STRONG_SELL").Direction())
	assert.Equal(t, SignalHold, ParseAction("maybe").Direction())
}

func TestComposeAdjustments(t *testing.T) {
	adj := ComposeAdjustments(0.2, 0.5)
	assert.InDelta(t, 0.1, adj.ApprovedFraction, 1e-9)
	assert.Equal(t, 0.5, adj.AdjustmentFactor)

	adj = ComposeAdjustments(0.2, 1.5)
	assert.InDelta(t, 0.2, adj.ApprovedFraction, 1e-9)
}

func TestSnapshotHelpers(t *testing.T) {
	s := &MarketSnapshot{
		PriceHistory:  []float64{100, 105, 110},
		VolumeHistory: []float64{5, 10, 20, 30},
		NewsArticles:  []string{"Headline one\nbody text", "Two"},
	}
	s.Normalize()
	assert.Len(t, s.VolumeHistory, 3)
	assert.Equal(t, []float64{10, 20, 30}, s.VolumeHistory)
	assert.InDelta(t, 10.0, s.PriceChangePct(), 1e-9)
	assert.Equal(t, []string{"Headline one"}, s.Headlines(1, 200))
	assert.Equal(t, []string{"Head", "Two"}, s.Headlines(10, 4))
}

func TestDebateStateLatest(t *testing.T) {
	d := DebateState{History: []Argument{
		{Side: SideBullish, Round: 1}, {Side: SideBearish, Round: 1},
		{Side: SideBullish, Round: 2},
	}}
	arg, ok := d.Latest(SideBearish)
	require.True(t, ok)
	assert.Equal(t, 1, arg.Round)
	assert.Len(t, d.Arguments(SideBullish), 2)
}
