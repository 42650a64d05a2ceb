package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyike/CortexTrader/config"
	"github.com/dyike/CortexTrader/models"
)

func TestShouldContinueDebate(t *testing.T) {
	cl := NewConditionalLogic()
	tests := []struct {
		name string
		eval models.RoundEvaluation
		want DebateRoute
	}{
		{"continue", models.RoundEvaluation{Round: 1, Recommendation: models.RecommendContinue}, DebateNextRound},
		{"consensus", models.RoundEvaluation{Round: 1, Recommendation: models.RecommendContinue, ConsensusReached: true}, DebateSynthesize},
		{"conclude", models.RoundEvaluation{Round: 1, Recommendation: models.RecommendConclude}, DebateSynthesize},
		{"cap", models.RoundEvaluation{Round: 2, Recommendation: models.RecommendContinue}, DebateSynthesize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cl.ShouldContinueDebate(tt.eval))
		})
	}
}

func TestShouldRefine(t *testing.T) {
	cl := NewConditionalLogic()
	low := models.FeedbackScore{Overall: 0.1}
	assert.Equal(t, Refine, cl.ShouldRefine(low, 1))
	assert.Equal(t, Refine, cl.ShouldRefine(low, 2))
	assert.Equal(t, MaxReached, cl.ShouldRefine(low, 3))
	assert.Equal(t, Proceed, cl.ShouldRefine(models.FeedbackScore{Overall: 0.6}, 1))
}

func TestRouteOrder(t *testing.T) {
	cl := NewConditionalLogic()
	good := models.FeedbackScore{Overall: 0.9, Recommendation: models.ScoreApprove}

	assert.Equal(t, OrderNoAction, cl.RouteOrder(models.SignalHold, good))
	assert.Equal(t, OrderAutoApproved, cl.RouteOrder(models.SignalBuy, good))
	assert.Equal(t, OrderNeedsApproval, cl.RouteOrder(models.SignalBuy, models.FeedbackScore{Overall: 0.9, Recommendation: models.ScoreRevise}))
	assert.Equal(t, OrderNeedsApproval, cl.RouteOrder(models.SignalSell, models.FeedbackScore{Overall: 0.84, Recommendation: models.ScoreApprove}))

	cl.RequireHumanApproval = false
	assert.Equal(t, OrderAutoApproved, cl.RouteOrder(models.SignalSell, models.FeedbackScore{Overall: 0.1}))
}

func TestPipelineBranches(t *testing.T) {
	cl := FromConfig(config.DefaultConfigWithRoot(t.TempDir()))

	assert.Equal(t, FetchEnd, cl.AfterFetch(nil, nil))
	assert.Equal(t, FetchAnalyze, cl.AfterFetch(&models.MarketSnapshot{}, nil))

	assert.Equal(t, AnalyzeDecide, cl.AfterAnalyze(&models.AnalystFindings{Failed: true}))
	assert.Equal(t, AnalyzeResearch, cl.AfterAnalyze(&models.AnalystFindings{}))

	assert.Equal(t, DecideSkip, cl.AfterDecide(true, models.Decision{Action: models.ActionHold}))
	assert.Equal(t, DecideSkip, cl.AfterDecide(false, models.Decision{Action: models.ActionBuy}))
	assert.Equal(t, DecideTrade, cl.AfterDecide(true, models.Decision{Action: models.ActionStrongSell}))

	assert.Equal(t, ApprovalExecute, cl.RouteApproval(models.ApprovalDecision{Outcome: models.ApprovalApproved}))
	assert.Equal(t, ApprovalReject, cl.RouteApproval(models.ApprovalDecision{Outcome: models.ApprovalRejected}))
	assert.Equal(t, ApprovalAwait, cl.RouteApproval(models.ApprovalDecision{}))
	assert.Equal(t, "max_reached", MaxReached.String())
}
