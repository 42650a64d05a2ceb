package routing

import (
	"github.com/dyike/CortexTrader/config"
	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/models"
)

// ConditionalLogic holds the caps and thresholds every branch decision depends on.
type ConditionalLogic struct {
	MaxDebateRounds      int
	MaxTradeIterations   int
	ScoreThreshold       float64
	RequireHumanApproval bool
	AutoApproveThreshold float64
}

// NewConditionalLogic returns the default caps and thresholds.
func NewConditionalLogic() *ConditionalLogic {
	return &ConditionalLogic{
		MaxDebateRounds:      consts.DefaultMaxDebate,
		MaxTradeIterations:   consts.DefaultMaxIterations,
		ScoreThreshold:       consts.DefaultScoreThreshold,
		RequireHumanApproval: true,
		AutoApproveThreshold: consts.DefaultAutoApprove,
	}
}

func FromConfig(cfg *config.Config) *ConditionalLogic {
	return &ConditionalLogic{
		MaxDebateRounds:      cfg.MaxDebateRounds,
		MaxTradeIterations:   cfg.MaxTradeIterations,
		ScoreThreshold:       cfg.ScoreThreshold,
		RequireHumanApproval: cfg.RequireHumanApproval,
		AutoApproveThreshold: cfg.AutoApproveThreshold,
	}
}

// AfterFetch ends the run when no snapshot could be produced.
func (cl *ConditionalLogic) AfterFetch(snapshot *models.MarketSnapshot, err error) FetchRoute {
	if err != nil || snapshot == nil {
		return FetchEnd
	}
	return FetchAnalyze
}

// AfterAnalyze skips research when the analyst stage failed.
func (cl *ConditionalLogic) AfterAnalyze(findings *models.AnalystFindings) AnalyzeRoute {
	if findings == nil || findings.Failed {
		return AnalyzeDecide
	}
	return AnalyzeResearch
}

// AfterDecide skips trade and risk when trading is disabled or the CIO holds.
func (cl *ConditionalLogic) AfterDecide(enableTrading bool, decision models.Decision) DecideRoute {
	if !enableTrading || decision.Action == models.ActionHold {
		return DecideSkip
	}
	return DecideTrade
}

// ShouldContinueDebate runs another round only if the evaluator asks for one, no
// consensus was reached and the round cap allows it.
func (cl *ConditionalLogic) ShouldContinueDebate(eval models.RoundEvaluation) DebateRoute {
	if eval.Recommendation == models.RecommendContinue &&
		eval.Round < cl.MaxDebateRounds &&
		!eval.ConsensusReached {
		return DebateNextRound
	}
	return DebateSynthesize
}

// ShouldRefine refines while the score is below threshold and iterations remain.
func (cl *ConditionalLogic) ShouldRefine(score models.FeedbackScore, iteration int) RefinementRoute {
	if score.Overall >= cl.ScoreThreshold {
		return Proceed
	}
	if iteration < cl.MaxTradeIterations {
		return Refine
	}
	return MaxReached
}

// RouteOrder decides whether an order needs no action, a human or nothing more.
func (cl *ConditionalLogic) RouteOrder(action models.Signal, score models.FeedbackScore) OrderRoute {
	if action == models.SignalHold {
		return OrderNoAction
	}
	if cl.AutoApproves(score) {
		return OrderAutoApproved
	}
	return OrderNeedsApproval
}

// AutoApproves reports whether score clears the auto-approval gate.
func (cl *ConditionalLogic) AutoApproves(score models.FeedbackScore) bool {
	if !cl.RequireHumanApproval {
		return true
	}
	return score.Overall >= cl.AutoApproveThreshold && score.Recommendation == models.ScoreApprove
}

func (cl *ConditionalLogic) RouteApproval(decision models.ApprovalDecision) ApprovalRoute {
	switch decision.Outcome {
	case models.ApprovalApproved:
		return ApprovalExecute
	case models.ApprovalRejected:
		return ApprovalReject
	}
	return ApprovalAwait
}
