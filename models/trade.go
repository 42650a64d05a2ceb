package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

// TradeProposal is the trader's concrete proposal for one iteration.
type TradeProposal struct {
	Action            Signal    `json:"action"`
	OrderType         OrderType `json:"order_type"`
	QuantityFraction  float64   `json:"quantity_fraction"`
	LimitPrice        *float64  `json:"limit_price,omitempty"`
	StopLossPct       float64   `json:"stop_loss_pct"`
	TakeProfitPct     float64   `json:"take_profit_pct"`
	EntryTiming       string    `json:"entry_timing"`
	Confidence        float64   `json:"confidence"`
	RiskRewardRatio   float64   `json:"risk_reward_ratio"`
	Reasoning         string    `json:"reasoning"`
	ExitConditions    []string  `json:"exit_conditions"`
	Iteration         int       `json:"iteration"`
	PortfolioAdjusted bool      `json:"portfolio_adjusted,omitempty"`
	Degraded          bool      `json:"degraded,omitempty"`
}

type ScoreRecommendation string

const (
	ScoreApprove ScoreRecommendation = "APPROVE"
	ScoreRevise  ScoreRecommendation = "REVISE"
	ScoreReject  ScoreRecommendation = "REJECT"
)

func ParseScoreRecommendation(s string) ScoreRecommendation {
	switch r := ScoreRecommendation(s); r {
	case ScoreApprove, ScoreReject:
		return r
	}
	return ScoreRevise
}

// FeedbackScore grades one proposal. Overall is always derived from the components.
type FeedbackScore struct {
	Risk             float64             `json:"risk"`
	Reward           float64             `json:"reward"`
	Timing           float64             `json:"timing"`
	Alignment        float64             `json:"alignment"`
	Overall          float64             `json:"overall"`
	Iteration        int                 `json:"iteration"`
	Notes            []string            `json:"notes"`
	RiskFlags        []string            `json:"risk_flags,omitempty"`
	Recommendation   ScoreRecommendation `json:"recommendation"`
	RefinementReason string              `json:"refinement_reason,omitempty"`
	Degraded         bool                `json:"degraded,omitempty"`
}

// ComputeOverall weights the components with risk inverted. Inputs are clamped to [0,1].
func ComputeOverall(risk, reward, timing, alignment float64) float64 {
	risk, reward = ClampUnit(risk), ClampUnit(reward)
	timing, alignment = ClampUnit(timing), ClampUnit(alignment)
	return ClampUnit(0.3*(1-risk) + 0.3*reward + 0.2*timing + 0.2*alignment)
}

// Recompute clamps the components and refreshes Overall.
func (f *FeedbackScore) Recompute() {
	f.Risk = ClampUnit(f.Risk)
	f.Reward = ClampUnit(f.Reward)
	f.Timing = ClampUnit(f.Timing)
	f.Alignment = ClampUnit(f.Alignment)
	f.Overall = ComputeOverall(f.Risk, f.Reward, f.Timing, f.Alignment)
}

type PortfolioImpact struct {
	SuggestedFraction      float64  `json:"suggested_fraction"`
	AdjustedFraction       float64  `json:"adjusted_fraction"`
	ConcentrationLimit     float64  `json:"concentration_limit"`
	Clamped                bool     `json:"clamped"`
	AdjustmentReason       string   `json:"adjustment_reason"`
	RebalancingSuggestions []string `json:"rebalancing_suggestions"`
	Degraded               bool     `json:"degraded,omitempty"`
}

type OrderStatus string

const (
	StatusPending          OrderStatus = "PENDING"
	StatusAwaitingApproval OrderStatus = "AWAITING_APPROVAL"
	StatusApproved         OrderStatus = "APPROVED"
	StatusRejected         OrderStatus = "REJECTED"
	StatusExecuted         OrderStatus = "EXECUTED"
	StatusNoAction         OrderStatus = "NO_ACTION"
)

// ExecutionRecord is the order prepared from the final proposal. OrderID is assigned once.
type ExecutionRecord struct {
	OrderID         string          `json:"order_id"`
	Ticker          string          `json:"ticker"`
	Side            Signal          `json:"side"`
	OrderType       OrderType       `json:"order_type"`
	Quantity        decimal.Decimal `json:"quantity"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	EstimatedValue  decimal.Decimal `json:"estimated_value"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
	Status          OrderStatus     `json:"status"`
	AutoApproved    bool            `json:"auto_approved"`
	ApprovalReason  string          `json:"approval_reason,omitempty"`
	Feedback        string          `json:"feedback,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ExecutedAt      *time.Time      `json:"executed_at,omitempty"`
	FillPrice       decimal.Decimal `json:"fill_price"`
	FilledQuantity  decimal.Decimal `json:"filled_quantity"`
}

// ApprovalRequest is the summary shown to a human approver.
type ApprovalRequest struct {
	OrderID        string              `json:"order_id"`
	Ticker         string              `json:"ticker"`
	Side           Signal              `json:"side"`
	Quantity       string              `json:"quantity"`
	EstimatedValue string              `json:"estimated_value"`
	CurrentPrice   string              `json:"current_price"`
	StopLoss       string              `json:"stop_loss"`
	TakeProfit     string              `json:"take_profit"`
	Confidence     float64             `json:"confidence"`
	RiskScore      float64             `json:"risk_score"`
	OverallScore   float64             `json:"overall_score"`
	Recommendation ScoreRecommendation `json:"recommendation"`
	Reasoning      string              `json:"reasoning"`
}

type ApprovalOutcome string

const (
	ApprovalApproved ApprovalOutcome = "APPROVED"
	ApprovalRejected ApprovalOutcome = "REJECTED"
	ApprovalPending  ApprovalOutcome = "PENDING"
)

type ApprovalDecision struct {
	Outcome  ApprovalOutcome `json:"outcome"`
	Feedback string          `json:"feedback,omitempty"`
}

// TradeState is the trade stage's section of RunState.
type TradeState struct {
	Proposal       TradeProposal     `json:"proposal"`
	Scores         []FeedbackScore   `json:"scores"`
	Iteration      int               `json:"iteration"`
	MaxIterations  int               `json:"max_iterations"`
	Converged      bool              `json:"converged"`
	Portfolio      *PortfolioImpact  `json:"portfolio,omitempty"`
	Execution      *ExecutionRecord  `json:"execution,omitempty"`
	ExecutedOrders []ExecutionRecord `json:"executed_orders"`
	Approval       *ApprovalDecision `json:"approval,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
}

// LastScore returns the most recent score, if any.
func (t *TradeState) LastScore() (FeedbackScore, bool) {
	if len(t.Scores) == 0 {
		return FeedbackScore{}, false
	}
	return t.Scores[len(t.Scores)-1], true
}

// HitCap reports the loop stopped at the iteration cap without clearing threshold.
func (t *TradeState) HitCap() bool {
	return !t.Converged && t.Iteration >= t.MaxIterations
}
