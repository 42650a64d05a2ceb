package models

type Perspective string

const (
	PerspectiveRisky   Perspective = "risky"
	PerspectiveNeutral Perspective = "neutral"
	PerspectiveSafe    Perspective = "safe"
)

var Perspectives = []Perspective{PerspectiveRisky, PerspectiveNeutral, PerspectiveSafe}

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

func ParseRiskLevel(s string) RiskLevel {
	switch l := RiskLevel(s); l {
	case RiskLow, RiskHigh, RiskCritical:
		return l
	}
	return RiskMedium
}

type RiskFactor struct {
	Level       RiskLevel `json:"level"`
	Score       float64   `json:"score"`
	Description string    `json:"description"`
}

type RiskAction string

const (
	RiskApprove               RiskAction = "APPROVE"
	RiskApproveWithConditions RiskAction = "APPROVE_WITH_CONDITIONS"
	RiskReducePosition        RiskAction = "REDUCE_POSITION"
	RiskReject                RiskAction = "REJECT"
	RiskHoldForReview         RiskAction = "HOLD_FOR_REVIEW"
)

func ParseRiskAction(s string) RiskAction {
	switch a := RiskAction(s); a {
	case RiskApprove, RiskApproveWithConditions, RiskReducePosition, RiskReject:
		return a
	}
	return RiskHoldForReview
}

// RiskAssessment is one advisor's view of the finalized trade.
type RiskAssessment struct {
	Perspective              Perspective `json:"perspective"`
	OverallRiskLevel         RiskLevel   `json:"overall_risk_level"`
	RiskScore                float64     `json:"risk_score"`
	Recommendation           RiskAction  `json:"recommendation"`
	PositionAdjustment       float64     `json:"position_adjustment"`
	MarketVolatility         RiskFactor  `json:"market_volatility"`
	Liquidity                RiskFactor  `json:"liquidity"`
	Concentration            RiskFactor  `json:"concentration"`
	Counterparty             RiskFactor  `json:"counterparty"`
	StopLossRecommendation   float64     `json:"stop_loss_recommendation"`
	TakeProfitRecommendation float64     `json:"take_profit_recommendation"`
	Reasoning                string      `json:"reasoning"`
	KeyConcerns              []string    `json:"key_concerns"`
	Opportunities            []string    `json:"opportunities"`
	WorstCase                string      `json:"worst_case_scenario"`
	Degraded                 bool        `json:"degraded,omitempty"`
	Error                    string      `json:"error,omitempty"`
}

type TraderFeedback struct {
	PositionAdjustment     float64  `json:"position_adjustment"`
	StopLossAdjustment     float64  `json:"stop_loss_adjustment"`
	AdditionalRequirements []string `json:"additional_requirements"`
}

// RiskRecommendation folds the three advisor assessments.
type RiskRecommendation struct {
	Action                 RiskAction         `json:"action"`
	Confidence             float64            `json:"confidence"`
	RiskLevel              RiskLevel          `json:"risk_level"`
	ApprovedPositionSize   float64            `json:"approved_position_size"`
	RequiredStopLoss       float64            `json:"required_stop_loss"`
	SuggestedTakeProfit    float64            `json:"suggested_take_profit"`
	RiskLimits             map[string]float64 `json:"risk_limits"`
	MonitoringRequirements []string           `json:"monitoring_requirements"`
	EscalationTriggers     []string           `json:"escalation_triggers"`
	ConsensusView          string             `json:"consensus_view"`
	KeyRisks               []string           `json:"key_risks"`
	Mitigations            []string           `json:"mitigations"`
	DissentingOpinions     []string           `json:"dissenting_opinions"`
	ApprovalConditions     []string           `json:"approval_conditions"`
	TraderFeedback         TraderFeedback     `json:"trader_feedback"`
	Reasoning              string             `json:"reasoning"`
	Degraded               bool               `json:"degraded,omitempty"`
}

// PositionAdjustments records how the portfolio clamp and the risk approval stack.
type PositionAdjustments struct {
	OriginalFraction float64 `json:"original_fraction"`
	ApprovedFraction float64 `json:"approved_fraction"`
	AdjustmentFactor float64 `json:"adjustment_factor"`
}

// ComposeAdjustments applies the risk team's approved size to the clamped fraction.
func ComposeAdjustments(clampedFraction, approvedSize float64) PositionAdjustments {
	factor := ClampUnit(approvedSize)
	return PositionAdjustments{
		OriginalFraction: clampedFraction,
		ApprovedFraction: clampedFraction * factor,
		AdjustmentFactor: factor,
	}
}

// RiskState is the risk_assess stage's section of RunState.
type RiskState struct {
	Assessments    map[Perspective]RiskAssessment `json:"assessments"`
	Recommendation RiskRecommendation             `json:"recommendation"`
	Adjustments    PositionAdjustments            `json:"adjustments"`
	Errors         []string                       `json:"errors,omitempty"`
}
