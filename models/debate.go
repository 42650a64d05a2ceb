package models

type Side string

const (
	SideBullish Side = "bullish"
	SideBearish Side = "bearish"
)

// Argument is one side's position for one debate round. It is never mutated after it
// has been appended to the history.
type Argument struct {
	Side              Side     `json:"side"`
	Round             int      `json:"round"`
	Thesis            string   `json:"thesis"`
	SupportingPoints  []string `json:"supporting_points"`
	Confidence        float64  `json:"confidence"`
	RecommendedAction Signal   `json:"recommended_action"`
	KeyRisks          []string `json:"key_risks,omitempty"`
	Catalysts         []string `json:"catalysts,omitempty"`
	Degraded          bool     `json:"degraded,omitempty"`
}

type DebateRecommendation string

const (
	RecommendContinue DebateRecommendation = "continue"
	RecommendConclude DebateRecommendation = "conclude"
)

type RoundEvaluation struct {
	Round            int                  `json:"round"`
	ConsensusReached bool                 `json:"consensus_reached"`
	Recommendation   DebateRecommendation `json:"recommendation"`
	KeyPoints        []string             `json:"key_points"`
	UnresolvedIssues []string             `json:"unresolved_issues"`
	QualityScore     float64              `json:"quality_score"`
	Reasoning        string               `json:"reasoning"`
	Degraded         bool                 `json:"degraded,omitempty"`
}

type Conviction string

const (
	ConvictionHigh   Conviction = "HIGH"
	ConvictionMedium Conviction = "MEDIUM"
	ConvictionLow    Conviction = "LOW"
)

// ResearchReport is the synthesis of a finished debate.
type ResearchReport struct {
	InvestmentThesis     string     `json:"investment_thesis"`
	BullCaseSummary      string     `json:"bull_case_summary"`
	BearCaseSummary      string     `json:"bear_case_summary"`
	ConsensusPoints      []string   `json:"consensus_points"`
	KeyDisagreements     []string   `json:"key_disagreements"`
	RiskRewardAssessment string     `json:"risk_reward_assessment"`
	KeyRisks             []string   `json:"key_risks"`
	KeyOpportunities     []string   `json:"key_opportunities"`
	ConfidenceScore      float64    `json:"confidence_score"`
	RecommendedAction    Signal     `json:"recommended_action"`
	PositionConviction   Conviction `json:"position_conviction"`
	Reasoning            string     `json:"reasoning"`
	DebateRounds         int        `json:"debate_rounds"`
	Degraded             bool       `json:"degraded,omitempty"`
}

// DebateState is the research stage's section of RunState.
type DebateState struct {
	History          []Argument        `json:"history"`
	Round            int               `json:"round"`
	MaxRounds        int               `json:"max_rounds"`
	ConsensusReached bool              `json:"consensus_reached"`
	Evaluations      []RoundEvaluation `json:"evaluations"`
	// Exhausted is set when the round cap ended the debate while the evaluator still
	// asked to continue.
	Exhausted bool            `json:"exhausted"`
	Report    *ResearchReport `json:"research_report,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
}

// Arguments returns the history filtered to one side, in round order.
func (d *DebateState) Arguments(side Side) []Argument {
	out := make([]Argument, 0, len(d.History))
	for _, a := range d.History {
		if a.Side == side {
			out = append(out, a)
		}
	}
	return out
}

// Latest returns the most recent argument for side, if any.
func (d *DebateState) Latest(side Side) (Argument, bool) {
	for i := len(d.History) - 1; i >= 0; i-- {
		if d.History[i].Side == side {
			return d.History[i], true
		}
	}
	return Argument{}, false
}
