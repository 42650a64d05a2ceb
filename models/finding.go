package models

import (
	"fmt"
	"math"
)

type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// ParseSignal maps free text to a Signal, defaulting to HOLD.
func ParseSignal(s string) Signal {
	switch Signal(s) {
	case SignalBuy, SignalSell:
		return Signal(s)
	}
	return SignalHold
}

type AnalystKind string

const (
	AnalystNews         AnalystKind = "news"
	AnalystFundamentals AnalystKind = "fundamentals"
	AnalystSentiment    AnalystKind = "sentiment"
	AnalystTechnical    AnalystKind = "technical"
)

// AnalystKinds lists the four analysts in their trace order.
var AnalystKinds = []AnalystKind{AnalystNews, AnalystFundamentals, AnalystSentiment, AnalystTechnical}

// Finding is one analyst's scored opinion.
type Finding struct {
	Kind       string   `json:"kind"`
	Signal     Signal   `json:"signal"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	KeyFactors []string `json:"key_factors"`
	Degraded   bool     `json:"degraded,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func NewFinding(kind string, signal Signal, confidence float64, reasoning string, factors []string) Finding {
	if factors == nil {
		factors = []string{}
	}
	return Finding{
		Kind:       kind,
		Signal:     signal,
		Confidence: ClampUnit(confidence),
		Reasoning:  reasoning,
		KeyFactors: factors,
	}
}

// DegradedFinding is the HOLD/zero-confidence record a failed stage reports.
func DegradedFinding(kind string, err error) Finding {
	f := NewFinding(kind, SignalHold, 0, fmt.Sprintf("Analysis failed: %v", err), nil)
	f.Degraded = true
	f.Error = err.Error()
	return f
}

type PositionSize string

const (
	SizeFull         PositionSize = "FULL"
	SizeThreeQuarter PositionSize = "THREE_QUARTER"
	SizeHalf         PositionSize = "HALF"
	SizeQuarter      PositionSize = "QUARTER"
	SizeNone         PositionSize = "NONE"
)

// ConsolidatedFinding folds the four analyst findings.
type ConsolidatedFinding struct {
	Finding
	PositionSize     PositionSize `json:"position_size"`
	AnalystAgreement string       `json:"analyst_agreement"`
	RiskFactors      []string     `json:"risk_factors"`
	TimeHorizon      string       `json:"time_horizon"`
}

// AnalystFindings is the analyze stage's section of RunState.
type AnalystFindings struct {
	Findings     map[AnalystKind]Finding `json:"findings"`
	Consolidated ConsolidatedFinding     `json:"consolidated"`
	Indicators   map[string]*float64     `json:"indicators,omitempty"`
	Failed       bool                    `json:"failed"`
	Errors       []string                `json:"errors,omitempty"`
}

// ClampUnit clamps v into [0,1]. NaN maps to 0.
func ClampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
