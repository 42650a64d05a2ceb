package models

import "strings"

// Action is the CIO's five-way verdict.
type Action string

const (
	ActionStrongBuy  Action = "STRONG_BUY"
	ActionBuy        Action = "BUY"
	ActionHold       Action = "HOLD"
	ActionSell       Action = "SELL"
	ActionStrongSell Action = "STRONG_SELL"
)

func ParseAction(s string) Action {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionStrongBuy, ActionBuy, ActionSell, ActionStrongSell:
		return a
	}
	return ActionHold
}

// Direction collapses the action onto BUY, SELL or HOLD.
func (a Action) Direction() Signal {
	switch a {
	case ActionStrongBuy, ActionBuy:
		return SignalBuy
	case ActionStrongSell, ActionSell:
		return SignalSell
	}
	return SignalHold
}

// Decision is the CIO's final call for a run.
type Decision struct {
	Action         Action       `json:"action"`
	Confidence     float64      `json:"confidence"`
	PositionSize   PositionSize `json:"position_size"`
	TimeHorizon    string       `json:"time_horizon"`
	EntryStrategy  string       `json:"entry_strategy"`
	ExitStrategy   string       `json:"exit_strategy"`
	RiskManagement string       `json:"risk_management"`
	KeyCatalysts   []string     `json:"key_catalysts"`
	Reasoning      string       `json:"reasoning"`
	DissentingView string       `json:"dissenting_view"`
	Degraded       bool         `json:"degraded,omitempty"`
}

// HoldDecision is the decision reported when the CIO call cannot be made.
func HoldDecision(reason string) Decision {
	return Decision{
		Action:       ActionHold,
		Confidence:   0,
		PositionSize: SizeNone,
		KeyCatalysts: []string{},
		Reasoning:    reason,
		Degraded:     true,
	}
}
