package agents

import "github.com/dyike/CortexTrader/consts"

var analystDefaults = Record{
	"signal":      "HOLD",
	"confidence":  consts.DefaultConfidence,
	"reasoning":   "",
	"key_factors": []any{},
}

var argumentDefaults = Record{
	"confidence":         consts.DefaultConfidence,
	"recommended_action": "HOLD",
	"supporting_points":  []any{},
}

var riskAdvisorDefaults = Record{
	"overall_risk_level":  "MEDIUM",
	"risk_score":          0.5,
	"recommendation":      "HOLD_FOR_REVIEW",
	"position_adjustment": 1.0,
}

// templateDefaults lists the documented defaults for optional fields per template.
var templateDefaults = map[string]Record{
	consts.TemplateNewsAnalyst:         analystDefaults,
	consts.TemplateFundamentalsAnalyst: analystDefaults,
	consts.TemplateSentimentAnalyst:    analystDefaults,
	consts.TemplateTechnicalAnalyst:    analystDefaults,
	consts.TemplateConsolidation: {
		"signal":        "HOLD",
		"confidence":    consts.DefaultConfidence,
		"key_factors":   []any{},
		"position_size": "NONE",
		"risk_factors":  []any{},
	},
	consts.TemplateBullishResearcher: argumentDefaults,
	consts.TemplateBearishResearcher: argumentDefaults,
	consts.TemplateDebateEvaluation: {
		"consensus_reached": false,
		"recommendation":    "continue",
		"quality_score":     consts.DefaultConfidence,
	},
	consts.TemplateDebateSynthesis: {
		"confidence_score":    consts.DefaultConfidence,
		"recommended_action":  "HOLD",
		"position_conviction": "MEDIUM",
	},
	consts.TemplateCIODecision: {
		"action":        "HOLD",
		"confidence":    consts.DefaultConfidence,
		"position_size": "NONE",
	},
	consts.TemplateTraderDecision: {
		"action":            "HOLD",
		"order_type":        "MARKET",
		"quantity_fraction": 0.0,
		"stop_loss_pct":     consts.DefaultStopLossPct,
		"take_profit_pct":   consts.DefaultTakeProfitPct,
		"confidence":        consts.DefaultConfidence,
	},
	consts.TemplateTradeScoring: {
		"risk":           0.5,
		"reward":         0.5,
		"timing":         0.5,
		"alignment":      0.5,
		"notes":          []any{},
		"recommendation": "REVISE",
	},
	consts.TemplatePortfolioManager: {
		"rebalancing_suggestions": []any{},
	},
	consts.TemplateRiskyAdvisor:   riskAdvisorDefaults,
	consts.TemplateNeutralAdvisor: riskAdvisorDefaults,
	consts.TemplateSafeAdvisor:    riskAdvisorDefaults,
	consts.TemplateRiskSynthesis: {
		"action":                 "HOLD_FOR_REVIEW",
		"confidence":             consts.DefaultConfidence,
		"risk_level":             "MEDIUM",
		"approved_position_size": 1.0,
		"required_stop_loss":     consts.DefaultStopLossPct,
		"suggested_take_profit":  consts.DefaultTakeProfitPct,
	},
}

// applyDefaults fills missing fields only; present values are left untouched.
func applyDefaults(templateID string, rec Record) Record {
	for key, def := range templateDefaults[templateID] {
		if !rec.Has(key) {
			rec[key] = def
		}
	}
	return rec
}
