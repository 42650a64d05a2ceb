package consts

// Prompt templates, resolved under internal/utils/prompts.
const (
	// Analyst team
	TemplateNewsAnalyst         = "analysts/news"
	TemplateFundamentalsAnalyst = "analysts/fundamentals"
	TemplateSentimentAnalyst    = "analysts/sentiment"
	TemplateTechnicalAnalyst    = "analysts/technical"
	TemplateConsolidation       = "analysts/consolidation"

	// Research team
	TemplateBullishResearcher = "researchers/bullish"
	TemplateBearishResearcher = "researchers/bearish"
	TemplateDebateEvaluation  = "researchers/evaluation"
	TemplateDebateSynthesis   = "researchers/synthesis"

	// Chief investment officer
	TemplateCIODecision = "managers/cio_decision"

	// Trading team
	TemplateTraderDecision   = "trader/decision"
	TemplateTradeScoring     = "trader/scoring"
	TemplatePortfolioManager = "trader/portfolio"

	// Risk management team
	TemplateRiskyAdvisor   = "risk_mgmt/risky"
	TemplateNeutralAdvisor = "risk_mgmt/neutral"
	TemplateSafeAdvisor    = "risk_mgmt/safe"
	TemplateRiskSynthesis  = "risk_mgmt/synthesis"
)
