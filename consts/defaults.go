package consts

const (
	DefaultConfidence     = 0.5
	DefaultStopLossPct    = 5.0
	DefaultTakeProfitPct  = 10.0
	DefaultMaxDebate      = 2
	DefaultMaxIterations  = 3
	DefaultScoreThreshold = 0.6
	DefaultAutoApprove    = 0.85
)

// Headline and article caps used when building prompts.
const (
	MaxHeadlines      = 10
	MaxHeadlineLength = 200
)
