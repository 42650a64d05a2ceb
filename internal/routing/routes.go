// Package routing holds the typed decisions taken at every branch point of the pipeline
// and its inner loops.
package routing

// FetchRoute follows the data fetch.
type FetchRoute int

const (
	FetchAnalyze FetchRoute = iota
	FetchEnd
)

func (r FetchRoute) String() string {
	switch r {
	case FetchAnalyze:
		return "analyze"
	case FetchEnd:
		return "end"
	}
	return "unknown"
}

// AnalyzeRoute follows the analyst stage.
type AnalyzeRoute int

const (
	AnalyzeResearch AnalyzeRoute = iota
	AnalyzeDecide
)

func (r AnalyzeRoute) String() string {
	switch r {
	case AnalyzeResearch:
		return "research"
	case AnalyzeDecide:
		return "decide"
	}
	return "unknown"
}

// DecideRoute follows the CIO decision.
type DecideRoute int

const (
	DecideTrade DecideRoute = iota
	DecideSkip
)

func (r DecideRoute) String() string {
	switch r {
	case DecideTrade:
		return "trade"
	case DecideSkip:
		return "skip"
	}
	return "unknown"
}

// DebateRoute follows each debate evaluation.
type DebateRoute int

const (
	DebateNextRound DebateRoute = iota
	DebateSynthesize
)

func (r DebateRoute) String() string {
	switch r {
	case DebateNextRound:
		return "next_round"
	case DebateSynthesize:
		return "synthesize"
	}
	return "unknown"
}

// RefinementRoute follows each trade score.
type RefinementRoute int

const (
	Refine RefinementRoute = iota
	Proceed
	MaxReached
)

func (r RefinementRoute) String() string {
	switch r {
	case Refine:
		return "refine"
	case Proceed:
		return "proceed"
	case MaxReached:
		return "max_reached"
	}
	return "unknown"
}

// OrderRoute follows order preparation.
type OrderRoute int

const (
	OrderNoAction OrderRoute = iota
	OrderNeedsApproval
	OrderAutoApproved
)

func (r OrderRoute) String() string {
	switch r {
	case OrderNoAction:
		return "no_action"
	case OrderNeedsApproval:
		return "needs_approval"
	case OrderAutoApproved:
		return "auto_approved"
	}
	return "unknown"
}

// ApprovalRoute follows a human approval decision.
type ApprovalRoute int

const (
	ApprovalExecute ApprovalRoute = iota
	ApprovalReject
	ApprovalAwait
)

func (r ApprovalRoute) String() string {
	switch r {
	case ApprovalExecute:
		return "execute"
	case ApprovalReject:
		return "reject"
	case ApprovalAwait:
		return "await"
	}
	return "unknown"
}
