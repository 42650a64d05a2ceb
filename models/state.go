package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSectionWritten is returned when a stage tries to write a section twice.
var ErrSectionWritten = errors.New("state section already written")

type Stage string

const (
	StageFetch      Stage = "fetch"
	StageAnalyze    Stage = "analyze"
	StageResearch   Stage = "research"
	StageDecide     Stage = "decide"
	StageTrade      Stage = "trade"
	StageRiskAssess Stage = "risk_assess"
)

// Stages is the fixed stage order.
var Stages = []Stage{StageFetch, StageAnalyze, StageResearch, StageDecide, StageTrade, StageRiskAssess}

type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageSuccess StageStatus = "success"
	StageFailed  StageStatus = "failed"
	StageSkipped StageStatus = "skipped"
)

type RiskTolerance string

const (
	ToleranceConservative RiskTolerance = "conservative"
	ToleranceModerate     RiskTolerance = "moderate"
	ToleranceAggressive   RiskTolerance = "aggressive"
)

func (r RiskTolerance) Valid() bool {
	switch r {
	case ToleranceConservative, ToleranceModerate, ToleranceAggressive:
		return true
	}
	return false
}

// RunRequest is the input of one pipeline run.
type RunRequest struct {
	Ticker           string        `json:"ticker"`
	AvailableCapital float64       `json:"available_capital"`
	RiskTolerance    RiskTolerance `json:"risk_tolerance"`
	Portfolio        Portfolio     `json:"portfolio"`
	EnableTrading    bool          `json:"enable_trading"`
}

func (r *RunRequest) Validate() error {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if r.Ticker == "" {
		return errors.New("ticker is required")
	}
	if r.AvailableCapital < 0 {
		return fmt.Errorf("available capital cannot be negative: %.2f", r.AvailableCapital)
	}
	if !r.RiskTolerance.Valid() {
		return fmt.Errorf("unknown risk tolerance %q", r.RiskTolerance)
	}
	return nil
}

// RunState is the record owned by the pipeline for one run. Each section is written
// by exactly one stage through its merge function.
type RunState struct {
	Ticker   string                `json:"ticker"`
	Request  RunRequest            `json:"request"`
	Snapshot *MarketSnapshot       `json:"market_snapshot,omitempty"`
	Analysis *AnalystFindings      `json:"analyst_findings,omitempty"`
	Debate   *DebateState          `json:"debate_state,omitempty"`
	Decision *Decision             `json:"decision,omitempty"`
	Trade    *TradeState           `json:"trade_state,omitempty"`
	Risk     *RiskState            `json:"risk_state,omitempty"`
	Errors   []string              `json:"errors"`
	Stages   map[Stage]StageStatus `json:"stages"`
}

func NewRunState(req RunRequest) *RunState {
	stages := make(map[Stage]StageStatus, len(Stages))
	for _, s := range Stages {
		stages[s] = StagePending
	}
	return &RunState{
		Ticker:  req.Ticker,
		Request: req,
		Errors:  []string{},
		Stages:  stages,
	}
}

func (s *RunState) MergeSnapshot(snap *MarketSnapshot) error {
	if s.Snapshot != nil {
		return fmt.Errorf("%s: %w", StageFetch, ErrSectionWritten)
	}
	snap.Normalize()
	s.Snapshot = snap
	return nil
}

func (s *RunState) MergeAnalysis(a *AnalystFindings) error {
	if s.Analysis != nil {
		return fmt.Errorf("%s: %w", StageAnalyze, ErrSectionWritten)
	}
	s.Analysis = a
	return nil
}

func (s *RunState) MergeDebate(d *DebateState) error {
	if s.Debate != nil {
		return fmt.Errorf("%s: %w", StageResearch, ErrSectionWritten)
	}
	s.Debate = d
	return nil
}

func (s *RunState) MergeDecision(d *Decision) error {
	if s.Decision != nil {
		return fmt.Errorf("%s: %w", StageDecide, ErrSectionWritten)
	}
	s.Decision = d
	return nil
}

func (s *RunState) MergeTrade(t *TradeState) error {
	if s.Trade != nil {
		return fmt.Errorf("%s: %w", StageTrade, ErrSectionWritten)
	}
	s.Trade = t
	return nil
}

func (s *RunState) MergeRisk(r *RiskState) error {
	if s.Risk != nil {
		return fmt.Errorf("%s: %w", StageRiskAssess, ErrSectionWritten)
	}
	s.Risk = r
	return nil
}

// AppendError records a stage-tagged error. Errors are never cleared.
func (s *RunState) AppendError(stage Stage, msg string) {
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %s", stage, msg))
}

func (s *RunState) MarkStage(stage Stage, status StageStatus) {
	s.Stages[stage] = status
}

type RunStatus string

const (
	RunCompleted        RunStatus = "completed"
	RunDataError        RunStatus = "data_error"
	RunDecisionOnly     RunStatus = "decision_only"
	RunAwaitingApproval RunStatus = "awaiting_approval"
	RunRejected         RunStatus = "rejected"
)

// RunResult is the terminal record of a run. Decision is always set.
type RunResult struct {
	Ticker         string                `json:"ticker"`
	Decision       Decision              `json:"decision"`
	TradeExecution *TradeState           `json:"trade_execution,omitempty"`
	RiskAssessment *RiskState            `json:"risk_assessment,omitempty"`
	Errors         []string              `json:"errors"`
	Stages         map[Stage]StageStatus `json:"stages"`
	Status         RunStatus             `json:"status"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
}

// RunDetails exposes every intermediate section alongside the result.
type RunDetails struct {
	Result    *RunResult              `json:"result"`
	State     *RunState               `json:"state"`
	Durations map[Stage]time.Duration `json:"durations"`
}
