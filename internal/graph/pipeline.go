package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyike/CortexTrader/internal/agents/managers"
	"github.com/dyike/CortexTrader/internal/agents/researchers"
	"github.com/dyike/CortexTrader/internal/agents/risk_mgmt"
	"github.com/dyike/CortexTrader/internal/agents/trader"
	"github.com/dyike/CortexTrader/internal/metrics"
	"github.com/dyike/CortexTrader/internal/routing"
	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/logger"
)

const stageEnd models.Stage = "end"

// Deps are the collaborators a pipeline is assembled from.
type Deps struct {
	Fetcher      MarketDataFetcher
	Analysts     AnalystStage
	Research     ResearchStage
	CIO          DecisionStage
	Trader       TradeStage
	Risk         RiskStage
	Logic        *routing.ConditionalLogic
	Logger       *logger.Logger
	Metrics      *metrics.Collector
	FetchOptions models.FetchOptions
}

// Pipeline sequences fetch → analyze → research → decide → [trade → risk_assess | skip].
// It keeps no state between runs and can be shared by concurrent callers.
type Pipeline struct {
	deps Deps
	log  *logger.Logger
}

func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: market data fetcher is required")
	case deps.Analysts == nil:
		return nil, errors.New("pipeline: analyst stage is required")
	case deps.Research == nil:
		return nil, errors.New("pipeline: research stage is required")
	case deps.CIO == nil:
		return nil, errors.New("pipeline: decision stage is required")
	case deps.Trader == nil:
		return nil, errors.New("pipeline: trade stage is required")
	case deps.Risk == nil:
		return nil, errors.New("pipeline: risk stage is required")
	}
	if deps.Logic == nil {
		deps.Logic = routing.NewConditionalLogic()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.FetchOptions == (models.FetchOptions{}) {
		deps.FetchOptions = models.DefaultFetchOptions()
	}
	return &Pipeline{deps: deps, log: deps.Logger.WithComponent("pipeline")}, nil
}

// Run executes one run and returns its terminal record. The error is non-nil only for an
// invalid request or a broken stage contract; collaborator failures end up in
// RunResult.Errors.
func (p *Pipeline) Run(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	details, err := p.RunWithDetails(ctx, req)
	if err != nil {
		return nil, err
	}
	return details.Result, nil
}

// RunWithDetails is Run plus the full state and per-stage durations.
func (p *Pipeline) RunWithDetails(ctx context.Context, req models.RunRequest) (*models.RunDetails, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run request: %w", err)
	}

	r := &run{
		Pipeline:  p,
		state:     models.NewRunState(req),
		durations: make(map[models.Stage]time.Duration, len(models.Stages)),
		log:       p.log.WithField("ticker", req.Ticker),
	}
	started := time.Now()
	r.log.WithFields(map[string]any{
		"capital":        req.AvailableCapital,
		"risk_tolerance": req.RiskTolerance,
		"trading":        req.EnableTrading,
	}).Info("run started")

	status, err := r.drive(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.RunResult{
		Ticker:         req.Ticker,
		Decision:       r.decision(),
		TradeExecution: r.state.Trade,
		RiskAssessment: r.state.Risk,
		Errors:         r.state.Errors,
		Stages:         r.state.Stages,
		Status:         status,
		StartedAt:      started,
		FinishedAt:     time.Now(),
	}
	p.deps.Metrics.ObserveRun(string(status))
	r.log.WithFields(map[string]any{
		"status":   status,
		"action":   result.Decision.Action,
		"errors":   len(result.Errors),
		"duration": result.FinishedAt.Sub(started).String(),
	}).Info("run finished")

	return &models.RunDetails{Result: result, State: r.state, Durations: r.durations}, nil
}

// run is the per-invocation driver. It is the only writer of its RunState.
type run struct {
	*Pipeline
	state     *models.RunState
	durations map[models.Stage]time.Duration
	log       *logger.Logger
}

func (r *run) drive(ctx context.Context) (models.RunStatus, error) {
	status := models.RunCompleted
	logic := r.deps.Logic

	for stage := models.StageFetch; stage != stageEnd; {
		var err error
		switch stage {
		case models.StageFetch:
			var route routing.FetchRoute
			route, err = r.fetch(ctx)
			stage = models.StageAnalyze
			if route == routing.FetchEnd {
				status = models.RunDataError
				r.skip(models.StageAnalyze, models.StageResearch, models.StageDecide, models.StageTrade, models.StageRiskAssess)
				stage = stageEnd
			}

		case models.StageAnalyze:
			err = r.analyze(ctx)
			stage = models.StageResearch
			if logic.AfterAnalyze(r.state.Analysis) == routing.AnalyzeDecide {
				r.skip(models.StageResearch)
				stage = models.StageDecide
			}

		case models.StageResearch:
			err = r.research(ctx)
			stage = models.StageDecide

		case models.StageDecide:
			err = r.decide(ctx)
			stage = models.StageTrade
			if logic.AfterDecide(r.state.Request.EnableTrading, *r.state.Decision) == routing.DecideSkip {
				status = models.RunDecisionOnly
				r.skip(models.StageTrade, models.StageRiskAssess)
				stage = stageEnd
			}

		case models.StageTrade:
			err = r.trade(ctx)
			status = tradeStatus(r.state.Trade)
			stage = models.StageRiskAssess

		case models.StageRiskAssess:
			err = r.assessRisk(ctx)
			stage = stageEnd

		default:
			return "", fmt.Errorf("pipeline: unknown stage %q", stage)
		}
		if err != nil {
			return "", err
		}
	}
	return status, nil
}

// timed runs fn as stage and records its status, duration and metrics.
func (r *run) timed(stage models.Stage, fn func() (models.StageStatus, error)) error {
	start := time.Now()
	r.log.WithField("stage", stage).Debug("stage started")
	status, err := fn()
	d := time.Since(start)

	r.durations[stage] = d
	r.state.MarkStage(stage, status)
	r.deps.Metrics.ObserveStage(string(stage), string(status), d)
	r.log.WithFields(map[string]any{
		"stage":    stage,
		"status":   status,
		"duration": d.String(),
	}).Info("stage finished")
	return err
}

func (r *run) skip(stages ...models.Stage) {
	for _, s := range stages {
		r.state.MarkStage(s, models.StageSkipped)
		r.deps.Metrics.ObserveStage(string(s), string(models.StageSkipped), 0)
	}
}

func (r *run) appendErrors(stage models.Stage, msgs []string) {
	for _, msg := range msgs {
		r.state.AppendError(stage, msg)
	}
}

func (r *run) fetch(ctx context.Context) (routing.FetchRoute, error) {
	var route routing.FetchRoute
	err := r.timed(models.StageFetch, func() (models.StageStatus, error) {
		snap, err := r.deps.Fetcher.Fetch(ctx, r.state.Ticker, r.deps.FetchOptions)
		if err == nil && snap == nil {
			err = errors.New("no market data returned")
		}
		route = r.deps.Logic.AfterFetch(snap, err)
		if route == routing.FetchEnd {
			r.log.WithError(err).Error("market data fetch failed")
			r.state.AppendError(models.StageFetch, fmt.Sprintf("market data fetch failed: %v", err))
			return models.StageFailed, nil
		}
		if snap.Ticker == "" {
			snap.Ticker = r.state.Ticker
		}
		return models.StageSuccess, r.state.MergeSnapshot(snap)
	})
	return route, err
}

func (r *run) analyze(ctx context.Context) error {
	return r.timed(models.StageAnalyze, func() (models.StageStatus, error) {
		findings := r.deps.Analysts.Analyze(ctx, r.state.Snapshot)
		if findings == nil {
			return models.StageFailed, errNoOutput(models.StageAnalyze)
		}
		r.appendErrors(models.StageAnalyze, findings.Errors)
		status := models.StageSuccess
		if findings.Failed {
			status = models.StageFailed
		}
		return status, r.state.MergeAnalysis(findings)
	})
}

func (r *run) research(ctx context.Context) error {
	return r.timed(models.StageResearch, func() (models.StageStatus, error) {
		debate := r.deps.Research.Run(ctx, researchers.DebateInput{
			Ticker:   r.state.Ticker,
			Analysis: r.state.Analysis,
		})
		if debate == nil {
			return models.StageFailed, errNoOutput(models.StageResearch)
		}
		r.appendErrors(models.StageResearch, debate.Errors)
		status := models.StageSuccess
		if debate.Report == nil || debate.Report.Degraded {
			status = models.StageFailed
		}
		return status, r.state.MergeDebate(debate)
	})
}

func (r *run) decide(ctx context.Context) error {
	return r.timed(models.StageDecide, func() (models.StageStatus, error) {
		decision, err := r.deps.CIO.Decide(ctx, managers.DecideInput{
			Ticker:       r.state.Ticker,
			CurrentPrice: r.state.Snapshot.CurrentPrice,
			Analysis:     r.state.Analysis,
			Debate:       r.state.Debate,
		})
		status := models.StageSuccess
		if err != nil {
			r.state.AppendError(models.StageDecide, fmt.Sprintf("decision failed: %v", err))
			status = models.StageFailed
		}
		return status, r.state.MergeDecision(&decision)
	})
}

func (r *run) trade(ctx context.Context) error {
	req := r.state.Request
	return r.timed(models.StageTrade, func() (models.StageStatus, error) {
		trade := r.deps.Trader.Execute(ctx, trader.TradeInput{
			Ticker:           r.state.Ticker,
			CurrentPrice:     r.state.Snapshot.CurrentPrice,
			AvailableCapital: req.AvailableCapital,
			RiskTolerance:    req.RiskTolerance,
			Portfolio:        req.Portfolio,
			Decision:         *r.state.Decision,
			Analysis:         r.state.Analysis,
			Debate:           r.state.Debate,
		})
		if trade == nil {
			return models.StageFailed, errNoOutput(models.StageTrade)
		}
		r.appendErrors(models.StageTrade, trade.Errors)
		status := models.StageSuccess
		if trade.Proposal.Degraded {
			status = models.StageFailed
		}
		return status, r.state.MergeTrade(trade)
	})
}

func (r *run) assessRisk(ctx context.Context) error {
	req := r.state.Request
	return r.timed(models.StageRiskAssess, func() (models.StageStatus, error) {
		risk := r.deps.Risk.Assess(ctx, risk_mgmt.RiskInput{
			Ticker:        r.state.Ticker,
			CurrentPrice:  r.state.Snapshot.CurrentPrice,
			RiskTolerance: req.RiskTolerance,
			Proposal:      r.state.Trade.Proposal,
			Decision:      *r.state.Decision,
			Analysis:      r.state.Analysis,
			Debate:        r.state.Debate,
			Portfolio:     req.Portfolio,
		})
		if risk == nil {
			return models.StageFailed, errNoOutput(models.StageRiskAssess)
		}
		r.appendErrors(models.StageRiskAssess, risk.Errors)
		status := models.StageSuccess
		if risk.Recommendation.Degraded {
			status = models.StageFailed
		}
		return status, r.state.MergeRisk(risk)
	})
}

func errNoOutput(stage models.Stage) error {
	return fmt.Errorf("pipeline: %s stage returned no output", stage)
}

// decision is the best-effort decision of the run, HOLD when none was made.
func (r *run) decision() models.Decision {
	if r.state.Decision != nil {
		return *r.state.Decision
	}
	return models.HoldDecision("No decision was made: market data unavailable")
}

func tradeStatus(t *models.TradeState) models.RunStatus {
	if t == nil || t.Execution == nil {
		return models.RunCompleted
	}
	switch t.Execution.Status {
	case models.StatusAwaitingApproval:
		return models.RunAwaitingApproval
	case models.StatusRejected:
		return models.RunRejected
	}
	return models.RunCompleted
}
