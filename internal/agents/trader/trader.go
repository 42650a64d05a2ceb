package trader

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/metrics"
	"github.com/dyike/CortexTrader/internal/routing"
	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/logger"
)

type step int

const (
	stepDecide step = iota
	stepScore
	stepRoute
	stepPortfolio
	stepPrepare
	stepApproval
	stepExecute
	stepEnd
)

// DefaultConcentrationLimits caps a single position per risk tolerance.
var DefaultConcentrationLimits = map[models.RiskTolerance]float64{
	models.ToleranceConservative: 0.20,
	models.ToleranceModerate:     0.30,
	models.ToleranceAggressive:   0.40,
}

// Team runs the trader refinement loop through order preparation and approval.
type Team struct {
	invoker         agents.Invoker
	logic           *routing.ConditionalLogic
	approver        Approver
	approvalTimeout time.Duration
	limits          map[models.RiskTolerance]float64
	log             *logger.Logger
	metrics         *metrics.Collector
	now             func() time.Time
	newOrderID      func() string
}

type Option func(*Team)

// WithApprover sets the human approval collaborator. Without one every order that needs
// approval ends pending.
func WithApprover(a Approver) Option {
	return func(t *Team) { t.approver = a }
}

// WithApprovalTimeout bounds how long the approval gate waits. Zero waits as long as ctx.
func WithApprovalTimeout(d time.Duration) Option {
	return func(t *Team) { t.approvalTimeout = d }
}

func WithConcentrationLimits(limits map[string]float64) Option {
	return func(t *Team) {
		for k, v := range limits {
			t.limits[models.RiskTolerance(k)] = v
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(t *Team) {
		if l != nil {
			t.log = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(t *Team) { t.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(t *Team) { t.now = now }
}

func NewTeam(inv agents.Invoker, logic *routing.ConditionalLogic, opts ...Option) *Team {
	if logic == nil {
		logic = routing.NewConditionalLogic()
	}
	limits := make(map[models.RiskTolerance]float64, len(DefaultConcentrationLimits))
	for k, v := range DefaultConcentrationLimits {
		limits[k] = v
	}
	t := &Team{
		invoker:    inv,
		logic:      logic,
		limits:     limits,
		log:        logger.Nop(),
		now:        time.Now,
		newOrderID: func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.WithComponent("trader")
	return t
}

// TradeInput is everything the trader loop reads from earlier stages.
type TradeInput struct {
	Ticker           string
	CurrentPrice     float64
	AvailableCapital float64
	RiskTolerance    models.RiskTolerance
	Portfolio        models.Portfolio
	Decision         models.Decision
	Analysis         *models.AnalystFindings
	Debate           *models.DebateState
}

// Execute runs DECIDE ⇄ SCORE until the score clears the threshold or the iteration cap
// is hit, then sizes, prepares and gates the order. It never fails; degraded calls are
// listed in the returned state's Errors.
func (t *Team) Execute(ctx context.Context, in TradeInput) *models.TradeState {
	state := &models.TradeState{
		Scores:         []models.FeedbackScore{},
		Iteration:      1,
		MaxIterations:  t.logic.MaxTradeIterations,
		ExecutedOrders: []models.ExecutionRecord{},
		Errors:         []string{},
	}
	log := t.log.WithField("ticker", in.Ticker)
	log.WithField("max_iterations", state.MaxIterations).Info("trade loop started")

	var score models.FeedbackScore
	for s := stepDecide; s != stepEnd; {
		switch s {
		case stepDecide:
			state.Proposal = t.decide(ctx, in, state)
			s = stepScore

		case stepScore:
			score = t.score(ctx, in, state)
			state.Scores = append(state.Scores, score)
			s = stepRoute

		case stepRoute:
			next := t.logic.ShouldRefine(score, state.Iteration)
			log.WithFields(map[string]any{
				"iteration": state.Iteration,
				"overall":   score.Overall,
				"route":     next.String(),
			}).Debug("proposal scored")
			if next == routing.Refine {
				state.Iteration++
				s = stepDecide
				continue
			}
			state.Converged = next == routing.Proceed
			s = stepPortfolio

		case stepPortfolio:
			impact := t.adjustPortfolio(ctx, in, state)
			state.Portfolio = &impact
			state.Proposal.QuantityFraction = impact.AdjustedFraction
			state.Proposal.PortfolioAdjusted = true
			s = stepPrepare

		case stepPrepare:
			order := t.prepareOrder(in, state.Proposal)
			state.Execution = &order
			switch t.logic.RouteOrder(state.Proposal.Action, score) {
			case routing.OrderNoAction:
				s = stepEnd
			case routing.OrderAutoApproved:
				order.AutoApproved = true
				order.Status = models.StatusApproved
				order.ApprovalReason = autoApprovalReason(t.logic, score)
				s = stepExecute
			default:
				state.Execution.Status = models.StatusAwaitingApproval
				s = stepApproval
			}

		case stepApproval:
			decision := t.requestApproval(ctx, buildApprovalRequest(state.Execution, state.Proposal, score))
			state.Approval = &decision
			state.Execution.Feedback = decision.Feedback
			switch t.logic.RouteApproval(decision) {
			case routing.ApprovalExecute:
				state.Execution.Status = models.StatusApproved
				s = stepExecute
			case routing.ApprovalReject:
				state.Execution.Status = models.StatusRejected
				s = stepEnd
			default:
				s = stepEnd
			}

		case stepExecute:
			executed := t.execute(*state.Execution)
			state.Execution = &executed
			state.ExecutedOrders = append(state.ExecutedOrders, executed)
			s = stepEnd
		}
	}

	t.metrics.ObserveTradeIterations(state.Iteration)
	log.WithFields(map[string]any{
		"iterations": state.Iteration,
		"converged":  state.Converged,
		"action":     state.Proposal.Action,
		"status":     state.Execution.Status,
	}).Info("trade loop finished")
	return state
}

func (t *Team) concentrationLimit(tolerance models.RiskTolerance) float64 {
	if limit, ok := t.limits[tolerance]; ok {
		return limit
	}
	return t.limits[models.ToleranceModerate]
}
