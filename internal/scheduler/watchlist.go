package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/logger"
)

// Runner runs the pipeline for one request.
type Runner interface {
	Run(ctx context.Context, req models.RunRequest) (*models.RunResult, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, req models.RunRequest) (*models.RunResult, error)

func (f RunnerFunc) Run(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	return f(ctx, req)
}

// WatchlistJob runs the pipeline for each ticker of a watchlist in order. A failing
// ticker does not stop the others.
type WatchlistJob struct {
	schedule string
	tickers  []string
	template models.RunRequest
	runner   Runner
	onResult func(*models.RunResult)
	logger   *logger.Logger
}

type WatchlistOption func(*WatchlistJob)

// OnResult is called with every completed run, e.g. to write a report.
func OnResult(fn func(*models.RunResult)) WatchlistOption {
	return func(j *WatchlistJob) { j.onResult = fn }
}

func WithJobLogger(l *logger.Logger) WatchlistOption {
	return func(j *WatchlistJob) {
		if l != nil {
			j.logger = l
		}
	}
}

// NewWatchlistJob copies capital, risk tolerance, portfolio and trading flag from
// template for every ticker.
func NewWatchlistJob(schedule string, tickers []string, template models.RunRequest, runner Runner, opts ...WatchlistOption) *WatchlistJob {
	j := &WatchlistJob{
		schedule: schedule,
		tickers:  append([]string(nil), tickers...),
		template: template,
		runner:   runner,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.WithComponent("watchlist")
	return j
}

func (j *WatchlistJob) Name() string     { return "watchlist" }
func (j *WatchlistJob) Schedule() string { return j.schedule }

// Run returns the joined errors of every ticker whose run could not start or finish.
// Degraded runs are results, not errors.
func (j *WatchlistJob) Run(ctx context.Context) error {
	if len(j.tickers) == 0 {
		return errors.New("watchlist is empty")
	}

	var errs []error
	for _, ticker := range j.tickers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		req := j.template
		req.Ticker = ticker
		res, err := j.runner.Run(ctx, req)
		if err != nil {
			j.logger.WithError(err).WithField("ticker", ticker).Warn("watchlist run failed")
			errs = append(errs, fmt.Errorf("%s: %w", ticker, err))
			continue
		}

		j.logger.WithFields(map[string]any{
			"ticker": res.Ticker,
			"action": res.Decision.Action,
			"status": res.Status,
			"errors": len(res.Errors),
		}).Info("watchlist run finished")
		if j.onResult != nil {
			j.onResult(res)
		}
	}
	return errors.Join(errs...)
}
