package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dyike/CortexTrader/config"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/agents/analysts"
	"github.com/dyike/CortexTrader/internal/agents/managers"
	"github.com/dyike/CortexTrader/internal/agents/researchers"
	"github.com/dyike/CortexTrader/internal/agents/risk_mgmt"
	"github.com/dyike/CortexTrader/internal/agents/trader"
	"github.com/dyike/CortexTrader/internal/dataflows"
	"github.com/dyike/CortexTrader/internal/graph"
	"github.com/dyike/CortexTrader/internal/metrics"
	"github.com/dyike/CortexTrader/internal/routing"
	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/logger"
)

// Engine is one fully wired pipeline for a config snapshot.
type Engine struct {
	Config   config.Config
	Pipeline *graph.Pipeline
	Metrics  *metrics.Collector
	Logger   *logger.Logger
	BuiltAt  time.Time
	Version  uint64

	closers []func()
}

// Run executes the pipeline for req.
func (e *Engine) Run(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	return e.Pipeline.Run(ctx, req)
}

// Close releases the market data connections held by the engine.
func (e *Engine) Close() {
	for _, c := range e.closers {
		c()
	}
	e.closers = nil
}

// Request fills a run request with the configured capital and risk tolerance.
func (e *Engine) Request(ticker string) models.RunRequest {
	return models.RunRequest{
		Ticker:           ticker,
		AvailableCapital: e.Config.DefaultCapital,
		RiskTolerance:    models.RiskTolerance(e.Config.DefaultRiskTolerance),
		EnableTrading:    e.Config.EnableTrading,
	}
}

var engineSeq atomic.Uint64

type builderOptions struct {
	approver  trader.Approver
	log       *logger.Logger
	registry  prometheus.Registerer
	deep      agents.Invoker
	quick     agents.Invoker
	fetcher   graph.MarketDataFetcher
	collector *metrics.Collector
	once      sync.Once
}

type EngineOption func(*builderOptions)

// WithApprover sets the human approval collaborator used by the trade stage.
func WithApprover(a trader.Approver) EngineOption {
	return func(o *builderOptions) { o.approver = a }
}

// WithLogger overrides the logger built from the config.
func WithLogger(l *logger.Logger) EngineOption {
	return func(o *builderOptions) { o.log = l }
}

// WithRegistry registers pipeline metrics on reg instead of the default registerer.
func WithRegistry(reg prometheus.Registerer) EngineOption {
	return func(o *builderOptions) { o.registry = reg }
}

// WithInvokers replaces the configured chat models.
func WithInvokers(deep, quick agents.Invoker) EngineOption {
	return func(o *builderOptions) {
		o.deep = deep
		o.quick = quick
	}
}

// WithFetcher replaces the configured market data providers.
func WithFetcher(f graph.MarketDataFetcher) EngineOption {
	return func(o *builderOptions) { o.fetcher = f }
}

// NewEngineBuilder returns a builder whose engines share one metrics collector, so
// rebuilding on config change does not register the collectors twice.
func NewEngineBuilder(opts ...EngineOption) EngineBuilder {
	o := &builderOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return func(cfg config.Config) (*Engine, error) {
		return o.build(context.Background(), cfg)
	}
}

var defaultBuilder = sync.OnceValue(func() EngineBuilder { return NewEngineBuilder() })

// BuildEngine builds an engine with the configured models and data providers, recording
// metrics on the default registerer.
func BuildEngine(cfg config.Config) (*Engine, error) {
	return defaultBuilder()(cfg)
}

func (o *builderOptions) build(ctx context.Context, cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := o.log
	if log == nil {
		log = logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	}
	o.once.Do(func() { o.collector = metrics.New(o.registry) })
	m := o.collector

	deep, quick := o.deep, o.quick
	if deep == nil || quick == nil {
		ms, err := agents.NewModels(ctx, &cfg, agents.WithLogger(log), agents.WithMetrics(m))
		if err != nil {
			return nil, fmt.Errorf("failed to create chat models: %w", err)
		}
		if deep == nil {
			deep = ms.Deep
		}
		if quick == nil {
			quick = ms.Quick
		}
	}

	engine := &Engine{
		Config:  cfg,
		Metrics: m,
		Logger:  log,
		BuiltAt: time.Now(),
		Version: engineSeq.Add(1),
	}

	fetcher := o.fetcher
	if fetcher == nil {
		f, err := dataflows.NewFetcherFromConfig(&cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create market data fetcher: %w", err)
		}
		engine.closers = append(engine.closers, f.Close)
		fetcher = f
	}

	logic := routing.FromConfig(&cfg)
	pipeline, err := graph.New(graph.Deps{
		Fetcher: fetcher,
		Analysts: analysts.NewTeam(quick,
			analysts.WithParallel(cfg.ParallelFanOut),
			analysts.WithLogger(log)),
		Research: researchers.NewDebate(quick, logic,
			researchers.WithLogger(log),
			researchers.WithMetrics(m)),
		CIO: managers.NewCIO(deep, log),
		Trader: trader.NewTeam(deep, logic,
			trader.WithApprover(o.approver),
			trader.WithApprovalTimeout(time.Duration(cfg.ApprovalTimeoutSeconds)*time.Second),
			trader.WithConcentrationLimits(cfg.ConcentrationLimits),
			trader.WithLogger(log),
			trader.WithMetrics(m)),
		Risk: risk_mgmt.NewTeam(deep,
			risk_mgmt.WithParallel(cfg.ParallelFanOut),
			risk_mgmt.WithLogger(log)),
		Logic:   logic,
		Logger:  log,
		Metrics: m,
		FetchOptions: models.FetchOptions{
			NewsDays:  cfg.NewsDays,
			NewsLimit: cfg.NewsLimit,
			PriceDays: cfg.PriceDays,
		},
	})
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.Pipeline = pipeline

	log.WithFields(map[string]any{
		"version":      engine.Version,
		"deep_model":   cfg.DeepThinkLLM,
		"quick_model":  cfg.QuickThinkLLM,
		"price_source": cfg.PriceSource,
	}).Info("engine built")
	return engine, nil
}
