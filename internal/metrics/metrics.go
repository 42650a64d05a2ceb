// Package metrics exposes prometheus collectors for pipeline stages and generative calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cortextrader"

// Collector groups the pipeline metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	StageDuration   *prometheus.HistogramVec
	StageTotal      *prometheus.CounterVec
	LLMCalls        *prometheus.CounterVec
	LLMLatency      *prometheus.HistogramVec
	TradeIterations prometheus.Histogram
	DebateRounds    prometheus.Histogram
	RunsTotal       *prometheus.CounterVec
}

// New registers the collectors on reg. Passing nil uses the default registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"stage", "status"}),
		StageTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Total number of stage executions by outcome",
		}, []string{"stage", "status"}),
		LLMCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of generative calls by template and outcome",
		}, []string{"template", "outcome"}),
		LLMLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_latency_seconds",
			Help:      "Generative call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"template"}),
		TradeIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trader",
			Name:      "iterations",
			Help:      "Decide/score cycles per trade loop",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		DebateRounds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "debate",
			Name:      "rounds",
			Help:      "Rounds per research debate",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by terminal status",
		}, []string{"status"}),
	}
}

func (c *Collector) ObserveStage(stage, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.StageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
	c.StageTotal.WithLabelValues(stage, status).Inc()
}

func (c *Collector) ObserveCall(template, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.LLMCalls.WithLabelValues(template, outcome).Inc()
	c.LLMLatency.WithLabelValues(template).Observe(d.Seconds())
}

func (c *Collector) ObserveTradeIterations(n int) {
	if c == nil {
		return
	}
	c.TradeIterations.Observe(float64(n))
}

func (c *Collector) ObserveDebateRounds(n int) {
	if c == nil {
		return
	}
	c.DebateRounds.Observe(float64(n))
}

func (c *Collector) ObserveRun(status string) {
	if c == nil {
		return
	}
	c.RunsTotal.WithLabelValues(status).Inc()
}

// Handler serves the metrics gathered by g, or the default gatherer when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
