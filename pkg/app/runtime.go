package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dyike/CortexTrader/config"
	"github.com/dyike/CortexTrader/models"
	"github.com/dyike/CortexTrader/pkg/logger"
)

type EngineBuilder func(config.Config) (*Engine, error)

type Option func(*Runtime)

func WithBuilder(builder EngineBuilder) Option {
	return func(r *Runtime) {
		if builder != nil {
			r.builder = builder
		}
	}
}

// WithNotifier receives "engine.reloaded" and "engine.reload_failed" events with a JSON
// payload.
func WithNotifier(fn func(topic, payload string)) Option {
	return func(r *Runtime) {
		r.notify = fn
	}
}

func WithRuntimeLogger(l *logger.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.log = l
		}
	}
}

// Runtime keeps the current engine and swaps in a rebuilt one whenever the config file
// changes. A failed rebuild keeps the previous engine.
type Runtime struct {
	cfgMgr *config.Manager
	engine atomic.Pointer[Engine]

	builder EngineBuilder
	notify  func(string, string)
	log     *logger.Logger
	cancel  context.CancelFunc
}

func NewRuntime(cfgMgr *config.Manager, opts ...Option) (*Runtime, error) {
	if cfgMgr == nil {
		return nil, errors.New("config manager is required")
	}

	rt := &Runtime{
		cfgMgr:  cfgMgr,
		builder: BuildEngine,
		log:     logger.Nop(),
	}

	for _, opt := range opts {
		opt(rt)
	}
	rt.log = rt.log.WithComponent("runtime")

	if err := rt.reload(cfgMgr.Get()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	if err := cfgMgr.Watch(ctx, func(cfg config.Config) {
		if err := rt.reload(cfg); err != nil {
			rt.log.WithError(err).Error("engine reload failed, keeping previous engine")
		}
	}); err != nil {
		cancel()
		rt.closeEngine(rt.engine.Load())
		return nil, err
	}

	return rt, nil
}

func (r *Runtime) Engine() *Engine {
	return r.engine.Load()
}

// Run executes a pipeline run on the current engine.
func (r *Runtime) Run(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	return r.Engine().Run(ctx, req)
}

func (r *Runtime) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	r.closeEngine(r.engine.Swap(nil))
}

func (r *Runtime) UpdateConfigJSON(jsonStr string) error {
	return r.cfgMgr.UpdateFromJSON(jsonStr)
}

func (r *Runtime) reload(cfg config.Config) error {
	engine, err := r.builder(cfg)
	if err != nil {
		r.notifyFailure(err)
		return err
	}
	r.closeEngine(r.engine.Swap(engine))
	r.log.WithField("version", engine.Version).Info("engine loaded")
	r.notifySuccess(engine)
	return nil
}

func (r *Runtime) closeEngine(e *Engine) {
	if e == nil {
		return
	}
	e.Close()
	r.log.WithField("version", e.Version).Debug("engine closed")
}

func (r *Runtime) notifySuccess(engine *Engine) {
	if r.notify == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"version":  engine.Version,
		"built_at": engine.BuiltAt.UTC().Format(time.RFC3339),
	})
	r.notify("engine.reloaded", string(payload))
}

func (r *Runtime) notifyFailure(err error) {
	if r.notify == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"error": err.Error(),
	})
	r.notify("engine.reload_failed", string(payload))
}
