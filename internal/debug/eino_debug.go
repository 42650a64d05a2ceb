// Package debug starts the eino visual debugger for inspecting generative calls.
package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/dyike/CortexTrader/config"
	"github.com/dyike/CortexTrader/pkg/logger"
)

// devopsDefaultPort is where the devops server listens when started without options.
const devopsDefaultPort = 52538

type EinoDebugger struct {
	config *config.Config
	log    *logger.Logger
	init   func(ctx context.Context) error
}

func NewEinoDebugger(cfg *config.Config, log *logger.Logger) *EinoDebugger {
	if log == nil {
		log = logger.Nop()
	}
	return &EinoDebugger{
		config: cfg,
		log:    log.WithComponent("eino_debug"),
		init:   func(ctx context.Context) error { return devops.Init(ctx) },
	}
}

// Initialize starts the devops server when eino_debug_enabled is set; otherwise it is a
// no-op.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.IsEnabled() {
		return nil
	}

	if d.config.EinoDebugPort != devopsDefaultPort {
		d.log.WithField("port", d.config.EinoDebugPort).
			Warnf("eino debug server always listens on %d", devopsDefaultPort)
	}
	if err := d.init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}

	d.log.WithField("url", d.GetDebugURL()).Info("eino debug server started")
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.config.EinoDebugEnabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.IsEnabled() {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", devopsDefaultPort)
}
