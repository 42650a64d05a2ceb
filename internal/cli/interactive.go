package cli

import (
	"context"
	"errors"
	"io"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/CortexTrader/internal/display"
)

// runInteractiveMode asks for ticker, capital and risk tolerance and runs the pipeline
// until the user stops. Approvals are asked on the terminal.
func runInteractiveMode(ctx context.Context, out io.Writer, root *rootOptions, p *Prompter) error {
	DisplayWelcomeBanner(out)

	_, cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	engine, err := root.buildEngine(ctx, cfg, NewSurveyApprover(out))
	if err != nil {
		return err
	}
	defer engine.Close()

	s := &session{out: out, engine: engine, details: true, reportDir: cfg.ResultsDir}
	for {
		err := interactiveRun(ctx, s, p)
		if errors.Is(err, terminal.InterruptErr) {
			break
		}
		if err != nil {
			display.DisplayError(out, err, "analysis")
		}

		again, err := p.Confirm("Analyze another ticker?", true)
		if err != nil || !again {
			break
		}
	}

	display.DisplayInfo(out, "👋 Thank you for using CortexTrader!")
	return nil
}

func interactiveRun(ctx context.Context, s *session, p *Prompter) error {
	ticker, err := p.PromptForTicker()
	if err != nil {
		return err
	}
	req := s.engine.Request(ticker)

	if req.AvailableCapital, err = p.PromptForCapital(req.AvailableCapital); err != nil {
		return err
	}
	if req.RiskTolerance, err = p.PromptForRiskTolerance(req.RiskTolerance); err != nil {
		return err
	}
	if req.EnableTrading {
		if req.EnableTrading, err = p.Confirm("Let the trader prepare an order?", true); err != nil {
			return err
		}
	}

	_, err = s.analyze(ctx, req)
	return err
}
