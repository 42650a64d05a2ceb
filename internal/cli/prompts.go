package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/CortexTrader/models"
)

// Prompter asks the interactive questions; ask is swapped in tests.
type Prompter struct {
	ask askFunc
	in  *inputPump
}

func NewPrompter() *Prompter {
	return &Prompter{ask: survey.AskOne, in: stdinInput}
}

// opts routes prompts through the shared stdin reader used by the approver.
func (p *Prompter) opts(extra ...survey.AskOpt) []survey.AskOpt {
	if p.in == nil {
		return extra
	}
	return append([]survey.AskOpt{p.in.stdio(context.Background())}, extra...)
}

// validateTicker accepts 1-12 letters, digits, dots and hyphens.
func validateTicker(val any) error {
	str, _ := val.(string)
	str = strings.TrimSpace(strings.ToUpper(str))
	if len(str) == 0 {
		return errors.New("ticker symbol cannot be empty")
	}
	if !tickerPattern.MatchString(str) {
		return errors.New("invalid ticker format (use up to 12 letters, numbers, dots and hyphens)")
	}
	return nil
}

func validateCapital(val any) error {
	str, _ := val.(string)
	v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return errors.New("capital must be a number")
	}
	if v < 0 {
		return errors.New("capital cannot be negative")
	}
	return nil
}

// PromptForTicker prompts the user to enter a stock ticker symbol
func (p *Prompter) PromptForTicker() (string, error) {
	var ticker string
	err := p.ask(&survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Help:    "Please enter a valid stock ticker symbol for analysis",
	}, &ticker, p.opts(survey.WithValidator(validateTicker))...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

func (p *Prompter) PromptForCapital(def float64) (float64, error) {
	var capital string
	err := p.ask(&survey.Input{
		Message: "Available capital (USD):",
		Default: strconv.FormatFloat(def, 'f', -1, 64),
	}, &capital, p.opts(survey.WithValidator(validateCapital))...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(capital), 64)
}

func (p *Prompter) PromptForRiskTolerance(def models.RiskTolerance) (models.RiskTolerance, error) {
	if !def.Valid() {
		def = models.ToleranceModerate
	}
	var tolerance string
	err := p.ask(&survey.Select{
		Message: "Risk tolerance:",
		Options: []string{
			string(models.ToleranceConservative),
			string(models.ToleranceModerate),
			string(models.ToleranceAggressive),
		},
		Default: string(def),
		Help:    "Caps a single position at 20%, 30% or 40% of the portfolio",
	}, &tolerance, p.opts()...)
	if err != nil {
		return "", err
	}
	return models.RiskTolerance(tolerance), nil
}

func (p *Prompter) Confirm(message string, def bool) (bool, error) {
	ok := def
	if err := p.ask(&survey.Confirm{Message: message, Default: def}, &ok, p.opts()...); err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}
	return ok, nil
}
