package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/CortexTrader/internal/agents/trader"
	"github.com/dyike/CortexTrader/models"
)

const (
	choiceApprove = "Approve"
	choiceReject  = "Reject"
	choiceLater   = "Decide later"
)

type askFunc func(p survey.Prompt, response any, opts ...survey.AskOpt) error

// SurveyApprover asks the operator to approve an order on the terminal. The prompt is
// abandoned when ctx ends, so a timed out approval leaves nothing reading stdin.
type SurveyApprover struct {
	out io.Writer
	ask askFunc
	in  *inputPump
}

var _ trader.Approver = (*SurveyApprover)(nil)

func NewSurveyApprover(out io.Writer) *SurveyApprover {
	return &SurveyApprover{out: out, ask: survey.AskOne, in: stdinInput}
}

func (a *SurveyApprover) RequestApproval(ctx context.Context, req models.ApprovalRequest) (models.ApprovalDecision, error) {
	if err := ctx.Err(); err != nil {
		return models.ApprovalDecision{}, err
	}
	fmt.Fprintln(a.out, RenderApprovalRequest(req))

	var choice string
	err := a.ask(&survey.Select{
		Message: fmt.Sprintf("Approve %s order %s?", req.Ticker, req.OrderID),
		Options: []string{choiceApprove, choiceReject, choiceLater},
		Default: choiceLater,
	}, &choice, a.opts(ctx)...)
	if err != nil {
		return models.ApprovalDecision{}, fmt.Errorf("approval prompt: %w", err)
	}

	decision := models.ApprovalDecision{Outcome: models.ApprovalPending}
	switch choice {
	case choiceApprove:
		decision.Outcome = models.ApprovalApproved
	case choiceReject:
		decision.Outcome = models.ApprovalRejected
	default:
		return decision, nil
	}

	var feedback string
	if err := a.ask(&survey.Input{Message: "Feedback (optional):"}, &feedback, a.opts(ctx)...); err != nil {
		return models.ApprovalDecision{}, fmt.Errorf("feedback prompt: %w", err)
	}
	decision.Feedback = strings.TrimSpace(feedback)
	return decision, nil
}

func (a *SurveyApprover) opts(ctx context.Context) []survey.AskOpt {
	if a.in == nil {
		return nil
	}
	return []survey.AskOpt{a.in.stdio(ctx)}
}

// autoApprover approves every order that reaches the approval gate.
var autoApprover = trader.ApproverFunc(func(context.Context, models.ApprovalRequest) (models.ApprovalDecision, error) {
	return models.ApprovalDecision{Outcome: models.ApprovalApproved, Feedback: "Approved by --auto-approve"}, nil
})
