package trader

import (
	"context"
	"fmt"

	"github.com/dyike/CortexTrader/models"
)

// Approver is the human approval collaborator. Returning a PENDING outcome, an error or
// running past the approval timeout all leave the order awaiting approval.
// Implementations must stop their work once ctx is done.
type Approver interface {
	RequestApproval(ctx context.Context, req models.ApprovalRequest) (models.ApprovalDecision, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req models.ApprovalRequest) (models.ApprovalDecision, error)

func (f ApproverFunc) RequestApproval(ctx context.Context, req models.ApprovalRequest) (models.ApprovalDecision, error) {
	return f(ctx, req)
}

type approvalReply struct {
	decision models.ApprovalDecision
	err      error
}

// requestApproval never blocks longer than the approval timeout, even when the approver
// ignores ctx.
func (t *Team) requestApproval(ctx context.Context, req models.ApprovalRequest) models.ApprovalDecision {
	log := t.log.WithField("order_id", req.OrderID)
	if t.approver == nil {
		log.Info("no approver configured, order left pending")
		return models.ApprovalDecision{Outcome: models.ApprovalPending, Feedback: "No approver configured"}
	}

	if t.approvalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.approvalTimeout)
		defer cancel()
	}

	replies := make(chan approvalReply, 1)
	go func() {
		d, err := t.approver.RequestApproval(ctx, req)
		replies <- approvalReply{decision: d, err: err}
	}()

	select {
	case <-ctx.Done():
		log.WithError(ctx.Err()).Warn("approval timed out")
		return models.ApprovalDecision{Outcome: models.ApprovalPending, Feedback: "Approval timed out"}
	case r := <-replies:
		if r.err != nil {
			log.WithError(r.err).Warn("approval request failed")
			return models.ApprovalDecision{Outcome: models.ApprovalPending, Feedback: fmt.Sprintf("Approval request failed: %v", r.err)}
		}
		switch r.decision.Outcome {
		case models.ApprovalApproved, models.ApprovalRejected:
		default:
			r.decision.Outcome = models.ApprovalPending
		}
		log.WithField("outcome", r.decision.Outcome).Info("approval received")
		return r.decision
	}
}

func buildApprovalRequest(order *models.ExecutionRecord, p models.TradeProposal, score models.FeedbackScore) models.ApprovalRequest {
	return models.ApprovalRequest{
		OrderID:        order.OrderID,
		Ticker:         order.Ticker,
		Side:           order.Side,
		Quantity:       order.Quantity.String(),
		EstimatedValue: "$" + order.EstimatedValue.StringFixed(2),
		CurrentPrice:   "$" + order.CurrentPrice.StringFixed(2),
		StopLoss:       "$" + order.StopLossPrice.StringFixed(2),
		TakeProfit:     "$" + order.TakeProfitPrice.StringFixed(2),
		Confidence:     p.Confidence,
		RiskScore:      score.Risk,
		OverallScore:   score.Overall,
		Recommendation: score.Recommendation,
		Reasoning:      p.Reasoning,
	}
}
