package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrader/models"
)

// scriptedAsk answers prompts in order with the given strings.
func scriptedAsk(answers ...string) (askFunc, *[]string) {
	var messages []string
	return func(p survey.Prompt, response any, _ ...survey.AskOpt) error {
		switch q := p.(type) {
		case *survey.Select:
			messages = append(messages, q.Message)
		case *survey.Input:
			messages = append(messages, q.Message)
		case *survey.Confirm:
			messages = append(messages, q.Message)
		}
		if len(answers) == 0 {
			return errors.New("unexpected prompt")
		}
		answer := answers[0]
		answers = answers[1:]
		switch r := response.(type) {
		case *string:
			*r = answer
		case *bool:
			*r = answer == "yes"
		}
		return nil
	}, &messages
}

func approvalRequest() models.ApprovalRequest {
	return models.ApprovalRequest{
		OrderID:        "ord-1",
		Ticker:         "AAPL",
		Side:           models.SignalBuy,
		Quantity:       "200",
		CurrentPrice:   "$100.00",
		EstimatedValue: "$20000.00",
		Confidence:     0.7,
		OverallScore:   0.72,
		Recommendation: models.ScoreApprove,
		Reasoning:      "momentum",
	}
}

func TestSurveyApprover(t *testing.T) {
	tests := []struct {
		name     string
		answers  []string
		want     models.ApprovalOutcome
		feedback string
		prompts  int
	}{
		{"approve", []string{choiceApprove, " looks fine "}, models.ApprovalApproved, "looks fine", 2},
		{"reject", []string{choiceReject, "too risky"}, models.ApprovalRejected, "too risky", 2},
		{"later", []string{choiceLater}, models.ApprovalPending, "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			ask, messages := scriptedAsk(tt.answers...)
			a := &SurveyApprover{out: &out, ask: ask}

			decision, err := a.RequestApproval(context.Background(), approvalRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision.Outcome)
			assert.Equal(t, tt.feedback, decision.Feedback)
			assert.Len(t, *messages, tt.prompts)
			assert.Contains(t, (*messages)[0], "ord-1")
			assert.Contains(t, out.String(), "Order awaiting approval")
		})
	}
}

func TestSurveyApproverErrors(t *testing.T) {
	ask, _ := scriptedAsk()
	a := &SurveyApprover{out: &bytes.Buffer{}, ask: ask}
	_, err := a.RequestApproval(context.Background(), approvalRequest())
	assert.ErrorContains(t, err, "approval prompt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.RequestApproval(ctx, approvalRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSurveyApproverStopsReadingWhenContextEnds(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	// reads through the stdio survey would use, like a real prompt waiting for a key
	readingAsk := func(_ survey.Prompt, _ any, opts ...survey.AskOpt) error {
		var o survey.AskOptions
		for _, opt := range opts {
			_ = opt(&o)
		}
		if o.Stdio.In == nil {
			return errors.New("prompt not bound to the input pump")
		}
		_, err := o.Stdio.In.Read(make([]byte, 1))
		return err
	}
	a := &SurveyApprover{out: &bytes.Buffer{}, ask: readingAsk, in: newInputPump(pr, 0)}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := a.RequestApproval(ctx, approvalRequest())
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.ErrorContains(t, err, "approval prompt")
	case <-time.After(2 * time.Second):
		t.Fatal("approver kept waiting for input after its context ended")
	}
}

func TestAutoApprover(t *testing.T) {
	decision, err := autoApprover.RequestApproval(context.Background(), approvalRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, decision.Outcome)
}
