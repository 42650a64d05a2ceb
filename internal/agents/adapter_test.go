package agents_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexTrader/consts"
	"github.com/dyike/CortexTrader/internal/agents"
	"github.com/dyike/CortexTrader/internal/agents/agentstest"
	"github.com/dyike/CortexTrader/internal/utils"
)

func newsBindings() agents.Bindings {
	return agents.Bindings{"ticker": "AAPL", "article_count": 1, "news": "Apple beats estimates"}
}

func TestAdapterParsesFencedJSON(t *testing.T) {
	cm := agentstest.NewChatModel("Here you go:\n```json\n{\"signal\": \"BUY\", \"reasoning\": \"strong quarter\"}\n```")
	a := agents.NewAdapter(cm)

	rec, err := a.Invoke(context.Background(), consts.TemplateNewsAnalyst, newsBindings())
	require.NoError(t, err)
	assert.Equal(t, "BUY", rec.String("signal"))
	assert.Equal(t, 0.5, rec.Float("confidence"), "missing confidence takes the default")
	assert.Equal(t, []string{}, rec.Strings("key_factors"))

	require.Equal(t, 1, cm.Calls())
	msgs := cm.Inputs[0]
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "Apple beats estimates")
	assert.Contains(t, msgs[0].Content, `"signal": "BUY | SELL | HOLD"`)
	assert.NotContains(t, msgs[0].Content, "{{")
}

func TestAdapterMissingBindingFailsFast(t *testing.T) {
	cm := agentstest.NewChatModel(`{"signal": "BUY"}`)
	a := agents.NewAdapter(cm)

	_, err := a.Invoke(context.Background(), consts.TemplateNewsAnalyst, agents.Bindings{"ticker": "AAPL"})
	var failure *agents.AdapterFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, agents.FailureMissingBinding, failure.Kind)
	assert.Contains(t, failure.Error(), "article_count, news")
	assert.Zero(t, cm.Calls(), "no call is issued when a placeholder is unbound")
}

func TestAdapterFailureKinds(t *testing.T) {
	transport := agentstest.NewChatModel()
	transport.Err = errors.New("connection reset")

	tests := []struct {
		name string
		cm   *agentstest.ChatModel
		want agents.FailureKind
	}{
		{"transport", transport, agents.FailureTransport},
		{"empty", agentstest.NewChatModel("   "), agents.FailureEmptyResponse},
		{"prose only", agentstest.NewChatModel("I would rather not answer."), agents.FailureParse},
		{"broken json", agentstest.NewChatModel(`{"signal": "BUY",`), agents.FailureParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := agents.NewAdapter(tt.cm)
			_, err := a.Invoke(context.Background(), consts.TemplateNewsAnalyst, newsBindings())
			var failure *agents.AdapterFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tt.want, failure.Kind)
			assert.Equal(t, consts.TemplateNewsAnalyst, failure.TemplateID)
		})
	}
}

func TestAdapterUnknownTemplate(t *testing.T) {
	a := agents.NewAdapter(agentstest.NewChatModel(`{}`))
	_, err := a.Invoke(context.Background(), "analysts/unknown", agents.Bindings{})
	var failure *agents.AdapterFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, agents.FailureTemplate, failure.Kind)
}

func TestAdapterCustomLoaderKeepsValues(t *testing.T) {
	loader := func(id string) (utils.PromptTemplate, error) {
		return utils.PromptTemplate{ID: id, System: "Score {ticker}", User: "Go"}, nil
	}
	cm := agentstest.NewChatModel(`{"confidence": "0.8", "signal": "SELL"}`, `{"confidence": 0.1}`)
	a := agents.NewAdapter(cm, agents.WithTemplateLoader(loader), agents.WithRateLimit(100))

	rec, err := a.Invoke(context.Background(), consts.TemplateSentimentAnalyst, agents.Bindings{"ticker": "MSFT"})
	require.NoError(t, err)
	assert.Equal(t, 0.8, rec.Float("confidence"), "numeric strings are cast")
	assert.Equal(t, "SELL", rec.String("signal"))

	rec, err = a.Invoke(context.Background(), consts.TemplateSentimentAnalyst, agents.Bindings{"ticker": "MSFT"})
	require.NoError(t, err)
	assert.Equal(t, 0.1, rec.Float("confidence"))
	assert.Equal(t, "HOLD", rec.String("signal"))
	assert.Equal(t, "Score MSFT", cm.Inputs[1][0].Content)
}
