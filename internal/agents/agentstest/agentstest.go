// Package agentstest provides scripted generative-call collaborators for stage tests.
package agentstest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexTrader/internal/agents"
)

var ErrNoScript = errors.New("no scripted response")

type Call struct {
	TemplateID string
	Bindings   agents.Bindings
}

// Invoker replays queued records per template. The last record of a queue repeats once
// the queue is drained. Templates without a script fail with a transport failure.
type Invoker struct {
	mu        sync.Mutex
	responses map[string][]agents.Record
	failures  map[string]error
	failAll   error
	calls     []Call
}

func NewInvoker() *Invoker {
	return &Invoker{
		responses: make(map[string][]agents.Record),
		failures:  make(map[string]error),
	}
}

// AlwaysFailing returns an invoker whose every call fails with err.
func AlwaysFailing(err error) *Invoker {
	inv := NewInvoker()
	inv.failAll = err
	return inv
}

func (s *Invoker) On(templateID string, recs ...agents.Record) *Invoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[templateID] = append(s.responses[templateID], recs...)
	return s
}

func (s *Invoker) Fail(templateID string, err error) *Invoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[templateID] = err
	return s
}

func (s *Invoker) Invoke(_ context.Context, templateID string, bindings agents.Bindings) (agents.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{TemplateID: templateID, Bindings: bindings})

	if err := s.failAll; err != nil {
		return nil, &agents.AdapterFailure{TemplateID: templateID, Kind: agents.FailureTransport, Err: err}
	}
	if err, ok := s.failures[templateID]; ok {
		return nil, &agents.AdapterFailure{TemplateID: templateID, Kind: agents.FailureTransport, Err: err}
	}
	queue := s.responses[templateID]
	if len(queue) == 0 {
		return nil, &agents.AdapterFailure{TemplateID: templateID, Kind: agents.FailureTransport, Err: ErrNoScript}
	}
	rec := queue[0]
	if len(queue) > 1 {
		s.responses[templateID] = queue[1:]
	}
	out := make(agents.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, nil
}

// Calls returns the calls made for templateID, or every call when templateID is empty.
func (s *Invoker) Calls(templateID string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if templateID == "" || c.TemplateID == templateID {
			out = append(out, c)
		}
	}
	return out
}

func (s *Invoker) CallCount(templateID string) int {
	return len(s.Calls(templateID))
}

// ChatModel is a model.BaseChatModel that replies with queued contents.
type ChatModel struct {
	mu      sync.Mutex
	replies []string
	Err     error
	Inputs  [][]*schema.Message
}

var _ model.BaseChatModel = (*ChatModel)(nil)

func NewChatModel(replies ...string) *ChatModel {
	return &ChatModel{replies: replies}
}

func (m *ChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inputs = append(m.Inputs, input)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.replies) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return schema.AssistantMessage(reply, nil), nil
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// Calls returns the number of Generate calls so far.
func (m *ChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inputs)
}
