package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/dyike/CortexTrader/internal/metrics"
	"github.com/dyike/CortexTrader/internal/utils"
	"github.com/dyike/CortexTrader/pkg/logger"
)

// Adapter is the Invoker backed by an eino chat model. Each template is compiled once
// into a chat template → chat model chain.
type Adapter struct {
	model   model.BaseChatModel
	name    string
	limiter *rate.Limiter
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Collector
	loader  func(id string) (utils.PromptTemplate, error)

	mu     sync.Mutex
	chains map[string]*compiledTemplate
}

type compiledTemplate struct {
	tpl      utils.PromptTemplate
	required []string
	runnable compose.Runnable[map[string]any, *schema.Message]
}

type AdapterOption func(*Adapter)

// WithRateLimit throttles calls to rps requests per second. Zero disables throttling.
func WithRateLimit(rps float64) AdapterOption {
	return func(a *Adapter) {
		if rps > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func WithTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.timeout = d }
}

func WithLogger(l *logger.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

func WithMetrics(m *metrics.Collector) AdapterOption {
	return func(a *Adapter) { a.metrics = m }
}

// WithName labels the adapter in logs and traces, e.g. "deep" or "quick".
func WithName(name string) AdapterOption {
	return func(a *Adapter) { a.name = name }
}

// WithTemplateLoader replaces the embedded prompt loader.
func WithTemplateLoader(fn func(id string) (utils.PromptTemplate, error)) AdapterOption {
	return func(a *Adapter) { a.loader = fn }
}

func NewAdapter(cm model.BaseChatModel, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		model:  cm,
		name:   "default",
		log:    logger.Nop(),
		loader: utils.LoadTemplate,
		chains: make(map[string]*compiledTemplate),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithComponent("adapter").WithField("model", a.name)
	return a
}

func (a *Adapter) Invoke(ctx context.Context, templateID string, bindings Bindings) (Record, error) {
	start := time.Now()
	rec, err := a.invoke(ctx, templateID, bindings)
	outcome := "ok"
	if err != nil {
		var failure *AdapterFailure
		if errors.As(err, &failure) {
			outcome = string(failure.Kind)
		}
	}
	a.metrics.ObserveCall(templateID, outcome, time.Since(start))
	return rec, err
}

func (a *Adapter) invoke(ctx context.Context, templateID string, bindings Bindings) (Record, error) {
	fail := func(kind FailureKind, err error) (Record, error) {
		a.log.WithError(err).WithFields(map[string]any{"template": templateID, "kind": kind}).Warn("generative call failed")
		return nil, &AdapterFailure{TemplateID: templateID, Kind: kind, Err: err}
	}

	compiled, err := a.compiled(ctx, templateID)
	if err != nil {
		return fail(FailureTemplate, err)
	}
	if missing := missingBindings(compiled.required, bindings); len(missing) > 0 {
		return fail(FailureMissingBinding, fmt.Errorf("unbound placeholders: %s", strings.Join(missing, ", ")))
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return fail(FailureTransport, err)
		}
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	a.log.WithField("template", templateID).WithField("bindings", len(bindings)).Debug("invoking model")
	msg, err := compiled.runnable.Invoke(ctx, map[string]any(bindings),
		compose.WithCallbacks(newTraceHandler(a.log, templateID)))
	if err != nil {
		return fail(FailureTransport, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return fail(FailureEmptyResponse, errors.New("model returned no content"))
	}

	rec, err := parseRecord(msg.Content)
	if err != nil {
		return fail(FailureParse, err)
	}
	return applyDefaults(templateID, rec), nil
}

func (a *Adapter) compiled(ctx context.Context, templateID string) (*compiledTemplate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.chains[templateID]; ok {
		return c, nil
	}

	tpl, err := a.loader(templateID)
	if err != nil {
		return nil, err
	}
	messages := []schema.MessagesTemplate{schema.SystemMessage(tpl.System)}
	if tpl.User != "" {
		messages = append(messages, schema.UserMessage(tpl.User))
	}

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.
		AppendChatTemplate(prompt.FromMessages(schema.FString, messages...), compose.WithNodeName("prompt")).
		AppendChatModel(a.model, compose.WithNodeName(a.name))
	runnable, err := chain.Compile(ctx, compose.WithGraphName(templateID))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", templateID, err)
	}

	c := &compiledTemplate{tpl: tpl, required: tpl.Placeholders(), runnable: runnable}
	a.chains[templateID] = c
	return c, nil
}

func missingBindings(required []string, bindings Bindings) []string {
	var missing []string
	for _, name := range required {
		if _, ok := bindings[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
