package agents

import (
	"context"
	"fmt"
)

// Bindings fills the placeholders of a prompt template.
type Bindings map[string]any

// Invoker fills a template, calls the model and returns the parsed record. Failures are
// always *AdapterFailure.
type Invoker interface {
	Invoke(ctx context.Context, templateID string, bindings Bindings) (Record, error)
}

type FailureKind string

const (
	FailureMissingBinding FailureKind = "missing_binding"
	FailureTemplate       FailureKind = "template"
	FailureTransport      FailureKind = "transport"
	FailureEmptyResponse  FailureKind = "empty_response"
	FailureParse          FailureKind = "parse"
)

// AdapterFailure is the typed error surfaced once to the stage that made the call.
type AdapterFailure struct {
	TemplateID string
	Kind       FailureKind
	Err        error
}

func (f *AdapterFailure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.TemplateID, f.Kind, f.Err)
}

func (f *AdapterFailure) Unwrap() error {
	return f.Err
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, templateID string, bindings Bindings) (Record, error)

func (f InvokerFunc) Invoke(ctx context.Context, templateID string, bindings Bindings) (Record, error) {
	return f(ctx, templateID, bindings)
}
