package agents

import (
	"context"
	"time"

	"github.com/cloudwego/eino/callbacks"
	ecmodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexTrader/pkg/logger"
)

type traceStartKey struct{}

// newTraceHandler logs chain node lifecycle events for one template call.
func newTraceHandler(log *logger.Logger, templateID string) callbacks.Handler {
	log = log.WithField("template", templateID)

	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			if info != nil {
				log.WithFields(map[string]any{"node": info.Name, "component": info.Component}).Debug("node start")
			}
			return context.WithValue(ctx, traceStartKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			fields := map[string]any{}
			if info != nil {
				fields["node"] = info.Name
			}
			if started, ok := ctx.Value(traceStartKey{}).(time.Time); ok {
				fields["elapsed_ms"] = time.Since(started).Milliseconds()
			}
			if msg := outputMessage(output); msg != nil {
				fields["content_len"] = len(msg.Content)
				if msg.ResponseMeta != nil {
					fields["finish_reason"] = msg.ResponseMeta.FinishReason
					if usage := msg.ResponseMeta.Usage; usage != nil {
						fields["total_tokens"] = usage.TotalTokens
					}
				}
			}
			log.WithFields(fields).Debug("node end")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			node := ""
			if info != nil {
				node = info.Name
			}
			log.WithError(err).WithField("node", node).Warn("node error")
			return ctx
		}).
		Build()
}

func outputMessage(output callbacks.CallbackOutput) *schema.Message {
	switch v := output.(type) {
	case *schema.Message:
		return v
	case *ecmodel.CallbackOutput:
		return v.Message
	}
	return nil
}
