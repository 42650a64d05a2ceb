package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/CortexTrader/config"
)

// NewChatModel builds the chat model for modelName on the configured provider.
func NewChatModel(ctx context.Context, cfg *config.Config, modelName string) (model.BaseChatModel, error) {
	timeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second

	switch cfg.LLMProvider {
	case "deepseek":
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.DeepSeekAPIKey,
			Model:     modelName,
			MaxTokens: cfg.MaxTokens,
			Timeout:   timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create DeepSeek model: %w", err)
		}
		return cm, nil
	case "openai", "":
		apiKey := cfg.OpenAIAPIKey
		if apiKey == "" {
			// the default backend is DeepSeek's OpenAI-compatible endpoint
			apiKey = cfg.DeepSeekAPIKey
		}
		maxTokens := cfg.MaxTokens
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BackendURL,
			APIKey:    apiKey,
			Model:     modelName,
			MaxTokens: &maxTokens,
			Timeout:   timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
		}
		return cm, nil
	}
	return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
}

// Models holds the deep and quick invokers a run needs.
type Models struct {
	Deep  Invoker
	Quick Invoker
}

// NewModels builds adapters for the deep and quick models named in cfg.
func NewModels(ctx context.Context, cfg *config.Config, opts ...AdapterOption) (*Models, error) {
	deep, err := NewChatModel(ctx, cfg, cfg.DeepThinkLLM)
	if err != nil {
		return nil, err
	}
	quick, err := NewChatModel(ctx, cfg, cfg.QuickThinkLLM)
	if err != nil {
		return nil, err
	}

	build := func(cm model.BaseChatModel, name string) *Adapter {
		all := []AdapterOption{
			WithName(name),
			WithRateLimit(cfg.LLMRequestsPerSecond),
			WithTimeout(time.Duration(cfg.LLMTimeoutSeconds) * time.Second),
		}
		return NewAdapter(cm, append(all, opts...)...)
	}
	return &Models{
		Deep:  build(deep, cfg.DeepThinkLLM),
		Quick: build(quick, cfg.QuickThinkLLM),
	}, nil
}
