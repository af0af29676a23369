package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/gg/gptr"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/edgard/aishitbot/internal/config"
)

type openAIProvider struct {
	chatModel  model.BaseChatModel
	log        *slog.Logger
	model      string
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAI creates a provider for any OpenAI-compatible chat completion
// endpoint (OpenAI, DeepSeek, Qwen/DashScope, Kimi, GLM, Ollama, ...).
func NewOpenAI(ctx context.Context, cfg config.OpenAIConfig, maxRetries int, retryDelay time.Duration, log *slog.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	modelCfg := &einoOpenAI.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: gptr.Of(cfg.Temperature),
		ResponseFormat: &einoOpenAI.ChatCompletionResponseFormat{
			Type: einoOpenAI.ChatCompletionResponseFormatTypeText,
		},
	}
	// Set BaseURL only for non-default OpenAI endpoints.
	if cfg.BaseURL != "" {
		modelCfg.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens > 0 {
		modelCfg.MaxTokens = gptr.Of(cfg.MaxTokens)
	}

	cm, err := einoOpenAI.NewChatModel(ctx, modelCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai chat model: %w", err)
	}

	return newOpenAIProvider(cm, cfg.Model, maxRetries, retryDelay, log), nil
}

func newOpenAIProvider(cm model.BaseChatModel, modelName string, maxRetries int, retryDelay time.Duration, log *slog.Logger) *openAIProvider {
	logger := log.With("component", "openai_provider")
	logger.Info("OpenAI-compatible provider initialized", "model", modelName)

	return &openAIProvider{
		chatModel:  cm,
		log:        logger,
		model:      modelName,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

func (p *openAIProvider) Name() string { return config.ProviderOpenAI }

func (p *openAIProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	var messages []*schema.Message
	if req.System != "" {
		messages = append(messages, schema.SystemMessage(req.System))
	}
	messages = append(messages, schema.UserMessage(req.Prompt))

	p.log.DebugContext(ctx, "Requesting completion", "model", p.model)

	msg, err := withRetries(ctx, p.log, p.maxRetries, p.retryDelay, isRetryableOpenAIError, func() (*schema.Message, error) {
		return p.chatModel.Generate(ctx, messages)
	})
	if err != nil {
		p.log.ErrorContext(ctx, "OpenAI completion failed", "error", err)
		return nil, fmt.Errorf("openai API call failed: %w", err)
	}
	if msg == nil {
		p.log.WarnContext(ctx, "OpenAI response has no message")
		return &Completion{}, nil
	}

	return &Completion{
		Role: string(msg.Role),
		Text: msg.Content,
	}, nil
}

func isRetryableOpenAIError(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
