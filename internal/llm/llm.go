// Package llm implements the completion providers used to generate chat logs.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/aishitbot/internal/config"
)

// RoleAssistant is the role of a successful model turn, whatever the provider
// calls it on the wire.
const RoleAssistant = "assistant"

// Request is a single-turn completion request with no history and no attachments.
type Request struct {
	System string
	Prompt string
}

// Completion is the provider's answer.
type Completion struct {
	Role string
	Text string
}

// Provider produces completions.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.Gemini, cfg.MaxRetries, cfg.RetryDelay, log)
	case config.ProviderOpenAI:
		return NewOpenAI(ctx, cfg.OpenAI, cfg.MaxRetries, cfg.RetryDelay, log)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// retryable reports whether a failed attempt may be repeated.
type retryable func(err error) bool

// withRetries runs call up to maxRetries+1 times, sleeping delay between
// attempts that failed with a retryable error.
func withRetries[T any](ctx context.Context, log *slog.Logger, maxRetries int, delay time.Duration, canRetry retryable, call func() (T, error)) (T, error) {
	var (
		resp T
		err  error
	)
	for i := 0; i <= maxRetries; i++ {
		resp, err = call()
		if err == nil {
			return resp, nil
		}
		if i == maxRetries || !canRetry(err) {
			break
		}

		log.WarnContext(ctx, "Completion call failed, retrying", "attempt", i+1, "max_retries", maxRetries, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(delay):
		}
	}
	return resp, err
}
