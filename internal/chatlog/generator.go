package chatlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgard/aishitbot/internal/llm"
)

// Generator requests fake chat logs from a completion provider.
type Generator struct {
	provider    llm.Provider
	log         *slog.Logger
	system      string
	prompt      string
	failureText string
}

// NewGenerator creates a Generator. Empty prompts fall back to SystemPrompt
// and UserPrompt. failureText is returned in place of the completion when the
// provider answers with anything but an assistant turn.
func NewGenerator(provider llm.Provider, systemPrompt, userPrompt, failureText string, log *slog.Logger) *Generator {
	if systemPrompt == "" {
		systemPrompt = SystemPrompt
	}
	if userPrompt == "" {
		userPrompt = UserPrompt
	}
	return &Generator{
		provider:    provider,
		log:         log.With("component", "chatlog_generator"),
		system:      systemPrompt,
		prompt:      userPrompt,
		failureText: failureText,
	}
}

// Generate sends one completion request with no history and no attachments.
// Provider errors are returned; a non-assistant answer yields failureText.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	completion, err := g.provider.Complete(ctx, llm.Request{
		System: g.system,
		Prompt: g.prompt,
	})
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	if completion.Role != llm.RoleAssistant {
		g.log.ErrorContext(ctx, "Completion is not an assistant turn", "provider", g.provider.Name(), "role", completion.Role)
		return g.failureText, nil
	}

	text := strings.TrimSpace(completion.Text)
	g.log.DebugContext(ctx, "Generated chat log", "provider", g.provider.Name(), "text", text)
	return text, nil
}
