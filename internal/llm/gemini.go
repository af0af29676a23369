package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/aishitbot/internal/config"
)

// geminiRoleModel is the role genai assigns to model turns.
const geminiRoleModel = "model"

type geminiProvider struct {
	client      *genai.Client
	log         *slog.Logger
	model       string
	temperature float32
	maxRetries  int
	retryDelay  time.Duration
}

// NewGemini creates a provider backed by the Google Gemini API.
func NewGemini(ctx context.Context, cfg config.GeminiConfig, maxRetries int, retryDelay time.Duration, log *slog.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_provider")
	logger.Info("Gemini provider initialized", "model", cfg.Model)

	return &geminiProvider{
		client:      gi,
		log:         logger,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
	}, nil
}

func (p *geminiProvider) Name() string { return config.ProviderGemini }

func (p *geminiProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	temperature := p.temperature
	genCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
	if req.System != "" {
		genCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	p.log.DebugContext(ctx, "Requesting completion", "model", p.model)

	resp, err := withRetries(ctx, p.log, p.maxRetries, p.retryDelay, isRetryableGeminiError, func() (*genai.GenerateContentResponse, error) {
		return p.client.Models.GenerateContent(ctx, p.model, contents, genCfg)
	})
	if err != nil {
		p.log.ErrorContext(ctx, "Gemini completion failed", "error", err)
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	return p.toCompletion(ctx, resp), nil
}

// toCompletion maps a genai response to a Completion. Blocked or empty
// responses keep a non-assistant role so callers treat them as failed turns.
func (p *geminiProvider) toCompletion(ctx context.Context, resp *genai.GenerateContentResponse) *Completion {
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		p.log.WarnContext(ctx, "Gemini request blocked", "reason", resp.PromptFeedback.BlockReason)
		return &Completion{Role: "blocked"}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		p.log.WarnContext(ctx, "Gemini response missing candidates or content")
		return &Completion{}
	}

	content := resp.Candidates[0].Content
	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}

	return &Completion{
		Role: geminiRole(content.Role),
		Text: sb.String(),
	}
}

func geminiRole(role string) string {
	if role == geminiRoleModel {
		return RoleAssistant
	}
	return role
}

func isRetryableGeminiError(err error) bool {
	var apiErr *genai.APIError
	return errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503)
}
