package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrConfiguration wraps every error returned by LoadConfig.
var ErrConfiguration = errors.New("configuration error")

// Validate runs the struct tag rules and the cross-field checks that tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if strings.ContainsAny(c.Bot.Command, " \t|") || strings.HasPrefix(c.Bot.Command, "/") {
		return fmt.Errorf("bot.command %q must be a single word without a leading slash", c.Bot.Command)
	}

	switch c.LLM.Provider {
	case ProviderGemini:
		if c.LLM.Gemini.APIKey == "" {
			return errors.New("llm.gemini.api_key is required when llm.provider is gemini")
		}
	case ProviderOpenAI:
		if c.LLM.OpenAI.APIKey == "" {
			return errors.New("llm.openai.api_key is required when llm.provider is openai")
		}
	}

	if !c.OneBot.Enabled && !c.Telegram.Enabled {
		return errors.New("at least one of onebot.enabled or telegram.enabled must be true")
	}
	if c.OneBot.Enabled && c.OneBot.WSURL == "" {
		return errors.New("onebot.ws_url is required when onebot is enabled")
	}

	return nil
}
