package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. AISHIT_LLM_GEMINI_API_KEY for llm.gemini.api_key.
const EnvPrefix = "AISHIT"

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional; a missing file is not an error)
// 3. AISHIT_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
			}
			// Config file not found is okay, we'll use defaults and env
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it even
// when the config file does not mention it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", DefaultLogJSON)

	v.SetDefault("bot.command", DefaultBotCommand)
	v.SetDefault("bot.command_timeout", DefaultBotCommandTimeout)

	v.SetDefault("llm.provider", DefaultLLMProvider)
	v.SetDefault("llm.max_retries", DefaultLLMMaxRetries)
	v.SetDefault("llm.retry_delay", DefaultLLMRetryDelay)
	v.SetDefault("llm.system_prompt", "")
	v.SetDefault("llm.user_prompt", "")
	v.SetDefault("llm.gemini.api_key", "")
	v.SetDefault("llm.gemini.model", DefaultGeminiModel)
	v.SetDefault("llm.gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("llm.openai.api_key", "")
	v.SetDefault("llm.openai.base_url", DefaultOpenAIBaseURL)
	v.SetDefault("llm.openai.model", DefaultOpenAIModel)
	v.SetDefault("llm.openai.temperature", DefaultOpenAITemperature)
	v.SetDefault("llm.openai.max_tokens", DefaultOpenAIMaxTokens)

	v.SetDefault("nickname.base_url", DefaultNicknameBaseURL)
	v.SetDefault("nickname.timeout", DefaultNicknameTimeout)
	v.SetDefault("nickname.concurrency", DefaultNicknameConcurrency)
	v.SetDefault("nickname.breaker_failures", DefaultNicknameBreakerFailures)
	v.SetDefault("nickname.breaker_cooldown", DefaultNicknameBreakerCooldown)

	v.SetDefault("onebot.enabled", DefaultOneBotEnabled)
	v.SetDefault("onebot.ws_url", DefaultOneBotWSURL)
	v.SetDefault("onebot.access_token", "")
	v.SetDefault("onebot.reconnect_interval", DefaultOneBotReconnectInterval)
	v.SetDefault("onebot.api_timeout", DefaultOneBotAPITimeout)

	v.SetDefault("telegram.enabled", DefaultTelegramEnabled)
	v.SetDefault("telegram.token", "")

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("archive.enabled", DefaultArchiveEnabled)
	v.SetDefault("archive.retention", DefaultArchiveRetention)

	for name, task := range DefaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	v.SetDefault("messages.generating", DefaultMessages.Generating)
	v.SetDefault("messages.llm_failure", DefaultMessages.LLMFailure)
	v.SetDefault("messages.parse_empty", DefaultMessages.ParseEmpty)
	v.SetDefault("messages.no_nodes", DefaultMessages.NoNodes)
	v.SetDefault("messages.failure_prefix", DefaultMessages.FailurePrefix)
}
