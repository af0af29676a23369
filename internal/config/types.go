// Package config manages application configuration from a YAML file,
// AISHIT_* environment variables and default values.
package config

import "time"

// LLM provider names accepted by llm.provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config is the root configuration of the bot.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Bot       BotConfig       `mapstructure:"bot"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Nickname  NicknameConfig  `mapstructure:"nickname"`
	OneBot    OneBotConfig    `mapstructure:"onebot"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// BotConfig holds settings shared by every host.
type BotConfig struct {
	// Command is the trigger text, without any leading slash.
	Command        string        `mapstructure:"command"         validate:"required"`
	CommandTimeout time.Duration `mapstructure:"command_timeout" validate:"min=10s,max=30m"`
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"      validate:"required,oneof=gemini openai"`
	MaxRetries   int           `mapstructure:"max_retries"   validate:"min=0,max=5"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"   validate:"min=0,max=1m"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	UserPrompt   string        `mapstructure:"user_prompt"`
	Gemini       GeminiConfig  `mapstructure:"gemini"`
	OpenAI       OpenAIConfig  `mapstructure:"openai"`
}

// GeminiConfig configures the Google Gemini provider.
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"       validate:"required"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
}

// OpenAIConfig configures any OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"    validate:"omitempty,url"`
	Model       string  `mapstructure:"model"       validate:"required"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `mapstructure:"max_tokens"  validate:"min=0"`
}

// NicknameConfig configures the QQ nickname lookup service.
type NicknameConfig struct {
	BaseURL     string        `mapstructure:"base_url"    validate:"required,url"`
	Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=2m"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=32"`

	// BreakerFailures consecutive outages skip lookups for BreakerCooldown.
	// Zero, the default, disables the breaker.
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"min=0,max=100"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"min=0,max=1h"`
}

// OneBotConfig configures the OneBot v11 forward websocket host.
type OneBotConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	WSURL             string        `mapstructure:"ws_url"             validate:"omitempty,url"`
	AccessToken       string        `mapstructure:"access_token"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" validate:"min=0"`
	APITimeout        time.Duration `mapstructure:"api_timeout"        validate:"min=1s,max=5m"`
}

// TelegramConfig configures the Telegram host.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token" validate:"required_if=Enabled true"`
}

// DatabaseConfig configures the SQLite archive database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ArchiveConfig controls whether generations are recorded and for how long.
type ArchiveConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Retention time.Duration `mapstructure:"retention" validate:"min=1h"`
}

// SchedulerConfig lists the scheduled maintenance tasks by name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a task and gives its cron schedule (seconds field allowed).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// MessagesConfig holds every user-visible reply text.
type MessagesConfig struct {
	Generating    string `mapstructure:"generating"     validate:"required"`
	LLMFailure    string `mapstructure:"llm_failure"    validate:"required"`
	ParseEmpty    string `mapstructure:"parse_empty"    validate:"required"`
	NoNodes       string `mapstructure:"no_nodes"       validate:"required"`
	FailurePrefix string `mapstructure:"failure_prefix" validate:"required"`
}
