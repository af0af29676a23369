package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	DefaultBotCommand        = "ai造屎"
	DefaultBotCommandTimeout = 3 * time.Minute

	DefaultLLMProvider   = ProviderGemini
	DefaultLLMMaxRetries = 0 // one attempt per command
	DefaultLLMRetryDelay = 2 * time.Second

	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 1.0

	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenAIModel       = "gpt-4o-mini"
	DefaultOpenAITemperature = 1.0
	DefaultOpenAIMaxTokens   = 2048

	DefaultNicknameBaseURL         = "http://api.mmp.cc/api/qqname"
	DefaultNicknameTimeout         = 10 * time.Second
	DefaultNicknameConcurrency     = 4
	DefaultNicknameBreakerFailures = 0 // breaker off; every lookup issues a request
	DefaultNicknameBreakerCooldown = 30 * time.Second

	DefaultOneBotEnabled           = true
	DefaultOneBotWSURL             = "ws://127.0.0.1:3001"
	DefaultOneBotReconnectInterval = 10 * time.Second
	DefaultOneBotAPITimeout        = 30 * time.Second

	DefaultTelegramEnabled = false

	DefaultDBPath = "storage.db"

	DefaultArchiveEnabled   = true
	DefaultArchiveRetention = 30 * 24 * time.Hour
)

// DefaultMessages are the user-visible reply texts.
var DefaultMessages = MessagesConfig{
	Generating:    "正在生成新鲜的屎，请稍候...",
	LLMFailure:    "生成失败，请重试",
	ParseEmpty:    "生成的聊天记录格式有误，请重试",
	NoNodes:       "未能解析出任何有效的消息节点",
	FailurePrefix: "生成失败: ",
}

// DefaultTasks are scheduled when the config file does not override them.
var DefaultTasks = map[string]TaskConfig{
	"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
	"archive_prune":   {Enabled: true, Schedule: "0 30 3 * * *"},
}
