// Package config provides the configuration schema, loader, and environment
// overrides for the mcpbridge CLI.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding slog level. Unknown levels map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Built-in defaults, applied when the corresponding field is unset.
const (
	DefaultProvider    = "openai"
	DefaultModel       = "gpt-4"
	DefaultGeminiModel = "gemini-pro"
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultTemperature = 1.0
	DefaultMaxTokens   = 4096
	DefaultTimeout     = 120 * time.Second
)

// Config is the root configuration structure for mcpbridge.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader],
// then overridden from the environment with [Config.ApplyEnv].
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Session  SessionConfig  `yaml:"session"`
	Servers  []ServerConfig `yaml:"servers"`
	LogLevel LogLevel       `yaml:"log_level"`
}

// LLMConfig selects and tunes the language-model backend.
type LLMConfig struct {
	// Provider selects the backend implementation (e.g., "openai", "gemini",
	// "anthropic", "ollama"). Defaults to "openai".
	Provider string `yaml:"provider"`

	// APIKey authenticates against the provider. Required for all remote
	// providers; also settable via MCPBRIDGE_OPENAI_API_KEY,
	// MCPBRIDGE_GEMINI_API_KEY, or MCPBRIDGE_LLM_API_KEY.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	// Defaults to "gpt-4" ("gemini-pro" when Provider is "gemini").
	Model string `yaml:"model"`

	// Temperature controls output randomness in the range [0, 2].
	// When nil, 1.0 is used.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens caps the completion length. Defaults to 4096.
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds each request to the model service, parsed by
	// time.ParseDuration (e.g. "120s", "2m"). Defaults to 120s.
	Timeout string `yaml:"timeout"`
}

// SessionConfig tunes the bridge session's turn loop.
type SessionConfig struct {
	// MaxTurns is the maximum number of model calls per session.
	// Defaults to 10.
	MaxTurns int `yaml:"max_turns"`

	// LLMRetries is the number of additional attempts after a retriable
	// model-call failure. Defaults to 2.
	LLMRetries int `yaml:"llm_retries"`

	// RetryBackoff is the delay before the first model-call retry
	// (time.ParseDuration syntax). Defaults to "2s".
	RetryBackoff string `yaml:"retry_backoff"`

	// ToolTimeout bounds each individual tool invocation. Defaults to "30s".
	ToolTimeout string `yaml:"tool_timeout"`

	// ConnectTimeout bounds each tool server's startup and handshake.
	// Defaults to "10s".
	ConnectTimeout string `yaml:"connect_timeout"`

	// MaxFailedToolTurns is the number of consecutive turns in which no
	// tool call reaches a live server before the session aborts.
	// Defaults to 3.
	MaxFailedToolTurns int `yaml:"max_failed_tool_turns"`

	// Template names the system-prompt template. Defaults to "default".
	Template string `yaml:"template"`
}

// ServerConfig describes one tool server to spawn and register.
type ServerConfig struct {
	// Name is a unique identifier for this server (used in logs and
	// duplicate-tool errors).
	Name string `yaml:"name"`

	// Command is the executable (with optional arguments) to launch.
	Command string `yaml:"command"`

	// Path is an additional argument appended after the command, typically
	// the server script. May be empty.
	Path string `yaml:"path"`

	// Env holds additional environment variables injected into the
	// subprocess. May be nil.
	Env map[string]string `yaml:"env"`
}

// EffectiveRetryBackoff returns the parsed retry backoff, zero when unset.
func (c SessionConfig) EffectiveRetryBackoff() time.Duration {
	d, _ := parseDuration(c.RetryBackoff)
	return d
}

// EffectiveToolTimeout returns the parsed tool-call timeout, zero when unset.
func (c SessionConfig) EffectiveToolTimeout() time.Duration {
	d, _ := parseDuration(c.ToolTimeout)
	return d
}

// EffectiveConnectTimeout returns the parsed connect timeout, zero when unset.
func (c SessionConfig) EffectiveConnectTimeout() time.Duration {
	d, _ := parseDuration(c.ConnectTimeout)
	return d
}

// EffectiveModel returns the configured model or the provider-appropriate
// default.
func (c LLMConfig) EffectiveModel() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == "gemini" {
		return DefaultGeminiModel
	}
	return DefaultModel
}

// EffectiveTemperature returns the configured temperature or 1.0.
func (c LLMConfig) EffectiveTemperature() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// EffectiveMaxTokens returns the configured token cap or 4096.
func (c LLMConfig) EffectiveMaxTokens() int {
	if c.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return c.MaxTokens
}

// EffectiveTimeout returns the parsed request timeout or 120s. Call
// [Validate] first; an unparseable value falls back to the default here.
func (c LLMConfig) EffectiveTimeout() time.Duration {
	d, err := parseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// Default returns a Config carrying only the built-in defaults, for runs
// without a config file.
func Default() *Config {
	return &Config{
		LLM:      LLMConfig{Provider: DefaultProvider},
		LogLevel: LogInfo,
	}
}
