package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the provider names the bridge knows backends for.
// Used by [Validate] to warn about unrecognised names.
var ValidProviderNames = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r. Unknown fields are rejected.
// The result is NOT validated yet — callers apply environment overrides
// first, then [Validate].
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = DefaultProvider
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from MCPBRIDGE_* environment variables. Environment
// values take precedence over file values. Malformed numeric values are
// reported as errors rather than silently ignored.
func (cfg *Config) ApplyEnv() error {
	var errs []error

	if v := os.Getenv("MCPBRIDGE_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := apiKeyFromEnv(cfg.LLM.Provider); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("MCPBRIDGE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("MCPBRIDGE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("MCPBRIDGE_LLM_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MCPBRIDGE_LLM_TEMPERATURE %q is not a number", v))
		} else {
			cfg.LLM.Temperature = &t
		}
	}
	if v := os.Getenv("MCPBRIDGE_LLM_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MCPBRIDGE_LLM_MAX_TOKENS %q is not an integer", v))
		} else {
			cfg.LLM.MaxTokens = n
		}
	}
	if v := os.Getenv("MCPBRIDGE_LLM_TIMEOUT"); v != "" {
		if _, err := parseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("MCPBRIDGE_LLM_TIMEOUT %q: %v", v, err))
		} else {
			cfg.LLM.Timeout = v
		}
	}
	if v := os.Getenv("MCPBRIDGE_MAX_TURNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MCPBRIDGE_MAX_TURNS %q is not an integer", v))
		} else {
			cfg.Session.MaxTurns = n
		}
	}

	return errors.Join(errs...)
}

// apiKeyFromEnv resolves the API key for the given provider: the
// provider-specific variable wins over the generic one.
func apiKeyFromEnv(provider string) string {
	switch provider {
	case "openai":
		if v := os.Getenv("MCPBRIDGE_OPENAI_API_KEY"); v != "" {
			return v
		}
	case "gemini":
		if v := os.Getenv("MCPBRIDGE_GEMINI_API_KEY"); v != "" {
			return v
		}
	}
	return os.Getenv("MCPBRIDGE_LLM_API_KEY")
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// LLM
	if cfg.LLM.Provider != "" && !slices.Contains(ValidProviderNames, cfg.LLM.Provider) {
		slog.Warn("unknown provider name — may be a typo or third-party provider",
			"name", cfg.LLM.Provider,
			"known", ValidProviderNames,
		)
	}
	if cfg.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key is required (or set MCPBRIDGE_LLM_API_KEY)"))
	}
	if t := cfg.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("llm.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.LLM.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens %d must not be negative (0 means the default)", cfg.LLM.MaxTokens))
	}
	if d, err := parseDuration(cfg.LLM.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("llm.timeout %q: %v", cfg.LLM.Timeout, err))
	} else if cfg.LLM.Timeout != "" && d < time.Second {
		errs = append(errs, fmt.Errorf("llm.timeout %q must be at least 1s", cfg.LLM.Timeout))
	}

	// Session
	if cfg.Session.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("session.max_turns %d must not be negative (0 means the default)", cfg.Session.MaxTurns))
	}
	for _, field := range []struct{ name, value string }{
		{"session.retry_backoff", cfg.Session.RetryBackoff},
		{"session.tool_timeout", cfg.Session.ToolTimeout},
		{"session.connect_timeout", cfg.Session.ConnectTimeout},
	} {
		if _, err := parseDuration(field.value); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %v", field.name, field.value, err))
		}
	}

	// Servers
	namesSeen := make(map[string]int, len(cfg.Servers))
	for i, srv := range cfg.Servers {
		prefix := fmt.Sprintf("servers[%d]", i)
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[srv.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of servers[%d]", prefix, srv.Name, prev))
			}
			namesSeen[srv.Name] = i
		}
		if srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required", prefix))
		}
	}

	return errors.Join(errs...)
}

// parseDuration parses a duration string, additionally accepting a bare
// number as seconds (the form the original environment variables used).
// An empty string parses to zero without error.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("invalid duration (use e.g. \"30s\" or a number of seconds)")
}
