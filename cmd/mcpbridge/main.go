// Command mcpbridge connects stdio tool servers to a language model and runs
// one prompt through a multi-turn tool-calling conversation, printing the
// model's final answer on standard output.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/spf13/pflag"

	"github.com/mcpbridge/mcpbridge/internal/config"
	"github.com/mcpbridge/mcpbridge/internal/observe"
	"github.com/mcpbridge/mcpbridge/internal/prompt"
	"github.com/mcpbridge/mcpbridge/internal/registry"
	"github.com/mcpbridge/mcpbridge/internal/session"
	"github.com/mcpbridge/mcpbridge/internal/toolserver"
	"github.com/mcpbridge/mcpbridge/pkg/llm"
	llmanyllm "github.com/mcpbridge/mcpbridge/pkg/llm/anyllm"
	llmopenai "github.com/mcpbridge/mcpbridge/pkg/llm/openai"
)

// version is overridden at build time via -ldflags.
var version = "0.1.0"

// Exit codes. Configuration problems and non-convergence get distinct codes
// so wrapping scripts can tell them apart from transient failures.
const (
	exitOK       = 0
	exitError    = 1
	exitConfig   = 2
	exitNoAnswer = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("mcpbridge", pflag.ContinueOnError)
	promptFlag := flags.StringP("prompt", "p", "", "the user prompt (alternatively the first positional argument)")
	serverFlags := flags.StringArrayP("server", "s", nil, `tool server as "name,command,path" (repeatable)`)
	configPath := flags.StringP("config", "c", "", "path to the YAML configuration file")
	logLevel := flags.String("log-level", "", "log verbosity: debug, info, warn, error")
	template := flags.String("template", "", "system prompt template name")
	showVersion := flags.Bool("version", false, "print the version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		return exitConfig
	}
	if *showVersion {
		fmt.Println("mcpbridge " + version)
		return exitOK
	}

	// ── Configuration: file < environment < flags ───────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: configuration error: %v\n", err)
		return exitConfig
	}
	if *logLevel != "" {
		cfg.LogLevel = config.LogLevel(*logLevel)
	}
	if *template != "" {
		cfg.Session.Template = *template
	}
	for _, spec := range *serverFlags {
		srv, err := parseServerFlag(spec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mcpbridge: configuration error: %v\n", err)
			return exitConfig
		}
		cfg.Servers = append(cfg.Servers, srv)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: configuration error: %v\n", err)
		return exitConfig
	}

	userPrompt := *promptFlag
	if userPrompt == "" && flags.NArg() > 0 {
		userPrompt = strings.Join(flags.Args(), " ")
	}
	if userPrompt == "" {
		fmt.Fprintln(os.Stderr, "mcpbridge: configuration error: no prompt given (use --prompt or a positional argument)")
		return exitConfig
	}

	// ── Logger ───────────────────────────────────────────────────────────────
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel.Slog(),
	})))

	// ── Signal context ───────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ────────────────────────────────────────────────────────────
	otelShutdown, err := observe.Init(ctx, version)
	if err != nil {
		slog.Warn("telemetry init failed, continuing without", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown error", "error", err)
			}
		}()
	}

	// ── Model client ─────────────────────────────────────────────────────────
	client, err := buildClient(cfg.LLM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: configuration error: %v\n", err)
		return exitConfig
	}

	// ── Prompt template ──────────────────────────────────────────────────────
	builder, err := prompt.New(cfg.Session.Template)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: configuration error: %v\n", err)
		return exitConfig
	}

	// ── Tool servers ─────────────────────────────────────────────────────────
	reg := registry.New()
	for _, srvCfg := range cfg.Servers {
		handle := toolserver.New(toolserver.Config{
			Name:           srvCfg.Name,
			Command:        srvCfg.Command,
			Args:           pathArgs(srvCfg.Path),
			Env:            srvCfg.Env,
			ConnectTimeout: cfg.Session.EffectiveConnectTimeout(),
		})
		if err := handle.Connect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "mcpbridge: tool server %q: %v\n", srvCfg.Name, err)
			return exitError
		}
		defer func() {
			if err := handle.Disconnect(); err != nil {
				slog.Warn("tool server disconnect error", "error", err)
			}
		}()

		if err := reg.Register(handle); err != nil {
			// Duplicate tool names are a setup problem, not a runtime one.
			fmt.Fprintf(os.Stderr, "mcpbridge: configuration error: %v\n", err)
			return exitConfig
		}
	}
	slog.Info("tool servers ready", "servers", len(cfg.Servers), "tools", reg.ToolNames())

	// ── Session ──────────────────────────────────────────────────────────────
	s := session.New(client, reg, session.Config{
		MaxTurns:           cfg.Session.MaxTurns,
		LLMRetries:         cfg.Session.LLMRetries,
		RetryBackoff:       cfg.Session.EffectiveRetryBackoff(),
		LLMTimeout:         cfg.LLM.EffectiveTimeout(),
		ToolTimeout:        cfg.Session.EffectiveToolTimeout(),
		MaxFailedToolTurns: cfg.Session.MaxFailedToolTurns,
		SystemPrompt:       builder.SystemPrompt(),
		Temperature:        cfg.LLM.EffectiveTemperature(),
		MaxTokens:          cfg.LLM.EffectiveMaxTokens(),
	})

	result, err := s.Run(ctx, userPrompt)
	if err != nil {
		return reportFailure(err, result)
	}

	fmt.Println(result.Answer)
	return exitOK
}

// loadConfig reads the optional config file and applies environment
// overrides on top.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseServerFlag parses one --server value of the form "name,command,path".
// The path element is optional.
func parseServerFlag(spec string) (config.ServerConfig, error) {
	parts := strings.SplitN(spec, ",", 3)
	if len(parts) < 2 {
		return config.ServerConfig{}, fmt.Errorf("--server %q: want \"name,command,path\"", spec)
	}
	srv := config.ServerConfig{
		Name:    strings.TrimSpace(parts[0]),
		Command: strings.TrimSpace(parts[1]),
	}
	if len(parts) == 3 {
		srv.Path = strings.TrimSpace(parts[2])
	}
	return srv, nil
}

// pathArgs turns the optional script path into the handle's extra args.
func pathArgs(path string) []string {
	if path == "" {
		return nil
	}
	return []string{path}
}

// buildClient constructs the model client for the configured provider. The
// "openai" provider uses the native SDK client; every other provider goes
// through the any-llm multiplexer.
func buildClient(cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "openai", "":
		var opts []llmopenai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(cfg.BaseURL))
		}
		opts = append(opts, llmopenai.WithTimeout(cfg.EffectiveTimeout()))
		return llmopenai.New(cfg.APIKey, cfg.EffectiveModel(), opts...)
	default:
		var opts []anyllmlib.Option
		if cfg.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
		}
		return llmanyllm.New(cfg.Provider, cfg.EffectiveModel(), opts...)
	}
}

// reportFailure prints a categorized diagnostic for a failed run and picks
// the exit code.
func reportFailure(err error, result *session.Result) int {
	switch {
	case errors.Is(err, session.ErrMaxTurnsExceeded):
		fmt.Fprintf(os.Stderr, "mcpbridge: the model did not produce a final answer within %d turns\n", result.Turns)
		return exitNoAnswer
	case errors.Is(err, llm.ErrAuthentication):
		fmt.Fprintf(os.Stderr, "mcpbridge: configuration error: %v\n", err)
		return exitConfig
	case errors.Is(err, llm.ErrRateLimit) || errors.Is(err, llm.ErrTimeout):
		fmt.Fprintf(os.Stderr, "mcpbridge: transient model-service failure: %v\n", err)
		return exitError
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "mcpbridge: cancelled")
		return exitError
	default:
		fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		return exitError
	}
}
