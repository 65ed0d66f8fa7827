// Package session implements the bridge session: the orchestration loop that
// carries one user prompt through alternating model calls and tool
// invocations until the model produces a final answer or a termination
// condition is reached.
//
// A [Session] owns the conversation transcript, the tool registry, and the
// model client for one end-to-end run. The loop is a small state machine:
// every iteration sends the transcript plus the tool catalog to the model,
// then either returns the final answer or dispatches the requested tool
// calls and folds their results back into the transcript.
//
// Tool dispatch is fan-out/fan-in: calls targeting different servers run
// concurrently, calls targeting one server run in issue order, and the
// result turns are appended in the order the model requested them — the
// transcript is deterministic given deterministic model output.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mcpbridge/mcpbridge/internal/conversation"
	"github.com/mcpbridge/mcpbridge/internal/observe"
	"github.com/mcpbridge/mcpbridge/internal/registry"
	"github.com/mcpbridge/mcpbridge/internal/resilience"
	"github.com/mcpbridge/mcpbridge/pkg/llm"
)

// Sentinel errors for the two non-crash abort outcomes.
var (
	// ErrMaxTurnsExceeded indicates the model never produced a final answer
	// within the configured turn budget. The partial transcript is still
	// returned alongside this error.
	ErrMaxTurnsExceeded = errors.New("session: maximum turns exceeded without a final answer")

	// ErrNoUsableTools indicates the model kept requesting tools across
	// several consecutive turns in which not a single call could be
	// delivered to a live server.
	ErrNoUsableTools = errors.New("session: no usable tools remain")
)

// Status is the terminal state of a session run.
type Status int

const (
	// StatusDone means the model produced a final answer.
	StatusDone Status = iota

	// StatusAborted means an unrecoverable error ended the run early.
	StatusAborted

	// StatusMaxTurnsExceeded means the turn budget ran out before a final
	// answer.
	StatusMaxTurnsExceeded
)

// String returns the human-readable name of the status.
func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusAborted:
		return "aborted"
	case StatusMaxTurnsExceeded:
		return "max-turns-exceeded"
	default:
		return "unknown"
	}
}

// Config holds the tuning knobs of one session run.
type Config struct {
	// MaxTurns is the maximum number of model calls before the session
	// gives up. Zero means 10.
	MaxTurns int

	// LLMRetries is the number of additional attempts after a retriable
	// model-call failure. Zero means 2; negative disables retries.
	LLMRetries int

	// RetryBackoff is the delay before the first model-call retry,
	// doubling per attempt. Zero means 2 seconds.
	RetryBackoff time.Duration

	// LLMTimeout bounds each individual model call, regardless of which
	// provider backs the client. Zero means 120 seconds.
	LLMTimeout time.Duration

	// ToolTimeout bounds each individual tool invocation. Zero means
	// 30 seconds.
	ToolTimeout time.Duration

	// MaxFailedToolTurns is the number of consecutive turns in which every
	// requested tool call fails to reach a server before the session
	// aborts. Zero means 3.
	MaxFailedToolTurns int

	// SystemPrompt seeds the transcript when non-empty.
	SystemPrompt string

	// Temperature and MaxTokens are passed through to every model call.
	Temperature float64
	MaxTokens   int
}

// withDefaults returns cfg with zero fields replaced.
func (cfg Config) withDefaults() Config {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	if cfg.LLMRetries == 0 {
		cfg.LLMRetries = 2
	}
	if cfg.LLMRetries < 0 {
		cfg.LLMRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 120 * time.Second
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 30 * time.Second
	}
	if cfg.MaxFailedToolTurns <= 0 {
		cfg.MaxFailedToolTurns = 3
	}
	return cfg
}

// Result is the outcome of one session run.
type Result struct {
	// Status is the terminal state reached.
	Status Status

	// Answer is the model's final text. Empty unless Status is StatusDone.
	Answer string

	// Transcript is the full (possibly partial, on abort) conversation.
	Transcript []llm.Message

	// Turns counts the model calls performed.
	Turns int
}

// Session orchestrates one prompt-to-answer run.
//
// The zero value is not usable; create instances with [New]. A Session is
// single-use: Run may be called once.
type Session struct {
	id      string
	cfg     Config
	client  llm.Client
	reg     *registry.Registry
	metrics *observe.Metrics
	tracer  trace.Tracer
}

// New creates a Session over the given model client and tool registry.
func New(client llm.Client, reg *registry.Registry, cfg Config) *Session {
	return &Session{
		id:      uuid.NewString(),
		cfg:     cfg.withDefaults(),
		client:  client,
		reg:     reg,
		metrics: observe.Default(),
		tracer:  otel.Tracer("github.com/mcpbridge/mcpbridge/internal/session"),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Run executes the turn loop for the given user prompt.
//
// It returns a non-nil Result in every case, including errors: on
// [ErrMaxTurnsExceeded] and on abort the Result carries the partial
// transcript. The error is nil exactly when Result.Status is [StatusDone].
func (s *Session) Run(ctx context.Context, prompt string) (*Result, error) {
	conv := conversation.New(s.id, s.cfg.SystemPrompt)
	conv.AddUser(prompt)

	// The registry is read-only for the session's lifetime, so the catalog
	// is projected once.
	catalog := registry.Project(s.reg.Catalog())

	slog.Info("session started",
		"session", s.id,
		"tools", len(catalog),
		"max_turns", s.cfg.MaxTurns)

	failedToolTurns := 0

	for turn := 1; turn <= s.cfg.MaxTurns; turn++ {
		turnCtx, span := s.tracer.Start(ctx, "session.turn",
			trace.WithAttributes(
				attribute.String("session.id", s.id),
				attribute.Int("session.turn", turn),
			))
		s.metrics.SessionTurns.Add(turnCtx, 1)

		reply, err := s.generate(turnCtx, conv, catalog)
		if err != nil {
			span.End()
			slog.Error("model call failed", "session", s.id, "turn", turn, "error", err)
			return &Result{
				Status:     StatusAborted,
				Transcript: conv.Messages(),
				Turns:      turn,
			}, fmt.Errorf("session: model call on turn %d: %w", turn, err)
		}

		conv.AddAssistant(reply)

		if reply.Kind == llm.ReplyFinal {
			span.End()
			slog.Info("session finished",
				"session", s.id,
				"turns", turn,
				"total_tokens", reply.Usage.TotalTokens)
			return &Result{
				Status:     StatusDone,
				Answer:     reply.Text,
				Transcript: conv.Messages(),
				Turns:      turn,
			}, nil
		}

		slog.Debug("dispatching tool calls",
			"session", s.id,
			"turn", turn,
			"calls", len(reply.ToolCalls))

		outcomes := s.dispatch(turnCtx, reply.ToolCalls)
		span.End()

		// The model must see a result for every call id it requested, in
		// request order, or the transcript becomes inconsistent.
		delivered := false
		for i, call := range reply.ToolCalls {
			conv.AddToolResult(call.ID, call.Name, outcomes[i].content)
			if outcomes[i].delivered {
				delivered = true
			}
		}

		if delivered {
			failedToolTurns = 0
		} else {
			failedToolTurns++
			if failedToolTurns >= s.cfg.MaxFailedToolTurns {
				slog.Error("aborting: tool calls keep failing to reach a server",
					"session", s.id,
					"consecutive_turns", failedToolTurns)
				return &Result{
					Status:     StatusAborted,
					Transcript: conv.Messages(),
					Turns:      turn,
				}, fmt.Errorf("session: %d consecutive turns without a deliverable tool call: %w",
					failedToolTurns, ErrNoUsableTools)
			}
		}
	}

	slog.Warn("session did not converge", "session", s.id, "turns", s.cfg.MaxTurns)
	return &Result{
		Status:     StatusMaxTurnsExceeded,
		Transcript: conv.Messages(),
		Turns:      s.cfg.MaxTurns,
	}, ErrMaxTurnsExceeded
}

// generate performs one model call with bounded retries for transient
// failures. Permanent errors (authentication, client-side service errors,
// protocol violations) are returned after the first attempt.
//
// Every attempt runs under the configured per-call timeout, so a hung model
// service surfaces as [llm.ErrTimeout] no matter which provider backs the
// client.
func (s *Session) generate(ctx context.Context, conv *conversation.Conversation, catalog []llm.ToolDefinition) (*llm.Reply, error) {
	req := llm.Request{
		Messages:    conv.Messages(),
		Tools:       catalog,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}

	retryCfg := resilience.RetryConfig{
		Attempts:       s.cfg.LLMRetries + 1,
		InitialBackoff: s.cfg.RetryBackoff,
	}

	start := time.Now()
	reply, err := resilience.Retry(ctx, retryCfg, llm.Retriable,
		func(ctx context.Context) (*llm.Reply, error) {
			callCtx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
			defer cancel()

			reply, err := s.client.Generate(callCtx, req)
			if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, llm.ErrTimeout) {
				// Clients built on SDKs that return the raw context error
				// still get folded into the taxonomy.
				return nil, fmt.Errorf("%w: model call exceeded %v", llm.ErrTimeout, s.cfg.LLMTimeout)
			}
			return reply, err
		})

	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("status", status)))
	s.metrics.LLMRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))

	return reply, err
}

// outcome is the resolved result of one tool call, ready for the transcript.
type outcome struct {
	// content is the model-visible result text (the tool's output, its
	// application-level error message, or a synthesized failure).
	content string

	// delivered is true when the call reached a live server, regardless of
	// whether the tool itself reported success. Unknown tool names and
	// transport failures are not delivered.
	delivered bool
}

// dispatch executes a batch of tool calls and returns one outcome per call,
// indexed like the input.
//
// Calls are grouped by owning server: groups run concurrently, calls within
// a group run sequentially in issue order. Workers write only to their own
// slice indices, so no locking is needed; the caller appends results to the
// transcript after Wait, in request order.
func (s *Session) dispatch(ctx context.Context, calls []llm.ToolCall) []outcome {
	outcomes := make([]outcome, len(calls))

	// Resolve every call first so unknown names synthesize a failure
	// without occupying a worker.
	groups := make(map[registry.ToolServer][]int)
	for i, call := range calls {
		srv, err := s.reg.Resolve(call.Name)
		if err != nil {
			slog.Warn("model requested unknown tool",
				"session", s.id,
				"tool", call.Name)
			outcomes[i] = outcome{content: fmt.Sprintf("unknown tool: %s", call.Name)}
			continue
		}
		groups[srv] = append(groups[srv], i)
	}

	var g errgroup.Group
	for srv, indices := range groups {
		g.Go(func() error {
			for _, i := range indices {
				outcomes[i] = s.invoke(ctx, srv, calls[i])
			}
			return nil
		})
	}
	// Workers never return errors; failures become outcomes.
	_ = g.Wait()

	return outcomes
}

// invoke executes a single tool call under the per-call timeout and converts
// every failure mode into a model-visible outcome.
func (s *Session) invoke(ctx context.Context, srv registry.ToolServer, call llm.ToolCall) outcome {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ToolTimeout)
	defer cancel()

	start := time.Now()
	res, err := srv.Invoke(callCtx, call.Name, call.Arguments)
	elapsed := time.Since(start)

	status := "ok"
	switch {
	case err != nil:
		status = "transport-error"
	case res.IsError:
		status = "tool-error"
	}
	s.metrics.ToolDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("tool", call.Name)))
	s.metrics.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", call.Name),
			attribute.String("status", status),
		))

	if err != nil {
		slog.Warn("tool call failed",
			"session", s.id,
			"server", srv.Name(),
			"tool", call.Name,
			"error", err)
		return outcome{content: fmt.Sprintf("tool %s failed: %v", call.Name, err)}
	}

	if res.IsError {
		// An application-level error still reached the server: the tool ran
		// and reported a problem the model can react to.
		return outcome{
			content:   fmt.Sprintf("tool %s returned an error: %s", call.Name, res.Content),
			delivered: true,
		}
	}

	return outcome{content: res.Content, delivered: true}
}
