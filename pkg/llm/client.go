// Package llm defines the Client interface for language-model backends and
// the tagged reply variant a bridge session switches on.
//
// A client wraps a remote model API (OpenAI-compatible HTTP, Gemini, a local
// Ollama instance, …) and exposes a single Generate call: transcript plus
// tool catalog in, a [Reply] out. The reply is either the model's final text
// or an ordered batch of tool invocations — the session never inspects raw
// provider responses.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ReplyKind tags the two shapes a model reply can take.
type ReplyKind int

const (
	// ReplyFinal is a terminal textual answer; the session is done.
	ReplyFinal ReplyKind = iota

	// ReplyToolCalls is a request to invoke one or more tools before the
	// model continues.
	ReplyToolCalls
)

// String returns the human-readable name of the reply kind.
func (k ReplyKind) String() string {
	switch k {
	case ReplyFinal:
		return "final"
	case ReplyToolCalls:
		return "tool-calls"
	default:
		return "unknown"
	}
}

// Reply is the parsed outcome of one completion round.
type Reply struct {
	// Kind discriminates the variant. Text is meaningful for ReplyFinal
	// (and may accompany tool calls); ToolCalls is non-empty exactly when
	// Kind is ReplyToolCalls.
	Kind ReplyKind

	// Text is the assistant's textual content, possibly empty for a
	// pure tool-call reply.
	Text string

	// ToolCalls lists the requested invocations in the order the model
	// issued them.
	ToolCalls []ToolCall

	// Usage holds token accounting for this round.
	Usage Usage
}

// Client is the abstraction over any language-model backend.
type Client interface {
	// Generate sends the transcript and tool catalog to the model and
	// returns the parsed reply. Error classes follow this package's
	// taxonomy: [ErrAuthentication], [ErrRateLimit], [ErrTimeout],
	// [ErrProtocol], or a [ServiceError].
	Generate(ctx context.Context, req Request) (*Reply, error)
}

// ParseReply validates raw tool calls and assembles the tagged reply.
//
// Every provider funnels its decoded response through here so malformed
// tool-call fragments are handled uniformly: a call with an empty name or
// non-object arguments yields [ErrProtocol]; a missing call id is
// synthesized (some services, notably Gemini, do not assign ids).
func ParseReply(text string, calls []ToolCall, usage Usage) (*Reply, error) {
	if len(calls) == 0 {
		return &Reply{Kind: ReplyFinal, Text: text, Usage: usage}, nil
	}

	parsed := make([]ToolCall, 0, len(calls))
	for i, tc := range calls {
		if tc.Name == "" {
			return nil, fmt.Errorf("%w: tool call %d has no name", ErrProtocol, i)
		}
		if tc.Arguments == "" {
			tc.Arguments = "{}"
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return nil, fmt.Errorf("%w: tool call %q arguments are not a JSON object: %v", ErrProtocol, tc.Name, err)
		}
		if tc.ID == "" {
			tc.ID = "call_" + uuid.NewString()
		}
		parsed = append(parsed, tc)
	}

	return &Reply{Kind: ReplyToolCalls, Text: text, ToolCalls: parsed, Usage: usage}, nil
}
