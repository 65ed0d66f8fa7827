package llm_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mcpbridge/mcpbridge/pkg/llm"
)

func TestParseReply_FinalAnswer(t *testing.T) {
	t.Parallel()

	reply, err := llm.ParseReply("the answer is 4", nil, llm.Usage{TotalTokens: 10})
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if reply.Kind != llm.ReplyFinal {
		t.Errorf("kind = %v, want final", reply.Kind)
	}
	if reply.Text != "the answer is 4" {
		t.Errorf("text = %q", reply.Text)
	}
	if reply.Usage.TotalTokens != 10 {
		t.Errorf("usage = %+v, want 10 total tokens", reply.Usage)
	}
}

func TestParseReply_ToolCalls(t *testing.T) {
	t.Parallel()

	calls := []llm.ToolCall{
		{ID: "call_1", Name: "add", Arguments: `{"a":2,"b":2}`},
		{ID: "call_2", Name: "multiply", Arguments: `{"a":3,"b":3}`},
	}
	reply, err := llm.ParseReply("", calls, llm.Usage{})
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if reply.Kind != llm.ReplyToolCalls {
		t.Errorf("kind = %v, want tool-calls", reply.Kind)
	}
	if len(reply.ToolCalls) != 2 {
		t.Fatalf("got %d tool calls, want 2", len(reply.ToolCalls))
	}
	// Order preserved.
	if reply.ToolCalls[0].Name != "add" || reply.ToolCalls[1].Name != "multiply" {
		t.Errorf("tool call order = %v", reply.ToolCalls)
	}
}

func TestParseReply_EmptyNameIsProtocolError(t *testing.T) {
	t.Parallel()

	_, err := llm.ParseReply("", []llm.ToolCall{{ID: "1", Arguments: "{}"}}, llm.Usage{})
	if !errors.Is(err, llm.ErrProtocol) {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestParseReply_NonObjectArgumentsIsProtocolError(t *testing.T) {
	t.Parallel()

	for _, args := range []string{"[1,2,3]", "not json", "42"} {
		_, err := llm.ParseReply("", []llm.ToolCall{{ID: "1", Name: "add", Arguments: args}}, llm.Usage{})
		if !errors.Is(err, llm.ErrProtocol) {
			t.Errorf("args %q: err = %v, want ErrProtocol", args, err)
		}
	}
}

func TestParseReply_EmptyArgumentsBecomeEmptyObject(t *testing.T) {
	t.Parallel()

	reply, err := llm.ParseReply("", []llm.ToolCall{{ID: "1", Name: "ping"}}, llm.Usage{})
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	if got := reply.ToolCalls[0].Arguments; got != "{}" {
		t.Errorf("arguments = %q, want {}", got)
	}
}

func TestParseReply_MissingIDIsSynthesized(t *testing.T) {
	t.Parallel()

	reply, err := llm.ParseReply("", []llm.ToolCall{{Name: "ping", Arguments: "{}"}}, llm.Usage{})
	if err != nil {
		t.Fatalf("ParseReply: %v", err)
	}
	id := reply.ToolCalls[0].ID
	if !strings.HasPrefix(id, "call_") || len(id) <= len("call_") {
		t.Errorf("id = %q, want synthesized call_<uuid>", id)
	}
}
