package openai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	oai "github.com/openai/openai-go"

	"github.com/mcpbridge/mcpbridge/pkg/llm"
)

// TestNew_MissingAPIKey ensures a missing key is surfaced before the first
// call, as an authentication error.
func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-4")
	if !errors.Is(err, llm.ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
}

// TestNew_MissingModel ensures constructor rejects an empty model.
func TestNew_MissingModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Options checks that optional settings are accepted without error.
func TestNew_Options(t *testing.T) {
	_, err := New("sk-test", "gpt-4",
		WithBaseURL("https://llm.internal.example.com/v1"),
		WithTimeout(30*time.Second),
	)
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}

// TestConvertMessage_System checks that system role is converted correctly.
func TestConvertMessage_System(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: "system", Content: "You are a bridge."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfSystem == nil {
		t.Fatal("expected OfSystem to be set")
	}
}

// TestConvertMessage_User checks that user role is converted correctly.
func TestConvertMessage_User(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: "user", Content: "What is 2+2?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfUser == nil {
		t.Fatal("expected OfUser to be set")
	}
}

// TestConvertMessage_AssistantWithToolCalls checks tool call conversion.
func TestConvertMessage_AssistantWithToolCalls(t *testing.T) {
	param, err := convertMessage(llm.Message{
		Role: "assistant",
		ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "add", Arguments: `{"a":2,"b":2}`},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
	if len(param.OfAssistant.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(param.OfAssistant.ToolCalls))
	}
	tc := param.OfAssistant.ToolCalls[0]
	if tc.ID != "call_1" || tc.Function.Name != "add" {
		t.Errorf("tool call = %+v, want call_1/add", tc)
	}
	if tc.Function.Arguments != `{"a":2,"b":2}` {
		t.Errorf("unexpected arguments: %s", tc.Function.Arguments)
	}
}

// TestConvertMessage_Tool checks tool result message conversion.
func TestConvertMessage_Tool(t *testing.T) {
	param, err := convertMessage(llm.Message{Role: "tool", Content: "4", ToolCallID: "call_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if param.OfTool == nil {
		t.Fatal("expected OfTool to be set")
	}
	if param.OfTool.ToolCallID != "call_1" {
		t.Errorf("ToolCallID = %s, want call_1", param.OfTool.ToolCallID)
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	_, err := convertMessage(llm.Message{Role: "narrator", Content: "meanwhile"})
	if err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestBuildParams_ToolCatalog checks catalog and tuning passthrough.
func TestBuildParams_ToolCatalog(t *testing.T) {
	c := &Client{model: "gpt-4"}
	params, err := c.buildParams(llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.5,
		MaxTokens:   256,
		Tools: []llm.ToolDefinition{
			{Name: "add", Description: "adds numbers", Parameters: map[string]any{"type": "object"}},
		},
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Tools) != 1 || params.Tools[0].Function.Name != "add" {
		t.Errorf("tools = %+v, want one function add", params.Tools)
	}
	if got := params.Temperature.Or(-1); got != 0.5 {
		t.Errorf("temperature = %v, want 0.5", got)
	}
	if got := params.MaxCompletionTokens.Or(-1); got != 256 {
		t.Errorf("max tokens = %v, want 256", got)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"api 401", &oai.Error{StatusCode: 401}, llm.ErrAuthentication},
		{"api 429", &oai.Error{StatusCode: 429}, llm.ErrRateLimit},
		{"deadline", context.DeadlineExceeded, llm.ErrTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("mapError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	// Anything else degrades to a ServiceError rather than being swallowed.
	var se *llm.ServiceError
	if got := mapError(fmt.Errorf("connection refused")); !errors.As(got, &se) {
		t.Errorf("mapError(plain) = %v, want *ServiceError", got)
	}
}
