package llm

// Message represents a single turn in an LLM conversation transcript.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is the tool name when Role is "tool".
	Name string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call this
	// message answers.
	ToolCallID string
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	// ID correlates this request with its eventual tool-result message.
	// Provider-assigned where the API supplies one, synthesized otherwise.
	ID string

	// Name is the tool name.
	Name string

	// Arguments is the JSON-encoded arguments object.
	Arguments string
}

// ToolDefinition describes a tool offered to the model as a callable capability.
type ToolDefinition struct {
	// Name is the tool's unique identifier within the request.
	Name string

	// Description explains what the tool does.
	Description string

	// Parameters is the JSON Schema describing the tool's input.
	Parameters map[string]any
}

// Usage holds token accounting returned by the model service.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Request carries everything one completion round needs.
type Request struct {
	// Messages is the ordered conversation transcript. Must be non-empty.
	Messages []Message

	// Tools is the capability catalog offered to the model for this round.
	Tools []ToolDefinition

	// Temperature controls output randomness in the range [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}
