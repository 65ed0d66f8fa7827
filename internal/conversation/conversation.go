// Package conversation holds the ordered transcript of one bridge session.
//
// The transcript is append-only: a turn, once added, is never mutated or
// removed, and insertion order is semantically meaningful — it is the
// literal context window sent to the model. Only the bridge session mutates
// a Conversation, from a single control goroutine, so no locking is done
// here.
package conversation

import (
	"fmt"

	"github.com/mcpbridge/mcpbridge/pkg/llm"
)

// Conversation is the append-only message sequence of one session.
//
// The zero value is not usable; create instances with [New].
type Conversation struct {
	session  string
	messages []llm.Message
}

// New creates a Conversation for the given session id. When systemPrompt is
// non-empty it becomes the first message.
func New(session string, systemPrompt string) *Conversation {
	c := &Conversation{session: session}
	if systemPrompt != "" {
		c.messages = append(c.messages, llm.Message{Role: "system", Content: systemPrompt})
	}
	return c
}

// AddUser appends a user turn.
func (c *Conversation) AddUser(content string) {
	c.messages = append(c.messages, llm.Message{Role: "user", Content: content})
}

// AddAssistant appends an assistant turn from a model reply. Tool-call
// replies are recorded with the raw call list so the transcript mirrors
// exactly what the model requested.
func (c *Conversation) AddAssistant(reply *llm.Reply) {
	msg := llm.Message{Role: "assistant", Content: reply.Text}
	if reply.Kind == llm.ReplyToolCalls {
		msg.ToolCalls = append([]llm.ToolCall(nil), reply.ToolCalls...)
	}
	c.messages = append(c.messages, msg)
}

// AddToolResult appends a tool-result turn answering the given call id.
func (c *Conversation) AddToolResult(callID, name, content string) {
	c.messages = append(c.messages, llm.Message{
		Role:       "tool",
		ToolCallID: callID,
		Name:       name,
		Content:    content,
	})
}

// Messages returns a copy of the transcript, safe to hand to a client.
func (c *Conversation) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the transcript.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// String returns a short diagnostic representation.
func (c *Conversation) String() string {
	return fmt.Sprintf("Conversation(session=%s, messages=%d)", c.session, len(c.messages))
}
