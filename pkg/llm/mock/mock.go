// Package mock provides an in-memory test double for the [llm.Client]
// interface.
//
// [Client] replays a scripted sequence of replies and errors, one per
// Generate call, and records every request for assertion in tests. It is
// safe for concurrent use.
//
// Typical usage:
//
//	c := &mock.Client{}
//	c.Script(mock.Reply(&llm.Reply{Kind: llm.ReplyFinal, Text: "4"}))
//
//	// inject c into the system under test …
//
//	if got := len(c.Requests()); got != 1 {
//	    t.Errorf("expected 1 Generate call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/mcpbridge/mcpbridge/pkg/llm"
)

// Step is one scripted Generate outcome.
type Step struct {
	Reply *llm.Reply
	Err   error
}

// Reply builds a successful Step.
func Reply(r *llm.Reply) Step {
	return Step{Reply: r}
}

// Fail builds a failing Step.
func Fail(err error) Step {
	return Step{Err: err}
}

// Client is a configurable test double for [llm.Client].
type Client struct {
	mu sync.Mutex

	// script is consumed one Step per Generate call.
	script []Step

	// requests records every request passed to Generate, in order.
	requests []llm.Request

	// DefaultReply is returned when the script is exhausted. When nil a
	// final empty reply is returned instead.
	DefaultReply *llm.Reply
}

// Compile-time check: Client must implement llm.Client.
var _ llm.Client = (*Client)(nil)

// Script appends steps to the reply sequence.
func (c *Client) Script(steps ...Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, steps...)
}

// Requests returns a copy of all recorded requests.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Generate implements llm.Client by replaying the script.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)

	if len(c.script) == 0 {
		if c.DefaultReply != nil {
			return c.DefaultReply, nil
		}
		return &llm.Reply{Kind: llm.ReplyFinal}, nil
	}

	step := c.script[0]
	c.script = c.script[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Reply, nil
}
