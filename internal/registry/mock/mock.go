// Package mock provides an in-memory test double for the
// [registry.ToolServer] interface.
//
// [Server] answers Invoke from a per-tool script and records every
// invocation for assertion in tests. It is safe for concurrent use.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/toolserver"
)

// Invocation records the arguments of one Invoke call.
type Invocation struct {
	Tool string
	Args string
}

// Outcome configures what the mock returns for one tool.
type Outcome struct {
	// Result is returned when Err is nil. A nil Result yields an empty
	// success result.
	Result *toolserver.Result

	// Err is returned as the transport-level error when non-nil.
	Err error

	// Delay is slept before returning, to exercise concurrent dispatch
	// ordering in tests.
	Delay time.Duration
}

// Server is a configurable test double for [registry.ToolServer].
type Server struct {
	// ServerName is returned by Name.
	ServerName string

	// Descriptors is returned by Tools.
	Descriptors []toolserver.Descriptor

	// Outcomes maps tool name to the scripted outcome. Tools without an
	// entry return an empty success result.
	Outcomes map[string]Outcome

	mu          sync.Mutex
	invocations []Invocation
}

// Name implements registry.ToolServer.
func (s *Server) Name() string {
	return s.ServerName
}

// Tools implements registry.ToolServer.
func (s *Server) Tools() []toolserver.Descriptor {
	return s.Descriptors
}

// Invoke implements registry.ToolServer.
func (s *Server) Invoke(ctx context.Context, name string, args string) (*toolserver.Result, error) {
	s.mu.Lock()
	s.invocations = append(s.invocations, Invocation{Tool: name, Args: args})
	outcome := s.Outcomes[name]
	s.mu.Unlock()

	if outcome.Delay > 0 {
		select {
		case <-time.After(outcome.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if outcome.Err != nil {
		return nil, outcome.Err
	}
	if outcome.Result != nil {
		return outcome.Result, nil
	}
	return &toolserver.Result{}, nil
}

// Invocations returns a copy of all recorded invocations.
func (s *Server) Invocations() []Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Invocation, len(s.invocations))
	copy(out, s.invocations)
	return out
}

// WithTools is a convenience constructor for a server advertising the given
// tool names with empty object schemas.
func WithTools(serverName string, toolNames ...string) *Server {
	descs := make([]toolserver.Descriptor, 0, len(toolNames))
	for _, n := range toolNames {
		descs = append(descs, toolserver.Descriptor{
			Name:        n,
			Description: fmt.Sprintf("%s tool", n),
			InputSchema: map[string]any{"type": "object"},
		})
	}
	return &Server{ServerName: serverName, Descriptors: descs}
}
