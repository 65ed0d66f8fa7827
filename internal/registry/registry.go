// Package registry aggregates the tools of multiple tool servers into one
// namespace and projects them into the capability catalog offered to the
// language model.
//
// Registration happens once, during session setup, before any conversation
// turn; the registry is read-only thereafter, so lookups need no locking.
// Name collisions across servers are rejected eagerly at registration time
// (fail fast) rather than silently shadowed — a shadowed tool would be a
// latent correctness bug surfacing only when the model happens to call it.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/mcpbridge/mcpbridge/internal/toolserver"
)

// ToolServer is the slice of [toolserver.Handle] the registry and the
// session depend on. Narrowed to an interface so tests can substitute
// in-process fakes.
type ToolServer interface {
	// Name returns the user-supplied server identifier.
	Name() string

	// Tools returns the descriptors the server advertised at connect time.
	Tools() []toolserver.Descriptor

	// Invoke executes one tool call. See [toolserver.Handle.Invoke].
	Invoke(ctx context.Context, name string, args string) (*toolserver.Result, error)
}

// Compile-time check: the real handle must satisfy ToolServer.
var _ ToolServer = (*toolserver.Handle)(nil)

// DuplicateToolError reports a tool name advertised by two servers.
type DuplicateToolError struct {
	// Tool is the colliding tool name.
	Tool string

	// First is the identifier of the server that registered the name.
	First string

	// Second is the identifier of the server whose registration failed.
	Second string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("registry: tool %q is provided by both server %q and server %q", e.Tool, e.First, e.Second)
}

// UnknownToolError reports a lookup for a tool no registered server provides.
type UnknownToolError struct {
	// Tool is the unresolvable tool name.
	Tool string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("registry: unknown tool %q", e.Tool)
}

// Registry maps tool names to the server handles that own them.
//
// The zero value is not usable; create instances with [New].
type Registry struct {
	byName  map[string]ToolServer
	servers []ToolServer
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]ToolServer)}
}

// Register adds all of a server's tools to the namespace. Registration is
// atomic: if any tool name collides with an already registered one, a
// *[DuplicateToolError] is returned and none of the server's tools are
// registered.
func (r *Registry) Register(srv ToolServer) error {
	tools := srv.Tools()

	// Collision scan first so a failure registers nothing from this batch.
	seen := make(map[string]bool, len(tools))
	for _, d := range tools {
		if owner, ok := r.byName[d.Name]; ok {
			return &DuplicateToolError{Tool: d.Name, First: owner.Name(), Second: srv.Name()}
		}
		if seen[d.Name] {
			return &DuplicateToolError{Tool: d.Name, First: srv.Name(), Second: srv.Name()}
		}
		seen[d.Name] = true
	}

	for _, d := range tools {
		r.byName[d.Name] = srv
	}
	r.servers = append(r.servers, srv)
	return nil
}

// Resolve returns the server that owns the named tool, or a
// *[UnknownToolError].
func (r *Registry) Resolve(name string) (ToolServer, error) {
	srv, ok := r.byName[name]
	if !ok {
		return nil, &UnknownToolError{Tool: name}
	}
	return srv, nil
}

// Catalog returns every registered descriptor, ordered by server
// registration order and, within a server, by the order it advertised its
// tools. Deterministic ordering keeps the capability catalog (and thus
// the model's context) stable across runs.
func (r *Registry) Catalog() []toolserver.Descriptor {
	var out []toolserver.Descriptor
	for _, srv := range r.servers {
		out = append(out, srv.Tools()...)
	}
	return out
}

// Len returns the number of registered tool names.
func (r *Registry) Len() int {
	return len(r.byName)
}

// ToolNames returns the sorted registered tool names, for log messages.
func (r *Registry) ToolNames() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
