// Package toolserver manages the connection to a single tool-providing MCP
// server spawned as a subprocess and reached over stdio.
//
// A [Handle] owns the connection for the lifetime of one bridge session:
// [Handle.Connect] spawns the process and discovers its tool catalogue,
// [Handle.Invoke] executes one tool call, and [Handle.Disconnect] releases
// the connection. Disconnect is idempotent and safe after a prior failure,
// so callers can defer it unconditionally.
//
// Invocations on one handle are serialized — the underlying pipe is not
// assumed safe for concurrent use. Repeated transport failures trip a
// per-handle breaker so a dead server fails fast for the rest of the
// session instead of blocking every subsequent turn.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mcpbridge/mcpbridge/internal/resilience"
)

// Sentinel errors for the two transport-boundary failure classes.
var (
	// ErrConnection indicates the server process could not be started or did
	// not complete its handshake within the connect timeout.
	ErrConnection = errors.New("toolserver: connection failed")

	// ErrProtocol indicates the server misbehaved after connecting, e.g. a
	// malformed tool advertisement.
	ErrProtocol = errors.New("toolserver: protocol error")
)

// breakerFailures is the number of consecutive transport failures after
// which a handle stops talking to its server for the rest of the session.
const breakerFailures = 3

// Descriptor describes one tool advertised by a server. Immutable once
// discovered.
type Descriptor struct {
	// Name is the tool's identifier as advertised by the server.
	Name string

	// Description explains what the tool does.
	Description string

	// InputSchema is the raw JSON-schema-like parameter definition. It is
	// kept unnormalized; catalog projection validates it.
	InputSchema any
}

// Result holds the outcome of a single tool invocation.
type Result struct {
	// Content is the tool's textual output, ready for insertion into the
	// conversation transcript.
	Content string

	// IsError indicates an application-level tool error (as opposed to a
	// transport failure, which is returned as a Go error). When true,
	// Content carries the error message.
	IsError bool

	// Duration is the wall-clock time of the call.
	Duration time.Duration
}

// Config describes how to launch a tool server.
type Config struct {
	// Name is the user-supplied identifier for this server, used as a
	// diagnostic label and in duplicate-tool errors.
	Name string

	// Command is the executable (and optional arguments) to spawn,
	// split on whitespace.
	Command string

	// Args are additional arguments appended after the command's own,
	// typically the server script path.
	Args []string

	// Env holds extra environment variables for the server process,
	// added on top of the bridge's own environment. May be nil.
	Env map[string]string

	// ConnectTimeout bounds process start, handshake, and the initial tool
	// listing. Zero means 10 seconds.
	ConnectTimeout time.Duration
}

// rpcSession is the slice of the SDK client session the handle needs after
// connecting. Narrowed to an interface so tests can substitute a fake.
type rpcSession interface {
	CallTool(ctx context.Context, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error)
	Close() error
}

// Handle represents one connected tool server.
//
// The zero value is not usable; create instances with [New] and call
// [Handle.Connect] before anything else.
type Handle struct {
	cfg     Config
	breaker *resilience.Breaker

	// callMu serializes invocations; the stdio pipe is single-channel.
	callMu sync.Mutex

	closeOnce sync.Once
	closeErr  error

	session rpcSession
	tools   []Descriptor
}

// New creates an unconnected Handle for the given server config.
func New(cfg Config) *Handle {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Handle{
		cfg:     cfg,
		breaker: resilience.NewBreaker(cfg.Name, breakerFailures),
	}
}

// Name returns the user-supplied server identifier.
func (h *Handle) Name() string {
	return h.cfg.Name
}

// Tools returns the descriptors advertised by the server. Empty until
// [Handle.Connect] succeeds.
func (h *Handle) Tools() []Descriptor {
	return h.tools
}

// Connect spawns the server process, performs the MCP handshake, and
// discovers the tool catalogue. The whole sequence is bounded by the
// configured connect timeout. ctx should be the session-lifetime context:
// its cancellation terminates the spawned process.
//
// Returns an error wrapping [ErrConnection] if the process cannot be
// started or the handshake does not complete, and [ErrProtocol] if the
// tool advertisement is malformed.
func (h *Handle) Connect(ctx context.Context) error {
	executable, args := splitCommand(h.cfg.Command)
	if executable == "" {
		return fmt.Errorf("%w: server %q has an empty command", ErrConnection, h.cfg.Name)
	}
	args = append(args, h.cfg.Args...)

	// The process lives as long as ctx; only the handshake is bounded below.
	cmd := exec.CommandContext(ctx, executable, args...)
	if len(h.cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range h.cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, h.cfg.ConnectTimeout)
	defer cancel()

	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "mcpbridge", Version: "0.1.0"},
		nil,
	)
	session, err := client.Connect(connectCtx, &mcpsdk.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return fmt.Errorf("%w: server %q: %v", ErrConnection, h.cfg.Name, err)
	}

	var tools []Descriptor
	for tool, err := range session.Tools(connectCtx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("%w: listing tools of server %q: %v", ErrProtocol, h.cfg.Name, err)
		}
		if tool.Name == "" {
			_ = session.Close()
			return fmt.Errorf("%w: server %q advertised a tool without a name", ErrProtocol, h.cfg.Name)
		}
		tools = append(tools, Descriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}

	h.session = session
	h.tools = tools

	slog.Debug("tool server connected",
		"server", h.cfg.Name,
		"tools", len(tools))
	return nil
}

// Invoke executes the named tool with JSON-encoded args and returns its
// result. Calls on one handle run one at a time. A transport or protocol
// failure is returned as a Go error (counting towards the handle's
// breaker); an application-level tool error is reported via
// [Result.IsError].
func (h *Handle) Invoke(ctx context.Context, name string, args string) (*Result, error) {
	if h.session == nil {
		return nil, fmt.Errorf("%w: server %q is not connected", ErrConnection, h.cfg.Name)
	}

	var argsMap map[string]any
	if args != "" && args != "{}" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return nil, fmt.Errorf("%w: invalid args JSON for tool %q: %v", ErrProtocol, name, err)
		}
	}

	h.callMu.Lock()
	defer h.callMu.Unlock()

	start := time.Now()

	var callResult *mcpsdk.CallToolResult
	err := h.breaker.Execute(func() error {
		var callErr error
		callResult, callErr = h.session.CallTool(ctx, &mcpsdk.CallToolParams{
			Name:      name,
			Arguments: argsMap,
		})
		return callErr
	})
	if err != nil {
		if errors.Is(err, resilience.ErrTripped) {
			return nil, fmt.Errorf("%w: server %q is unavailable", ErrConnection, h.cfg.Name)
		}
		return nil, fmt.Errorf("%w: call to tool %q on server %q: %v", ErrConnection, name, h.cfg.Name, err)
	}

	var sb strings.Builder
	for _, c := range callResult.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}

	return &Result{
		Content:  sb.String(),
		IsError:  callResult.IsError,
		Duration: time.Since(start),
	}, nil
}

// Disconnect closes the connection to the server. It is idempotent: the
// second and later calls return the first call's result without touching
// the connection again. Calling it on a never-connected handle is a no-op.
func (h *Handle) Disconnect() error {
	h.closeOnce.Do(func() {
		if h.session == nil {
			return
		}
		if err := h.session.Close(); err != nil {
			h.closeErr = fmt.Errorf("toolserver: closing server %q: %w", h.cfg.Name, err)
		}
		slog.Debug("tool server disconnected", "server", h.cfg.Name)
	})
	return h.closeErr
}

// splitCommand splits a command string into executable and arguments,
// e.g. "/bin/foo --bar baz" → ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
