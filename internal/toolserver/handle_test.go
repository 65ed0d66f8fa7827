package toolserver

import (
	"context"
	"errors"
	"sync"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// fakeSession is an in-process rpcSession double.
type fakeSession struct {
	mu        sync.Mutex
	calls     []*mcpsdk.CallToolParams
	result    *mcpsdk.CallToolResult
	callErr   error
	closed    int
	closeErr  error
}

func (f *fakeSession) CallTool(ctx context.Context, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	if f.callErr != nil {
		return nil, f.callErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &mcpsdk.CallToolResult{}, nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return f.closeErr
}

func newConnected(sess rpcSession) *Handle {
	h := New(Config{Name: "calc", Command: "python3", Args: []string{"server.py"}})
	h.session = sess
	return h
}

func TestInvoke_ConcatenatesTextContent(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{result: &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: "4"},
			&mcpsdk.TextContent{Text: "2"},
		},
	}}
	h := newConnected(sess)

	res, err := h.Invoke(context.Background(), "add", `{"a":2,"b":2}`)
	if err != nil {
		t.Fatalf("Invoke returned unexpected error: %v", err)
	}
	if res.Content != "42" {
		t.Errorf("Content = %q, want %q", res.Content, "42")
	}
	if res.IsError {
		t.Error("IsError = true, want false")
	}

	if len(sess.calls) != 1 {
		t.Fatalf("expected 1 CallTool, got %d", len(sess.calls))
	}
	got := sess.calls[0]
	if got.Name != "add" {
		t.Errorf("tool name = %q, want %q", got.Name, "add")
	}
	args, ok := got.Arguments.(map[string]any)
	if !ok || args["a"] != float64(2) {
		t.Errorf("arguments not decoded as JSON object: %#v", got.Arguments)
	}
}

func TestInvoke_ApplicationErrorIsNotTransportError(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{result: &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "division by zero"}},
	}}
	h := newConnected(sess)

	res, err := h.Invoke(context.Background(), "divide", `{"a":1,"b":0}`)
	if err != nil {
		t.Fatalf("application errors must not surface as Go errors, got %v", err)
	}
	if !res.IsError {
		t.Error("IsError = false, want true")
	}
	if res.Content != "division by zero" {
		t.Errorf("Content = %q, want error message", res.Content)
	}
}

func TestInvoke_InvalidArgsJSON(t *testing.T) {
	t.Parallel()
	h := newConnected(&fakeSession{})

	_, err := h.Invoke(context.Background(), "add", `{not json`)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestInvoke_NotConnected(t *testing.T) {
	t.Parallel()
	h := New(Config{Name: "calc", Command: "python3"})

	_, err := h.Invoke(context.Background(), "add", "{}")
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestInvoke_BreakerTripsAfterRepeatedTransportFailures(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{callErr: errors.New("broken pipe")}
	h := newConnected(sess)

	for i := 0; i < breakerFailures; i++ {
		if _, err := h.Invoke(context.Background(), "add", "{}"); err == nil {
			t.Fatalf("attempt %d: expected transport error", i)
		}
	}
	before := len(sess.calls)

	if _, err := h.Invoke(context.Background(), "add", "{}"); !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection once tripped, got %v", err)
	}
	if len(sess.calls) != before {
		t.Error("tripped handle must not touch the dead session")
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	t.Parallel()
	sess := &fakeSession{}
	h := newConnected(sess)

	if err := h.Disconnect(); err != nil {
		t.Fatalf("first Disconnect returned unexpected error: %v", err)
	}
	if err := h.Disconnect(); err != nil {
		t.Fatalf("second Disconnect returned unexpected error: %v", err)
	}
	if sess.closed != 1 {
		t.Errorf("session closed %d times, want exactly 1", sess.closed)
	}
}

func TestDisconnect_NeverConnected(t *testing.T) {
	t.Parallel()
	h := New(Config{Name: "calc", Command: "python3"})
	if err := h.Disconnect(); err != nil {
		t.Errorf("Disconnect on unconnected handle returned %v, want nil", err)
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		wantExe string
		wantLen int
	}{
		{"python3", "python3", 0},
		{"/usr/bin/env python3 -u", "/usr/bin/env", 2},
		{"", "", 0},
		{"   ", "", 0},
	}
	for _, tt := range tests {
		exe, args := splitCommand(tt.in)
		if exe != tt.wantExe || len(args) != tt.wantLen {
			t.Errorf("splitCommand(%q) = (%q, %d args), want (%q, %d args)",
				tt.in, exe, len(args), tt.wantExe, tt.wantLen)
		}
	}
}
