package testutil

import (
	"context"
	"sync"

	"github.com/roach88/float/internal/ir"
)

// ToolCall records one FakeProvider invocation.
type ToolCall struct {
	Tool string
	Args ir.IRObject
}

// ToolHandler produces the result of a fake tool call.
type ToolHandler func(ctx context.Context, tool string, args ir.IRObject) (ir.IRValue, error)

// FakeProvider is an in-memory gateway.Provider.
//
// By default every call succeeds with {"tool": <tool>, "args": <args>}.
// Thread-safety: all methods are safe for concurrent use.
type FakeProvider struct {
	name       string
	connectErr error

	mu      sync.Mutex
	handler ToolHandler
	calls   []ToolCall
	closed  bool
}

// NewFakeProvider creates a provider that connects successfully.
func NewFakeProvider(name string) *FakeProvider {
	return &FakeProvider{name: name}
}

// FailConnect makes Connect return err.
func (p *FakeProvider) FailConnect(err error) *FakeProvider {
	p.connectErr = err
	return p
}

// OnCall replaces the call handler.
func (p *FakeProvider) OnCall(h ToolHandler) *FakeProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
	return p
}

// Name implements gateway.Provider.
func (p *FakeProvider) Name() string { return p.name }

// Connect implements gateway.Provider.
func (p *FakeProvider) Connect(ctx context.Context) error {
	if p.connectErr != nil {
		return p.connectErr
	}
	return ctx.Err()
}

// CallTool implements gateway.Provider.
func (p *FakeProvider) CallTool(ctx context.Context, tool string, args ir.IRObject) (ir.IRValue, error) {
	p.mu.Lock()
	p.calls = append(p.calls, ToolCall{Tool: tool, Args: ir.Clone(args).(ir.IRObject)})
	h := p.handler
	p.mu.Unlock()

	if h != nil {
		return h(ctx, tool, args)
	}
	return ir.IRObject{"tool": ir.IRString(tool), "args": ir.Clone(args)}, nil
}

// Close implements gateway.Provider.
func (p *FakeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Calls returns the recorded calls in order.
func (p *FakeProvider) Calls() []ToolCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ToolCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// Closed reports whether Close was called.
func (p *FakeProvider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
