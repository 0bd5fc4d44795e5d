// Package mcpserver exposes the engine as an MCP server over stdio.
//
// Three tools are registered: float_dispatch, middleware_register and
// state_get. Tool handlers only translate between MCP requests and engine
// calls; every failure is returned as an isError tool result, never as a
// protocol error.
package mcpserver

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rules"
	"github.com/roach88/float/internal/state"
)

// ServerName is advertised during MCP initialization.
const ServerName = "float"

// Version is set at build time via ldflags.
var Version = "dev"

// Engine is the engine surface the tools need. *engine.Engine satisfies it.
type Engine interface {
	Dispatch(ctx context.Context, a ir.Action) (engine.Result, error)
	RegisterRule(ctx context.Context, description string) (*rules.Rule, engine.Result, error)
	State() state.State
}

// New creates the MCP server with every tool registered.
func New(eng Engine) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	dispatchTool := NewDispatchTool(eng)
	s.AddTool(dispatchTool.Definition(), dispatchTool.Handle)

	registerTool := NewRegisterTool(eng)
	s.AddTool(registerTool.Definition(), registerTool.Handle)

	stateTool := NewStateTool(eng)
	s.AddTool(stateTool.Definition(), stateTool.Handle)

	return s
}

// Serve runs s on in/out until ctx is cancelled or in is closed. Protocol
// errors are logged through slog; out carries only MCP messages.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelError))

	slog.Info("mcp server listening", "name", ServerName, "version", Version)
	return stdio.Listen(ctx, in, out)
}
