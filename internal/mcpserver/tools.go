package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/roach88/float/internal/compiler"
	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rules"
)

// Tool names.
const (
	ToolDispatch = "float_dispatch"
	ToolRegister = "middleware_register"
	ToolState    = "state_get"
)

// DispatchTool handles float_dispatch.
type DispatchTool struct {
	eng Engine
}

// NewDispatchTool creates the float_dispatch tool.
func NewDispatchTool(eng Engine) *DispatchTool {
	return &DispatchTool{eng: eng}
}

// Definition returns the MCP tool definition.
func (t *DispatchTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolDispatch,
		mcp.WithDescription("Dispatch an action to the Float state store. "+
			"The action runs through effects and registered middleware, and the "+
			"updated state is returned."),
		mcp.WithObject("action",
			mcp.Required(),
			mcp.Description(`The action to dispatch: {"type": "<domain>/<verb>", "payload": {...}}`),
			mcp.Properties(map[string]any{
				"type":    map[string]any{"type": "string"},
				"payload": map[string]any{"type": "object"},
			}),
		),
	)
}

// Handle dispatches the action and renders it with the updated state.
func (t *DispatchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["action"]
	if !ok || raw == nil {
		return errorResult(errors.New("action is required")), nil
	}
	a, err := decodeAction(raw)
	if err != nil {
		return errorResult(err), nil
	}

	slog.Debug("mcp dispatch", "action", a.Type)
	res, err := t.eng.Dispatch(ctx, a)
	if err != nil {
		return errorResult(err), nil
	}

	action, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	st, err := json.MarshalIndent(res.State, "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Dispatched: %s\n\nUpdated State: %s", action, st)), nil
}

// decodeAction round-trips raw through JSON so integers stay integers.
func decodeAction(raw any) (ir.Action, error) {
	if _, ok := raw.(map[string]any); !ok {
		return ir.Action{}, fmt.Errorf("action must be an object, got %T", raw)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return ir.Action{}, fmt.Errorf("action: %w", err)
	}
	var a ir.Action
	if err := json.Unmarshal(data, &a); err != nil {
		return ir.Action{}, fmt.Errorf("action: %w", err)
	}
	return a, nil
}

// RegisterTool handles middleware_register.
type RegisterTool struct {
	eng Engine
}

// NewRegisterTool creates the middleware_register tool.
func NewRegisterTool(eng Engine) *RegisterTool {
	return &RegisterTool{eng: eng}
}

// Definition returns the MCP tool definition.
func (t *RegisterTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolRegister,
		mcp.WithDescription("Register middleware from natural language"),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("Natural language description of middleware to register"),
		),
	)
}

// Handle compiles and registers the description. A description that
// cannot be compiled is a normal result carrying guidance.
func (t *RegisterTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, _ := req.GetArguments()["description"].(string)
	if strings.TrimSpace(description) == "" {
		return errorResult(errors.New("description is required")), nil
	}

	r, _, err := t.eng.RegisterRule(ctx, description)
	if err != nil {
		var failure *compiler.CompileFailure
		if errors.As(err, &failure) {
			slog.Warn("middleware not compiled", "description", description, "error", err)
			return mcp.NewToolResultText(failure.Message()), nil
		}
		return errorResult(err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\U0001F3AF Registered middleware: %s\n", r.Name)
	fmt.Fprintf(&b, "%s: %s\n", triggerLabel(r.Trigger.Kind), r.Trigger.Source)
	fmt.Fprintf(&b, "Actions: %d actions\n\n", len(r.Actions))
	fmt.Fprintf(&b, "Parsed via: %s", parsedVia(r.CompiledBy))
	return mcp.NewToolResultText(b.String()), nil
}

func triggerLabel(kind rules.TriggerKind) string {
	if kind == rules.TriggerPredicate {
		return "Condition"
	}
	return "Pattern"
}

func parsedVia(strategy string) string {
	switch strategy {
	case compiler.StrategyPattern:
		return "regex pattern"
	case compiler.StrategyCompletion:
		return "completion fallback"
	default:
		return strategy
	}
}

// StateTool handles state_get.
type StateTool struct {
	eng Engine
}

// NewStateTool creates the state_get tool.
func NewStateTool(eng Engine) *StateTool {
	return &StateTool{eng: eng}
}

// Definition returns the MCP tool definition.
func (t *StateTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolState,
		mcp.WithDescription("Get the current Float state"),
	)
}

// Handle renders the current state as indented JSON.
func (t *StateTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(t.eng.State(), "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err))
}
