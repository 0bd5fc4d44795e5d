package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/roach88/float/internal/ir"
)

// ClientName and ClientVersion identify float to MCP servers.
const (
	ClientName    = "float-chroma-client"
	ClientVersion = "0.1.0"
)

// StdioConfig launches an MCP server as a subprocess.
type StdioConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// MCPProvider is a Provider backed by an MCP server over stdio.
type MCPProvider struct {
	name string
	cfg  StdioConfig

	mu     sync.Mutex
	client *client.Client
}

// NewMCPProvider creates an unconnected provider.
func NewMCPProvider(name string, cfg StdioConfig) *MCPProvider {
	return &MCPProvider{name: name, cfg: cfg}
}

// Name implements Provider.
func (p *MCPProvider) Name() string { return p.name }

// Connect starts the subprocess and performs the MCP initialize handshake.
func (p *MCPProvider) Connect(ctx context.Context) error {
	if p.cfg.Command == "" {
		return errors.New("mcp: command is required")
	}

	env := make([]string, 0, len(p.cfg.Env))
	keys := make([]string, 0, len(p.cfg.Env))
	for k := range p.cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+p.cfg.Env[k])
	}

	c, err := client.NewStdioMCPClient(p.cfg.Command, env, p.cfg.Args...)
	if err != nil {
		return fmt.Errorf("mcp: start %s: %w", p.cfg.Command, err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: ClientName, Version: ClientVersion}
	if _, err := c.Initialize(ctx, req); err != nil {
		_ = c.Close()
		return fmt.Errorf("mcp: initialize %s: %w", p.name, err)
	}

	p.mu.Lock()
	p.client = c
	p.mu.Unlock()
	return nil
}

// CallTool implements Provider.
func (p *MCPProvider) CallTool(ctx context.Context, tool string, args ir.IRObject) (ir.IRValue, error) {
	p.mu.Lock()
	c := p.client
	p.mu.Unlock()
	if c == nil {
		return nil, ErrProviderUnavailable
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = ir.ToAny(args)

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}
	return ResultToIR(res), nil
}

// Close implements Provider.
func (p *MCPProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

// ResultToIR converts a tool result to {content: [...], is_error}. Text parts
// that hold JSON carry the decoded value under "json".
func ResultToIR(res *mcp.CallToolResult) ir.IRValue {
	if res == nil {
		return ir.IRNull{}
	}

	content := make(ir.IRArray, 0, len(res.Content))
	for _, c := range res.Content {
		content = append(content, contentToIR(c))
	}
	return ir.IRObject{
		"content":  content,
		"is_error": ir.IRBool(res.IsError),
	}
}

func contentToIR(c mcp.Content) ir.IRValue {
	switch v := c.(type) {
	case mcp.TextContent:
		return textToIR(v.Text)
	case *mcp.TextContent:
		return textToIR(v.Text)
	case mcp.ImageContent:
		return ir.IRObject{"type": ir.IRString("image"), "mime_type": ir.IRString(v.MIMEType)}
	case *mcp.ImageContent:
		return ir.IRObject{"type": ir.IRString("image"), "mime_type": ir.IRString(v.MIMEType)}
	default:
		return ir.IRObject{"type": ir.IRString(fmt.Sprintf("%T", c))}
	}
}

func textToIR(text string) ir.IRValue {
	obj := ir.IRObject{"type": ir.IRString("text"), "text": ir.IRString(text)}
	if v, err := ir.UnmarshalIRValue([]byte(text)); err == nil {
		obj["json"] = v
	}
	return obj
}
