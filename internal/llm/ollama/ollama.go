// Package ollama completes prompts against a local Ollama server in JSON
// mode.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "llama3.1"

// Options configure the client.
type Options struct {
	Model       string
	BaseURL     string // empty reads OLLAMA_HOST
	Temperature float64
	HTTPClient  *http.Client
}

// Client is a single-shot chat completer.
type Client struct {
	api   *api.Client
	model string
	opts  map[string]any
}

// New creates a client. No request is made until Complete.
func New(o Options) (*Client, error) {
	var (
		c   *api.Client
		err error
	)
	if o.BaseURL != "" {
		u, perr := url.Parse(o.BaseURL)
		if perr != nil {
			return nil, fmt.Errorf("invalid base URL: %w", perr)
		}
		hc := o.HTTPClient
		if hc == nil {
			hc = http.DefaultClient
		}
		c = api.NewClient(u, hc)
	} else {
		c, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	}

	model := o.Model
	if model == "" {
		model = DefaultModel
	}

	slog.Debug("ollama client initialized", "model", model, "base_url", o.BaseURL)
	return &Client{
		api:   c,
		model: model,
		opts:  map[string]any{"temperature": o.Temperature},
	}, nil
}

// Complete sends prompt as one user message and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Options:  c.opts,
		Stream:   &stream,
		Format:   json.RawMessage(`"json"`),
	}

	var sb strings.Builder
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return sb.String(), nil
}
