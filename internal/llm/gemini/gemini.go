// Package gemini completes prompts with the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gemini-2.0-flash"

// ErrMissingAPIKey is returned by New when no key is supplied.
var ErrMissingAPIKey = errors.New("gemini: missing api key")

// Options configure the client.
type Options struct {
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
}

// Client is a single-shot content generator.
type Client struct {
	client *genai.Client
	model  string
	temp   float32
}

// New creates a client for the Gemini API backend.
func New(ctx context.Context, o Options) (*Client, error) {
	if o.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := &genai.ClientConfig{
		APIKey:  o.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if o.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}

	model := o.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: client, model: model, temp: float32(o.Temperature)}, nil
}

// Complete sends prompt as one user turn and concatenates the text parts of
// the first candidate. The response MIME type is pinned to JSON.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	temp := c.temp
	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{Parts: []*genai.Part{{Text: prompt}}, Role: "user"},
	}, &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
