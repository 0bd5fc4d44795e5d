// Package llm is the text-completion seam used by the rule compiler's
// fallback strategy.
//
// A Completer turns one prompt into one response string. Backends live in
// subpackages and know nothing about this package; New selects one from a
// Config. Backend "none" (or empty) disables completion: New returns a nil
// Completer and no error, and callers treat that as ErrNoCompleter.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/roach88/float/internal/llm/anthropic"
	"github.com/roach88/float/internal/llm/gemini"
	"github.com/roach88/float/internal/llm/ollama"
	"github.com/roach88/float/internal/llm/openai"
)

// Completer produces a completion for a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrNoCompleter is returned when completion is requested but no backend is
// configured.
var ErrNoCompleter = errors.New("llm: no completer configured")

// Backend names a completion provider.
type Backend string

const (
	BackendNone      Backend = "none"
	BackendOllama    Backend = "ollama"
	BackendOpenAI    Backend = "openai"
	BackendGemini    Backend = "gemini"
	BackendAnthropic Backend = "anthropic"
)

// Backends lists every accepted backend name.
var Backends = []Backend{BackendNone, BackendOllama, BackendOpenAI, BackendGemini, BackendAnthropic}

// Config selects and parameterizes a backend.
type Config struct {
	Backend     Backend       `yaml:"backend"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int64         `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// APIKey reads the key from the environment variable named by APIKeyEnv.
func (c Config) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Known reports whether b is a supported backend name.
func Known(b Backend) bool {
	if b == "" {
		return true
	}
	for _, k := range Backends {
		if k == b {
			return true
		}
	}
	return false
}

// New builds the Completer described by cfg. A disabled backend yields a nil
// Completer. When cfg.Timeout is positive every call is bounded by it.
func New(ctx context.Context, cfg Config) (Completer, error) {
	var (
		c   Completer
		err error
	)

	switch cfg.Backend {
	case "", BackendNone:
		return nil, nil
	case BackendOllama:
		c, err = ollama.New(ollama.Options{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
		})
	case BackendOpenAI:
		c, err = openai.New(openai.Options{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey(),
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case BackendGemini:
		c, err = gemini.New(ctx, gemini.Options{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey(),
			Temperature: cfg.Temperature,
		})
	case BackendAnthropic:
		c, err = anthropic.New(anthropic.Options{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey(),
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("llm: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("llm: %s backend: %w", cfg.Backend, err)
	}

	if cfg.Timeout > 0 {
		c = WithTimeout(c, cfg.Timeout)
	}
	return c, nil
}

// WithTimeout bounds every call to c by d.
func WithTimeout(c Completer, d time.Duration) Completer {
	return CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return c.Complete(ctx, prompt)
	})
}
