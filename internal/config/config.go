// Package config loads the float YAML configuration.
//
// Every field has a default (see Default); a file only needs the fields it
// overrides. Secrets are never stored in the file: backends read their API
// key from the environment variable the file names.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/gateway"
	"github.com/roach88/float/internal/llm"
)

// Config is the root configuration document.
type Config struct {
	Log      LogConfig            `yaml:"log"`
	Dispatch DispatchConfig       `yaml:"dispatch"`
	Gateway  GatewayConfig        `yaml:"gateway"`
	Effects  engine.EffectsConfig `yaml:"effects"`
	Compiler llm.Config           `yaml:"compiler"`
	Journal  JournalConfig        `yaml:"journal"`
	Rules    RulesConfig          `yaml:"rules"`
}

// LogConfig configures the process-wide slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
	File   string `yaml:"file"`   // empty: stderr
}

// DispatchConfig bounds rule cascades.
type DispatchConfig struct {
	MaxDepth int `yaml:"max_depth"`
	MaxSteps int `yaml:"max_steps"`
}

// GatewayConfig lists the external tool providers.
type GatewayConfig struct {
	Timeout   time.Duration                  `yaml:"timeout"`
	Providers map[string]gateway.StdioConfig `yaml:"providers"`
}

// JournalConfig locates the SQLite dispatch journal. An empty path disables
// journaling.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// RulesConfig points at a rules file loaded at startup.
type RulesConfig struct {
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

// Valid option values.
var (
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"text", "json"}
)

// Default returns the built-in configuration: a chroma MCP server launched
// with uvx and a local Ollama model for the compiler fallback.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Dispatch: DispatchConfig{
			MaxDepth: engine.DefaultMaxDepth,
			MaxSteps: engine.DefaultMaxSteps,
		},
		Gateway: GatewayConfig{
			Timeout: gateway.DefaultTimeout,
			Providers: map[string]gateway.StdioConfig{
				"chroma": {
					Command: "uvx",
					Args:    []string{"chroma-mcp", "--client-type", "persistent", "--data-dir", "chroma-data"},
				},
			},
		},
		Effects: engine.DefaultEffectsConfig(),
		Compiler: llm.Config{
			Backend:     llm.BackendOllama,
			Model:       "llama3.1",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.1,
			Timeout:     30 * time.Second,
		},
	}
}

// Load reads path over the defaults and validates the result. Unknown keys
// are rejected so typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. A
// gateway.providers key replaces the default providers instead of merging
// into them, so an empty map disables chroma.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	defaults := cfg.Gateway.Providers
	cfg.Gateway.Providers = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Gateway.Providers == nil && !declaresProviders(data) {
		cfg.Gateway.Providers = defaults
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// declaresProviders reports whether data sets gateway.providers, including
// to null.
func declaresProviders(data []byte) bool {
	var doc struct {
		Gateway struct {
			Providers yaml.Node `yaml:"providers"`
		} `yaml:"gateway"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false
	}
	return doc.Gateway.Providers.Kind != 0
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !oneOf(c.Log.Level, LogLevels) {
		add("log.level", "must be one of %s", strings.Join(LogLevels, ", "))
	}
	if !oneOf(c.Log.Format, LogFormats) {
		add("log.format", "must be one of %s", strings.Join(LogFormats, ", "))
	}
	if c.Dispatch.MaxDepth <= 0 {
		add("dispatch.max_depth", "must be positive")
	}
	if c.Dispatch.MaxSteps <= 0 {
		add("dispatch.max_steps", "must be positive")
	}
	if c.Gateway.Timeout <= 0 {
		add("gateway.timeout", "must be positive")
	}
	for name, p := range c.Gateway.Providers {
		if p.Command == "" {
			add("gateway.providers."+name+".command", "is required")
		}
	}
	if c.Effects.Provider == "" {
		add("effects.provider", "is required")
	}
	if c.Effects.Tool == "" {
		add("effects.tool", "is required")
	}
	if c.Effects.DispatchResults <= 0 {
		add("effects.dispatch_results", "must be positive")
	}
	if c.Effects.ContinuityResults <= 0 {
		add("effects.continuity_results", "must be positive")
	}
	if !llm.Known(c.Compiler.Backend) {
		add("compiler.backend", "unknown backend %q", c.Compiler.Backend)
	}
	if c.Compiler.Temperature < 0 || c.Compiler.Temperature > 2 {
		add("compiler.temperature", "must be between 0 and 2")
	}
	if c.Compiler.Timeout < 0 {
		add("compiler.timeout", "must not be negative")
	}
	if c.Rules.Watch && c.Rules.File == "" {
		add("rules.watch", "requires rules.file")
	}

	return errors.Join(errs...)
}

// FieldError is one invalid configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Message)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
