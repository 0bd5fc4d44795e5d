// Package compiler turns natural-language rule descriptions into rules.
//
// Compilation is a chain of strategies tried in order. The first strategy
// that returns a rule wins; a strategy that has no opinion returns (nil, nil)
// and one that recognized the text but could not build a rule returns an
// error, which is recorded and the chain continues. When every strategy
// passes, Compile returns a *CompileFailure carrying user-facing guidance.
//
// The default chain is the fixed fast-path PatternStrategy followed by the
// CompletionStrategy, which asks an llm.Completer for a structured rule and
// validates the reply against a CUE schema.
package compiler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/roach88/float/internal/llm"
	"github.com/roach88/float/internal/rules"
)

// Strategy is one tier of the compiler chain.
type Strategy interface {
	// Name identifies the strategy in logs and in Rule.CompiledBy.
	Name() string

	// TryCompile returns (nil, nil) when the strategy does not handle text.
	TryCompile(ctx context.Context, text string) (*rules.Rule, error)
}

// Compiler runs a strategy chain.
type Compiler struct {
	strategies []Strategy
}

// New creates a compiler trying strategies in the given order.
func New(strategies ...Strategy) *Compiler {
	return &Compiler{strategies: strategies}
}

// NewDefault creates the fast-path then completion chain. A nil completer
// leaves the fallback tier in place but always failing.
func NewDefault(c llm.Completer) *Compiler {
	return New(PatternStrategy{}, NewCompletionStrategy(c))
}

// Compile returns the first rule produced by the chain, or *CompileFailure.
func (c *Compiler) Compile(ctx context.Context, text string) (*rules.Rule, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &CompileFailure{Text: text, Err: errors.New("description is empty")}
	}

	var errs []error
	for _, s := range c.strategies {
		r, err := s.TryCompile(ctx, text)
		if err != nil {
			slog.Debug("compile strategy failed",
				"strategy", s.Name(),
				"error", err,
				"event", "compile_strategy_failed",
			)
			errs = append(errs, &StrategyError{Strategy: s.Name(), Err: err})
			continue
		}
		if r == nil {
			continue
		}

		slog.Info("rule compiled",
			"rule", r.Name,
			"trigger_kind", r.Trigger.Kind,
			"strategy", s.Name(),
			"event", "rule_compiled",
		)
		return r, nil
	}

	f := &CompileFailure{Text: text}
	if len(errs) > 0 {
		f.Err = errors.Join(errs...)
	} else {
		f.Err = errors.New("no strategy recognized the description")
	}
	slog.Warn("rule compilation failed",
		"description", text,
		"error", f.Err,
		"event", "compile_failed",
	)
	return nil, f
}
