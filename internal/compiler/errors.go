package compiler

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Guidance is shown to users whose description could not be compiled.
const Guidance = `Try patterns like:
- "when actions contain burp, search chroma and structure response"
- "if someone mentions airbender, load avatar context"
- "on bridge restore, validate and notify"`

// CompileFailure reports that no strategy could build a rule. It is a
// reportable outcome, never a process fault.
type CompileFailure struct {
	Text string
	Err  error
}

func (e *CompileFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not parse rule from %q: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("could not parse rule from %q", e.Text)
}

func (e *CompileFailure) Unwrap() error {
	return e.Err
}

// Message renders the failure for end users.
func (e *CompileFailure) Message() string {
	return fmt.Sprintf("❌ Could not parse middleware from: \"%s\"\n\n%s", e.Text, Guidance)
}

// IsCompileFailure reports whether err is a *CompileFailure.
func IsCompileFailure(err error) bool {
	var f *CompileFailure
	return errors.As(err, &f)
}

// StrategyError records why one strategy gave up.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// SchemaError is a CUE schema violation in a completion response, with the
// position inside the response when known.
type SchemaError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first CUE error, with its position if present.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "rule"
	if path := first.Path(); len(path) > 0 {
		field = path[len(path)-1]
	}
	se := &SchemaError{Field: field, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}
