package rules

import (
	"errors"
	"fmt"
)

// EvalPhase says where a trigger failed.
type EvalPhase string

const (
	PhaseCompile EvalPhase = "compile"
	PhaseEval    EvalPhase = "eval"
)

// EvalFailure is the diagnostic for a trigger that could not be evaluated.
// The rule is treated as non-matching for that action and stays registered.
type EvalFailure struct {
	Rule    string
	Trigger Trigger
	Phase   EvalPhase
	Err     error
}

func (e *EvalFailure) Error() string {
	return fmt.Sprintf("rule %q: %s %s trigger: %v", e.Rule, e.Phase, e.Trigger.Kind, e.Err)
}

func (e *EvalFailure) Unwrap() error {
	return e.Err
}

// IsEvalFailure reports whether err is (or wraps) an *EvalFailure.
func IsEvalFailure(err error) bool {
	var ef *EvalFailure
	return errors.As(err, &ef)
}
