// Package rules defines compiled rules and the append-only rule store the
// dispatch pipeline evaluates.
//
// A Rule pairs a Trigger with an ordered action list. Triggers are stored as
// source text and compiled lazily on first evaluation; the compiled form is
// cached on the rule instance. Evaluation never fails a dispatch: a trigger
// that cannot compile or errors at runtime is a non-match reported as an
// *EvalFailure.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/float/internal/ir"
)

// ErrInvalidRule is wrapped by every rule construction error.
var ErrInvalidRule = errors.New("invalid rule")

// Rule is a compiled (trigger, actions) pair.
type Rule struct {
	Name    string
	Trigger Trigger
	Actions []ir.Action

	// CompiledBy names the compiler strategy that produced the rule.
	CompiledBy string

	once    sync.Once
	matcher matcher
	initErr error
}

// New validates and builds a rule. Actions are deep-copied.
//
// Invariants: name is non-empty, the trigger kind is known and its source
// non-empty, at least one action is present, and every action passes
// ir.ValidateAction (so rules can never emit reserved middleware/* actions).
func New(name string, trigger Trigger, actions []ir.Action) (*Rule, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if err := trigger.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: %s: at least one action is required", ErrInvalidRule, name)
	}

	copied := make([]ir.Action, len(actions))
	for i, a := range actions {
		if err := ir.ValidateAction(a); err != nil {
			return nil, fmt.Errorf("%w: %s: actions[%d]: %w", ErrInvalidRule, name, i, err)
		}
		copied[i] = a.Clone()
	}

	return &Rule{Name: name, Trigger: trigger, Actions: copied}, nil
}

// Match reports whether the rule's trigger matches a. The trigger is
// compiled on the first call and cached. A compile or runtime failure
// returns false with an *EvalFailure.
func (r *Rule) Match(ctx context.Context, a ir.Action) (bool, error) {
	r.once.Do(func() {
		r.matcher, r.initErr = r.Trigger.compile()
	})
	if r.initErr != nil {
		return false, &EvalFailure{Rule: r.Name, Trigger: r.Trigger, Phase: PhaseCompile, Err: r.initErr}
	}

	ok, err := r.matcher.match(ctx, a)
	if err != nil {
		return false, &EvalFailure{Rule: r.Name, Trigger: r.Trigger, Phase: PhaseEval, Err: err}
	}
	return ok, nil
}

// ActionList returns deep copies of the rule's actions in order.
func (r *Rule) ActionList() []ir.Action {
	out := make([]ir.Action, len(r.Actions))
	for i, a := range r.Actions {
		out[i] = a.Clone()
	}
	return out
}

// ToIR renders the rule as the middleware/register payload
// {name, trigger_kind, trigger, actions}.
func (r *Rule) ToIR() ir.IRObject {
	actions := make(ir.IRArray, len(r.Actions))
	for i, a := range r.Actions {
		obj := ir.IRObject{"type": ir.IRString(a.Type)}
		if a.Payload != nil {
			obj["payload"] = ir.Clone(a.Payload)
		}
		actions[i] = obj
	}
	return ir.IRObject{
		"name":         ir.IRString(r.Name),
		"trigger_kind": ir.IRString(r.Trigger.Kind),
		"trigger":      ir.IRString(r.Trigger.Source),
		"actions":      actions,
	}
}

// Hash returns the content hash of the rule definition.
func (r *Rule) Hash() (string, error) {
	return ir.RuleHash(r.ToIR())
}
