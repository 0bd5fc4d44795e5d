package engine

import (
	"context"

	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/state"
)

// Step is one applied reducer step.
type Step struct {
	// DispatchID is the top-level dispatch the step belongs to.
	DispatchID string `json:"dispatch_id"`

	// Seq is the logical clock value; strictly increasing across steps.
	Seq int64 `json:"seq"`

	// Depth is 0 for the top-level action and grows by one per rule hop.
	Depth int `json:"depth"`

	// Origin of the top-level action, or OriginRule for cascaded steps.
	Origin Origin `json:"origin"`

	// Rule names the rule that fired the action; empty at depth 0.
	Rule string `json:"rule,omitempty"`

	Action ir.Action `json:"action"`

	// StateHash is the hash of State after the step was applied.
	StateHash string `json:"state_hash"`
}

// Result is the outcome of one top-level dispatch.
type Result struct {
	DispatchID string

	// Steps lists applied reducer steps in application order.
	Steps []Step

	// State is a snapshot taken after the synchronous cascade.
	State state.State

	// Diagnostics collects isolated failures observed during the cascade.
	Diagnostics []Diagnostic

	// Err is the recursion guard error that halted the cascade, if any.
	Err error
}

// Journal receives every applied step. A journal failure is logged and
// reported as a diagnostic; it never stops dispatch.
type Journal interface {
	AppendStep(ctx context.Context, step Step) error
}

// JournalFunc adapts a function to Journal.
type JournalFunc func(ctx context.Context, step Step) error

// AppendStep calls f.
func (f JournalFunc) AppendStep(ctx context.Context, step Step) error {
	return f(ctx, step)
}
