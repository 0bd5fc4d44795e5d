package harness

import (
	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/state"
)

// TraceEvent is one applied reducer step.
type TraceEvent struct {
	Seq        int64      `json:"seq"`
	DispatchID string     `json:"dispatch_id"`
	Depth      int        `json:"depth"`
	Origin     string     `json:"origin"`
	Rule       string     `json:"rule,omitempty"`
	Type       string     `json:"type"`
	Payload    ir.IRValue `json:"payload,omitempty"`
}

func traceEventFromStep(s engine.Step) TraceEvent {
	var payload ir.IRValue
	if s.Action.Payload != nil {
		payload = ir.Clone(s.Action.Payload)
	}
	return TraceEvent{
		Seq:        s.Seq,
		DispatchID: s.DispatchID,
		Depth:      s.Depth,
		Origin:     string(s.Origin),
		Rule:       s.Rule,
		Type:       s.Action.Type,
		Payload:    payload,
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists every applied step in sequence order, including steps of
	// effect completions.
	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`

	// Diagnostics lists every diagnostic reported during the run.
	Diagnostics []engine.Diagnostic `json:"diagnostics,omitempty"`

	// State is the final state.
	State state.State `json:"state"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  state.New(),
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
