package engine

import (
	"fmt"
	"log/slog"
)

// DiagnosticKind classifies an isolated failure.
type DiagnosticKind string

const (
	// DiagProviderUnavailable: an effect's provider was not connected, so no
	// call was issued.
	DiagProviderUnavailable DiagnosticKind = "provider_unavailable"
	// DiagGatewayError: an effect's tool call failed or timed out.
	DiagGatewayError DiagnosticKind = "gateway_error"
	// DiagEvalFailure: a rule trigger failed to compile or evaluate and was
	// treated as non-matching.
	DiagEvalFailure DiagnosticKind = "eval_failure"
	// DiagInvalidCompletion: an effect synthesized an action that failed
	// validation and was dropped.
	DiagInvalidCompletion DiagnosticKind = "invalid_completion"
	// DiagJournalError: a step could not be journaled.
	DiagJournalError DiagnosticKind = "journal_error"
	// DiagCycleWarning: static analysis found rules that can trigger each
	// other.
	DiagCycleWarning DiagnosticKind = "cycle_warning"
	// DiagRecursionLimit: the recursion guard halted a cascade.
	DiagRecursionLimit DiagnosticKind = "recursion_limit"
)

// Diagnostic is a reportable, non-fatal event.
type Diagnostic struct {
	Kind       DiagnosticKind `json:"kind"`
	DispatchID string         `json:"dispatch_id,omitempty"`
	ActionType string         `json:"action_type,omitempty"`
	Rule       string         `json:"rule,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	Effect     string         `json:"effect,omitempty"`
	Message    string         `json:"message"`
	Err        error          `json:"-"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
}

// DiagnosticSink receives diagnostics as they occur. Sinks are called from
// the Run goroutine and from effect goroutines, so they must be safe for
// concurrent use and must not call back into the engine.
type DiagnosticSink func(Diagnostic)

// logDiagnostic writes d at a level matching its severity.
func logDiagnostic(d Diagnostic) {
	attrs := []any{
		"kind", string(d.Kind),
		"dispatch_id", d.DispatchID,
		"action", d.ActionType,
		"event", string(d.Kind),
	}
	if d.Rule != "" {
		attrs = append(attrs, "rule", d.Rule)
	}
	if d.Provider != "" {
		attrs = append(attrs, "provider", d.Provider)
	}
	if d.Err != nil {
		attrs = append(attrs, "error", d.Err)
	}

	switch d.Kind {
	case DiagProviderUnavailable, DiagEvalFailure, DiagCycleWarning:
		slog.Warn(d.Message, attrs...)
	default:
		slog.Error(d.Message, attrs...)
	}
}
