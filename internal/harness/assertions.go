package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s depth=%d %s\n", event.Seq, event.DispatchID, event.Depth, event.Type)
		}
	}
	return buf.String()
}

// assertTraceContains checks if the trace contains a step of the action
// whose payload contains the expected fields.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == assertion.Action && matchPayload(event.Payload, assertion.Payload) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with payload %v", assertion.Action, assertion.Payload),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// 1-indexed first positions; 0 means absent.
	positions := make(map[string]int)
	for i, event := range trace {
		for _, expected := range assertion.Actions {
			if event.Type == expected && positions[expected] == 0 {
				positions[expected] = i + 1
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action was applied exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState evaluates Path over the final state and compares the
// first output with Expect.
func assertFinalState(result *Result, assertion Assertion) error {
	got, err := queryState(result, assertion.Path)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("path %s to evaluate", assertion.Path),
			Actual:   err.Error(),
		}
	}

	want, err := ir.FromAny(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state %s: expect: %w", assertion.Path, err)
	}
	if !ir.Equal(got, want) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", assertion.Path, render(want)),
			Actual:   fmt.Sprintf("%s = %s", assertion.Path, render(got)),
		}
	}
	return nil
}

// queryState runs a jq expression against the IR rendering of the state.
func queryState(result *Result, path string) (ir.IRValue, error) {
	query, err := gojq.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	code, err := gojq.Compile(query, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, fmt.Errorf("compile path: %w", err)
	}

	iter := code.RunWithContext(context.Background(), ir.ToAny(result.State.ToIR()))
	v, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("path produced no output")
	}
	if err, isErr := v.(error); isErr {
		return nil, err
	}
	return ir.FromAny(v)
}

// assertDiagnostic checks that a diagnostic of Kind was reported, exactly
// Count times when Count is set.
func assertDiagnostic(diags []engine.Diagnostic, assertion Assertion) error {
	n := countKind(diags, assertion.Kind)
	switch {
	case assertion.Count > 0 && n != assertion.Count:
		return &AssertionError{
			Type:     AssertDiagnostic,
			Expected: fmt.Sprintf("%d %s diagnostics", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d reported: %v", n, kinds(diags)),
		}
	case n == 0:
		return &AssertionError{
			Type:     AssertDiagnostic,
			Expected: fmt.Sprintf("a %s diagnostic", assertion.Kind),
			Actual:   fmt.Sprintf("reported: %v", kinds(diags)),
		}
	}
	return nil
}

func assertNoDiagnostic(diags []engine.Diagnostic, assertion Assertion) error {
	if n := countKind(diags, assertion.Kind); n > 0 {
		return &AssertionError{
			Type:     AssertNoDiagnostic,
			Expected: fmt.Sprintf("no %s diagnostic", assertion.Kind),
			Actual:   fmt.Sprintf("%d reported", n),
		}
	}
	return nil
}

func countKind(diags []engine.Diagnostic, kind string) int {
	n := 0
	for _, d := range diags {
		if string(d.Kind) == kind {
			n++
		}
	}
	return n
}

func kinds(diags []engine.Diagnostic) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = string(d.Kind)
	}
	return out
}

// matchPayload checks if actual contains every expected field (subset
// match). Extra fields in actual are ignored.
func matchPayload(actual ir.IRValue, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}
	obj, ok := actual.(ir.IRObject)
	if !ok {
		return false
	}
	for key, want := range expected {
		got, exists := obj[key]
		if !exists {
			return false
		}
		wantIR, err := ir.FromAny(want)
		if err != nil || !ir.Equal(got, wantIR) {
			return false
		}
	}
	return true
}

func render(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertDiagnostic:
			err = assertDiagnostic(result.Diagnostics, assertion)
		case AssertNoDiagnostic:
			err = assertNoDiagnostic(result.Diagnostics, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
