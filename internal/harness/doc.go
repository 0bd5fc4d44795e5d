// Package harness runs YAML scenarios against a real engine.
//
// A scenario registers rules, dispatches actions, and asserts on the
// resulting step trace, diagnostics and final state. Tool providers are
// in-memory fakes and the rule compiler's fallback tier answers from canned
// completions, so runs are deterministic and need no network.
//
// # Scenario Format
//
//	name: react_context
//	description: "Mentioning React loads the react context"
//	dispatch: { max_depth: 8, max_steps: 100 }
//	providers:
//	  chroma:
//	    result: { ids: [["doc-1"]] }
//	completions:
//	  - '{"name": "...", "condition": "...", "actions": [...]}'
//	rules:
//	  - description: When someone mentions React, load react context
//	flow:
//	  - dispatch: app/react_opened
//	    payload: { file: App.tsx }
//	    expect:
//	      steps: [context/load, brain/boost_focus, app/react_opened]
//	  - register: on vault search, dispatch brain/boost_focus
//	assertions:
//	  - type: final_state
//	    path: .context.active
//	    expect: [react]
//
// Rules use the rules-file entry format (see package rulefile). Each flow
// step waits for every effect it started to complete before the next one
// runs.
//
// # Assertion Types
//
//   - trace_contains: an applied step of action, payload matched as a subset
//   - trace_order: actions appear in this order (gaps allowed)
//   - trace_count: action was applied exactly count times
//   - final_state: the jq path over the final state equals expect
//   - diagnostic: a diagnostic of kind was reported (exactly count times
//     when count is set)
//   - no_diagnostic: no diagnostic of kind was reported
//
// # Deterministic Testing
//
// Dispatch IDs come from engine.SequenceGenerator and step sequence numbers
// from the engine clock, so identical scenarios produce identical traces.
// Traces are compared against golden files with RunWithGolden.
//
// A scenario whose single flow step starts more than one effect may see
// the completions applied in either order; keep such steps to one effect
// when the trace is compared against a golden file.
package harness
