package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/float/internal/rulefile"
)

// Scenario defines a test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dispatch overrides the recursion limits.
	Dispatch *Limits `yaml:"dispatch,omitempty"`

	// Providers are the fake tool providers, by name. A provider not listed
	// here is unavailable.
	Providers map[string]ProviderStub `yaml:"providers,omitempty"`

	// Completions are the replies of the rule compiler's fallback tier, in
	// order; the last one repeats.
	Completions []string `yaml:"completions,omitempty"`

	// Rules are registered before the flow runs.
	Rules []rulefile.Entry `yaml:"rules,omitempty"`

	// Flow contains the steps to execute, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace, diagnostics and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Limits overrides the engine's recursion guard.
type Limits struct {
	MaxDepth int `yaml:"max_depth,omitempty"`
	MaxSteps int `yaml:"max_steps,omitempty"`
}

// ProviderStub configures a fake provider.
type ProviderStub struct {
	// Unavailable makes the provider fail to connect.
	Unavailable bool `yaml:"unavailable,omitempty"`

	// Result is returned by every tool call. When unset the provider echoes
	// {tool, args}.
	Result any `yaml:"result,omitempty"`

	// Error makes every tool call fail with this message.
	Error string `yaml:"error,omitempty"`
}

// FlowStep is either a dispatch or a rule registration.
type FlowStep struct {
	// Dispatch is the action type to dispatch.
	Dispatch string `yaml:"dispatch,omitempty"`

	// Payload is the dispatched action's payload.
	Payload any `yaml:"payload,omitempty"`

	// Register is a rule description to compile and register.
	Register string `yaml:"register,omitempty"`

	// Expect validates the step's synchronous outcome.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Error is the expected error class; empty expects success.
	Error string `yaml:"error,omitempty"`

	// Steps lists the action types applied by the synchronous cascade, in
	// application order. Nil skips the check.
	Steps []string `yaml:"steps,omitempty"`
}

// Expected error classes.
const (
	ErrorValidation     = "validation"
	ErrorRecursionLimit = "recursion_limit"
	ErrorCompileFailure = "compile_failure"
)

// Assertion validates the trace, diagnostics or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Payload is matched as a subset by trace_contains.
	Payload map[string]any `yaml:"payload,omitempty"`

	// Actions is the expected order for trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Count is the exact occurrence count for trace_count and diagnostic.
	Count int `yaml:"count,omitempty"`

	// Path is a jq expression over the final state for final_state.
	Path string `yaml:"path,omitempty"`

	// Expect is the value Path must produce.
	Expect any `yaml:"expect,omitempty"`

	// Kind is the diagnostic kind for diagnostic and no_diagnostic.
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertDiagnostic    = "diagnostic"
	AssertNoDiagnostic  = "no_diagnostic"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for name, p := range s.Providers {
		if p.Unavailable && (p.Result != nil || p.Error != "") {
			return fmt.Errorf("providers.%s: an unavailable provider takes no result or error", name)
		}
	}

	for i, step := range s.Flow {
		switch {
		case step.Dispatch == "" && step.Register == "":
			return fmt.Errorf("flow[%d]: dispatch or register is required", i)
		case step.Dispatch != "" && step.Register != "":
			return fmt.Errorf("flow[%d]: dispatch and register are exclusive", i)
		case step.Register != "" && step.Payload != nil:
			return fmt.Errorf("flow[%d]: payload is only valid with dispatch", i)
		}
		if step.Expect != nil {
			switch step.Expect.Error {
			case "", ErrorValidation, ErrorRecursionLimit, ErrorCompileFailure:
			default:
				return fmt.Errorf("flow[%d].expect: unknown error class %q", i, step.Expect.Error)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for final_state", index)
		}
	case AssertDiagnostic, AssertNoDiagnostic:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
