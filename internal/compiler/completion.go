package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/kaptinlin/jsonrepair"

	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/llm"
	"github.com/roach88/float/internal/rules"
)

// StrategyCompletion is the CompiledBy value of fallback rules.
const StrategyCompletion = "completion"

// promptTemplate is the fixed instruction sent with every description.
const promptTemplate = `Parse this natural language into an action-middleware rule:

"%s"

Return JSON with this exact structure:
{
  "name": "descriptive_rule_name",
  "condition": "jq expression over {type, payload} that is true when the rule applies",
  "actions": [
    {"type": "domain/verb", "payload": {"key": "value"}}
  ]
}

Examples:
- "when actions contain burp" → condition: "(.type | contains(\"burp\")) or (.payload | tojson | contains(\"burp\"))"
- "if someone mentions Redux" → condition: "tojson | ascii_downcase | contains(\"redux\")"
- "on bridge restore" → condition: "(.type | contains(\"bridge\")) and (.type | contains(\"restore\"))"

Only return valid JSON, no explanation.`

// ruleSchema is the shape a completion must have. Extra fields are
// tolerated; a trigger and at least one typed action are not optional.
const ruleSchema = `
#Action: {
	type:     string & !=""
	payload?: _
	...
}

#Rule: {
	name:       string & !=""
	condition?: string & !=""
	pattern?:   string & !=""
	actions: [#Action, ...#Action]
	...
}
`

// BuildPrompt renders the completion prompt for text.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}

// CompletionStrategy compiles arbitrary descriptions by asking a Completer
// for a structured rule. The reply is untrusted: it is repaired if it is not
// valid JSON, checked against the CUE rule schema, and only then converted.
type CompletionStrategy struct {
	completer llm.Completer

	once   sync.Once
	cuectx *cue.Context
	schema cue.Value
	mu     sync.Mutex
}

// NewCompletionStrategy wraps c. A nil c makes every attempt fail with
// llm.ErrNoCompleter.
func NewCompletionStrategy(c llm.Completer) *CompletionStrategy {
	return &CompletionStrategy{completer: c}
}

// Name implements Strategy.
func (s *CompletionStrategy) Name() string { return StrategyCompletion }

// TryCompile implements Strategy. It never returns (nil, nil): the fallback
// either produces a rule or explains why not.
func (s *CompletionStrategy) TryCompile(ctx context.Context, text string) (*rules.Rule, error) {
	if s.completer == nil {
		return nil, llm.ErrNoCompleter
	}

	resp, err := s.completer.Complete(ctx, BuildPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("completion call: %w", err)
	}

	data, err := extractJSON(resp)
	if err != nil {
		return nil, err
	}
	if err := s.validate(data); err != nil {
		return nil, err
	}

	var doc ruleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	return doc.toRule()
}

// validate checks data against #Rule.
func (s *CompletionStrategy) validate(data []byte) error {
	s.once.Do(func() {
		s.cuectx = cuecontext.New()
		s.schema = s.cuectx.CompileString(ruleSchema).LookupPath(cue.ParsePath("#Rule"))
	})

	// cue.Context is not safe for concurrent use.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.schema.Err(); err != nil {
		return formatCUEError(err)
	}
	v := s.cuectx.CompileBytes(data, cue.Filename("completion.json"))
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	unified := s.schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// ruleDoc is the decoded completion.
type ruleDoc struct {
	Name      string      `json:"name"`
	Condition string      `json:"condition"`
	Pattern   string      `json:"pattern"`
	Actions   []ir.Action `json:"actions"`
}

// toRule applies trigger precedence: a condition wins over a pattern when
// both are present.
func (d ruleDoc) toRule() (*rules.Rule, error) {
	var trigger rules.Trigger
	switch {
	case strings.TrimSpace(d.Condition) != "":
		trigger = rules.Predicate(d.Condition)
	case strings.TrimSpace(d.Pattern) != "":
		trigger = rules.Pattern(d.Pattern)
	default:
		return nil, errors.New("completion has neither condition nor pattern")
	}

	r, err := rules.New(d.Name, trigger, d.Actions)
	if err != nil {
		return nil, err
	}
	r.CompiledBy = StrategyCompletion
	return r, nil
}

// extractJSON isolates the outermost JSON object in a completion, removing
// surrounding prose or code fences, and repairs it if it does not parse.
func extractJSON(resp string) ([]byte, error) {
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("completion contains no JSON object")
	}
	candidate := resp[start : end+1]
	if json.Valid([]byte(candidate)) {
		return []byte(candidate), nil
	}

	fixed, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, fmt.Errorf("repair completion JSON: %w", err)
	}
	if !json.Valid([]byte(fixed)) {
		return nil, fmt.Errorf("completion is not valid JSON after repair")
	}
	return []byte(fixed), nil
}
