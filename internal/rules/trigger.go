package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/itchyny/gojq"

	"github.com/roach88/float/internal/ir"
)

// TriggerKind discriminates the Trigger sum type.
type TriggerKind string

const (
	// TriggerPattern matches a regular expression against the action type.
	TriggerPattern TriggerKind = "pattern"
	// TriggerPredicate evaluates a jq expression against {type, payload}.
	TriggerPredicate TriggerKind = "predicate"
)

// EvalTimeout bounds a single predicate evaluation.
var EvalTimeout = 250 * time.Millisecond

// Trigger is either a Pattern over the action type or a Predicate over the
// whole action. Both are kept as source text.
type Trigger struct {
	Kind   TriggerKind
	Source string
}

// Pattern builds a pattern trigger. Source is a Go regular expression or a
// slash-delimited literal such as "/react/i".
func Pattern(source string) Trigger {
	return Trigger{Kind: TriggerPattern, Source: source}
}

// Predicate builds a predicate trigger from a jq expression.
func Predicate(source string) Trigger {
	return Trigger{Kind: TriggerPredicate, Source: source}
}

func (t Trigger) String() string {
	return fmt.Sprintf("%s:%s", t.Kind, t.Source)
}

func (t Trigger) validate() error {
	switch t.Kind {
	case TriggerPattern, TriggerPredicate:
	default:
		return fmt.Errorf("unknown trigger kind %q", t.Kind)
	}
	if strings.TrimSpace(t.Source) == "" {
		return fmt.Errorf("%s trigger source is empty", t.Kind)
	}
	return nil
}

type matcher interface {
	match(ctx context.Context, a ir.Action) (bool, error)
}

func (t Trigger) compile() (matcher, error) {
	switch t.Kind {
	case TriggerPattern:
		re, err := compilePattern(t.Source)
		if err != nil {
			return nil, err
		}
		return patternMatcher{re: re}, nil
	case TriggerPredicate:
		code, err := compilePredicate(t.Source)
		if err != nil {
			return nil, err
		}
		return predicateMatcher{code: code}, nil
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", t.Kind)
	}
}

type patternMatcher struct {
	re *regexp.Regexp
}

func (m patternMatcher) match(_ context.Context, a ir.Action) (bool, error) {
	return m.re.MatchString(a.Type), nil
}

// compilePattern accepts a plain Go regexp or a /body/flags literal.
// Supported flags are i, m and s; g, u and y are accepted and ignored.
func compilePattern(source string) (*regexp.Regexp, error) {
	body, flags, ok := splitSlashLiteral(source)
	if !ok {
		return regexp.Compile(source)
	}

	var prefix strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			prefix.WriteRune(f)
		case 'g', 'u', 'y':
		default:
			return nil, fmt.Errorf("unsupported pattern flag %q in %s", f, source)
		}
	}
	if prefix.Len() > 0 {
		body = "(?" + prefix.String() + ")" + body
	}
	return regexp.Compile(body)
}

func splitSlashLiteral(source string) (body, flags string, ok bool) {
	if len(source) < 2 || source[0] != '/' {
		return "", "", false
	}
	end := strings.LastIndexByte(source, '/')
	if end <= 0 {
		return "", "", false
	}
	return source[1:end], source[end+1:], true
}

type predicateMatcher struct {
	code *gojq.Code
}

// compilePredicate parses and compiles a jq expression with no access to the
// process environment and no input iterator.
func compilePredicate(source string) (*gojq.Code, error) {
	query, err := gojq.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", source, err)
	}
	code, err := gojq.Compile(query, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, fmt.Errorf("compile jq expression %q: %w", source, err)
	}
	return code, nil
}

// match runs the predicate against {type, payload}. Only the first output
// counts; it matches when it is truthy in the jq sense (neither null nor
// false). No output is a non-match.
func (m predicateMatcher) match(ctx context.Context, a ir.Action) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, EvalTimeout)
	defer cancel()

	iter := m.code.RunWithContext(ctx, ir.ToAny(a.ToIR()))
	v, ok := iter.Next()
	if !ok {
		return false, nil
	}
	if err, isErr := v.(error); isErr {
		return false, err
	}
	return truthy(v), nil
}

func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	default:
		return true
	}
}
