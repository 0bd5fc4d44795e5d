package compiler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rules"
)

// StrategyPattern is the CompiledBy value of fast-path rules.
const StrategyPattern = "pattern"

// quickPattern is one fast-path entry: a description regexp and the template
// that turns its captures into a rule.
type quickPattern struct {
	name  string
	re    *regexp.Regexp
	build func(m []string) (*rules.Rule, error)
}

// quickPatterns are tried in order; the first match wins.
var quickPatterns = []quickPattern{
	{
		name: "mention_loads_context",
		re:   regexp.MustCompile(`(?i)\b(?:when|if)\b.*\bmentions?\s+([\w-]+).*\bload\s+([\w-]+)\s+context\b`),
		build: func(m []string) (*rules.Rule, error) {
			x := strings.ToLower(m[1])
			return rules.New(x+"_context_loader",
				rules.Pattern("/"+regexp.QuoteMeta(m[1])+"/i"),
				[]ir.Action{
					ir.NewAction("context/load", ir.IRObject{"context": ir.IRString(m[2])}),
					ir.NewAction("brain/boost_focus", ir.IRObject{"reason": ir.IRString(x + "_mentioned")}),
				})
		},
	},
	{
		name: "contains_triggers_search",
		re:   regexp.MustCompile(`(?i)\bwhen\b.*\bactions?\b.*\bcontains?\s+['"]?([\w-]+)['"]?.*\bsearch\s+([\w-]+)`),
		build: func(m []string) (*rules.Rule, error) {
			x := strings.ToLower(m[1])
			y := strings.ToLower(m[2])
			searchType := y + "/search"
			return rules.New(x+"_"+y+"_middleware",
				rules.Predicate(containsPredicate(x, searchType, "brain/boost_focus")),
				[]ir.Action{
					ir.NewAction(searchType, ir.IRObject{"query": ir.IRString(m[1])}),
					ir.NewAction("brain/boost_focus", ir.IRObject{"reason": ir.IRString(x + "_triggered")}),
				})
		},
	},
	{
		name: "on_event_dispatch",
		re:   regexp.MustCompile(`(?i)^\s*on\s+([a-z][\w-]*)\s+([a-z][\w-]*)\s*,\s*dispatch\s+([\w-]+/[\w-]+)\s*$`),
		build: func(m []string) (*rules.Rule, error) {
			domain := strings.ToLower(m[1])
			verb := strings.ToLower(m[2])
			return rules.New("on_"+domain+"_"+verb,
				rules.Pattern("^"+regexp.QuoteMeta(strings.TrimSuffix(domain, "s"))+"s?/"+regexp.QuoteMeta(verb)+"$"),
				[]ir.Action{{Type: m[3]}})
		},
	},
}

// containsPredicate builds a jq predicate matching needle anywhere in the
// action type or serialized payload, case-insensitively. The rule's own
// action types are excluded so the rule does not trigger itself.
func containsPredicate(needle string, exclude ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `((.type | ascii_downcase | contains(%q)) or (.payload | tojson | ascii_downcase | contains(%q)))`, needle, needle)
	for _, t := range exclude {
		fmt.Fprintf(&b, ` and .type != %q`, t)
	}
	return b.String()
}

// PatternStrategy is the synchronous, deterministic fast path.
type PatternStrategy struct{}

// Name implements Strategy.
func (PatternStrategy) Name() string { return StrategyPattern }

// TryCompile implements Strategy.
func (PatternStrategy) TryCompile(_ context.Context, text string) (*rules.Rule, error) {
	for _, p := range quickPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		r, err := p.build(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		r.CompiledBy = StrategyPattern
		return r, nil
	}
	return nil, nil
}
