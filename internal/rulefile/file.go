// Package rulefile loads rules from a YAML file and keeps loading them as
// the file changes.
//
// An entry is either a natural-language description, compiled through the
// engine's rule compiler, or a structured rule with a name, a condition
// (jq) or pattern (regexp) trigger and its actions:
//
//	rules:
//	  - description: When someone mentions React, load react context
//	  - name: ping_touch
//	    condition: .type == "app/ping"
//	    actions:
//	      - type: vault/touch
//	        payload: {file: notes.md}
//
// The rule store is append-only, so reloading registers only entries that
// were not registered before. Entries removed from the file stay
// registered until the process restarts.
package rulefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rules"
)

// CompiledBy marks rules built from structured entries.
const CompiledBy = "file"

// File is the rules document.
type File struct {
	Rules []Entry `yaml:"rules"`
}

// Entry is one rule definition.
type Entry struct {
	Description string      `yaml:"description,omitempty"`
	Name        string      `yaml:"name,omitempty"`
	Condition   string      `yaml:"condition,omitempty"`
	Pattern     string      `yaml:"pattern,omitempty"`
	Actions     []ActionDoc `yaml:"actions,omitempty"`
}

// ActionDoc is an action as written in the file.
type ActionDoc struct {
	Type    string `yaml:"type"`
	Payload any    `yaml:"payload,omitempty"`
}

// IsDescription reports whether e is compiled from natural language.
func (e Entry) IsDescription() bool {
	return strings.TrimSpace(e.Description) != ""
}

// Key identifies an entry across reloads.
func (e Entry) Key() string {
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Sprintf("%#v", e)
	}
	return string(data)
}

// Rule builds the rule of a structured entry. A condition wins over a
// pattern when both are present.
func (e Entry) Rule() (*rules.Rule, error) {
	var trigger rules.Trigger
	switch {
	case strings.TrimSpace(e.Condition) != "":
		trigger = rules.Predicate(e.Condition)
	case strings.TrimSpace(e.Pattern) != "":
		trigger = rules.Pattern(e.Pattern)
	default:
		return nil, fmt.Errorf("%w: %s: condition or pattern is required", rules.ErrInvalidRule, e.Name)
	}

	actions := make([]ir.Action, len(e.Actions))
	for i, a := range e.Actions {
		var payload ir.IRValue
		if a.Payload != nil {
			v, err := ir.FromAny(a.Payload)
			if err != nil {
				return nil, fmt.Errorf("%s: actions[%d].payload: %w", e.Name, i, err)
			}
			payload = v
		}
		actions[i] = ir.NewAction(a.Type, payload)
	}

	r, err := rules.New(e.Name, trigger, actions)
	if err != nil {
		return nil, err
	}
	r.CompiledBy = CompiledBy
	return r, nil
}

func (e Entry) validate() error {
	structured := e.Name != "" || e.Condition != "" || e.Pattern != "" || len(e.Actions) > 0
	switch {
	case e.IsDescription() && structured:
		return errors.New("description cannot be combined with name, trigger or actions")
	case !e.IsDescription() && !structured:
		return errors.New("empty entry")
	case structured && e.Name == "":
		return errors.New("name is required")
	}
	return nil
}

// Parse decodes a rules document. Unknown keys are rejected.
func Parse(data []byte) ([]Entry, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	var errs []error
	for i, e := range f.Rules {
		if err := e.validate(); err != nil {
			errs = append(errs, fmt.Errorf("rules[%d]: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return f.Rules, nil
}

// Load reads and parses path.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}
