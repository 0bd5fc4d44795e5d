// Package state holds the float domain state and the pure reducers that
// evolve it.
//
// State is partitioned into independently-owned slices (context, brain,
// vault, bridges, middleware). Reduce routes an action to exactly one slice
// reducer by the action's domain; reducers are total and never fail.
// Payload shape is enforced at the dispatch boundary (ir.ValidateAction),
// so reducers treat a missing or mistyped field as a no-op.
package state

import (
	"encoding/json"
	"slices"

	"github.com/roach88/float/internal/ir"
)

// FocusState is the brain's attention level.
type FocusState string

const (
	FocusIdle    FocusState = "idle"
	FocusActive  FocusState = "active"
	FocusBoosted FocusState = "boosted"
)

// MaxRecentFiles caps vault.recent_files.
const MaxRecentFiles = 20

// ContextSlice tracks active contexts, their hierarchy, and per-context data.
type ContextSlice struct {
	Active    []string            // insertion-ordered, de-duplicated
	Hierarchy map[string][]string // parent -> children, children de-duplicated
	Data      map[string]ir.IRValue
}

// BrainSlice tracks the focused context and last-loaded data.
type BrainSlice struct {
	CurrentContext ir.IRValue // IRNull when unset
	LoadedData     ir.IRValue // IRNull when unset
	FocusState     FocusState
}

// VaultSlice tracks the last search and recently touched files.
type VaultSlice struct {
	SearchResults []ir.IRValue
	RecentFiles   []string // most recent first, de-duplicated, capped
}

// BridgesSlice tracks the active bridge and the context restored for it.
type BridgesSlice struct {
	ActiveBridge    *string
	RestoredContext ir.IRValue // IRNull until a restore completes
}

// RuleView is the read-only projection of a registered rule.
type RuleView struct {
	Name        string
	TriggerKind string
	Trigger     string
	Actions     []ir.Action
}

// MiddlewareSlice is the materialized view of the rule store.
type MiddlewareSlice struct {
	Registered []RuleView
}

// State is the full domain state.
type State struct {
	Context    ContextSlice
	Brain      BrainSlice
	Vault      VaultSlice
	Bridges    BridgesSlice
	Middleware MiddlewareSlice
}

// New returns the initial state with empty slices.
func New() State {
	return State{
		Context: ContextSlice{
			Active:    []string{},
			Hierarchy: map[string][]string{},
			Data:      map[string]ir.IRValue{},
		},
		Brain: BrainSlice{
			CurrentContext: ir.IRNull{},
			LoadedData:     ir.IRNull{},
			FocusState:     FocusIdle,
		},
		Vault: VaultSlice{
			SearchResults: []ir.IRValue{},
			RecentFiles:   []string{},
		},
		Bridges: BridgesSlice{
			RestoredContext: ir.IRNull{},
		},
		Middleware: MiddlewareSlice{
			Registered: []RuleView{},
		},
	}
}

// Clone returns a deep copy sharing no mutable memory with s.
func (s State) Clone() State {
	return State{
		Context:    s.Context.clone(),
		Brain:      s.Brain.clone(),
		Vault:      s.Vault.clone(),
		Bridges:    s.Bridges.clone(),
		Middleware: s.Middleware.clone(),
	}
}

func (c ContextSlice) clone() ContextSlice {
	out := ContextSlice{
		Active:    slices.Clone(c.Active),
		Hierarchy: make(map[string][]string, len(c.Hierarchy)),
		Data:      make(map[string]ir.IRValue, len(c.Data)),
	}
	if out.Active == nil {
		out.Active = []string{}
	}
	for k, children := range c.Hierarchy {
		out.Hierarchy[k] = slices.Clone(children)
	}
	for k, v := range c.Data {
		out.Data[k] = ir.Clone(v)
	}
	return out
}

func (b BrainSlice) clone() BrainSlice {
	return BrainSlice{
		CurrentContext: ir.Clone(b.CurrentContext),
		LoadedData:     ir.Clone(b.LoadedData),
		FocusState:     b.FocusState,
	}
}

func (v VaultSlice) clone() VaultSlice {
	out := VaultSlice{
		SearchResults: make([]ir.IRValue, len(v.SearchResults)),
		RecentFiles:   slices.Clone(v.RecentFiles),
	}
	for i, r := range v.SearchResults {
		out.SearchResults[i] = ir.Clone(r)
	}
	if out.RecentFiles == nil {
		out.RecentFiles = []string{}
	}
	return out
}

func (b BridgesSlice) clone() BridgesSlice {
	out := BridgesSlice{RestoredContext: ir.Clone(b.RestoredContext)}
	if b.ActiveBridge != nil {
		id := *b.ActiveBridge
		out.ActiveBridge = &id
	}
	return out
}

func (m MiddlewareSlice) clone() MiddlewareSlice {
	out := MiddlewareSlice{Registered: make([]RuleView, len(m.Registered))}
	for i, r := range m.Registered {
		out.Registered[i] = r.clone()
	}
	return out
}

func (r RuleView) clone() RuleView {
	out := r
	out.Actions = make([]ir.Action, len(r.Actions))
	for i, a := range r.Actions {
		out.Actions[i] = a.Clone()
	}
	return out
}

// ToIR renders the state as an IR object with snake_case keys. This is the
// shape returned to callers, hashed into the journal, and compared by the
// scenario harness.
func (s State) ToIR() ir.IRObject {
	hierarchy := make(ir.IRObject, len(s.Context.Hierarchy))
	for parent, children := range s.Context.Hierarchy {
		hierarchy[parent] = stringsToIR(children)
	}
	data := make(ir.IRObject, len(s.Context.Data))
	for k, v := range s.Context.Data {
		data[k] = ir.Clone(v)
	}

	var activeBridge ir.IRValue = ir.IRNull{}
	if s.Bridges.ActiveBridge != nil {
		activeBridge = ir.IRString(*s.Bridges.ActiveBridge)
	}

	results := make(ir.IRArray, len(s.Vault.SearchResults))
	for i, r := range s.Vault.SearchResults {
		results[i] = ir.Clone(r)
	}

	registered := make(ir.IRArray, len(s.Middleware.Registered))
	for i, r := range s.Middleware.Registered {
		registered[i] = r.ToIR()
	}

	return ir.IRObject{
		"context": ir.IRObject{
			"active":    stringsToIR(s.Context.Active),
			"hierarchy": hierarchy,
			"data":      data,
		},
		"brain": ir.IRObject{
			"current_context": ir.Clone(s.Brain.CurrentContext),
			"loaded_data":     ir.Clone(s.Brain.LoadedData),
			"focus_state":     ir.IRString(s.Brain.FocusState),
		},
		"vault": ir.IRObject{
			"search_results": results,
			"recent_files":   stringsToIR(s.Vault.RecentFiles),
		},
		"bridges": ir.IRObject{
			"active_bridge":    activeBridge,
			"restored_context": ir.Clone(s.Bridges.RestoredContext),
		},
		"middleware": ir.IRObject{
			"registered": registered,
		},
	}
}

// ToIR renders the rule view as {name, trigger_kind, trigger, actions}.
func (r RuleView) ToIR() ir.IRObject {
	actions := make(ir.IRArray, len(r.Actions))
	for i, a := range r.Actions {
		obj := ir.IRObject{"type": ir.IRString(a.Type)}
		if a.Payload != nil {
			obj["payload"] = ir.Clone(a.Payload)
		}
		actions[i] = obj
	}
	return ir.IRObject{
		"name":         ir.IRString(r.Name),
		"trigger_kind": ir.IRString(r.TriggerKind),
		"trigger":      ir.IRString(r.Trigger),
		"actions":      actions,
	}
}

// Hash returns the content hash of the state.
func (s State) Hash() (string, error) {
	return ir.StateHash(s.ToIR())
}

// MarshalJSON renders the state through ToIR.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToIR())
}

// Slice returns the IR rendering of a single slice by name, or false if the
// name is unknown.
func (s State) Slice(name string) (ir.IRValue, bool) {
	v, ok := s.ToIR()[name]
	return v, ok
}

func stringsToIR(ss []string) ir.IRArray {
	out := make(ir.IRArray, len(ss))
	for i, s := range ss {
		out[i] = ir.IRString(s)
	}
	return out
}
