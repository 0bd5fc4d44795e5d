package state

import (
	"fmt"
	"slices"

	"github.com/roach88/float/internal/ir"
)

// Domains with reducers.
const (
	DomainContext    = "context"
	DomainBrain      = "brain"
	DomainVault      = "vault"
	DomainBridges    = "bridges"
	DomainMiddleware = "middleware"
)

// Reduce applies a to s and returns the new state. It never mutates s and
// the result shares no mutable memory with it. Unknown domains and unknown
// verbs return an unchanged copy.
func Reduce(s State, a ir.Action) State {
	next := s.Clone()
	payload := a.PayloadObject()

	switch a.Domain() {
	case DomainContext:
		next.Context = reduceContext(next.Context, a.Verb(), payload)
	case DomainBrain:
		next.Brain = reduceBrain(next.Brain, a.Verb(), a.Payload)
	case DomainVault:
		next.Vault = reduceVault(next.Vault, a.Verb(), a.Payload)
	case DomainBridges:
		next.Bridges = reduceBridges(next.Bridges, a.Verb(), payload)
	case DomainMiddleware:
		next.Middleware = reduceMiddleware(next.Middleware, a.Verb(), payload)
	}
	return next
}

func reduceContext(c ContextSlice, verb string, p ir.IRObject) ContextSlice {
	switch verb {
	case "load":
		if id := p.StringField("context"); id != "" && !slices.Contains(c.Active, id) {
			c.Active = append(c.Active, id)
		}
	case "unload":
		if id := p.StringField("context"); id != "" {
			c.Active = slices.DeleteFunc(c.Active, func(s string) bool { return s == id })
		}
	case "link":
		parent, child := p.StringField("parent"), p.StringField("child")
		if parent != "" && child != "" && !slices.Contains(c.Hierarchy[parent], child) {
			c.Hierarchy[parent] = append(c.Hierarchy[parent], child)
		}
	case "store":
		if id := p.StringField("context"); id != "" {
			c.Data[id] = valueOrNull(p["data"])
		}
	}
	return c
}

func reduceBrain(b BrainSlice, verb string, payload ir.IRValue) BrainSlice {
	switch verb {
	case "boot":
		b.CurrentContext = valueOrNull(payload)
		b.FocusState = FocusActive
	case "boost_focus":
		b.FocusState = FocusBoosted
	case "load":
		if p, ok := payload.(ir.IRObject); ok {
			b.LoadedData = valueOrNull(p["data"])
		}
	case "idle":
		b.FocusState = FocusIdle
	}
	return b
}

func reduceVault(v VaultSlice, verb string, payload ir.IRValue) VaultSlice {
	switch verb {
	case "search":
		if p, ok := payload.(ir.IRObject); ok {
			v.SearchResults = []ir.IRValue{ir.IRString(fmt.Sprintf("Searching for: %s...", p.StringField("query")))}
		}
	case "search_complete":
		switch results := payload.(type) {
		case nil:
			v.SearchResults = []ir.IRValue{}
		case ir.IRArray:
			v.SearchResults = []ir.IRValue(ir.Clone(results).(ir.IRArray))
		default:
			v.SearchResults = []ir.IRValue{ir.Clone(results)}
		}
	case "touch":
		if p, ok := payload.(ir.IRObject); ok {
			if file := p.StringField("file"); file != "" {
				v.RecentFiles = touch(v.RecentFiles, file)
			}
		}
	}
	return v
}

// touch moves file to the front of recent, dropping duplicates and
// entries beyond MaxRecentFiles.
func touch(recent []string, file string) []string {
	out := make([]string, 0, min(len(recent)+1, MaxRecentFiles))
	out = append(out, file)
	for _, f := range recent {
		if len(out) == MaxRecentFiles {
			break
		}
		if f != file {
			out = append(out, f)
		}
	}
	return out
}

func reduceBridges(b BridgesSlice, verb string, p ir.IRObject) BridgesSlice {
	switch verb {
	case "restore":
		if id := p.StringField("bridge_id"); id != "" {
			b.ActiveBridge = &id
		}
	case "restore_complete":
		if id := p.StringField("bridge_id"); id != "" {
			b.ActiveBridge = &id
			b.RestoredContext = valueOrNull(p["context"])
		}
	}
	return b
}

func reduceMiddleware(m MiddlewareSlice, verb string, p ir.IRObject) MiddlewareSlice {
	if verb != "register" || p == nil {
		return m
	}
	view, ok := RuleViewFromIR(p)
	if !ok {
		return m
	}
	m.Registered = append(m.Registered, view)
	return m
}

// RuleViewFromIR parses a middleware/register payload
// {name, trigger_kind, trigger, actions}. It reports false if name is
// missing or actions is not an array of {type, payload?} objects.
func RuleViewFromIR(p ir.IRObject) (RuleView, bool) {
	name := p.StringField("name")
	rawActions, ok := p["actions"].(ir.IRArray)
	if name == "" || !ok {
		return RuleView{}, false
	}

	actions := make([]ir.Action, 0, len(rawActions))
	for _, raw := range rawActions {
		obj, ok := raw.(ir.IRObject)
		if !ok || obj.StringField("type") == "" {
			return RuleView{}, false
		}
		actions = append(actions, ir.NewAction(obj.StringField("type"), obj["payload"]))
	}

	return RuleView{
		Name:        name,
		TriggerKind: p.StringField("trigger_kind"),
		Trigger:     p.StringField("trigger"),
		Actions:     actions,
	}, true
}

func valueOrNull(v ir.IRValue) ir.IRValue {
	if v == nil {
		return ir.IRNull{}
	}
	return ir.Clone(v)
}
