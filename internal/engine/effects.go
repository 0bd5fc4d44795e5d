package engine

import (
	"context"

	"github.com/roach88/float/internal/ir"
)

// Invoker is the gateway surface effects need. *gateway.Gateway satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, provider, tool string, args ir.IRObject) (ir.IRValue, error)
	IsAvailable(provider string) bool
}

// Effect is a side-effect interceptor: an action of ActionType starts an
// asynchronous Tool call on Provider, and a successful result is turned into
// a synthesized action by Complete and dispatched later.
type Effect struct {
	Name       string
	ActionType string
	Provider   string
	Tool       string

	// Args builds the tool arguments from the intercepted action.
	Args func(a ir.Action) ir.IRObject

	// Complete builds the synthesized action from the tool result.
	Complete func(a ir.Action, result ir.IRValue) ir.Action
}

// Matches reports whether e intercepts a.
func (e Effect) Matches(a ir.Action) bool {
	return a.Type == e.ActionType
}

// EffectsConfig parameterizes the built-in effects.
type EffectsConfig struct {
	Provider             string `yaml:"provider"`
	Tool                 string `yaml:"tool"`
	DispatchCollection   string `yaml:"dispatch_collection"`
	DispatchResults      int    `yaml:"dispatch_results"`
	ContinuityCollection string `yaml:"continuity_collection"`
	ContinuityResults    int    `yaml:"continuity_results"`
}

// DefaultEffectsConfig returns the built-in chroma wiring.
func DefaultEffectsConfig() EffectsConfig {
	return EffectsConfig{
		Provider:             "chroma",
		Tool:                 "chroma_query_documents",
		DispatchCollection:   "float_dispatch_bay",
		DispatchResults:      5,
		ContinuityCollection: "float_continuity_anchors",
		ContinuityResults:    10,
	}
}

// DefaultEffects returns the built-in interceptors: chroma/search and
// bridges/restore.
func DefaultEffects(cfg EffectsConfig) []Effect {
	return []Effect{ChromaSearchEffect(cfg), BridgeRestoreEffect(cfg)}
}

// ChromaSearchEffect queries the dispatch collection for payload.query and
// completes with vault/search_complete carrying the raw result. The payload
// may override the collection and the result count.
func ChromaSearchEffect(cfg EffectsConfig) Effect {
	return Effect{
		Name:       "chroma_search",
		ActionType: "chroma/search",
		Provider:   cfg.Provider,
		Tool:       cfg.Tool,
		Args: func(a ir.Action) ir.IRObject {
			p := a.PayloadObject()
			collection := cfg.DispatchCollection
			if c := p.StringField("collection"); c != "" {
				collection = c
			}
			n := ir.IRValue(ir.IRInt(cfg.DispatchResults))
			if v, ok := p["n_results"].(ir.IRInt); ok {
				n = v
			}
			return ir.IRObject{
				"collection_name": ir.IRString(collection),
				"query_texts":     ir.IRArray{ir.IRString(p.StringField("query"))},
				"n_results":       n,
			}
		},
		Complete: func(_ ir.Action, result ir.IRValue) ir.Action {
			return ir.NewAction("vault/search_complete", result)
		},
	}
}

// BridgeRestoreEffect looks a bridge up in the continuity collection and
// completes with bridges/restore_complete {bridge_id, context}.
func BridgeRestoreEffect(cfg EffectsConfig) Effect {
	return Effect{
		Name:       "bridge_restore",
		ActionType: "bridges/restore",
		Provider:   cfg.Provider,
		Tool:       cfg.Tool,
		Args: func(a ir.Action) ir.IRObject {
			id := a.PayloadObject().StringField("bridge_id")
			return ir.IRObject{
				"collection_name": ir.IRString(cfg.ContinuityCollection),
				"query_texts":     ir.IRArray{ir.IRString("bridge " + id), ir.IRString(id)},
				"where":           ir.IRObject{"bridge_id": ir.IRString(id)},
				"n_results":       ir.IRInt(cfg.ContinuityResults),
			}
		},
		Complete: func(a ir.Action, result ir.IRValue) ir.Action {
			return ir.NewAction("bridges/restore_complete", ir.IRObject{
				"bridge_id": ir.IRString(a.PayloadObject().StringField("bridge_id")),
				"context":   result,
			})
		},
	}
}
