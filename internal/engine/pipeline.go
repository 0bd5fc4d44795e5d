package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/float/internal/gateway"
	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rules"
	"github.com/roach88/float/internal/state"
)

// workItem is one entry on the dispatch stack. A visit runs rule
// evaluation for action; the matching reduce item, pushed beneath the
// children, applies the reducer and launches effects once every child has
// been handled.
type workItem struct {
	action ir.Action
	depth  int

	// rule fired action; empty for the top-level action.
	rule string

	// path is the firing path of the parent. At visit time the item's own
	// (rule, signature) is checked against it, then appended.
	path *firingPath

	reduce bool
}

// chain is the per-dispatch bookkeeping of runChain.
type chain struct {
	id     string
	origin Origin
	rules  []*rules.Rule
	quota  *QuotaEnforcer
	result Result
}

// runChain processes one top-level action and its rule cascade.
//
// For each action: every matching rule's actions are processed in
// registration then list order, then the action's own reducer step is
// applied and its effects are launched. A recursion guard violation halts
// the chain; reducer steps applied before it stay committed and pending
// reduces are dropped along with their effects.
//
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) runChain(ctx context.Context, req request) (Result, error) {
	c := &chain{
		id:     e.ids.Generate(),
		origin: req.origin,
		rules:  e.rules.Snapshot(),
		quota:  NewQuotaEnforcer(e.maxSteps),
	}
	c.result.DispatchID = c.id

	slog.Debug("dispatch started",
		"dispatch_id", c.id,
		"action", req.action.Type,
		"origin", string(req.origin),
		"rules", len(c.rules),
	)

	stack := []workItem{{action: req.action}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.reduce {
			e.apply(ctx, c, item)
			continue
		}

		path, err := e.guard(c, item)
		if err != nil {
			return e.halt(c, err)
		}

		children := e.evaluateRules(ctx, c, item, path)

		stack = append(stack, workItem{
			action: item.action,
			depth:  item.depth,
			rule:   item.rule,
			reduce: true,
		})
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	c.result.State = e.State()
	return c.result, nil
}

// guard applies the recursion limits to a visit and returns the firing path
// for its children.
func (e *Engine) guard(c *chain, item workItem) (*firingPath, *RuntimeError) {
	if item.depth > e.maxDepth {
		return nil, NewDepthError(c.id, item.rule, item.action.Type, item.depth, e.maxDepth)
	}

	path := item.path
	if item.rule != "" {
		sig := signature(item.action)
		if path.contains(item.rule, sig) {
			return nil, NewCycleError(c.id, item.rule, item.action.Type, append(path.rules(), item.rule))
		}
		path = path.extend(item.rule, sig)
	}

	if err := c.quota.Check(c.id); err != nil {
		return nil, NewQuotaError(err.(*StepsExceededError), item.rule, item.action.Type)
	}
	return path, nil
}

// evaluateRules returns the visits fired by every rule matching item, in
// registration order then action order.
func (e *Engine) evaluateRules(ctx context.Context, c *chain, item workItem, path *firingPath) []workItem {
	var children []workItem
	for _, r := range c.rules {
		ok, err := r.Match(ctx, item.action)
		if err != nil {
			e.report(c, Diagnostic{
				Kind:       DiagEvalFailure,
				DispatchID: c.id,
				ActionType: item.action.Type,
				Rule:       r.Name,
				Message:    "rule trigger failed, treating as non-matching",
				Err:        err,
			})
			continue
		}
		if !ok {
			continue
		}

		slog.Debug("rule matched",
			"dispatch_id", c.id,
			"rule", r.Name,
			"action", item.action.Type,
			"depth", item.depth,
		)
		for _, a := range r.ActionList() {
			children = append(children, workItem{
				action: a,
				depth:  item.depth + 1,
				rule:   r.Name,
				path:   path,
			})
		}
	}
	return children
}

// apply runs the reducer for item and records the step.
func (e *Engine) apply(ctx context.Context, c *chain, item workItem) {
	e.stateMu.Lock()
	next := state.Reduce(e.state, item.action)
	e.state = next
	e.stateMu.Unlock()

	hash, err := next.Hash()
	if err != nil {
		// Unreachable for validated payloads; the step is still recorded.
		slog.Error("state hash failed", "dispatch_id", c.id, "error", err)
	}

	origin := c.origin
	if item.depth > 0 {
		origin = OriginRule
	}
	step := Step{
		DispatchID: c.id,
		Seq:        e.clock.Next(),
		Depth:      item.depth,
		Origin:     origin,
		Rule:       item.rule,
		Action:     item.action,
		StateHash:  hash,
	}
	c.result.Steps = append(c.result.Steps, step)
	e.launchEffects(c, item.action)

	slog.Debug("step applied",
		"dispatch_id", c.id,
		"seq", step.Seq,
		"action", item.action.Type,
		"depth", item.depth,
	)

	if e.journal == nil {
		return
	}
	if err := e.journal.AppendStep(ctx, step); err != nil {
		e.report(c, Diagnostic{
			Kind:       DiagJournalError,
			DispatchID: c.id,
			ActionType: item.action.Type,
			Rule:       item.rule,
			Message:    fmt.Sprintf("journal append failed at seq %d", step.Seq),
			Err:        err,
		})
	}
}

// halt ends the chain with a recursion guard error.
func (e *Engine) halt(c *chain, err *RuntimeError) (Result, error) {
	msg := err.Message
	if path := err.Details["path"]; path != "" {
		msg += ": " + path
	}
	e.report(c, Diagnostic{
		Kind:       DiagRecursionLimit,
		DispatchID: c.id,
		ActionType: err.ActionType,
		Rule:       err.Rule,
		Message:    msg,
		Err:        err,
	})
	c.result.Err = err
	c.result.State = e.State()
	return c.result, err
}

// launchEffects starts a tool call for every effect intercepting a, once
// a's reducer step is applied. Calls never block the chain.
func (e *Engine) launchEffects(c *chain, a ir.Action) {
	for _, eff := range e.effects {
		if !eff.Matches(a) {
			continue
		}

		if e.invoker == nil || !e.invoker.IsAvailable(eff.Provider) {
			e.report(c, Diagnostic{
				Kind:       DiagProviderUnavailable,
				DispatchID: c.id,
				ActionType: a.Type,
				Provider:   eff.Provider,
				Effect:     eff.Name,
				Message:    "provider unavailable, skipping effect",
				Err:        fmt.Errorf("%w: %s", gateway.ErrProviderUnavailable, eff.Provider),
			})
			continue
		}

		e.pending.Add(1)
		go e.runEffect(c.id, eff, a.Clone(), eff.Args(a))
	}
}

// runEffect performs one tool call and queues its completion.
func (e *Engine) runEffect(dispatchID string, eff Effect, a ir.Action, args ir.IRObject) {
	defer e.pending.Add(-1)

	result, err := e.invoker.Invoke(context.Background(), eff.Provider, eff.Tool, args)
	if err != nil {
		e.emit(Diagnostic{
			Kind:       DiagGatewayError,
			DispatchID: dispatchID,
			ActionType: a.Type,
			Provider:   eff.Provider,
			Effect:     eff.Name,
			Message:    "effect tool call failed",
			Err:        err,
		})
		return
	}

	completion := eff.Complete(a, result)
	if err := ir.ValidateAction(completion); err != nil {
		e.emit(Diagnostic{
			Kind:       DiagInvalidCompletion,
			DispatchID: dispatchID,
			ActionType: completion.Type,
			Provider:   eff.Provider,
			Effect:     eff.Name,
			Message:    "effect produced an invalid action, dropping it",
			Err:        err,
		})
		return
	}

	slog.Debug("effect completed",
		"dispatch_id", dispatchID,
		"effect", eff.Name,
		"completion", completion.Type,
	)
	e.pending.Add(1)
	e.enqueueAsync(completion)
}

// report records d on the chain result and emits it.
func (e *Engine) report(c *chain, d Diagnostic) {
	c.result.Diagnostics = append(c.result.Diagnostics, d)
	e.emit(d)
}

// signature identifies an action for cycle detection.
func signature(a ir.Action) string {
	sig, err := ir.ActionSignature(a)
	if err != nil {
		return a.String()
	}
	return sig
}
