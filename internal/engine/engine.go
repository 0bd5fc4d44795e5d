package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/float/internal/compiler"
	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rules"
	"github.com/roach88/float/internal/state"
)

// RegisterActionType is the internal action that records a registered rule
// in the middleware slice.
const RegisterActionType = "middleware/register"

// RuleCompiler turns a description into a rule. *compiler.Compiler
// satisfies it.
type RuleCompiler interface {
	Compile(ctx context.Context, text string) (*rules.Rule, error)
}

// Engine is the single-writer dispatch loop.
//
// Every state transition and every rule registration happens in the Run
// goroutine, so rule evaluation sees one consistent rule list per dispatch
// and reducer steps are totally ordered.
//
// Thread-safety model:
//   - Dispatch, Register, RegisterRule, State, Rules, Settle: any goroutine
//   - Run: exactly one goroutine
//
// Effect tool calls run on their own goroutines and re-enter through the
// queue; they never touch state directly.
type Engine struct {
	stateMu sync.RWMutex
	state   state.State

	rules    *rules.Store
	compiler RuleCompiler
	invoker  Invoker
	effects  []Effect
	journal  Journal
	sink     DiagnosticSink

	queue *requestQueue
	clock *Clock
	ids   IDGenerator

	maxDepth int
	maxSteps int

	// pending counts effect calls in flight plus queued effect completions.
	pending atomic.Int64

	done     chan struct{}
	doneOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSteps sets the step quota per top-level dispatch.
//
// Default: 1000 steps (DefaultMaxSteps)
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		if maxSteps > 0 {
			e.maxSteps = maxSteps
		}
	}
}

// WithMaxDepth sets the maximum rule nesting depth.
//
// Default: 32 (DefaultMaxDepth)
func WithMaxDepth(maxDepth int) Option {
	return func(e *Engine) {
		if maxDepth > 0 {
			e.maxDepth = maxDepth
		}
	}
}

// WithInvoker sets the gateway effects call through. Without one every
// effect reports its provider unavailable.
func WithInvoker(inv Invoker) Option {
	return func(e *Engine) { e.invoker = inv }
}

// WithEffects replaces the built-in effects.
func WithEffects(effects ...Effect) Option {
	return func(e *Engine) { e.effects = effects }
}

// WithCompiler sets the compiler used by RegisterRule.
func WithCompiler(c RuleCompiler) Option {
	return func(e *Engine) { e.compiler = c }
}

// WithJournal records every applied step.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithDiagnosticSink receives every diagnostic in addition to the log.
func WithDiagnosticSink(sink DiagnosticSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithIDGenerator sets the dispatch ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// New creates an engine with the initial state and no rules.
func New(opts ...Option) *Engine {
	e := &Engine{
		state:    state.New(),
		rules:    rules.NewStore(),
		compiler: compiler.NewDefault(nil),
		effects:  DefaultEffects(DefaultEffectsConfig()),
		queue:    newRequestQueue(),
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		maxDepth: DefaultMaxDepth,
		maxSteps: DefaultMaxSteps,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts the single-writer loop. Blocks until ctx is cancelled or Stop
// is called and the queue has drained.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")
	defer e.shutdown()

	for {
		req, ok := e.queue.TryDequeue()
		if ok {
			e.process(ctx, req)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel is closed by Stop, which makes this case
			// fire immediately.
			if e.queue.Len() == 0 && e.queue.isClosed() {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run processes what is already queued and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

// shutdown fails every request still queued and releases waiters.
func (e *Engine) shutdown() {
	e.queue.Close()
	for _, req := range e.queue.Drain() {
		if req.reply != nil {
			req.reply <- outcome{err: ErrEngineStopped}
			continue
		}
		e.pending.Add(-1)
	}
	e.doneOnce.Do(func() { close(e.done) })
}

// Dispatch validates a and runs it through the pipeline. It returns once
// the synchronous cascade is complete; asynchronous effect completions are
// dispatched later. The returned error is a *ir.ValidationError for a
// rejected action, a *RuntimeError when the recursion guard halted the
// cascade, or a context or ErrEngineStopped error.
func (e *Engine) Dispatch(ctx context.Context, a ir.Action) (Result, error) {
	if err := ir.ValidateAction(a); err != nil {
		slog.Warn("dispatch rejected",
			"action", a.Type,
			"error", err,
			"event", "dispatch_rejected",
		)
		return Result{}, err
	}
	return e.submit(ctx, request{action: a.Clone(), origin: OriginExternal})
}

// Register dispatches middleware/register describing r and then appends r
// to the rule list. The register dispatch evaluates the rules that existed
// before it, so r never fires on its own registration. If that dispatch
// halts, r is not registered and the error is returned. The rule is
// visible to every dispatch processed after a successful registration.
func (e *Engine) Register(ctx context.Context, r *rules.Rule) (Result, error) {
	if r == nil {
		return Result{}, fmt.Errorf("%w: nil rule", rules.ErrInvalidRule)
	}
	a := ir.NewAction(RegisterActionType, r.ToIR())
	if err := ir.ValidatePayload(a); err != nil {
		return Result{}, err
	}
	return e.submit(ctx, request{action: a, origin: OriginInternal, rule: r})
}

// RegisterRule compiles description and registers the result. Compilation
// runs on the caller's goroutine; a failure leaves the rule list untouched
// and is returned as a *compiler.CompileFailure.
func (e *Engine) RegisterRule(ctx context.Context, description string) (*rules.Rule, Result, error) {
	if e.compiler == nil {
		return nil, Result{}, fmt.Errorf("register rule: no compiler configured")
	}
	r, err := e.compiler.Compile(ctx, description)
	if err != nil {
		return nil, Result{}, err
	}
	res, err := e.Register(ctx, r)
	return r, res, err
}

// State returns a deep copy of the current state.
func (e *Engine) State() state.State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state.Clone()
}

// Rules returns the registered rules in registration order.
func (e *Engine) Rules() []*rules.Rule {
	return e.rules.Snapshot()
}

// Clock returns the step clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Settle blocks until no effect call is in flight and every effect
// completion has been processed.
func (e *Engine) Settle(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		if e.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return ErrEngineStopped
		case <-ticker.C:
		}
	}
}

// submit enqueues req and waits for its outcome.
func (e *Engine) submit(ctx context.Context, req request) (Result, error) {
	reply := make(chan outcome, 1)
	req.reply = reply
	if !e.queue.Enqueue(req) {
		return Result{}, ErrEngineStopped
	}

	select {
	case out := <-reply:
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-e.done:
		select {
		case out := <-reply:
			return out.result, out.err
		default:
			return Result{}, ErrEngineStopped
		}
	}
}

// enqueueAsync queues an effect completion. The caller has already counted
// it in pending.
func (e *Engine) enqueueAsync(a ir.Action) {
	if !e.queue.Enqueue(request{action: a, origin: OriginEffect}) {
		e.pending.Add(-1)
		slog.Warn("engine stopped, dropping effect completion", "action", a.Type)
	}
}

// process handles one request.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) process(ctx context.Context, req request) {
	if req.reply == nil {
		defer e.pending.Add(-1)
	}

	res, err := e.runChain(ctx, req)
	if req.rule != nil {
		res.Diagnostics = append(res.Diagnostics, e.commitRule(ctx, req.rule, err)...)
	}

	if err != nil {
		slog.Error("dispatch halted",
			"dispatch_id", res.DispatchID,
			"action", req.action.Type,
			"origin", string(req.origin),
			"error", err,
			"event", "dispatch_halted",
		)
	}

	if req.reply != nil {
		req.reply <- outcome{result: res, err: err}
	}
}

// commitRule adds r to the rule list once its middleware/register step has
// been applied. A halted register chain drops that step, so the rule is
// discarded with it and the list keeps matching the middleware view.
func (e *Engine) commitRule(ctx context.Context, r *rules.Rule, chainErr error) []Diagnostic {
	if chainErr != nil {
		slog.Warn("rule discarded",
			"rule", r.Name,
			"error", chainErr,
			"event", "rule_discarded",
		)
		return nil
	}

	idx := e.rules.Append(r)
	slog.Info("rule registered",
		"rule", r.Name,
		"index", idx,
		"compiled_by", r.CompiledBy,
		"event", "rule_registered",
	)
	return e.cycleWarnings(ctx, r.Name)
}

// cycleWarnings reports statically detected cycles that involve rule.
func (e *Engine) cycleWarnings(ctx context.Context, rule string) []Diagnostic {
	var out []Diagnostic
	for _, w := range rules.AnalyzeCycles(ctx, e.rules.Snapshot()) {
		involved := false
		for _, name := range w.Path {
			if name == rule {
				involved = true
				break
			}
		}
		if !involved {
			continue
		}
		d := Diagnostic{
			Kind:    DiagCycleWarning,
			Rule:    rule,
			Message: w.Message,
		}
		e.emit(d)
		out = append(out, d)
	}
	return out
}

// emit logs d and forwards it to the sink.
func (e *Engine) emit(d Diagnostic) {
	logDiagnostic(d)
	if e.sink != nil {
		e.sink(d)
	}
}
