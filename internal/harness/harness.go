package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/float/internal/compiler"
	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/gateway"
	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/rulefile"
	"github.com/roach88/float/internal/testutil"
)

// errStubUnavailable is the connect error of providers marked unavailable.
var errStubUnavailable = errors.New("provider marked unavailable by scenario")

// recorder collects journaled steps and diagnostics from any goroutine.
type recorder struct {
	mu    sync.Mutex
	trace []TraceEvent
	diags []engine.Diagnostic
}

func (r *recorder) AppendStep(_ context.Context, s engine.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = append(r.trace, traceEventFromStep(s))
	return nil
}

func (r *recorder) diagnostic(d engine.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
}

func (r *recorder) snapshot() ([]TraceEvent, []engine.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trace := slices.Clone(r.trace)
	sort.SliceStable(trace, func(i, j int) bool { return trace[i].Seq < trace[j].Seq })
	return trace, slices.Clone(r.diags)
}

// Harness is one scenario execution.
type Harness struct {
	engine *engine.Engine
	rec    *recorder
	logger *slog.Logger
}

// Run executes a scenario against a fresh engine and returns the result.
// The returned error is reserved for setup failures; failed expectations
// are reported in Result.Errors.
//
// Execution flow:
//  1. Connect the fake providers
//  2. Start an engine wired to them
//  3. Register the scenario rules
//  4. Execute flow steps, settling effects after each
//  5. Evaluate assertions against the trace, diagnostics and final state
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	gw, err := connectProviders(ctx, scenario.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect providers: %w", err)
	}
	defer gw.Close()

	rec := &recorder{}
	opts := []engine.Option{
		engine.WithIDGenerator(engine.NewSequenceGenerator("")),
		engine.WithInvoker(gw),
		engine.WithJournal(rec),
		engine.WithDiagnosticSink(rec.diagnostic),
		engine.WithCompiler(compiler.NewDefault(testutil.NewFakeCompleter(scenario.Completions...))),
	}
	if l := scenario.Dispatch; l != nil {
		opts = append(opts, engine.WithMaxDepth(l.MaxDepth), engine.WithMaxSteps(l.MaxSteps))
	}

	eng := engine.New(opts...)
	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- eng.Run(runCtx) }()
	defer func() {
		cancel()
		<-errCh
	}()

	h := &Harness{
		engine: eng,
		rec:    rec,
		logger: slog.Default().With("scenario", scenario.Name),
	}

	result := NewResult()
	if err := h.registerRules(ctx, scenario.Rules); err != nil {
		return nil, err
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, err
	}

	result.Trace, result.Diagnostics = rec.snapshot()
	result.State = eng.State()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// connectProviders builds a gateway over fake providers, in name order.
func connectProviders(ctx context.Context, stubs map[string]ProviderStub) (*gateway.Gateway, error) {
	names := make([]string, 0, len(stubs))
	for name := range stubs {
		names = append(names, name)
	}
	sort.Strings(names)

	providers := make([]gateway.Provider, 0, len(names))
	for _, name := range names {
		stub := stubs[name]
		p := testutil.NewFakeProvider(name)
		if stub.Unavailable {
			p.FailConnect(errStubUnavailable)
		}

		switch {
		case stub.Error != "":
			msg := stub.Error
			p.OnCall(func(context.Context, string, ir.IRObject) (ir.IRValue, error) {
				return nil, errors.New(msg)
			})
		case stub.Result != nil:
			result, err := ir.FromAny(stub.Result)
			if err != nil {
				return nil, fmt.Errorf("providers.%s.result: %w", name, err)
			}
			p.OnCall(func(context.Context, string, ir.IRObject) (ir.IRValue, error) {
				return ir.Clone(result), nil
			})
		}
		providers = append(providers, p)
	}

	gw := gateway.New(providers)
	if err := gw.Connect(ctx); err != nil {
		return nil, err
	}
	return gw, nil
}

// registerRules registers the scenario rules before the flow. Every rule
// must register.
func (h *Harness) registerRules(ctx context.Context, entries []rulefile.Entry) error {
	rep := rulefile.NewLoader(h.engine).Apply(ctx, entries)
	if len(rep.Failed) > 0 {
		f := rep.Failed[0]
		return fmt.Errorf("rules[%d]: %w", f.Index, f.Err)
	}
	if err := h.engine.Settle(ctx); err != nil {
		return fmt.Errorf("settle after rules: %w", err)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		res, err := h.executeStep(ctx, step)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("flow step %d: %w", i, ctxErr)
		}

		if settleErr := h.engine.Settle(ctx); settleErr != nil {
			return fmt.Errorf("flow step %d: settle: %w", i, settleErr)
		}

		checkExpect(i, step, res, err, result)

		h.logger.Debug("flow step completed",
			"step", i,
			"dispatch", step.Dispatch,
			"register", step.Register,
			"dispatch_id", res.DispatchID,
			"steps", len(res.Steps),
			"error", err,
		)
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, step FlowStep) (engine.Result, error) {
	if step.Register != "" {
		_, res, err := h.engine.RegisterRule(ctx, step.Register)
		return res, err
	}

	var payload ir.IRValue
	if step.Payload != nil {
		v, err := ir.FromAny(step.Payload)
		if err != nil {
			return engine.Result{}, &ir.ValidationError{Field: "payload", Message: err.Error(), Code: ir.ErrPayloadContract, Err: err}
		}
		payload = v
	}
	return h.engine.Dispatch(ctx, ir.NewAction(step.Dispatch, payload))
}

// checkExpect compares a step outcome with its expect clause. A step
// without one must succeed.
func checkExpect(i int, step FlowStep, res engine.Result, err error, result *Result) {
	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	got := errorClass(err)
	if got != want {
		switch {
		case want == "":
			result.AddError(fmt.Sprintf("flow[%d]: unexpected error: %v", i, err))
		case err == nil:
			result.AddError(fmt.Sprintf("flow[%d]: expected %s error, step succeeded", i, want))
		default:
			result.AddError(fmt.Sprintf("flow[%d]: expected %s error, got %v", i, want, err))
		}
	}

	if step.Expect == nil || step.Expect.Steps == nil {
		return
	}
	applied := make([]string, len(res.Steps))
	for j, s := range res.Steps {
		applied[j] = s.Action.Type
	}
	if !slices.Equal(applied, step.Expect.Steps) {
		result.AddError(fmt.Sprintf("flow[%d]: expected steps %v, got %v", i, step.Expect.Steps, applied))
	}
}

// errorClass maps a step error to its expect class. Unclassified errors
// return their message so they never match a class.
func errorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case ir.IsValidationError(err):
		return ErrorValidation
	case engine.IsRecursionLimit(err):
		return ErrorRecursionLimit
	case compiler.IsCompileFailure(err):
		return ErrorCompileFailure
	default:
		return err.Error()
	}
}
