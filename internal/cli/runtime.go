package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/float/internal/compiler"
	"github.com/roach88/float/internal/config"
	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/gateway"
	"github.com/roach88/float/internal/llm"
	"github.com/roach88/float/internal/rulefile"
	"github.com/roach88/float/internal/store"
)

// runtimeOptions selects which parts of the configuration are wired.
type runtimeOptions struct {
	// Offline skips provider connections; every effect degrades.
	Offline bool

	// JournalPath overrides cfg.Journal.Path when set. NoJournal disables
	// journaling regardless of either.
	JournalPath string
	NoJournal   bool

	// Journal receives every step in addition to the store.
	Journal engine.Journal

	// Diagnostics receives every diagnostic in addition to the store.
	Diagnostics engine.DiagnosticSink
}

// runtime is a running engine with its gateway, journal and rules loader.
type runtime struct {
	Engine *engine.Engine
	Loader *rulefile.Loader

	gateway *gateway.Gateway
	journal *store.Store

	cancel context.CancelFunc
	runErr chan error
	wg     sync.WaitGroup
}

// startRuntime wires cfg into a running engine. Provider and completer
// failures degrade the runtime; journal and rules file failures are fatal.
func startRuntime(ctx context.Context, cfg config.Config, ro runtimeOptions) (rt *runtime, err error) {
	rt = &runtime{runErr: make(chan error, 1)}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	completer, cerr := llm.New(ctx, cfg.Compiler)
	if cerr != nil {
		slog.Warn("completion backend unavailable, compiling with patterns only",
			"backend", string(cfg.Compiler.Backend),
			"error", cerr,
			"event", "completer_unavailable",
		)
		completer = nil
	}

	opts := []engine.Option{
		engine.WithMaxDepth(cfg.Dispatch.MaxDepth),
		engine.WithMaxSteps(cfg.Dispatch.MaxSteps),
		engine.WithEffects(engine.DefaultEffects(cfg.Effects)...),
		engine.WithCompiler(compiler.NewDefault(completer)),
	}

	if !ro.Offline {
		rt.gateway = newGateway(cfg.Gateway)
		if err := rt.gateway.Connect(ctx); err != nil {
			return rt, fmt.Errorf("connect providers: %w", err)
		}
		opts = append(opts, engine.WithInvoker(rt.gateway))
	}

	path := cfg.Journal.Path
	if ro.JournalPath != "" {
		path = ro.JournalPath
	}
	var (
		journals []engine.Journal
		sinks    []engine.DiagnosticSink
	)
	if path != "" && !ro.NoJournal {
		st, err := openJournal(ctx, path)
		if err != nil {
			return rt, err
		}
		rt.journal = st
		journals = append(journals, st)
		sinks = append(sinks, st.DiagnosticSink())
	}
	if ro.Journal != nil {
		journals = append(journals, ro.Journal)
	}
	if ro.Diagnostics != nil {
		sinks = append(sinks, ro.Diagnostics)
	}
	if len(journals) > 0 {
		opts = append(opts, engine.WithJournal(teeJournal(journals)))
	}
	if len(sinks) > 0 {
		opts = append(opts, engine.WithDiagnosticSink(func(d engine.Diagnostic) {
			for _, sink := range sinks {
				sink(d)
			}
		}))
	}

	rt.Engine = engine.New(opts...)
	runCtx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	go func() { rt.runErr <- rt.Engine.Run(runCtx) }()

	rt.Loader = rulefile.NewLoader(rt.Engine)
	if cfg.Rules.File != "" {
		if _, err := rt.Loader.LoadFile(ctx, cfg.Rules.File); err != nil {
			return rt, err
		}
		if cfg.Rules.Watch {
			rt.wg.Add(1)
			go func() {
				defer rt.wg.Done()
				if err := rt.Loader.Watch(runCtx, cfg.Rules.File, rulefile.DefaultDebounce); err != nil {
					slog.Error("rules watcher stopped", "file", cfg.Rules.File, "error", err)
				}
			}()
		}
	}
	return rt, nil
}

// Close stops the engine and releases providers and the journal.
func (rt *runtime) Close() error {
	var errs []error
	if rt.cancel != nil {
		rt.cancel()
		if err := <-rt.runErr; err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
		rt.cancel = nil
	}
	rt.wg.Wait()
	if rt.gateway != nil {
		errs = append(errs, rt.gateway.Close())
		rt.gateway = nil
	}
	if rt.journal != nil {
		errs = append(errs, rt.journal.Close())
		rt.journal = nil
	}
	return errors.Join(errs...)
}

func newGateway(cfg config.GatewayConfig) *gateway.Gateway {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	slices.Sort(names)

	providers := make([]gateway.Provider, 0, len(names))
	for _, name := range names {
		providers = append(providers, gateway.NewMCPProvider(name, cfg.Providers[name]))
	}
	return gateway.New(providers, gateway.WithTimeout(cfg.Timeout))
}

// openJournal opens the journal and clears the previous process's steps.
func openJournal(ctx context.Context, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := st.Reset(ctx); err != nil {
		st.Close()
		return nil, err
	}
	slog.Info("journal ready", "path", path)
	return st, nil
}

// teeJournal appends every step to each journal in order and joins the
// errors.
func teeJournal(js []engine.Journal) engine.Journal {
	if len(js) == 1 {
		return js[0]
	}
	return engine.JournalFunc(func(ctx context.Context, step engine.Step) error {
		var errs []error
		for _, j := range js {
			errs = append(errs, j.AppendStep(ctx, step))
		}
		return errors.Join(errs...)
	})
}
