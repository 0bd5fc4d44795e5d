package rulefile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/rules"
)

// Registrar is the engine surface the loader needs. *engine.Engine
// satisfies it.
type Registrar interface {
	Register(ctx context.Context, r *rules.Rule) (engine.Result, error)
	RegisterRule(ctx context.Context, description string) (*rules.Rule, engine.Result, error)
}

// Report summarizes one Apply.
type Report struct {
	Registered []string
	Skipped    int
	Failed     []EntryError
}

// EntryError is an entry that could not be registered. It is retried on the
// next Apply.
type EntryError struct {
	Index int
	Entry Entry
	Err   error
}

func (e EntryError) Error() string {
	return e.Err.Error()
}

// Loader registers file entries at most once each.
//
// Thread-safety: Apply may be called from any goroutine; calls are
// serialized.
type Loader struct {
	reg Registrar

	mu   sync.Mutex
	seen map[string]bool
}

// NewLoader creates a loader registering into reg.
func NewLoader(reg Registrar) *Loader {
	return &Loader{reg: reg, seen: make(map[string]bool)}
}

// Apply registers every entry not registered by an earlier Apply, in file
// order. A failing entry is reported and does not stop the others.
func (l *Loader) Apply(ctx context.Context, entries []Entry) Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	var rep Report
	for i, e := range entries {
		key := e.Key()
		if l.seen[key] {
			rep.Skipped++
			continue
		}

		name, err := l.register(ctx, e)
		if err != nil {
			slog.Warn("rule entry not registered",
				"index", i,
				"error", err,
				"event", "rule_entry_failed",
			)
			rep.Failed = append(rep.Failed, EntryError{Index: i, Entry: e, Err: err})
			continue
		}
		l.seen[key] = true
		rep.Registered = append(rep.Registered, name)
	}
	return rep
}

// LoadFile reads path and applies it.
func (l *Loader) LoadFile(ctx context.Context, path string) (Report, error) {
	entries, err := Load(path)
	if err != nil {
		return Report{}, err
	}
	rep := l.Apply(ctx, entries)
	slog.Info("rules file loaded",
		"file", path,
		"registered", len(rep.Registered),
		"skipped", rep.Skipped,
		"failed", len(rep.Failed),
	)
	return rep, nil
}

func (l *Loader) register(ctx context.Context, e Entry) (string, error) {
	if e.IsDescription() {
		r, _, err := l.reg.RegisterRule(ctx, e.Description)
		if err != nil {
			return "", err
		}
		return r.Name, nil
	}

	r, err := e.Rule()
	if err != nil {
		return "", err
	}
	if _, err := l.reg.Register(ctx, r); err != nil {
		return "", err
	}
	return r.Name, nil
}
