package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/ir"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Journal string
	Offline bool
	Wait    time.Duration
}

// DispatchOutput is the JSON payload of the dispatch command.
type DispatchOutput struct {
	DispatchID  string              `json:"dispatch_id"`
	Steps       []engine.Step       `json:"steps"`
	Diagnostics []engine.Diagnostic `json:"diagnostics"`
	State       json.RawMessage     `json:"state"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch <type> [payload-json]",
		Short: "Dispatch one action against a fresh store",
		Long: `Start an engine with the configured rules and providers, dispatch one
action, wait for its effects to settle, and print every applied step with
the final state.

Steps include those produced later by effect completions. Without --journal
nothing is persisted.

Exit codes:
  0 - Dispatch completed
  1 - Dispatch rejected or halted by the recursion guard
  2 - Command error (invalid payload, config, etc.)

Examples:
  float dispatch vault/touch '{"file": "notes/go.md"}'
  float dispatch context/load '{"context": "react"}' --offline --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := ""
			if len(args) == 2 {
				payload = args[1]
			}
			return runDispatch(opts, cmd, args[0], payload)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to a SQLite journal to record into")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "do not start tool providers")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 30*time.Second, "how long to wait for effects to settle")

	return cmd
}

// stepRecorder collects journaled steps and diagnostics, including those
// of effect completions.
type stepRecorder struct {
	mu    sync.Mutex
	steps []engine.Step
	diags []engine.Diagnostic
}

func (r *stepRecorder) AppendStep(_ context.Context, s engine.Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, s)
	return nil
}

func (r *stepRecorder) diagnostic(d engine.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
}

func (r *stepRecorder) snapshot() ([]engine.Step, []engine.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Step{}, r.steps...), append([]engine.Diagnostic{}, r.diags...)
}

func runDispatch(opts *DispatchOptions, cmd *cobra.Command, actionType, payload string) error {
	a := ir.Action{Type: actionType}
	if payload != "" {
		v, err := ir.UnmarshalIRValue([]byte(payload))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid payload JSON", err)
		}
		a.Payload = v
	}

	ctx := cmd.Context()
	rec := &stepRecorder{}
	rt, err := startRuntime(ctx, opts.Config, runtimeOptions{
		Offline:     opts.Offline,
		JournalPath: opts.Journal,
		NoJournal:   opts.Journal == "",
		Journal:     rec,
		Diagnostics: rec.diagnostic,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	defer rt.Close()

	res, dispatchErr := rt.Engine.Dispatch(ctx, a)
	if dispatchErr == nil {
		sctx, cancel := context.WithTimeout(ctx, opts.Wait)
		err := rt.Engine.Settle(sctx)
		cancel()
		if err != nil {
			return WrapExitError(ExitFailure, "effects did not settle", err)
		}
	}

	out := DispatchOutput{DispatchID: res.DispatchID}
	out.Steps, out.Diagnostics = rec.snapshot()
	out.State, err = json.Marshal(rt.Engine.State())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to render state", err)
	}

	f := opts.formatter(cmd)
	if dispatchErr != nil {
		code := "E_HALTED"
		if ir.IsValidationError(dispatchErr) {
			code = "E_VALIDATION"
		}
		if opts.Format == "json" {
			if err := f.Error(code, dispatchErr.Error(), out); err != nil {
				return err
			}
		} else {
			writeDispatchText(cmd.OutOrStdout(), out)
		}
		return WrapExitError(ExitFailure, "dispatch failed", dispatchErr)
	}

	if opts.Format == "json" {
		return f.Success(out)
	}
	writeDispatchText(cmd.OutOrStdout(), out)
	return nil
}

func writeDispatchText(w io.Writer, out DispatchOutput) {
	if out.DispatchID != "" {
		fmt.Fprintf(w, "Dispatch %s: %d step(s)\n", out.DispatchID, len(out.Steps))
	}
	writeSteps(w, out.Steps)
	for _, d := range out.Diagnostics {
		fmt.Fprintf(w, "  ! %s\n", d)
	}

	var pretty any
	if err := json.Unmarshal(out.State, &pretty); err == nil {
		data, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Fprintf(w, "\nState: %s\n", data)
	}
}

// writeSteps prints one line per step.
func writeSteps(w io.Writer, steps []engine.Step) {
	for _, s := range steps {
		line := fmt.Sprintf("  [%d] %s depth=%d %s", s.Seq, s.Action.Type, s.Depth, s.Origin)
		if s.Rule != "" {
			line += " rule=" + s.Rule
		}
		fmt.Fprintln(w, line)
	}
}
