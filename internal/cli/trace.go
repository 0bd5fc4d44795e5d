package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/float/internal/engine"
	"github.com/roach88/float/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	DispatchID string
	Action     string
}

// TraceResult holds the trace output.
type TraceResult struct {
	DispatchID  string              `json:"dispatch_id,omitempty"`
	Steps       []engine.Step       `json:"steps"`
	Diagnostics []engine.Diagnostic `json:"diagnostics,omitempty"`
	Stats       TraceStats          `json:"stats"`
}

// TraceStats summarizes a trace.
type TraceStats struct {
	Steps      int `json:"steps"`
	Dispatches int `json:"dispatches"`
	RuleSteps  int `json:"rule_steps"`
	MaxDepth   int `json:"max_depth"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled steps",
		Long: `Show the steps recorded in a journal, in seq order.

With --dispatch only one top-level dispatch and its rule cascade are shown,
together with the diagnostics it raised. With --action only steps of that
action type are shown.

Examples:
  float trace --db ./float.db
  float trace --db ./float.db --dispatch 0190c2a4-...
  float trace --db ./float.db --action vault/touch --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.DispatchID, "dispatch", "", "dispatch ID to trace")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to one action type")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var steps []engine.Step
	switch {
	case opts.DispatchID != "":
		steps, err = st.ReadDispatch(ctx, opts.DispatchID)
	case opts.Action != "":
		steps, err = st.ReadStepsByType(ctx, opts.Action)
	default:
		steps, err = st.ReadSteps(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read steps", err)
	}
	if opts.DispatchID != "" && opts.Action != "" {
		steps = filterSteps(steps, opts.Action)
	}

	result := TraceResult{
		DispatchID: opts.DispatchID,
		Steps:      steps,
		Stats:      traceStats(steps),
	}
	if opts.DispatchID != "" {
		result.Diagnostics, err = st.ReadDiagnostics(ctx, opts.DispatchID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read diagnostics", err)
		}
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(result)
	}

	w := cmd.OutOrStdout()
	if len(steps) == 0 {
		fmt.Fprintln(w, "No steps found.")
		return nil
	}
	fmt.Fprintf(w, "Trace: %d step(s) across %d dispatch(es)\n\n", result.Stats.Steps, result.Stats.Dispatches)
	last := ""
	for _, s := range steps {
		if s.DispatchID != last {
			fmt.Fprintf(w, "Dispatch %s\n", s.DispatchID)
			last = s.DispatchID
		}
		writeSteps(w, []engine.Step{s})
		if opts.Verbose {
			fmt.Fprintf(w, "      payload: %s\n", s.Action)
			fmt.Fprintf(w, "      state:   %s\n", s.StateHash)
		}
	}
	for _, d := range result.Diagnostics {
		fmt.Fprintf(w, "  ! %s\n", d)
	}
	return nil
}

func filterSteps(steps []engine.Step, actionType string) []engine.Step {
	out := []engine.Step{}
	for _, s := range steps {
		if s.Action.Type == actionType {
			out = append(out, s)
		}
	}
	return out
}

func traceStats(steps []engine.Step) TraceStats {
	stats := TraceStats{Steps: len(steps)}
	seen := map[string]bool{}
	for _, s := range steps {
		if !seen[s.DispatchID] {
			seen[s.DispatchID] = true
			stats.Dispatches++
		}
		if s.Origin == engine.OriginRule {
			stats.RuleSteps++
		}
		stats.MaxDepth = max(stats.MaxDepth, s.Depth)
	}
	return stats
}

// openExisting opens a journal for inspection.
func openExisting(path string) (*store.Store, error) {
	st, err := store.OpenExisting(path)
	if errors.Is(err, store.ErrNotFound) {
		return nil, WrapExitError(ExitCommandError, "journal not found", err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return st, nil
}
