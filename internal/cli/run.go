package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/float/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario|dir>...",
		Short: "Run scenario files against an isolated engine",
		Long: `Run YAML scenarios through the dispatch pipeline and check their
assertions. A directory contributes the *.yaml and *.yml files directly in it.

Each scenario gets a fresh engine with stubbed providers and completions,
so runs are deterministic and need no network.

Exit codes:
  0 - All scenarios passed
  1 - At least one scenario failed
  2 - Command error (no scenarios found, unreadable path, etc.)

Examples:
  float run testdata/scenarios
  float run testdata/scenarios/recursion_halt.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, cmd, args)
		},
	}

	return cmd
}

func runScenarios(opts *RunOptions, cmd *cobra.Command, paths []string) error {
	files, err := harness.CollectScenarios(paths...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to collect scenarios", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	f := opts.formatter(cmd)
	for _, file := range files {
		f.VerboseLog("scenario: %s", file)
	}

	res := harness.RunFiles(cmd.Context(), files)

	if opts.Format == "json" {
		if res.OK() {
			return f.Success(res)
		}
		if err := f.Error("E_SCENARIO", "scenarios failed", res); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", res.Failed, res.Total))
	}

	w := cmd.OutOrStdout()
	for _, fail := range res.Failures {
		name := fail.Name
		if name == "" {
			name = fail.Path
		}
		fmt.Fprintf(w, "✗ %s (%s)\n", name, fail.Path)
		for _, e := range fail.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	fmt.Fprintf(w, "%d scenario(s): %d passed, %d failed\n", res.Total, res.Passed, res.Failed)

	if !res.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", res.Failed, res.Total))
	}
	return nil
}
