package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/float/internal/compiler"
	"github.com/roach88/float/internal/ir"
	"github.com/roach88/float/internal/llm"
	"github.com/roach88/float/internal/rules"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Offline bool
}

// CompileOutput is the JSON payload of the compile command.
type CompileOutput struct {
	Rule       json.RawMessage `json:"rule"`
	CompiledBy string          `json:"compiled_by"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <description>",
		Short: "Compile a natural-language rule without registering it",
		Long: `Compile a middleware description into a rule and print it.

The built-in patterns are tried first; descriptions they do not cover are
sent to the configured completion backend unless --offline is set.

Exit codes:
  0 - Description compiled
  1 - Description could not be compiled
  2 - Command error

Examples:
  float compile "When someone mentions React, load react context"
  float compile "touch notes/go.md whenever a Go note is saved" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "use the built-in patterns only")

	return cmd
}

func runCompile(opts *CompileOptions, cmd *cobra.Command, description string) error {
	ctx := cmd.Context()

	var completer llm.Completer
	if !opts.Offline {
		c, err := llm.New(ctx, opts.Config.Compiler)
		if err != nil {
			slog.Warn("completion backend unavailable, compiling with patterns only", "error", err)
		} else {
			completer = c
		}
	}

	r, err := compiler.NewDefault(completer).Compile(ctx, description)
	f := opts.formatter(cmd)
	if err != nil {
		var failure *compiler.CompileFailure
		if !errors.As(err, &failure) {
			return WrapExitError(ExitCommandError, "compile failed", err)
		}
		if opts.Format == "json" {
			if err := f.Error("E_COMPILE", err.Error(), failure.Message()); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), failure.Message())
			f.VerboseLog("%v", err)
		}
		return WrapExitError(ExitFailure, "description could not be compiled", err)
	}

	if opts.Format == "json" {
		data, err := ir.MarshalCanonical(r.ToIR())
		if err != nil {
			return WrapExitError(ExitFailure, "failed to render rule", err)
		}
		return f.Success(CompileOutput{Rule: data, CompiledBy: r.CompiledBy})
	}
	writeRule(cmd.OutOrStdout(), r)
	return nil
}

func writeRule(w io.Writer, r *rules.Rule) {
	fmt.Fprintf(w, "Rule: %s\n", r.Name)
	fmt.Fprintf(w, "Trigger: %s %s\n", r.Trigger.Kind, r.Trigger.Source)
	fmt.Fprintf(w, "Compiled by: %s\n", r.CompiledBy)
	fmt.Fprintf(w, "Actions (%d):\n", len(r.Actions))
	for _, a := range r.Actions {
		fmt.Fprintf(w, "  - %s\n", a)
	}
}
