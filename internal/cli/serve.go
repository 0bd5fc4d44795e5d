package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/float/internal/mcpserver"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Rules   string
	Watch   bool
	Journal string
	Offline bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the store to an MCP client over stdio",
		Long: `Start the dispatch engine and serve it over MCP on stdin/stdout.

Tools:
  float_dispatch       dispatch an action and return the updated state
  middleware_register  compile a natural-language rule and register it
  state_get            return the current state

Tool providers from the config are connected first; a provider that fails
to start leaves its effects degraded instead of stopping the server. The
journal, when configured, is cleared at startup.

Examples:
  float serve
  float serve --config float.yaml --rules rules.yaml --watch
  float serve --journal ./float.db --offline`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Rules, "rules", "", "rules file to load (overrides rules.file)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload the rules file when it changes")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the SQLite journal (overrides journal.path)")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "do not start tool providers")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	if opts.Rules != "" {
		cfg.Rules.File = opts.Rules
	}
	if opts.Watch {
		if cfg.Rules.File == "" {
			return NewExitError(ExitCommandError, "--watch requires a rules file")
		}
		cfg.Rules.Watch = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := startRuntime(ctx, cfg, runtimeOptions{
		Offline:     opts.Offline,
		JournalPath: opts.Journal,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	s := mcpserver.New(rt.Engine)
	err = mcpserver.Serve(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "mcp server error", err)
	}
	slog.Info("server stopped")
	return nil
}
