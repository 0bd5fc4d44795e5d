package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/float/internal/engine"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// ReplayResult holds the replay outcome.
type ReplayResult struct {
	Steps     int             `json:"steps"`
	LastSeq   int64           `json:"last_seq"`
	Rules     []string        `json:"rules"`
	StateHash string          `json:"state_hash,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Verified  bool            `json:"verified"`
	Mismatch  *MismatchView   `json:"mismatch,omitempty"`
}

// MismatchView describes the first step whose recorded hash differs.
type MismatchView struct {
	Seq        int64  `json:"seq"`
	DispatchID string `json:"dispatch_id"`
	ActionType string `json:"action_type"`
	Want       string `json:"want"`
	Got        string `json:"got"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a journal and verify every state hash",
		Long: `Re-apply every journaled step to the initial state and compare the
resulting state hash with the one recorded at each step.

Replay checks the journal; it never restores a running store. The rules
registered during the journaled process are rebuilt from the replayed
middleware state and listed.

Exit codes:
  0 - Every recorded hash matched
  1 - A hash mismatch was found
  2 - Command error (journal not found, unreadable, etc.)

Examples:
  float replay --db ./float.db
  float replay --db ./float.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	result := ReplayResult{Rules: []string{}}
	snap, err := st.Verify(cmd.Context())
	var mismatch *engine.ReplayMismatchError
	switch {
	case errors.As(err, &mismatch):
		result.Mismatch = &MismatchView{
			Seq:        mismatch.Seq,
			DispatchID: mismatch.DispatchID,
			ActionType: mismatch.ActionType,
			Want:       mismatch.Want,
			Got:        mismatch.Got,
		}
	case err != nil:
		return WrapExitError(ExitCommandError, "failed to replay journal", err)
	default:
		result.Verified = true
		result.Steps = snap.Steps
		result.LastSeq = snap.LastSeq
		for _, r := range snap.Rules {
			result.Rules = append(result.Rules, r.Name)
		}
		if result.StateHash, err = snap.State.Hash(); err != nil {
			return WrapExitError(ExitFailure, "failed to hash replayed state", err)
		}
		if result.State, err = json.Marshal(snap.State); err != nil {
			return WrapExitError(ExitFailure, "failed to render replayed state", err)
		}
	}

	f := opts.formatter(cmd)
	if opts.Format == "json" {
		if result.Verified {
			return f.Success(result)
		}
		if err := f.Error("E_REPLAY", "state hash mismatch", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "replay verification failed")
	}

	w := cmd.OutOrStdout()
	if !result.Verified {
		m := result.Mismatch
		fmt.Fprintf(w, "✗ State hash mismatch at seq %d (%s, dispatch %s)\n", m.Seq, m.ActionType, m.DispatchID)
		fmt.Fprintf(w, "  recorded: %s\n", m.Want)
		fmt.Fprintf(w, "  replayed: %s\n", m.Got)
		return NewExitError(ExitFailure, "replay verification failed")
	}

	if result.Steps == 0 {
		fmt.Fprintln(w, "Journal is empty.")
		return nil
	}
	fmt.Fprintf(w, "✓ Replayed %d step(s), last seq %d\n", result.Steps, result.LastSeq)
	fmt.Fprintf(w, "  State hash: %s\n", result.StateHash)
	fmt.Fprintf(w, "  Rules: %d\n", len(result.Rules))
	for _, name := range result.Rules {
		fmt.Fprintf(w, "    - %s\n", name)
	}
	if opts.Verbose {
		var pretty any
		if err := json.Unmarshal(result.State, &pretty); err == nil {
			data, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Fprintf(w, "\nState: %s\n", data)
		}
	}
	return nil
}
