package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/abacus/internal/runtime"
	"github.com/roach88/abacus/internal/store"
)

// ReplayAccountResult is the replay of one account's log.
type ReplayAccountResult struct {
	Account    string             `json:"account"`
	Replayed   int                `json:"replayed"`
	Committed  int                `json:"committed"`
	Failed     int                `json:"failed"`
	Consistent bool               `json:"consistent"`
	FinalState string             `json:"final_state"` // Hex
	FinalOwner string             `json:"final_owner"`
	Mismatches []runtime.Mismatch `json:"mismatches"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Accounts      []ReplayAccountResult `json:"accounts"`
	AllConsistent bool                  `json:"all_consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay [account...]",
		Short: "Re-execute invocation logs and verify stored state",
		Long: `Re-execute each account's invocation log from a zeroed buffer and verify
that every logged outcome, the stored bytes and the owner are reproduced.
Without arguments every account is replayed. Replay never writes.

Exit codes:
  0 - Every log replayed consistently
  1 - At least one mismatch was found
  2 - Command error (account not found, database unreadable, etc.)

Examples:
  abacus replay
  abacus replay calc tally
  abacus replay --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args, cmd)
		},
	}
}

func runReplay(opts *RootOptions, names []string, cmd *cobra.Command) error {
	ctx := context.Background()
	s, err := opts.openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(names) == 0 {
		accounts, err := s.host.Accounts(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list accounts", err)
		}
		for _, acct := range accounts {
			names = append(names, acct.Name)
		}
	}

	f := opts.formatter(cmd)
	result := ReplayResult{Accounts: make([]ReplayAccountResult, 0, len(names)), AllConsistent: true}
	for _, name := range names {
		f.VerboseLog("replaying %s", name)
		report, err := s.host.Replay(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("account %q not found", name), err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}

		result.Accounts = append(result.Accounts, ReplayAccountResult{
			Account:    report.Account,
			Replayed:   report.Replayed,
			Committed:  report.Committed,
			Failed:     report.Failed,
			Consistent: report.Consistent(),
			FinalState: hex.EncodeToString(report.FinalState),
			FinalOwner: s.ownerLabel(report.FinalOwner),
			Mismatches: report.Mismatches,
		})
		if !report.Consistent() {
			result.AllConsistent = false
		}
	}

	text := func(w io.Writer) {
		if len(result.Accounts) == 0 {
			fmt.Fprintln(w, "No accounts.")
			return
		}
		for _, a := range result.Accounts {
			mark := "\u2713"
			if !a.Consistent {
				mark = "\u2717"
			}
			fmt.Fprintf(w, "%s %s: %d replayed (%d committed, %d failed), owner %s\n",
				mark, a.Account, a.Replayed, a.Committed, a.Failed, a.FinalOwner)
			for _, m := range a.Mismatches {
				fmt.Fprintf(w, "  seq %d: %s\n", m.Seq, m.Reason)
			}
		}
	}

	if result.AllConsistent {
		return f.Render(result, text)
	}

	var inconsistent []string
	for _, a := range result.Accounts {
		if !a.Consistent {
			inconsistent = append(inconsistent, a.Account)
		}
	}
	message := "replay mismatch in " + strings.Join(inconsistent, ", ")
	if err := f.Failure("E_REPLAY_MISMATCH", message, result, text); err != nil {
		return err
	}
	return reportedError(ExitFailure, message, nil)
}
