package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/abacus/internal/ir"
	"github.com/roach88/abacus/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Program string
}

// LogEntry is one invocation log entry as reported.
type LogEntry struct {
	Seq          int64        `json:"seq"`
	TxID         string       `json:"tx_id"`
	InvocationID string       `json:"invocation_id"`
	Program      string       `json:"program"`
	Account      string       `json:"account"`
	Signer       string       `json:"signer,omitempty"`
	Payload      string       `json:"payload"`
	Status       ir.Status    `json:"status"`
	ErrorCode    ir.ErrorCode `json:"error_code,omitempty"`
	StateDigest  string       `json:"state_digest"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log [account]",
		Short: "Print the invocation log",
		Long: `Print the invocation log of one account, or of one program with
--program, in seq order. Failed invocations are listed with their error code.

Examples:
  abacus log calc
  abacus log --program counter --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", "", "list a program's invocations instead of an account's")

	return cmd
}

func runLog(opts *LogOptions, args []string, cmd *cobra.Command) error {
	if (len(args) == 1) == (opts.Program != "") {
		return NewExitError(ExitCommandError, "give exactly one of <account> or --program")
	}

	ctx := context.Background()
	s, err := opts.openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var records []ir.InvocationRecord
	if opts.Program != "" {
		id, err := s.cfg.ProgramID(opts.Program)
		if err != nil {
			return WrapExitError(ExitCommandError, "unknown program", err)
		}
		records, err = s.host.ProgramLog(ctx, id)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read log", err)
		}
	} else {
		records, err = s.host.Log(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("account %q not found", args[0]), err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read log", err)
		}
	}

	accounts, err := s.host.Accounts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list accounts", err)
	}
	names := make(map[ir.Identity]string, len(accounts))
	for _, acct := range accounts {
		names[acct.ID] = acct.Name
	}

	entries := make([]LogEntry, len(records))
	for i, rec := range records {
		entry := LogEntry{
			Seq:          rec.Seq,
			TxID:         rec.TxID,
			InvocationID: rec.ID,
			Program:      s.ownerLabel(rec.ProgramID),
			Account:      names[rec.AccountID],
			Payload:      hex.EncodeToString(rec.Payload),
			Status:       rec.Status,
			ErrorCode:    rec.ErrorCode,
			StateDigest:  ir.StateDigest(rec.StateAfter),
		}
		if entry.Account == "" {
			entry.Account = rec.AccountID.Short()
		}
		if !rec.Signer.IsZero() {
			entry.Signer = rec.Signer.Short()
		}
		entries[i] = entry
	}

	return opts.formatter(cmd).Render(entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No invocations.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEQ\tPROGRAM\tACCOUNT\tSTATUS\tPAYLOAD\tDIGEST")
		for _, e := range entries {
			status := string(e.Status)
			if e.ErrorCode != "" {
				status += " " + string(e.ErrorCode)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", e.Seq, e.Program, e.Account, status, e.Payload, e.StateDigest[:16])
		}
		tw.Flush()
	})
}
