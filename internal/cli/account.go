package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/abacus/internal/store"
)

// AccountOptions holds flags for the account commands.
type AccountOptions struct {
	*RootOptions
	Program string
	Size    int
}

// AccountSummary is one account as listed.
type AccountSummary struct {
	Name  string `json:"name"`
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Size  int    `json:"size"`
	Seq   int64  `json:"seq"`
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create and list accounts",
	}
	cmd.AddCommand(newAccountCreateCommand(rootOpts))
	cmd.AddCommand(newAccountListCommand(rootOpts))
	return cmd
}

func newAccountCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Allocate a zeroed, unowned account",
		Long: `Allocate a zeroed account owned by the system.

The buffer is sized for --program's record unless --size is given. The
account is claimed by the first program that successfully writes it.

Examples:
  abacus account create calc --program calculator
  abacus account create tally --program counter
  abacus account create scratch --size 4`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createAccount(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", "", "size the buffer for this program's record")
	cmd.Flags().IntVar(&opts.Size, "size", -1, "explicit buffer size in bytes")

	return cmd
}

func createAccount(opts *AccountOptions, name string, cmd *cobra.Command) error {
	if opts.Program == "" && opts.Size < 0 {
		return NewExitError(ExitCommandError, "one of --program or --size is required")
	}

	ctx := context.Background()
	s, err := opts.openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	size := opts.Size
	if size < 0 {
		id, err := s.cfg.ProgramID(opts.Program)
		if err != nil {
			return WrapExitError(ExitCommandError, "unknown program", err)
		}
		p, ok := s.host.Program(id)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("program %q is not registered", opts.Program))
		}
		size = p.RecordSize()
	}

	acct, err := s.host.CreateAccount(ctx, name, size)
	if errors.Is(err, store.ErrAccountExists) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("account %q already exists", name), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create account", err)
	}

	summary := AccountSummary{Name: acct.Name, ID: acct.ID.String(), Owner: "system", Size: len(acct.Data)}
	return opts.formatter(cmd).Render(summary, func(w io.Writer) {
		fmt.Fprintf(w, "Created account %s (%d bytes, id %s)\n", acct.Name, len(acct.Data), acct.ID.Short())
	})
}

func newAccountListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List accounts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listAccounts(rootOpts, cmd)
		},
	}
}

func listAccounts(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	s, err := opts.openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	accounts, err := s.host.Accounts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list accounts", err)
	}

	summaries := make([]AccountSummary, len(accounts))
	for i, acct := range accounts {
		summaries[i] = AccountSummary{
			Name:  acct.Name,
			ID:    acct.ID.String(),
			Owner: s.ownerLabel(acct.Owner),
			Size:  len(acct.Data),
			Seq:   acct.Seq,
		}
	}

	return opts.formatter(cmd).Render(summaries, func(w io.Writer) {
		if len(summaries) == 0 {
			fmt.Fprintln(w, "No accounts.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tOWNER\tSIZE\tSEQ\tID")
		for _, a := range summaries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", a.Name, a.Owner, a.Size, a.Seq, a.ID[:8])
		}
		tw.Flush()
	})
}
