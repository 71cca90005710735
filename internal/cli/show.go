package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/abacus/internal/store"
)

// AccountDetail is one account with its decoded record.
type AccountDetail struct {
	Name   string `json:"name"`
	ID     string `json:"id"`
	Owner  string `json:"owner"`
	Seq    int64  `json:"seq"`
	Data   string `json:"data"` // Hex
	Record any    `json:"record,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <account>",
		Short: "Show an account's owner, bytes and decoded record",
		Long: `Show an account's owner, raw bytes and the record its owning program
decodes from them. Unowned accounts show bytes only.

Examples:
  abacus show calc
  abacus show tally --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
}

func runShow(opts *RootOptions, name string, cmd *cobra.Command) error {
	ctx := context.Background()
	s, err := opts.openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	view, err := s.host.Describe(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("account %q not found", name), err)
	}
	if err != nil && view.Account.Name == "" {
		return WrapExitError(ExitCommandError, "failed to read account", err)
	}

	detail := AccountDetail{
		Name:  view.Account.Name,
		ID:    view.Account.ID.String(),
		Owner: s.ownerLabel(view.Account.Owner),
		Seq:   view.Account.Seq,
		Data:  hex.EncodeToString(view.Account.Data),
	}
	if view.Record != nil {
		detail.Record = recordView(view.Record)
	}
	if err != nil {
		s.logger.Warn("record not decodable", zap.String("account", name), zap.Error(err))
	}

	return opts.formatter(cmd).Render(detail, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n", detail.Name)
		fmt.Fprintf(w, "  id     %s\n", detail.ID)
		fmt.Fprintf(w, "  owner  %s\n", detail.Owner)
		fmt.Fprintf(w, "  seq    %d\n", detail.Seq)
		fmt.Fprintf(w, "  data   %s\n", detail.Data)
		if view.Record != nil {
			fmt.Fprintf(w, "  %s\n", recordText(view.Record))
		}
	})
}
