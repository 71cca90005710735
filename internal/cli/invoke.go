package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/abacus/internal/instruction"
	"github.com/roach88/abacus/internal/ir"
	"github.com/roach88/abacus/internal/runtime"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Payload string // Raw payload hex, replaces the op and operands
	Signer  string // Authority account name
}

// InvokeResult is one logged invocation as reported.
type InvokeResult struct {
	Seq          int64        `json:"seq"`
	TxID         string       `json:"tx_id"`
	InvocationID string       `json:"invocation_id"`
	Program      string       `json:"program"`
	Account      string       `json:"account"`
	Status       ir.Status    `json:"status"`
	ErrorCode    ir.ErrorCode `json:"error_code,omitempty"`
	Stage        ir.Stage     `json:"stage,omitempty"`
	State        string       `json:"state"` // Hex of the stored bytes after the call
	Record       any          `json:"record,omitempty"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <program> <account> [op] [operands...]",
		Short: "Run one instruction against an account",
		Long: `Run one instruction against an account and log it.

The instruction is either an op name with its operands (add, subtract,
increment, decrement, create) or a raw payload given with --payload. A
program failure is still logged; the account keeps its bytes.

Exit codes:
  0 - The program succeeded and the account was updated
  1 - The program rejected the instruction
  2 - Command error (unknown program or account, bad operands, etc.)

Examples:
  abacus invoke calculator calc add 5.5 3.2
  abacus invoke calculator calc --payload 01000000000000164000000000000000c0
  abacus invoke counter tally create --signer alice
  abacus invoke counter tally increment --signer alice --format json`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Payload, "payload", "", "raw instruction payload as hex")
	cmd.Flags().StringVar(&opts.Signer, "signer", "", "sign with the named authority")

	return cmd
}

// parseInvokePayload builds the payload from either the op arguments or
// --payload.
func parseInvokePayload(rawHex string, opArgs []string) ([]byte, error) {
	if rawHex != "" {
		if len(opArgs) > 0 {
			return nil, errors.New("--payload excludes op and operands")
		}
		payload, err := hex.DecodeString(strings.TrimPrefix(rawHex, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "payload is not hex")
		}
		return payload, nil
	}

	if len(opArgs) == 0 {
		return nil, errors.New("an op or --payload is required")
	}

	operands := make([]float64, 0, len(opArgs)-1)
	for _, arg := range opArgs[1:] {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, errors.Errorf("operand %q is not a number", arg)
		}
		operands = append(operands, v)
	}

	inst, err := instruction.Build(opArgs[0], operands...)
	if err != nil {
		return nil, err
	}
	return instruction.Encode(inst), nil
}

func runInvoke(opts *InvokeOptions, args []string, cmd *cobra.Command) error {
	programName, accountName := args[0], args[1]

	payload, err := parseInvokePayload(opts.Payload, args[2:])
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid instruction", err)
	}

	ctx := context.Background()
	s, err := opts.openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	programID, err := s.cfg.ProgramID(programName)
	if err != nil {
		return WrapExitError(ExitCommandError, "unknown program", err)
	}

	rec, err := s.host.Invoke(ctx, runtime.Request{
		ProgramID: programID,
		Account:   accountName,
		Signer:    opts.Signer,
		Payload:   payload,
	})

	var progErr *ir.ProgramError
	if err != nil && !errors.As(err, &progErr) {
		return WrapExitError(ExitCommandError, "invocation not run", err)
	}

	result := InvokeResult{
		Seq:          rec.Seq,
		TxID:         rec.TxID,
		InvocationID: rec.ID,
		Program:      programName,
		Account:      accountName,
		Status:       rec.Status,
		ErrorCode:    rec.ErrorCode,
		State:        hex.EncodeToString(rec.StateAfter),
	}
	var decoded any
	if p, ok := s.host.Program(programID); ok {
		if decoded, err = p.Inspect(rec.StateAfter); err == nil {
			result.Record = recordView(decoded)
		} else {
			s.logger.Debug("state not decodable", zap.String("account", accountName), zap.Error(err))
		}
	}

	f := opts.formatter(cmd)
	if progErr != nil {
		result.Stage = progErr.Stage
		if err := f.Failure(string(progErr.Code), progErr.Message, result, func(w io.Writer) {
			fmt.Fprintf(w, "[%d] %s %s: %s at %s\n", result.Seq, programName, accountName, progErr.Code, progErr.Stage)
			fmt.Fprintf(w, "  %s\n", progErr.Message)
			fmt.Fprintf(w, "  state unchanged: %s\n", result.State)
		}); err != nil {
			return err
		}
		return reportedError(ExitFailure, "invocation failed", progErr)
	}

	return f.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "[%d] %s %s: ok\n", result.Seq, programName, accountName)
		fmt.Fprintf(w, "  tx %s\n", result.TxID)
		if result.Record != nil {
			fmt.Fprintf(w, "  %s\n", recordText(decoded))
		}
		fmt.Fprintf(w, "  state %s\n", result.State)
	})
}
