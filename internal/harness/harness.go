package harness

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/roach88/abacus/internal/codec"
	"github.com/roach88/abacus/internal/config"
	"github.com/roach88/abacus/internal/ir"
	"github.com/roach88/abacus/internal/runtime"
	"github.com/roach88/abacus/internal/store"
	"github.com/roach88/abacus/internal/testutil"
)

// Harness is the scenario execution engine.
// It drives a real host over an isolated store with deterministic ids.
type Harness struct {
	cfg    *config.Config
	host   *runtime.Host
	names  map[ir.Identity]string // Program id to configured name
	logger *zap.Logger
}

// Option configures a scenario run.
type Option func(*options)

type options struct {
	logger *zap.Logger
	cfg    *config.Config
}

// WithLogger routes host and program logs to logger. The default discards them.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig runs scenarios under cfg's program registry instead of the
// default one. Only the programs section is used; the store is always
// in-memory.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.cfg = cfg
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Allocate the declared accounts
//  2. Run every step through runtime.Host.Invoke, checking expect clauses
//  3. Capture every account's final state
//  4. Evaluate assertions
//
// A returned error means the scenario could not run at all; assertion and
// expect failures are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, errors.Wrap(err, "create in-memory store")
	}
	defer st.Close()

	ctx := context.Background()

	registry, err := o.cfg.Registry(o.logger)
	if err != nil {
		return nil, errors.Wrap(err, "build registry")
	}
	host, err := runtime.New(ctx, st, registry,
		runtime.WithLogger(o.logger),
		runtime.WithTxIDGenerator(testutil.NewSequentialTxIDs(scenario.TxPrefix)),
	)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		cfg:    o.cfg,
		host:   host,
		names:  make(map[ir.Identity]string),
		logger: o.logger,
	}
	for _, name := range o.cfg.ProgramNames() {
		id, err := o.cfg.ProgramID(name)
		if err != nil {
			return nil, err
		}
		h.names[id] = name
	}

	if err := h.createAccounts(ctx, scenario.Accounts); err != nil {
		return nil, errors.Wrap(err, "create accounts")
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, errors.Wrap(err, "execute steps")
	}
	if err := h.captureState(ctx, result); err != nil {
		return nil, errors.Wrap(err, "capture state")
	}

	actx := &AssertionContext{Ctx: ctx, Host: host}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Debug("scenario finished",
		zap.String("scenario", scenario.Name),
		zap.Int("steps", len(result.Trace)),
		zap.Bool("pass", result.Pass),
	)
	return result, nil
}

// createAccounts allocates every declared account, sized either explicitly
// or for the named program's record.
func (h *Harness) createAccounts(ctx context.Context, accounts []AccountSpec) error {
	for _, acct := range accounts {
		size := 0
		if acct.Size != nil {
			size = *acct.Size
		} else {
			id, err := h.cfg.ProgramID(acct.Program)
			if err != nil {
				return errors.Wrapf(err, "account %q", acct.Name)
			}
			p, ok := h.host.Program(id)
			if !ok {
				return errors.Errorf("account %q: program %q is not registered", acct.Name, acct.Program)
			}
			size = p.RecordSize()
		}

		if _, err := h.host.CreateAccount(ctx, acct.Name, size); err != nil {
			return err
		}
	}
	return nil
}

// executeSteps runs all steps in order.
//
// A program failure is an outcome, not an error: it is traced and checked
// against the step's expect clause. Only host errors abort the run.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		programID, err := h.cfg.ProgramID(step.Invoke)
		if err != nil {
			return errors.Wrapf(err, "step %d", i)
		}
		payload, err := step.payload()
		if err != nil {
			return errors.Wrapf(err, "step %d", i)
		}

		rec, err := h.host.Invoke(ctx, runtime.Request{
			ProgramID: programID,
			Account:   step.Account,
			Signer:    step.Signer,
			Payload:   payload,
		})
		var progErr *ir.ProgramError
		if err != nil && !errors.As(err, &progErr) {
			return errors.Wrapf(err, "step %d", i)
		}

		event := TraceEvent{
			Seq:        rec.Seq,
			TxID:       rec.TxID,
			Program:    step.Invoke,
			Account:    step.Account,
			Signer:     step.Signer,
			Payload:    rec.Payload,
			Status:     rec.Status,
			ErrorCode:  rec.ErrorCode,
			StateAfter: rec.StateAfter,
		}
		if progErr != nil {
			event.Stage = progErr.Stage
		}
		result.AddTrace(event)

		if step.Expect != nil {
			for _, msg := range checkExpect(i, step.Expect, event) {
				result.AddError(msg)
			}
		}
	}
	return nil
}

// checkExpect compares one traced outcome with its expect clause.
func checkExpect(index int, want *Expect, got TraceEvent) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("step %d: ", index)+fmt.Sprintf(format, args...))
	}

	if string(got.Status) != want.Status {
		fail("expected status %s, got %s %s", want.Status, got.Status, got.ErrorCode)
		return errs
	}
	if want.Error != "" && string(got.ErrorCode) != want.Error {
		fail("expected error %s, got %s", want.Error, got.ErrorCode)
	}
	if want.Stage != "" && string(got.Stage) != want.Stage {
		fail("expected failure at stage %s, got %s", want.Stage, got.Stage)
	}

	if want.Result != nil {
		rec, err := codec.DecodeAccount(got.StateAfter)
		switch {
		case err != nil:
			fail("expected result %v, state does not decode: %v", *want.Result, err)
		case rec.Result != *want.Result:
			fail("expected result %v, got %v", *want.Result, rec.Result)
		}
	}
	if want.Count != nil {
		rec, err := codec.DecodeCounter(got.StateAfter)
		switch {
		case err != nil:
			fail("expected count %d, state does not decode: %v", *want.Count, err)
		case rec.Count != *want.Count:
			fail("expected count %d, got %d", *want.Count, rec.Count)
		}
	}
	return errs
}

// captureState records every account's final owner and bytes.
func (h *Harness) captureState(ctx context.Context, result *Result) error {
	accounts, err := h.host.Accounts(ctx)
	if err != nil {
		return err
	}
	for _, acct := range accounts {
		result.State[acct.Name] = AccountState{
			Owner: h.ownerName(acct.Owner),
			Data:  acct.Data,
		}
	}
	return nil
}

func (h *Harness) ownerName(owner ir.Identity) string {
	if owner.IsZero() {
		return OwnerSystem
	}
	if name, ok := h.names[owner]; ok {
		return name
	}
	return owner.String()
}
