package engine

import (
	"go.uber.org/zap"

	"github.com/roach88/abacus/internal/codec"
	"github.com/roach88/abacus/internal/instruction"
	"github.com/roach88/abacus/internal/ir"
)

// Calculator is the calculator program: add and subtract over one account
// holding a single float64 result.
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator creates the calculator program.
func NewCalculator(opts ...Option) *Calculator {
	o := buildOptions(opts)
	return &Calculator{logger: o.logger}
}

// Name implements Program.
func (c *Calculator) Name() string { return "calculator" }

// RecordSize implements Program.
func (c *Calculator) RecordSize() int { return codec.AccountSize }

// Inspect implements Program.
func (c *Calculator) Inspect(data []byte) (any, error) {
	return codec.DecodeAccount(data)
}

// Process runs one calculator invocation against accounts[0].
//
// If the host reports the account as not yet owned by this program, a zero
// record is written into the buffer before it is read. The buffer is then
// decoded, the payload parsed, the transition applied and the new record
// written back in place. Any failure aborts with a *ir.ProgramError; bytes
// already written (the zero record) are discarded by the host.
func (c *Calculator) Process(programID ir.Identity, accounts []ir.Account, payload []byte) error {
	inv := begin(c.logger, c.Name(), programID)

	if len(accounts) == 0 {
		return inv.fail(ir.NewProgramError(ir.ErrCodeMissingAccount, "calculator needs one account, got none"))
	}
	account := accounts[0]
	if !account.Context.IsWritable {
		return inv.fail(ir.NewProgramError(ir.ErrCodeReadonlyAccount,
			"account %s is not writable", account.Context.Identity.Short()))
	}
	inv.reach(ir.StageAccountResolved)

	if !account.Context.IsOwnedByProgram {
		inv.logger.Debug("creating calculator account", zap.String("account", account.Context.Identity.Short()))
		if err := codec.EncodeAccount(ir.AccountRecord{}, account.Data); err != nil {
			return inv.fail(err)
		}
		inv.logger.Debug("calculator account created")
	}

	rec, err := codec.DecodeAccount(account.Data)
	if err != nil {
		return inv.fail(err)
	}
	inv.reach(ir.StageStateLoaded)

	inst, err := instruction.ParseCalculator(payload)
	if err != nil {
		return inv.fail(err)
	}
	inv.reach(ir.StageInstructionParsed)

	switch v := inst.(type) {
	case ir.Add:
		inv.logger.Debug("performing addition", zap.Float64("a", v.A), zap.Float64("b", v.B))
	case ir.Subtract:
		inv.logger.Debug("performing subtraction", zap.Float64("a", v.A), zap.Float64("b", v.B))
	}

	next, err := ApplyCalculator(inst, rec)
	if err != nil {
		return inv.fail(err)
	}
	inv.reach(ir.StageTransitioned)

	if err := codec.EncodeAccount(next, account.Data); err != nil {
		return inv.fail(err)
	}
	inv.reach(ir.StagePersisted)

	inv.logger.Debug("calculator result stored", zap.Float64("result", next.Result))
	inv.done()
	return nil
}

// Counter is the counter program: create, increment and decrement over a
// counter account guarded by a signing authority.
//
// Accounts: [0] the counter (writable), [1] the authority (signer).
type Counter struct {
	logger *zap.Logger
}

// NewCounter creates the counter program.
func NewCounter(opts ...Option) *Counter {
	o := buildOptions(opts)
	return &Counter{logger: o.logger}
}

// Name implements Program.
func (c *Counter) Name() string { return "counter" }

// RecordSize implements Program.
func (c *Counter) RecordSize() int { return codec.CounterSize }

// Inspect implements Program.
func (c *Counter) Inspect(data []byte) (any, error) {
	return codec.DecodeCounter(data)
}

// Process runs one counter invocation.
//
// The stages match the calculator's. At StateLoaded an account the program
// does not own yields an empty record rather than a decode, since only
// create may run against it.
func (c *Counter) Process(programID ir.Identity, accounts []ir.Account, payload []byte) error {
	inv := begin(c.logger, c.Name(), programID)

	if len(accounts) < 2 {
		return inv.fail(ir.NewProgramError(ir.ErrCodeMissingAccount,
			"counter needs the counter and authority accounts, got %d", len(accounts)))
	}
	counter, authority := accounts[0], accounts[1]
	if !counter.Context.IsWritable {
		return inv.fail(ir.NewProgramError(ir.ErrCodeReadonlyAccount,
			"account %s is not writable", counter.Context.Identity.Short()))
	}
	if !authority.Context.IsSigner {
		return inv.fail(ir.NewProgramError(ir.ErrCodeMissingSigner,
			"authority %s did not sign", authority.Context.Identity.Short()))
	}
	inv.reach(ir.StageAccountResolved)

	initialized := counter.Context.IsOwnedByProgram
	var rec ir.CounterRecord
	if initialized {
		var err error
		rec, err = codec.DecodeCounter(counter.Data)
		if err != nil {
			return inv.fail(err)
		}
	}
	inv.reach(ir.StageStateLoaded)

	inst, err := instruction.ParseCounter(payload)
	if err != nil {
		return inv.fail(err)
	}
	inv.reach(ir.StageInstructionParsed)

	next, err := ApplyCounter(inst, rec, initialized, authority.Context.Identity)
	if err != nil {
		return inv.fail(err)
	}
	inv.reach(ir.StageTransitioned)

	if err := codec.EncodeCounter(next, counter.Data); err != nil {
		return inv.fail(err)
	}
	inv.reach(ir.StagePersisted)

	inv.logger.Debug("counter updated",
		zap.String("op", inst.Opcode().String()),
		zap.String("authority", next.Authority.Short()),
		zap.Uint64("count", next.Count),
	)
	inv.done()
	return nil
}
