package runtime

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/abacus/internal/codec"
	"github.com/roach88/abacus/internal/engine"
	"github.com/roach88/abacus/internal/instruction"
	"github.com/roach88/abacus/internal/ir"
	"github.com/roach88/abacus/internal/store"
)

var (
	calculatorID = ir.ProgramIdentity("calculator")
	counterID    = ir.ProgramIdentity("counter")
)

func txIDs(n int) *engine.FixedGenerator {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("tx-%d", i+1)
	}
	return engine.NewFixedGenerator(ids...)
}

func newRegistry(t *testing.T) *engine.Registry {
	t.Helper()
	r := engine.NewRegistry()
	require.NoError(t, r.Register(calculatorID, engine.NewCalculator()))
	require.NoError(t, r.Register(counterID, engine.NewCounter()))
	return r
}

func openStore(t *testing.T, path string) *store.Store {
	t.Helper()
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newHost(t *testing.T, opts ...Option) (*Host, *store.Store) {
	t.Helper()
	s := openStore(t, filepath.Join(t.TempDir(), "host.db"))
	opts = append([]Option{WithTxIDGenerator(txIDs(32))}, opts...)
	h, err := New(context.Background(), s, newRegistry(t), opts...)
	require.NoError(t, err)
	return h, s
}

func add(a, b float64) []byte      { return instruction.Encode(ir.Add{A: a, B: b}) }
func subtract(a, b float64) []byte { return instruction.Encode(ir.Subtract{A: a, B: b}) }

func storedResult(t *testing.T, h *Host, name string) float64 {
	t.Helper()
	view, err := h.Describe(context.Background(), name)
	require.NoError(t, err)
	rec, ok := view.Record.(ir.AccountRecord)
	require.True(t, ok, "record is %T", view.Record)
	return rec.Result
}

func TestHost_CalculatorExample(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()
	_, err := h.CreateAccount(ctx, "calc", codec.AccountSize)
	require.NoError(t, err)

	rec, err := h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: add(3.5, 2.0)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, "tx-1", rec.TxID)
	assert.Equal(t, ir.StatusOK, rec.Status)
	assert.Equal(t, make([]byte, 8), rec.StateBefore)
	assert.Equal(t, 5.5, storedResult(t, h, "calc"))

	rec, err = h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: subtract(5.7, 2.5)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Seq)
	assert.Equal(t, 3.2, storedResult(t, h, "calc"))

	view, err := h.Describe(ctx, "calc")
	require.NoError(t, err)
	assert.Equal(t, calculatorID, view.Account.Owner, "host assigns the account to the program")
	assert.Equal(t, "calculator", view.Program)
	assert.Equal(t, int64(2), view.Account.Seq)
}

func TestHost_FailedInvocationIsAllOrNothing(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()
	_, err := h.CreateAccount(ctx, "calc", codec.AccountSize)
	require.NoError(t, err)

	_, err = h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: add(3.5, 2.0)})
	require.NoError(t, err)

	rec, err := h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: add(1, 2)[:10]})
	require.True(t, errors.Is(err, ir.ErrTruncatedOperands))
	assert.Equal(t, ir.StatusFailed, rec.Status)
	assert.Equal(t, ir.ErrCodeTruncatedOperands, rec.ErrorCode)
	assert.Equal(t, rec.StateBefore, rec.StateAfter)
	assert.Equal(t, 5.5, storedResult(t, h, "calc"))

	log, err := h.Log(ctx, "calc")
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, ir.StatusFailed, log[1].Status)
}

func TestHost_FailureOnUnownedAccountKeepsItUnowned(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()
	_, err := h.CreateAccount(ctx, "calc", codec.AccountSize)
	require.NoError(t, err)

	_, err = h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: nil})
	require.True(t, errors.Is(err, ir.ErrEmptyInstruction))

	view, err := h.Describe(ctx, "calc")
	require.NoError(t, err)
	assert.True(t, view.Account.Owner.IsZero())
	assert.Nil(t, view.Record)
	assert.Equal(t, int64(0), view.Account.Seq)
}

func TestHost_OtherProgramsAccountIsReadonly(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()
	_, err := h.CreateAccount(ctx, "ctr", codec.CounterSize)
	require.NoError(t, err)

	_, err = h.Invoke(ctx, Request{ProgramID: counterID, Account: "ctr", Signer: "alice", Payload: []byte{byte(ir.OpCreate)}})
	require.NoError(t, err)

	before, err := h.Describe(ctx, "ctr")
	require.NoError(t, err)

	_, err = h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "ctr", Payload: add(1, 2)})
	require.True(t, errors.Is(err, ir.ErrReadonlyAccount), "got %v", err)

	after, err := h.Describe(ctx, "ctr")
	require.NoError(t, err)
	assert.Equal(t, before.Account.Data, after.Account.Data)
	assert.Equal(t, counterID, after.Account.Owner)
}

func TestHost_CounterAuthority(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()
	_, err := h.CreateAccount(ctx, "ctr", codec.CounterSize)
	require.NoError(t, err)

	invoke := func(signer string, op ir.Opcode) error {
		_, err := h.Invoke(ctx, Request{ProgramID: counterID, Account: "ctr", Signer: signer, Payload: []byte{byte(op)}})
		return err
	}

	require.NoError(t, invoke("alice", ir.OpCreate))
	require.NoError(t, invoke("alice", ir.OpIncrement))
	require.NoError(t, invoke("alice", ir.OpIncrement))

	assert.True(t, errors.Is(invoke("bob", ir.OpIncrement), ir.ErrConstraintHasOne))
	assert.True(t, errors.Is(invoke("", ir.OpIncrement), ir.ErrMissingAccount))
	assert.True(t, errors.Is(invoke("alice", ir.OpCreate), ir.ErrAccountAlreadyInitialized))

	require.NoError(t, invoke("alice", ir.OpDecrement))

	view, err := h.Describe(ctx, "ctr")
	require.NoError(t, err)
	assert.Equal(t, ir.CounterRecord{Authority: ir.AccountIdentity("alice"), Count: 1}, view.Record)
	assert.Equal(t, "counter", view.Program)

	log, err := h.Log(ctx, "ctr")
	require.NoError(t, err)
	assert.Equal(t, ir.AccountIdentity("alice"), log[0].Signer)
}

func TestHost_UnknownAccountLogsNothing(t *testing.T) {
	h, s := newHost(t)
	ctx := context.Background()

	_, err := h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "ghost", Payload: add(1, 2)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Empty(t, ir.CodeOf(err), "host errors are not program errors")

	all, err := s.ReadAllInvocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHost_UnknownProgramIsLogged(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()
	_, err := h.CreateAccount(ctx, "calc", codec.AccountSize)
	require.NoError(t, err)

	rec, err := h.Invoke(ctx, Request{ProgramID: ir.ProgramIdentity("nope"), Account: "calc", Payload: add(1, 2)})
	require.True(t, errors.Is(err, ir.ErrUnknownProgram))
	assert.Equal(t, ir.ErrCodeUnknownProgram, rec.ErrorCode)
}

func TestHost_CreateAccountTwice(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()

	_, err := h.CreateAccount(ctx, "calc", 8)
	require.NoError(t, err)
	_, err = h.CreateAccount(ctx, "calc", 8)
	assert.True(t, errors.Is(err, store.ErrAccountExists))

	_, err = h.CreateAccount(ctx, "neg", -1)
	assert.Error(t, err)
}

func TestHost_ClockResumesAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.db")
	ctx := context.Background()
	s := openStore(t, path)

	h1, err := New(ctx, s, newRegistry(t), WithTxIDGenerator(txIDs(4)))
	require.NoError(t, err)
	_, err = h1.CreateAccount(ctx, "calc", 8)
	require.NoError(t, err)
	_, err = h1.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: add(1, 1)})
	require.NoError(t, err)
	_, err = h1.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: add(2, 2)})
	require.NoError(t, err)

	h2, err := New(ctx, s, newRegistry(t), WithTxIDGenerator(txIDs(4)))
	require.NoError(t, err)
	rec, err := h2.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: add(3, 3)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Seq)
}

func TestHost_ProgramLookupAndAccounts(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()

	p, ok := h.Program(counterID)
	require.True(t, ok)
	assert.Equal(t, "counter", p.Name())
	assert.Equal(t, codec.CounterSize, p.RecordSize())

	_, ok = h.Program(ir.ProgramIdentity("nope"))
	assert.False(t, ok)

	_, err := h.CreateAccount(ctx, "b", 8)
	require.NoError(t, err)
	_, err = h.CreateAccount(ctx, "a", 8)
	require.NoError(t, err)

	accounts, err := h.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].Name)

	_, err = h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "a", Payload: add(1, 1)})
	require.NoError(t, err)
	_, err = h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "b", Payload: add(1, 1)})
	require.NoError(t, err)

	log, err := h.ProgramLog(ctx, calculatorID)
	require.NoError(t, err)
	assert.Len(t, log, 2)
}

func TestHost_Logs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h, _ := newHost(t, WithLogger(zap.New(core)))
	ctx := context.Background()

	_, err := h.CreateAccount(ctx, "calc", 8)
	require.NoError(t, err)
	_, err = h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: []byte{9}})
	require.Error(t, err)

	assert.Equal(t, 1, logs.FilterMessage("account created").Len())
	entries := logs.FilterMessage("invocation logged").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "failed", fields["status"])
	assert.Equal(t, "UnknownOpcode", fields["error_code"])
	assert.Equal(t, int64(1), fields["seq"])
}
