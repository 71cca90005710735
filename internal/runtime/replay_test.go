package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abacus/internal/codec"
	"github.com/roach88/abacus/internal/ir"
)

func TestReplay_ConsistentLog(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()
	_, err := h.CreateAccount(ctx, "calc", codec.AccountSize)
	require.NoError(t, err)

	payloads := [][]byte{nil, add(3.5, 2.0), {2}, subtract(5.7, 2.5), add(1, 2)[:5]}
	for _, p := range payloads {
		_, _ = h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: p})
	}

	report, err := h.Replay(ctx, "calc")
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "mismatches: %+v", report.Mismatches)
	assert.Equal(t, 5, report.Replayed)
	assert.Equal(t, 2, report.Committed)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, calculatorID, report.FinalOwner)

	rec, err := codec.DecodeAccount(report.FinalState)
	require.NoError(t, err)
	assert.Equal(t, 3.2, rec.Result)
}

func TestReplay_CounterWithSigners(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()
	_, err := h.CreateAccount(ctx, "ctr", codec.CounterSize)
	require.NoError(t, err)

	steps := []struct {
		signer string
		op     ir.Opcode
	}{
		{"alice", ir.OpCreate},
		{"alice", ir.OpIncrement},
		{"bob", ir.OpIncrement},
		{"alice", ir.OpDecrement},
		{"alice", ir.OpDecrement},
	}
	for _, s := range steps {
		_, _ = h.Invoke(ctx, Request{ProgramID: counterID, Account: "ctr", Signer: s.signer, Payload: []byte{byte(s.op)}})
	}

	report, err := h.Replay(ctx, "ctr")
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "mismatches: %+v", report.Mismatches)
	assert.Equal(t, 3, report.Committed)
	assert.Equal(t, 2, report.Failed, "bob's increment and the underflow")
}

func TestReplay_DetectsTamperedAccount(t *testing.T) {
	h, s := newHost(t)
	ctx := context.Background()
	acct, err := h.CreateAccount(ctx, "calc", codec.AccountSize)
	require.NoError(t, err)
	_, err = h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: add(3.5, 2.0)})
	require.NoError(t, err)

	_, err = s.DB().ExecContext(ctx, `UPDATE accounts SET data = ? WHERE id = ?`,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8}, acct.ID.String())
	require.NoError(t, err)

	report, err := h.Replay(ctx, "calc")
	require.NoError(t, err)
	require.False(t, report.Consistent())
	assert.Contains(t, report.Mismatches[0].Reason, "stored bytes differ")
}

func TestReplay_DetectsTamperedLog(t *testing.T) {
	h, s := newHost(t)
	ctx := context.Background()
	_, err := h.CreateAccount(ctx, "calc", codec.AccountSize)
	require.NoError(t, err)
	rec, err := h.Invoke(ctx, Request{ProgramID: calculatorID, Account: "calc", Payload: add(3.5, 2.0)})
	require.NoError(t, err)

	_, err = s.DB().ExecContext(ctx, `UPDATE invocations SET payload = ? WHERE id = ?`, add(1, 1), rec.ID)
	require.NoError(t, err)

	report, err := h.Replay(ctx, "calc")
	require.NoError(t, err)
	require.False(t, report.Consistent())

	reasons := make([]string, len(report.Mismatches))
	for i, m := range report.Mismatches {
		reasons[i] = m.Reason
	}
	assert.Contains(t, reasons, "invocation id does not match its content")
	assert.Contains(t, reasons, "logged state_after differs from replayed state")
}

func TestReplay_EmptyLog(t *testing.T) {
	h, _ := newHost(t)
	ctx := context.Background()
	_, err := h.CreateAccount(ctx, "idle", 8)
	require.NoError(t, err)

	report, err := h.Replay(ctx, "idle")
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Zero(t, report.Replayed)
	assert.True(t, report.FinalOwner.IsZero())
}

func TestReplay_UnknownAccount(t *testing.T) {
	h, _ := newHost(t)
	_, err := h.Replay(context.Background(), "ghost")
	assert.Error(t, err)
}
