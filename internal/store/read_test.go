package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abacus/internal/ir"
)

func TestReadAccount_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.ReadAccount(ctx, ir.AccountIdentity("nobody"))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.ReadAccountByName(ctx, "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `"nobody"`)
}

func TestReadAccount_ByIDAndName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := createTestAccount(t, s, "alice", 48)

	byID, err := s.ReadAccount(ctx, want.ID)
	require.NoError(t, err)
	byName, err := s.ReadAccountByName(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, byID, byName)
	assert.Equal(t, want.ID, byID.ID)
	assert.Equal(t, "alice", byID.Name)
	assert.Len(t, byID.Data, 48)
	assert.True(t, byID.Owner.IsZero())
}

func TestListAccounts_OrderedByName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	createTestAccount(t, s, "zed", 8)
	createTestAccount(t, s, "Bob", 8)
	createTestAccount(t, s, "alice", 8)

	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	names := make([]string, len(accounts))
	for i, a := range accounts {
		names[i] = a.Name
	}
	assert.Equal(t, []string{"Bob", "alice", "zed"}, names, "binary collation puts upper case first")
}

func TestReadInvocations_SeqOrderPerAccount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestAccount(t, s, "a", 8)
	createTestAccount(t, s, "b", 8)

	for _, rec := range []ir.InvocationRecord{
		createTestInvocation("calculator", "a", []byte{0}, 3, ir.StatusOK),
		createTestInvocation("calculator", "b", []byte{0}, 2, ir.StatusOK),
		createTestInvocation("calculator", "a", []byte{1}, 1, ir.StatusFailed),
		createTestInvocation("counter", "a", []byte{2}, 4, ir.StatusFailed),
	} {
		_, err := s.CommitInvocation(ctx, rec, rec.ProgramID)
		require.NoError(t, err)
	}

	forA, err := s.ReadInvocations(ctx, ir.AccountIdentity("a"))
	require.NoError(t, err)
	require.Len(t, forA, 3)
	assert.Equal(t, []int64{1, 3, 4}, []int64{forA[0].Seq, forA[1].Seq, forA[2].Seq})

	forCalc, err := s.ReadProgramInvocations(ctx, ir.ProgramIdentity("calculator"))
	require.NoError(t, err)
	assert.Len(t, forCalc, 3)

	none, err := s.ReadInvocations(ctx, ir.AccountIdentity("nobody"))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), last)
}

func TestReadInvocation_RoundTripsFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestAccount(t, s, "ctr", 48)

	rec := createTestInvocation("counter", "ctr", []byte{4}, 7, ir.StatusOK)
	rec.Signer = ir.AccountIdentity("alice")
	rec.ID = ir.MustInvocationID(rec.ProgramID, rec.AccountID, rec.Signer, rec.Payload, rec.Seq)
	rec.TxID = "0190a000-0000-7000-8000-000000000001"
	rec.StateBefore = make([]byte, 48)
	rec.StateAfter = make([]byte, 48)
	rec.StateAfter[0] = 0xff

	_, err := s.CommitInvocation(ctx, rec, rec.ProgramID)
	require.NoError(t, err)

	got, err := s.ReadInvocation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestReadInvocation_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadInvocation(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLastSeq_EmptyLog(t *testing.T) {
	s := createTestStore(t)
	seq, err := s.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}
