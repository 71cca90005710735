package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/abacus/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAccount inserts a zeroed, unowned account of the given size.
func createTestAccount(t *testing.T, s *Store, name string, size int) ir.StoredAccount {
	t.Helper()
	acct := ir.StoredAccount{
		ID:   ir.AccountIdentity(name),
		Name: name,
		Data: make([]byte, size),
	}
	require.NoError(t, s.CreateAccount(context.Background(), acct))
	return acct
}

// createTestInvocation builds a log entry with a content-addressed id.
func createTestInvocation(program, account string, payload []byte, seq int64, status ir.Status) ir.InvocationRecord {
	programID := ir.ProgramIdentity(program)
	accountID := ir.AccountIdentity(account)
	return ir.InvocationRecord{
		ID:          ir.MustInvocationID(programID, accountID, ir.Identity{}, payload, seq),
		Seq:         seq,
		TxID:        "tx-test",
		ProgramID:   programID,
		AccountID:   accountID,
		Payload:     payload,
		Status:      status,
		StateBefore: make([]byte, 8),
		StateAfter:  make([]byte, 8),
	}
}
