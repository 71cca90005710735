package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/abacus/internal/store"
)

// OpenStore opens a store in a fresh temp directory and closes it when the
// test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "abacus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
