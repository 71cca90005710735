package store

import (
	"github.com/pkg/errors"

	"github.com/roach88/abacus/internal/ir"
)

// Identities are stored as lower-case hex TEXT so rows stay readable with
// the sqlite3 shell and compare with COLLATE BINARY.

func marshalIdentity(id ir.Identity) string {
	return id.String()
}

func unmarshalIdentity(column, s string) (ir.Identity, error) {
	id, err := ir.ParseIdentity(s)
	if err != nil {
		return ir.Identity{}, errors.Wrapf(err, "column %s", column)
	}
	return id, nil
}

// marshalBlob keeps empty buffers as non-NULL zero-length blobs.
func marshalBlob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
