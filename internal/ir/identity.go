package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// IdentitySize is the byte length of an account or program address.
const IdentitySize = 32

// Identity is a 32-byte account or program address.
// The zero Identity denotes the system owner, i.e. an account that no
// program has claimed yet.
type Identity [IdentitySize]byte

// SystemIdentity is the owner of freshly allocated accounts.
var SystemIdentity = Identity{}

// DeriveIdentity computes a deterministic identity from a label.
// Used for built-in program ids and named accounts: SHA256(domain + 0x00 + label).
func DeriveIdentity(domain, label string) Identity {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write([]byte(label))
	var id Identity
	copy(id[:], h.Sum(nil))
	return id
}

// ParseIdentity decodes a 64-character hex string.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse identity: %w", err)
	}
	if len(raw) != IdentitySize {
		return id, fmt.Errorf("parse identity: want %d bytes, got %d", IdentitySize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// String returns the lower-case hex form.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex characters, for log lines.
func (id Identity) Short() string {
	return id.String()[:8]
}

// IsZero reports whether id is the system identity.
func (id Identity) IsZero() bool {
	return id == SystemIdentity
}

// MarshalText implements encoding.TextMarshaler so JSON output carries hex.
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
