package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainInvocation = "abacus/invocation/v1"
	DomainState      = "abacus/state/v1"
	DomainProgram    = "abacus/program/v1"
	DomainAccount    = "abacus/account/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InvocationID computes the content-addressed ID of a log entry.
// The ID covers what was asked (program, account, signer, payload) and
// when (seq). The transaction id is excluded so replays under a new
// correlation id reproduce the same log identity. A zero signer means the
// invocation carried no signing authority.
func InvocationID(programID, accountID, signer Identity, payload []byte, seq int64) (string, error) {
	obj := map[string]any{
		"program_id": programID.String(),
		"account_id": accountID.String(),
		"signer":     signer.String(),
		"payload":    hex.EncodeToString(payload),
		"seq":        seq,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("InvocationID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainInvocation, canonical), nil
}

// MustInvocationID is like InvocationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInvocationID(programID, accountID, signer Identity, payload []byte, seq int64) string {
	id, err := InvocationID(programID, accountID, signer, payload, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// StateDigest hashes an account buffer, for comparing snapshots in traces.
func StateDigest(data []byte) string {
	return hashWithDomain(DomainState, data)
}

// ProgramIdentity derives the deterministic id of a named program.
func ProgramIdentity(name string) Identity {
	return DeriveIdentity(DomainProgram, name)
}

// AccountIdentity derives the deterministic id of a named account.
func AccountIdentity(name string) Identity {
	return DeriveIdentity(DomainAccount, name)
}
