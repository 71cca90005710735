// Package ir provides the foundational types shared by every abacus package.
//
// This package contains type definitions, the program error taxonomy and the
// canonical encoding used for content-addressed log identities. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Account state is only ever persisted as raw bytes produced by internal/codec
//   - Floats never appear in canonical JSON; state snapshots are logged as hex
//   - AccountContext is passed by value on every call, never held globally
//   - Logical clocks (seq) only, never wall-clock timestamps, in the invocation log
package ir
