// Package engine implements the account-state transition engine.
//
// The engine is the core of abacus: it receives one account list and one
// instruction payload, and drives the owning program through a fixed
// pipeline.
//
// ARCHITECTURE:
//
// Linear Pipeline:
// Every invocation runs the same stage machine, start to finish, in the
// caller's goroutine:
//
//	Start -> AccountResolved -> StateLoaded -> InstructionParsed
//	      -> Transitioned -> Persisted -> Done
//
// Any stage may end the invocation with a *ir.ProgramError stamped with the
// last stage reached. Nothing is retried and nothing survives the call: all
// state lives in the caller-supplied buffer.
//
// Components:
// 1. Codec (internal/codec) decodes the record at StateLoaded
// 2. Decoder (internal/instruction) parses the payload at InstructionParsed
// 3. Transition (transition.go) computes the new record, a pure function
// 4. Codec encodes the new record in place at Persisted
//
// The dispatcher does no locking, no I/O and never blocks. All-or-nothing
// commit of the buffer is the host's job (see internal/runtime).
//
// CRITICAL PATTERNS:
//
// Logical Clock
// Host invocations are stamped with a monotonic seq from Clock.Next().
// Wall-clock time never orders the invocation log.
//
// Explicit Capability
// Programs consult only the ir.AccountContext passed with each account,
// never ambient host state.
package engine
