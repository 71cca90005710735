// Package store provides SQLite-backed storage for the local host.
//
// The store holds two tables:
//   - Accounts: one byte buffer per account, plus its owner and the seq of
//     the last invocation committed against it
//   - Invocations: append-only log of every host invocation, committed or
//     failed, with the account bytes before and after
//
// # Critical Patterns
//
// Atomic Commit
//   - CommitInvocation writes the log entry and the new account bytes in one
//     transaction, so a crash never leaves one without the other
//
// Logical Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Queries order by seq ASC, id ASC COLLATE BINARY
//
// Idempotency
//   - Invocation ids are content-addressed (ir.InvocationID); writing the
//     same id twice is a no-op
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Every log entry references an existing account
package store
