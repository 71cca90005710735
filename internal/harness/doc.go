// Package harness runs YAML scenarios against a fresh host and compares the
// resulting trace with golden snapshots.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: calculator_overwrite
//	description: "What this scenario validates"
//	accounts:
//	  - name: calc
//	    program: calculator   # buffer sized for the program's record
//	  - name: scratch
//	    size: 4               # or an explicit buffer size
//	steps:
//	  - invoke: calculator
//	    account: calc
//	    op: add
//	    operands: [3.5, 2.0]
//	    expect:
//	      status: ok
//	      result: 5.5
//	  - invoke: counter
//	    account: tally
//	    signer: alice
//	    op: increment
//	    expect: { status: failed, error: ConstraintHasOne, stage: InstructionParsed }
//	  - invoke: calculator
//	    account: calc
//	    payload: "00ff"       # raw hex payload instead of op/operands
//	assertions:
//	  - type: final_state
//	    account: calc
//	    expect: { result: 5.5 }
//
// # Assertion Types
//
//   - final_state: decodes the account with its owning program and compares record fields
//   - owner: checks the account's owner by program name, or "system"
//   - log_count: counts the account's log entries, optionally filtered by status
//   - replay_consistent: replays the account's log and requires zero mismatches
//
// # Deterministic Testing
//
// Every scenario runs in its own in-memory SQLite store under the default
// program registry, with sequential transaction ids
// (testutil.SequentialTxIDs) and the host's logical clock starting at 1.
// Running the same scenario twice yields byte-identical snapshots, which is
// what golden comparison relies on.
//
// Snapshots never contain floats: account state and payloads are hex, so a
// calculator result is compared bit for bit.
package harness
