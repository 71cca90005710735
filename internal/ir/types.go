package ir

import "strconv"

// AccountRecord is the calculator program's persisted state.
type AccountRecord struct {
	Result float64 `json:"result"`
}

// CounterRecord is the counter program's persisted state.
type CounterRecord struct {
	Authority Identity `json:"authority"`
	Count     uint64   `json:"count"`
}

// AccountContext is the capability the host hands a program for one account
// on one call. Programs consult it instead of any ambient host state.
type AccountContext struct {
	Identity         Identity `json:"identity"`
	Owner            Identity `json:"owner"`
	IsOwnedByProgram bool     `json:"is_owned_by_program"`
	IsWritable       bool     `json:"is_writable"`
	IsSigner         bool     `json:"is_signer"`
}

// Account pairs a context with the raw storage buffer the host lends out.
// Data is mutated in place by programs; its length never changes.
type Account struct {
	Context AccountContext
	Data    []byte
}

// Opcode is the leading byte of every instruction payload.
type Opcode uint8

// Calculator opcodes take two float64 operands; counter opcodes take none.
// The two programs recognize disjoint sets.
const (
	OpAdd       Opcode = 0
	OpSubtract  Opcode = 1
	OpIncrement Opcode = 2
	OpDecrement Opcode = 3
	OpCreate    Opcode = 4
)

var opcodeNames = map[Opcode]string{
	OpAdd:       "add",
	OpSubtract:  "subtract",
	OpIncrement: "increment",
	OpDecrement: "decrement",
	OpCreate:    "create",
}

// String returns the mnemonic, or "op(N)" for unrecognized values.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}

// OpcodeByName resolves a mnemonic such as "add".
func OpcodeByName(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}

// Instruction is a sealed sum type over the decoded operations.
// Only the types in this file implement it.
type Instruction interface {
	Opcode() Opcode
	instruction()
}

// Add overwrites the calculator result with A + B.
type Add struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Subtract overwrites the calculator result with A - B.
type Subtract struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Create initializes a counter owned by the signing authority.
type Create struct{}

// Increment adds one to a counter.
type Increment struct{}

// Decrement subtracts one from a counter.
type Decrement struct{}

func (Add) Opcode() Opcode       { return OpAdd }
func (Subtract) Opcode() Opcode  { return OpSubtract }
func (Create) Opcode() Opcode    { return OpCreate }
func (Increment) Opcode() Opcode { return OpIncrement }
func (Decrement) Opcode() Opcode { return OpDecrement }

func (Add) instruction()       {}
func (Subtract) instruction()  {}
func (Create) instruction()    {}
func (Increment) instruction() {}
func (Decrement) instruction() {}

// Status is the outcome of one host invocation.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// InvocationRecord is one entry of the host's invocation log.
type InvocationRecord struct {
	ID           string    `json:"id"`    // Content-addressed hash
	Seq          int64     `json:"seq"`   // Logical clock
	TxID         string    `json:"tx_id"` // UUIDv7 correlation id
	ProgramID    Identity  `json:"program_id"`
	AccountID    Identity  `json:"account_id"`
	Signer       Identity  `json:"signer"` // Zero when no authority signed
	Payload      []byte    `json:"payload"`
	Status       Status    `json:"status"`
	ErrorCode    ErrorCode `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StateBefore  []byte    `json:"state_before"`
	StateAfter   []byte    `json:"state_after"`
}

// StoredAccount is an account as the host persists it.
type StoredAccount struct {
	ID    Identity `json:"id"`
	Name  string   `json:"name"`
	Owner Identity `json:"owner"`
	Data  []byte   `json:"data"`
	Seq   int64    `json:"seq"` // Seq of the last committed invocation, 0 if never touched
}
