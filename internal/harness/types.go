package harness

import "github.com/roach88/abacus/internal/ir"

// TraceEvent is one logged invocation as the scenario observed it.
type TraceEvent struct {
	Seq        int64        `json:"seq"`
	TxID       string       `json:"tx_id"`
	Program    string       `json:"program"` // Configured program name
	Account    string       `json:"account"`
	Signer     string       `json:"signer,omitempty"`
	Payload    []byte       `json:"payload"`
	Status     ir.Status    `json:"status"`
	ErrorCode  ir.ErrorCode `json:"error_code,omitempty"`
	Stage      ir.Stage     `json:"stage,omitempty"` // Last stage reached, failures only
	StateAfter []byte       `json:"state_after"`
}

// AccountState is an account's final owner and bytes.
type AccountState struct {
	Owner string `json:"owner"` // Program name, OwnerSystem, or hex id
	Data  []byte `json:"data"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds every account's final state, keyed by name.
	State map[string]AccountState `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]AccountState),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
