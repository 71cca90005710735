package harness

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/abacus/internal/instruction"
	"github.com/roach88/abacus/internal/ir"
)

// Scenario defines one host scenario: accounts to allocate, invocations to
// run in order, and assertions over the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Accounts are allocated zeroed and unowned before the first step.
	Accounts []AccountSpec `yaml:"accounts"`

	// Steps are invocations, run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and log.
	Assertions []Assertion `yaml:"assertions"`

	// TxPrefix prefixes the generated transaction ids. Defaults to "tx".
	TxPrefix string `yaml:"tx_prefix,omitempty"`
}

// AccountSpec allocates one account.
type AccountSpec struct {
	Name string `yaml:"name"`

	// Program sizes the buffer for that program's record.
	Program string `yaml:"program,omitempty"`

	// Size sets the buffer length explicitly, e.g. to exercise short buffers.
	Size *int `yaml:"size,omitempty"`
}

// Step is one invocation.
type Step struct {
	// Invoke is the configured program name.
	Invoke string `yaml:"invoke"`

	// Account is the target account name.
	Account string `yaml:"account"`

	// Signer names the signing authority, if any.
	Signer string `yaml:"signer,omitempty"`

	// Op and Operands build the payload (e.g. op: add, operands: [1, 2]).
	Op       string    `yaml:"op,omitempty"`
	Operands []float64 `yaml:"operands,omitempty"`

	// Payload is a raw hex payload. It takes precedence over Op, and an
	// empty string sends an empty payload.
	Payload *string `yaml:"payload,omitempty"`

	// Expect validates the invocation outcome. Nil means no validation.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected invocation outcome.
type Expect struct {
	// Status is "ok" or "failed".
	Status string `yaml:"status"`

	// Error is the expected ir.ErrorCode of a failed invocation.
	Error string `yaml:"error,omitempty"`

	// Stage is the expected last stage reached by a failed invocation.
	Stage string `yaml:"stage,omitempty"`

	// Result is the expected calculator result after the step.
	Result *float64 `yaml:"result,omitempty"`

	// Count is the expected counter value after the step.
	Count *uint64 `yaml:"count,omitempty"`
}

// Assertion validates the final state or log of one account.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Account is the account the assertion inspects.
	Account string `yaml:"account"`

	// Expect holds record fields (used by final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Owner is a program name or "system" (used by owner).
	Owner string `yaml:"owner,omitempty"`

	// Status filters log entries (used by log_count).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of log entries (used by log_count).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState       = "final_state"
	AssertOwner            = "owner"
	AssertLogCount         = "log_count"
	AssertReplayConsistent = "replay_consistent"
)

// OwnerSystem names the owner of accounts no program has claimed.
const OwnerSystem = "system"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario file")
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, errors.Wrap(err, "parse YAML")
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if strings.ContainsAny(s.Name, `/\`) || s.Name != filepath.Clean(s.Name) {
		return errors.Errorf("name %q must be a plain file name", s.Name)
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	declared := make(map[string]bool, len(s.Accounts))
	for i, acct := range s.Accounts {
		if acct.Name == "" {
			return errors.Errorf("accounts[%d]: name is required", i)
		}
		if declared[acct.Name] {
			return errors.Errorf("accounts[%d]: duplicate account %q", i, acct.Name)
		}
		declared[acct.Name] = true
		if acct.Program == "" && acct.Size == nil {
			return errors.Errorf("accounts[%d]: program or size is required", i)
		}
		if acct.Size != nil && *acct.Size < 0 {
			return errors.Errorf("accounts[%d]: size must be non-negative", i)
		}
	}

	for i, step := range s.Steps {
		if step.Invoke == "" {
			return errors.Errorf("steps[%d]: invoke is required", i)
		}
		if !declared[step.Account] {
			return errors.Errorf("steps[%d]: account %q is not declared", i, step.Account)
		}
		if step.Payload == nil && step.Op == "" {
			return errors.Errorf("steps[%d]: op or payload is required", i)
		}
		if step.Payload != nil && (step.Op != "" || len(step.Operands) > 0) {
			return errors.Errorf("steps[%d]: payload excludes op and operands", i)
		}
		if _, err := step.payload(); err != nil {
			return errors.Wrapf(err, "steps[%d]", i)
		}
		if step.Expect != nil {
			if err := validateExpect(i, step.Expect); err != nil {
				return err
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, declared); err != nil {
			return err
		}
	}
	return nil
}

func validateExpect(index int, e *Expect) error {
	switch ir.Status(e.Status) {
	case ir.StatusOK:
		if e.Error != "" || e.Stage != "" {
			return errors.Errorf("steps[%d].expect: error and stage require status failed", index)
		}
	case ir.StatusFailed:
	default:
		return errors.Errorf("steps[%d].expect: status must be ok or failed, got %q", index, e.Status)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, declared map[string]bool) error {
	if a.Type == "" {
		return errors.Errorf("assertions[%d]: type is required", index)
	}
	if !declared[a.Account] {
		return errors.Errorf("assertions[%d]: account %q is not declared", index, a.Account)
	}

	switch a.Type {
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return errors.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertOwner:
		if a.Owner == "" {
			return errors.Errorf("assertions[%d]: owner is required for owner", index)
		}
	case AssertLogCount:
		if a.Count == nil || *a.Count < 0 {
			return errors.Errorf("assertions[%d]: non-negative count is required for log_count", index)
		}
		if a.Status != "" && a.Status != string(ir.StatusOK) && a.Status != string(ir.StatusFailed) {
			return errors.Errorf("assertions[%d]: status must be ok or failed, got %q", index, a.Status)
		}
	case AssertReplayConsistent:
	default:
		return errors.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// payload assembles the step's instruction bytes.
func (s Step) payload() ([]byte, error) {
	if s.Payload != nil {
		raw, err := hex.DecodeString(strings.TrimPrefix(*s.Payload, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "payload is not hex")
		}
		return raw, nil
	}

	inst, err := instruction.Build(s.Op, s.Operands...)
	if err != nil {
		return nil, err
	}
	return instruction.Encode(inst), nil
}
