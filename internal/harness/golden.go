package harness

import (
	"encoding/hex"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/abacus/internal/ir"
)

// TraceSnapshot captures the complete trace and final accounts of a
// scenario execution. It serializes to canonical JSON for deterministic
// comparison.
type TraceSnapshot struct {
	ScenarioName string                  `json:"scenario_name"`
	Trace        []TraceEvent            `json:"trace"`
	Accounts     map[string]AccountState `json:"accounts"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles primitives, and
// rejects floats outright: bytes are rendered as lower-case hex.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":         event.Seq,
			"tx_id":       event.TxID,
			"program":     event.Program,
			"account":     event.Account,
			"payload":     hex.EncodeToString(event.Payload),
			"status":      string(event.Status),
			"state_after": hex.EncodeToString(event.StateAfter),
		}
		if event.Signer != "" {
			eventMap["signer"] = event.Signer
		}
		if event.ErrorCode != "" {
			eventMap["error_code"] = string(event.ErrorCode)
		}
		if event.Stage != "" {
			eventMap["stage"] = string(event.Stage)
		}
		traceList[i] = eventMap
	}

	accounts := make(map[string]any, len(s.Accounts))
	for name, state := range s.Accounts {
		accounts[name] = map[string]any{
			"owner": state.Owner,
			"data":  hex.EncodeToString(state.Data),
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"accounts":      accounts,
	}
}

// Snapshot renders a result as canonical JSON, the golden file format.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Accounts:     result.State,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// {fixtureDir}/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, fixtureDir string) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, fixtureDir); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result, fixtureDir string) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(fixtureDir),
		goldie.WithNameSuffix(GoldenSuffix),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
