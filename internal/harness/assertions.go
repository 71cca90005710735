package harness

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/abacus/internal/ir"
	"github.com/roach88/abacus/internal/runtime"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Account  string       // Account under test
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s on %s\n", e.Type, e.Account)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %x -> %s", event.Seq, event.Program, event.Account, event.Payload, event.Status)
			if event.ErrorCode != "" {
				fmt.Fprintf(&buf, " %s at %s", event.ErrorCode, event.Stage)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// AssertionContext gives assertions access to the host that ran the
// scenario.
type AssertionContext struct {
	Ctx  context.Context
	Host *runtime.Host
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOwner:
			err = assertOwner(result, assertion)
		case AssertFinalState, AssertLogCount, AssertReplayConsistent:
			if actx == nil || actx.Host == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a host", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertFinalState:
				err = assertFinalState(actx, result, assertion)
			case AssertLogCount:
				err = assertLogCount(actx, result, assertion)
			default:
				err = assertReplayConsistent(actx, result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// assertOwner checks the account's final owner by name.
func assertOwner(result *Result, a Assertion) error {
	state, ok := result.State[a.Account]
	if !ok {
		return &AssertionError{Type: AssertOwner, Account: a.Account, Expected: "account to exist", Actual: "not found"}
	}
	if state.Owner != a.Owner {
		return &AssertionError{
			Type:     AssertOwner,
			Account:  a.Account,
			Expected: fmt.Sprintf("owner %s", a.Owner),
			Actual:   fmt.Sprintf("owner %s", state.Owner),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalState decodes the account with its owning program and
// compares the expected fields (subset semantics).
func assertFinalState(actx *AssertionContext, result *Result, a Assertion) error {
	view, err := actx.Host.Describe(actx.Ctx, a.Account)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Account:  a.Account,
			Expected: "a decodable record",
			Actual:   err.Error(),
			Trace:    result.Trace,
		}
	}
	if view.Record == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Account:  a.Account,
			Expected: "account owned by a program",
			Actual:   fmt.Sprintf("unowned, data %s", hex.EncodeToString(view.Account.Data)),
			Trace:    result.Trace,
		}
	}

	fields := recordFields(view.Record)
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := a.Expect[key]
		got, ok := fields[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Account:  a.Account,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("record %T has no field %q", view.Record, key),
			}
		}
		if !fieldEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Account:  a.Account,
				Expected: fmt.Sprintf("field %q = %v", key, want),
				Actual:   fmt.Sprintf("field %q = %v", key, got),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// recordFields flattens a decoded record into named fields.
func recordFields(record any) map[string]any {
	switch r := record.(type) {
	case ir.AccountRecord:
		return map[string]any{"result": r.Result}
	case ir.CounterRecord:
		return map[string]any{"authority": r.Authority, "count": r.Count}
	default:
		return map[string]any{}
	}
}

// fieldEqual compares a YAML value with a decoded record field.
// An identity may be given as an account name or as hex.
func fieldEqual(want, got any) bool {
	switch g := got.(type) {
	case float64:
		w, ok := toFloat64(want)
		return ok && w == g
	case uint64:
		w, ok := toUint64(want)
		return ok && w == g
	case ir.Identity:
		s, ok := want.(string)
		return ok && (s == g.String() || ir.AccountIdentity(s) == g)
	default:
		return false
	}
}

// toFloat64 converts YAML numeric types to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// toUint64 converts non-negative YAML integers to uint64.
func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case uint64:
		return n, true
	default:
		return 0, false
	}
}

// assertLogCount counts the account's log entries, filtered by status.
func assertLogCount(actx *AssertionContext, result *Result, a Assertion) error {
	log, err := actx.Host.Log(actx.Ctx, a.Account)
	if err != nil {
		return err
	}

	count := 0
	for _, rec := range log {
		if a.Status == "" || string(rec.Status) == a.Status {
			count++
		}
	}

	if count != *a.Count {
		what := "log entries"
		if a.Status != "" {
			what = a.Status + " log entries"
		}
		return &AssertionError{
			Type:     AssertLogCount,
			Account:  a.Account,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertReplayConsistent replays the account's log and requires it to
// reproduce every logged outcome and the stored bytes.
func assertReplayConsistent(actx *AssertionContext, result *Result, a Assertion) error {
	report, err := actx.Host.Replay(actx.Ctx, a.Account)
	if err != nil {
		return err
	}
	if report.Consistent() {
		return nil
	}

	reasons := make([]string, len(report.Mismatches))
	for i, m := range report.Mismatches {
		reasons[i] = fmt.Sprintf("seq %d: %s", m.Seq, m.Reason)
	}
	return &AssertionError{
		Type:     AssertReplayConsistent,
		Account:  a.Account,
		Expected: "replay to reproduce the log",
		Actual:   strings.Join(reasons, "; "),
		Trace:    result.Trace,
	}
}
