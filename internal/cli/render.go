package cli

import (
	"math"
	"strconv"

	"github.com/roach88/abacus/internal/ir"
)

// recordView makes a decoded record JSON-safe: encoding/json rejects NaN
// and infinities, so non-finite calculator results are rendered as text.
func recordView(record any) any {
	switch r := record.(type) {
	case ir.AccountRecord:
		if math.IsNaN(r.Result) || math.IsInf(r.Result, 0) {
			return map[string]any{"result": formatFloat(r.Result)}
		}
		return map[string]any{"result": r.Result}
	case ir.CounterRecord:
		return map[string]any{"authority": r.Authority, "count": r.Count}
	default:
		return record
	}
}

// recordText renders a decoded record on one line.
func recordText(record any) string {
	switch r := record.(type) {
	case ir.AccountRecord:
		return "result = " + formatFloat(r.Result)
	case ir.CounterRecord:
		return "count = " + strconv.FormatUint(r.Count, 10) + ", authority = " + r.Authority.Short()
	case nil:
		return "(no record)"
	default:
		return "(unknown record)"
	}
}

// formatFloat prints the shortest representation that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ownerLabel names an owner for display.
func (s *session) ownerLabel(owner ir.Identity) string {
	if owner.IsZero() {
		return "system"
	}
	if name := s.programName(owner); name != "" {
		return name
	}
	return owner.Short()
}
