// Package testutil holds deterministic helpers shared by package tests and
// the scenario harness.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialTxIDs generates transaction ids of the form "<prefix>-0001",
// "<prefix>-0002", and so on.
//
// Unlike engine.FixedGenerator it never runs out, so a scenario can run any
// number of steps and still produce byte-identical traces.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequentialTxIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTxIDs creates a generator. An empty prefix defaults to "tx".
func NewSequentialTxIDs(prefix string) *SequentialTxIDs {
	if prefix == "" {
		prefix = "tx"
	}
	return &SequentialTxIDs{prefix: prefix}
}

// Generate returns the next id. Implements engine.TxIDGenerator.
func (g *SequentialTxIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence, so the next Generate returns "<prefix>-0001".
func (g *SequentialTxIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
