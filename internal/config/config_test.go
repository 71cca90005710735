package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abacus/internal/ir"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "abacus.db", cfg.DB)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding)
	assert.Equal(t, []string{"calculator", "counter"}, cfg.ProgramNames())

	id, err := cfg.ProgramID("calculator")
	require.NoError(t, err)
	assert.Equal(t, ir.ProgramIdentity("calculator"), id)
}

func TestParse_OverridesDefaults(t *testing.T) {
	src := `
db: "ledger.db"
log: level: "debug"
programs: {
	calc: kind: "calculator"
	tally: {
		kind: "counter"
		id:   "` + strings.Repeat("ab", 32) + `"
	}
}
`
	cfg, err := Parse([]byte(src), "abacus.cue")
	require.NoError(t, err)

	assert.Equal(t, "ledger.db", cfg.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding, "unset fields keep defaults")
	assert.Equal(t, []string{"calc", "tally"}, cfg.ProgramNames())

	id, err := cfg.ProgramID("calc")
	require.NoError(t, err)
	assert.Equal(t, ir.ProgramIdentity("calc"), id)

	id, err = cfg.ProgramID("tally")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", 32), id.String())

	_, err = cfg.ProgramID("calculator")
	assert.Error(t, err, "configured programs replace the built-ins")
}

func TestParse_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `dbpath: "x.db"`},
		{"empty db", `db: ""`},
		{"bad level", `log: level: "trace"`},
		{"bad kind", `programs: x: kind: "multiplier"`},
		{"bad id", `programs: x: {kind: "counter", id: "xyz"}`},
		{"syntax", `db: `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.cue")
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(`db: "from-file.db"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.DB)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	src := `programs: {
	calc:  kind: "calculator"
	calc2: kind: "calculator"
	tally: kind: "counter"
}`
	cfg, err := Parse([]byte(src), "abacus.cue")
	require.NoError(t, err)

	r, err := cfg.Registry(nil)
	require.NoError(t, err)

	entries := r.Entries()
	require.Len(t, entries, 3)

	p, ok := r.Lookup(ir.ProgramIdentity("calc2"))
	require.True(t, ok)
	assert.Equal(t, "calculator", p.Name())

	p, ok = r.Lookup(ir.ProgramIdentity("tally"))
	require.True(t, ok)
	assert.Equal(t, "counter", p.Name())
}

func TestRegistry_DuplicateID(t *testing.T) {
	id := strings.Repeat("0f", 32)
	src := `programs: {
	a: {kind: "calculator", id: "` + id + `"}
	b: {kind: "counter", id: "` + id + `"}
}`
	cfg, err := Parse([]byte(src), "abacus.cue")
	require.NoError(t, err)

	_, err = cfg.Registry(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `program "b"`)
}
