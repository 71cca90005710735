package ir

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "add", OpAdd.String())
	assert.Equal(t, "subtract", OpSubtract.String())
	assert.Equal(t, "increment", OpIncrement.String())
	assert.Equal(t, "decrement", OpDecrement.String())
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "op(200)", Opcode(200).String())
}

func TestOpcodeByName(t *testing.T) {
	op, ok := OpcodeByName("subtract")
	require.True(t, ok)
	assert.Equal(t, OpSubtract, op)

	_, ok = OpcodeByName("multiply")
	assert.False(t, ok)
}

func TestInstructionOpcodes(t *testing.T) {
	tests := []struct {
		inst Instruction
		want Opcode
	}{
		{Add{A: 1, B: 2}, OpAdd},
		{Subtract{A: 1, B: 2}, OpSubtract},
		{Create{}, OpCreate},
		{Increment{}, OpIncrement},
		{Decrement{}, OpDecrement},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.inst.Opcode())
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	id := AccountIdentity("alice")

	parsed, err := ParseIdentity(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Len(t, id.String(), 64)
	assert.Equal(t, id.String()[:8], id.Short())
}

func TestParseIdentityErrors(t *testing.T) {
	_, err := ParseIdentity("zz")
	assert.Error(t, err)

	_, err = ParseIdentity(strings.Repeat("ab", 31))
	assert.ErrorContains(t, err, "want 32 bytes")
}

func TestIdentityIsZero(t *testing.T) {
	assert.True(t, SystemIdentity.IsZero())
	assert.False(t, ProgramIdentity("calculator").IsZero())
}

func TestIdentityJSON(t *testing.T) {
	ctx := AccountContext{
		Identity:   AccountIdentity("alice"),
		IsWritable: true,
	}

	data, err := json.Marshal(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"identity":"`+ctx.Identity.String()+`"`)

	var decoded AccountContext
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ctx, decoded)
}
