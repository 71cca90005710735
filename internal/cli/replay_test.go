package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/abacus/internal/store"
)

type replayResponse struct {
	Status string       `json:"status"`
	Data   ReplayResult `json:"data"`
	Error  *CLIError    `json:"error"`
}

// populate runs a mix of committed and failed invocations.
func populate(t *testing.T, db string) {
	t.Helper()

	steps := [][]string{
		{"invoke", "calculator", "calc", "add", "3.5", "2"},
		{"invoke", "calculator", "calc", "subtract", "5.5", "3.2"},
		{"invoke", "counter", "tally", "create", "--signer", "alice"},
		{"invoke", "counter", "tally", "increment", "--signer", "alice"},
	}
	for _, args := range steps {
		_, _, err := execute(t, append(args, "--db", db)...)
		require.NoError(t, err, "%v", args)
	}

	_, _, err := execute(t, "invoke", "counter", "tally", "increment", "--signer", "bob", "--db", db)
	require.Error(t, err)
}

func TestReplayAllConsistent(t *testing.T) {
	db := setupAccounts(t)
	populate(t, db)

	out, _, err := execute(t, "replay", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp replayResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.AllConsistent)
	require.Len(t, resp.Data.Accounts, 2)

	byName := map[string]ReplayAccountResult{}
	for _, a := range resp.Data.Accounts {
		byName[a.Account] = a
	}
	assert.Equal(t, 2, byName["calc"].Replayed)
	assert.Equal(t, "calculator", byName["calc"].FinalOwner)
	assert.Equal(t, "6666666666660240", byName["calc"].FinalState)
	assert.Equal(t, 3, byName["tally"].Replayed)
	assert.Equal(t, 2, byName["tally"].Committed)
	assert.Equal(t, 1, byName["tally"].Failed)
	assert.Empty(t, byName["tally"].Mismatches)
}

func TestReplayNamedAccountText(t *testing.T) {
	db := setupAccounts(t)
	populate(t, db)

	out, _, err := execute(t, "replay", "calc", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 calc: 2 replayed (2 committed, 0 failed), owner calculator")
	assert.NotContains(t, out, "tally")
}

func TestReplayDetectsTamperedState(t *testing.T) {
	db := setupAccounts(t)
	populate(t, db)

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec("UPDATE accounts SET data = ? WHERE name = ?", make([]byte, 8), "calc")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(t, "replay", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "replay mismatch in calc")

	var resp replayResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_REPLAY_MISMATCH", resp.Error.Code)
	assert.False(t, resp.Data.AllConsistent)

	for _, a := range resp.Data.Accounts {
		if a.Account == "calc" {
			require.Len(t, a.Mismatches, 1)
			assert.Equal(t, "stored bytes differ from replayed bytes", a.Mismatches[0].Reason)
		} else {
			assert.True(t, a.Consistent)
		}
	}
}

func TestReplayEmptyDatabase(t *testing.T) {
	out, _, err := execute(t, "replay", "--db", tempDB(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No accounts.")
}

func TestReplayUnknownAccount(t *testing.T) {
	_, _, err := execute(t, "replay", "nope", "--db", tempDB(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `account "nope" not found`)
}
