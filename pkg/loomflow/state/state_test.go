package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// TestNew_PublishesSystemVars verifies the sys scope is seeded.
func TestNew_PublishesSystemVars(t *testing.T) {
	rs := New(SystemVars{RunID: "run-1", UserID: "u1", AppID: "app1"})

	v, ok := rs.Pool().Get(vars.Selector{NodeID: vars.SystemScope, Name: "run_id"})
	require.True(t, ok)
	assert.Equal(t, "run-1", v.String())

	v, ok = rs.Pool().Get(vars.Selector{NodeID: vars.SystemScope, Name: "user_id"})
	require.True(t, ok)
	assert.Equal(t, "u1", v.String())
}

// TestCounters verifies step and token accumulation.
func TestCounters(t *testing.T) {
	rs := New(SystemVars{RunID: "r"})
	rs.AddSteps(3)
	rs.AddSteps(2)
	rs.AddTokens(100)

	assert.Equal(t, 5, rs.TotalSteps())
	assert.Equal(t, 100, rs.TotalTokens())
}

// TestFork verifies forks isolate the pool but share counters.
func TestFork(t *testing.T) {
	rs := New(SystemVars{RunID: "r"})
	rs.Pool().Add(vars.Selector{NodeID: "a", Name: "x"}, vars.StringValue("base"))

	fork := rs.Fork()
	fork.Pool().Add(vars.Selector{NodeID: "a", Name: "x"}, vars.StringValue("forked"))
	fork.AddSteps(1)
	fork.AddTokens(10)

	v, _ := rs.Pool().Get(vars.Selector{NodeID: "a", Name: "x"})
	assert.Equal(t, "base", v.String(), "fork pool writes must not leak back")
	assert.Equal(t, 1, rs.TotalSteps(), "fork counters accumulate on the parent")
	assert.Equal(t, 10, rs.TotalTokens())
}

// TestCompletedLedger verifies completion marks are recorded,
// serialized, and kept out of forks and nested derivations.
func TestCompletedLedger(t *testing.T) {
	rs := New(SystemVars{RunID: "r"})
	rs.MarkCompleted("fetch", "")
	rs.MarkCompleted("branch", "approve")

	h, ok := rs.CompletedHandle("branch")
	require.True(t, ok)
	assert.Equal(t, "approve", h)
	_, ok = rs.CompletedHandle("gate")
	assert.False(t, ok)

	data, err := rs.Dumps()
	require.NoError(t, err)
	restored, err := Loads(data)
	require.NoError(t, err)

	h, ok = restored.CompletedHandle("branch")
	require.True(t, ok)
	assert.Equal(t, "approve", h)
	_, ok = restored.CompletedHandle("fetch")
	assert.True(t, ok)

	// Sub-runs execute their own nodes from scratch.
	_, ok = rs.Fork().CompletedHandle("fetch")
	assert.False(t, ok)
	_, ok = rs.Nested().CompletedHandle("fetch")
	assert.False(t, ok)
}

// TestNested verifies nested derivations share the pool, unlike forks.
func TestNested(t *testing.T) {
	rs := New(SystemVars{RunID: "r"})

	nested := rs.Nested()
	nested.Pool().Add(vars.Selector{NodeID: "inner", Name: "x"}, vars.StringValue("shared"))
	nested.AddSteps(2)

	v, ok := rs.Pool().Get(vars.Selector{NodeID: "inner", Name: "x"})
	require.True(t, ok)
	assert.Equal(t, "shared", v.String(), "nested pool writes are visible to the parent")
	assert.Equal(t, 2, rs.TotalSteps())
}

// TestDumpsLoads_RoundTrip verifies serialization preserves the pool,
// system vars, and counters.
func TestDumpsLoads_RoundTrip(t *testing.T) {
	rs := New(SystemVars{RunID: "run-42", UserID: "u", AppID: "app"})
	rs.Pool().Add(vars.Selector{NodeID: "node1", Name: "out"}, vars.NumberValue(3.5))
	rs.AddSteps(7)
	rs.AddTokens(1234)

	data, err := rs.Dumps()
	require.NoError(t, err)

	restored, err := Loads(data)
	require.NoError(t, err)

	assert.Equal(t, rs.System(), restored.System())
	assert.Equal(t, 7, restored.TotalSteps())
	assert.Equal(t, 1234, restored.TotalTokens())

	v, ok := restored.Pool().Get(vars.Selector{NodeID: "node1", Name: "out"})
	require.True(t, ok)
	assert.Equal(t, 3.5, v.Float())

	v, ok = restored.Pool().Get(vars.Selector{NodeID: vars.SystemScope, Name: "run_id"})
	require.True(t, ok)
	assert.Equal(t, "run-42", v.String())
}

// TestLoads_VersionMismatch verifies unknown versions are rejected.
func TestLoads_VersionMismatch(t *testing.T) {
	data, err := json.Marshal(map[string]any{"version": "99"})
	require.NoError(t, err)

	_, err = Loads(data)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

// TestLoads_EmptyPayload verifies empty input is rejected.
func TestLoads_EmptyPayload(t *testing.T) {
	_, err := Loads(nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

// TestLoads_Garbage verifies malformed payloads produce an error.
func TestLoads_Garbage(t *testing.T) {
	_, err := Loads([]byte("{not json"))
	assert.Error(t, err)
}

// TestDumps_VersionField verifies the payload carries the current version.
func TestDumps_VersionField(t *testing.T) {
	rs := New(SystemVars{RunID: "r"})
	data, err := rs.Dumps()
	require.NoError(t, err)

	var probe struct {
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(data, &probe))
	assert.Equal(t, Version, probe.Version)
}
