package layers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomflow/loomflow/pkg/loomflow"
	"github.com/loomflow/loomflow/pkg/loomflow/event"
	"github.com/loomflow/loomflow/pkg/loomflow/nodes"
	"github.com/loomflow/loomflow/pkg/loomflow/state"
	"github.com/loomflow/loomflow/pkg/loomflow/store"
	"github.com/loomflow/loomflow/pkg/loomflow/vars"
)

// runGraph executes a small graph with both layers attached and
// returns the collected events.
func runGraph(t *testing.T, s store.Store, rt *state.RuntimeState, nodeCfgs []loomflow.NodeConfig, edgeCfgs []loomflow.EdgeConfig) []event.Event {
	t.Helper()
	g, err := loomflow.Build(nodeCfgs, edgeCfgs, nodes.DefaultFactory())
	require.NoError(t, err)

	eng := loomflow.New(g, rt, loomflow.WithLayers(
		NewPersistenceLayer(s, s, rt),
		NewPauseStateLayer(s, rt),
	))

	var evs []event.Event
	for ev := range eng.Run(context.Background()) {
		evs = append(evs, ev)
	}
	return evs
}

// TestPersistenceLayer_SuccessfulRun verifies execution and node
// records land in the store after a run completes.
func TestPersistenceLayer_SuccessfulRun(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	rt := state.New(state.SystemVars{RunID: "run-1", AppID: "app", UserID: "user"})

	evs := runGraph(t, s, rt,
		[]loomflow.NodeConfig{
			{
				ID: "begin", Type: loomflow.NodeTypeStart,
				Config: map[string]any{"inputs": map[string]any{"greeting": "hello"}},
			},
			{
				ID: "render", Type: loomflow.NodeTypeTemplateTransform,
				Config: map[string]any{"template": "{{#begin.greeting#}} world"},
			},
		},
		[]loomflow.EdgeConfig{{Source: "begin", Target: "render"}},
	)
	require.Equal(t, event.GraphRunSucceeded, evs[len(evs)-1].Type)

	rec, err := s.GetExecution("run-1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", rec.Status)
	assert.Equal(t, "app", rec.AppID)
	assert.Equal(t, "user", rec.UserID)
	assert.Equal(t, 2, rec.TotalSteps)
	assert.Contains(t, string(rec.Outputs), "hello world")

	nodeRecs, err := s.ListNodeExecutions("run-1")
	require.NoError(t, err)
	require.Len(t, nodeRecs, 2)
	assert.Equal(t, "begin", nodeRecs[0].NodeID)
	assert.Equal(t, "render", nodeRecs[1].NodeID)
	assert.Equal(t, "succeeded", nodeRecs[0].Status)
	assert.Equal(t, 1, nodeRecs[0].Sequence)
	assert.Equal(t, 2, nodeRecs[1].Sequence)
}

// TestPersistenceLayer_FailedRun verifies failures are recorded with
// their error text.
func TestPersistenceLayer_FailedRun(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	rt := state.New(state.SystemVars{RunID: "run-2"})

	// An LLM node without a client fails at execution time.
	evs := runGraph(t, s, rt,
		[]loomflow.NodeConfig{{
			ID: "ask", Type: loomflow.NodeTypeLLM,
			Config: map[string]any{"prompt": "hi"},
		}},
		nil,
	)
	require.Equal(t, event.GraphRunFailed, evs[len(evs)-1].Type)

	rec, err := s.GetExecution("run-2")
	require.NoError(t, err)
	assert.Equal(t, "failed", rec.Status)
	assert.Contains(t, rec.Error, "llm client")

	nodeRecs, err := s.ListNodeExecutions("run-2")
	require.NoError(t, err)
	require.Len(t, nodeRecs, 1)
	assert.Equal(t, "failed", nodeRecs[0].Status)
}

// TestPauseStateLayer_SavesOnPause verifies the serialized state is
// stored at a pause boundary and restores cleanly.
func TestPauseStateLayer_SavesOnPause(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	rt := state.New(state.SystemVars{RunID: "run-3"})

	evs := runGraph(t, s, rt,
		[]loomflow.NodeConfig{{
			ID: "approval", Type: loomflow.NodeTypeHumanInput,
		}},
		nil,
	)
	require.Equal(t, event.GraphRunPaused, evs[len(evs)-1].Type)

	rec, err := s.GetExecution("run-3")
	require.NoError(t, err)
	assert.Equal(t, "paused", rec.Status)

	payload, err := s.LoadState("run-3")
	require.NoError(t, err)
	restored, err := state.Loads(payload)
	require.NoError(t, err)
	assert.Equal(t, "run-3", restored.System().RunID)
}

// TestPauseStateLayer_ClearsOnCompletion verifies stale pause state is
// removed when the run later succeeds.
func TestPauseStateLayer_ClearsOnCompletion(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	rt := state.New(state.SystemVars{RunID: "run-4"})
	require.NoError(t, s.SaveState("run-4", []byte("stale")))

	layer := NewPauseStateLayer(s, rt)
	err := layer.OnEvent(context.Background(), event.NewGraphRunSucceeded("run-4", nil, time.Second))
	require.NoError(t, err)

	_, err = s.LoadState("run-4")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// failingExecStore fails every write.
type failingExecStore struct {
	store.Store
}

func (failingExecStore) SaveExecution(store.ExecutionRecord) error {
	return errors.New("disk full")
}

func (failingExecStore) SaveNodeExecution(store.NodeExecutionRecord) error {
	return errors.New("disk full")
}

// TestPersistenceLayer_StoreError verifies storage failures surface as
// layer errors instead of being swallowed.
func TestPersistenceLayer_StoreError(t *testing.T) {
	s := failingExecStore{}
	rt := state.New(state.SystemVars{RunID: "run-5"})
	layer := NewPersistenceLayer(s, s, rt)

	err := layer.OnEvent(context.Background(),
		event.NewNodeRunSucceeded("run-5", "n1", "start", nil, "", time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	err = layer.OnEvent(context.Background(),
		event.NewGraphRunSucceeded("run-5", nil, time.Second))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

// TestPersistenceLayer_IgnoresNonTerminalEvents verifies chatter
// events write nothing.
func TestPersistenceLayer_IgnoresNonTerminalEvents(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	layer := NewPersistenceLayer(s, s, nil)

	for _, ev := range []event.Event{
		event.NewGraphRunStarted("run-6"),
		event.NewNodeRunStarted("run-6", "n1", "start", 1),
		event.NewNodeRunRetried("run-6", "n1", "start", errors.New("x"), 2),
		event.NewNodeRunStreamChunk("run-6", "n1", "llm", "chunk"),
	} {
		require.NoError(t, layer.OnEvent(context.Background(), ev))
	}

	recs, err := s.ListNodeExecutions("run-6")
	require.NoError(t, err)
	assert.Empty(t, recs)
	_, err = s.GetExecution("run-6")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// TestPersistenceLayer_OutputsMarshaled verifies node outputs persist
// as JSON.
func TestPersistenceLayer_OutputsMarshaled(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	layer := NewPersistenceLayer(s, s, nil)

	outputs := map[string]vars.Value{"text": vars.StringValue("done")}
	require.NoError(t, layer.OnEvent(context.Background(),
		event.NewNodeRunSucceeded("run-7", "n1", "llm", outputs, "", time.Millisecond)))

	recs, err := s.ListNodeExecutions("run-7")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, string(recs[0].Outputs), `"done"`)
}
