package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbase-io/flowbase/internal/execution/adapters/repository/memory"
	execmodel "github.com/flowbase-io/flowbase/internal/execution/domain/model"
	execrepo "github.com/flowbase-io/flowbase/internal/execution/domain/repository"
	"github.com/flowbase-io/flowbase/internal/node/runtime"
	"github.com/flowbase-io/flowbase/internal/platform/config"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
	wfmodel "github.com/flowbase-io/flowbase/internal/workflow/domain/model"
	"github.com/flowbase-io/flowbase/pkg/expression"
)

// echoExecutor returns its expanded config, the transform shape used
// throughout the scenarios.
type echoExecutor struct{}

func (echoExecutor) Type() string                         { return "transform" }
func (echoExecutor) ConfigSchema() map[string]interface{} { return nil }
func (echoExecutor) Execute(_ context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	return cfg, nil
}

type failingExecutor struct{}

func (failingExecutor) Type() string                         { return "failing" }
func (failingExecutor) ConfigSchema() map[string]interface{} { return nil }
func (failingExecutor) Execute(context.Context, map[string]interface{}, runtime.Input) (interface{}, error) {
	return nil, errors.New("boom")
}

// chunkExecutor streams three chunks then returns a final output.
type chunkExecutor struct{}

func (chunkExecutor) Type() string                         { return "chunker" }
func (chunkExecutor) ConfigSchema() map[string]interface{} { return nil }
func (chunkExecutor) Execute(context.Context, map[string]interface{}, runtime.Input) (interface{}, error) {
	return map[string]interface{}{"text": "abc"}, nil
}
func (chunkExecutor) ExecuteStream(_ context.Context, _ map[string]interface{}, _ runtime.Input, onChunk runtime.ChunkFunc) (interface{}, error) {
	for _, c := range []string{"a", "b", "c"} {
		onChunk(c)
	}
	return map[string]interface{}{"text": "abc"}, nil
}

type stubWorkflows struct {
	byID map[string]*wfmodel.Workflow
}

func (s *stubWorkflows) GetByID(_ context.Context, id string) (*wfmodel.Workflow, error) {
	wf, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("workflow not found: %s", id)
	}
	return wf, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Send(_ context.Context, event Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *recordingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]EventType, len(s.events))
	for i, e := range s.events {
		types[i] = e.Type
	}
	return types
}

func newTestEngine(workflows map[string]*wfmodel.Workflow) *Engine {
	reg := runtime.NewRegistry(nil)
	reg.Register(echoExecutor{})
	reg.Register(failingExecutor{})
	reg.Register(chunkExecutor{})
	return New(
		&stubWorkflows{byID: workflows},
		reg,
		expression.NewEvaluator(),
		config.EngineConfig{},
		logger.NewNop(),
		nil,
		nil,
	)
}

func runWorkflow(t *testing.T, e *Engine, journal execrepo.Journal, wf *wfmodel.Workflow, params map[string]interface{}, sink Sink) (interface{}, *execmodel.Execution, error) {
	t.Helper()
	exec := NewExecution(wf.ID, params, nil)
	require.NoError(t, journal.CreateExecution(context.Background(), exec))
	result, err := e.Execute(context.Background(), journal, wf, exec, sink)
	return result, exec, err
}

func transformNode(id string, cfg map[string]interface{}) wfmodel.Node {
	return wfmodel.Node{ID: id, Type: "transform", Config: cfg}
}

func TestEngine_LinearWorkflow(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID: "linear",
		Nodes: []wfmodel.Node{
			transformNode("A", map[string]interface{}{"v": float64(1)}),
			transformNode("B", map[string]interface{}{"v": float64(2)}),
			transformNode("C", map[string]interface{}{"v": float64(3)}),
		},
		Edges: []wfmodel.Edge{
			{ID: "e1", From: "A", To: "B"},
			{ID: "e2", From: "B", To: "C"},
		},
		StartNode: "A", EndNode: "C", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	result, exec, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"v": float64(3)}, result)
	assert.Equal(t, execmodel.StatusCompleted, exec.Status)
	assert.Equal(t, result, exec.Result)
	assert.NotNil(t, exec.CompletedAt)

	records, err := journal.ListNodeExecutions(context.Background(), exec.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, nodeID := range []string{"A", "B", "C"} {
		assert.Equal(t, nodeID, records[i].NodeID)
		assert.Equal(t, execmodel.StatusCompleted, records[i].Status)
	}
}

func TestEngine_CounterLoop(t *testing.T) {
	counter := transformNode("counter", map[string]interface{}{"count": "{{state.count}}"})
	counter.SetState = []wfmodel.StateRule{
		{Key: "count", Rule: expression.Rule{{Return: "state.count + 1"}}},
	}
	wf := &wfmodel.Workflow{
		ID:    "loop",
		State: map[string]interface{}{"count": float64(0)},
		Nodes: []wfmodel.Node{
			counter,
			transformNode("check", map[string]interface{}{}),
			transformNode("end", map[string]interface{}{"done": true}),
		},
		Edges: []wfmodel.Edge{
			{ID: "e1", From: "counter", To: "check"},
			{ID: "e2", From: "check", Rule: expression.Rule{{Return: "state.count < 3 ? 'counter' : 'end'"}}},
		},
		StartNode: "counter", EndNode: "end", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	result, exec, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"done": true}, result)

	records, err := journal.ListNodeExecutions(context.Background(), exec.ID)
	require.NoError(t, err)
	require.Len(t, records, 7)

	visits := map[string]int{}
	for _, rec := range records {
		visits[rec.NodeID]++
	}
	assert.Equal(t, map[string]int{"counter": 3, "check": 3, "end": 1}, visits)
}

func TestEngine_SelfLoopExceedsBound(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID: "selfloop",
		Nodes: []wfmodel.Node{
			transformNode("loop", nil),
			transformNode("end", nil),
		},
		Edges:     []wfmodel.Edge{{ID: "e1", From: "loop", To: "loop"}},
		StartNode: "loop", EndNode: "end", MaxIterations: 5,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, exec, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIterationLimit)
	assert.EqualError(t, err, "workflow execution exceeded maximum iterations (5)")
	assert.Equal(t, execmodel.StatusFailed, exec.Status)

	records, _ := journal.ListNodeExecutions(context.Background(), exec.ID)
	assert.Len(t, records, 5)
}

func TestEngine_ConditionalBranch(t *testing.T) {
	score := transformNode("score", map[string]interface{}{})
	score.SetState = []wfmodel.StateRule{
		{Key: "score", Rule: expression.Rule{{Return: "75"}}},
	}
	wf := &wfmodel.Workflow{
		ID: "branch",
		Nodes: []wfmodel.Node{
			score,
			transformNode("high", map[string]interface{}{"result": "high"}),
			transformNode("low", map[string]interface{}{"result": "low"}),
		},
		Edges: []wfmodel.Edge{
			{ID: "e1", From: "score", Rule: expression.Rule{{Return: "state.score >= 70 ? 'high' : 'low'"}}},
		},
		StartNode: "score", EndNode: "high", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	result, _, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"result": "high"}, result)
}

func TestEngine_ConditionsListEdge(t *testing.T) {
	score := transformNode("score", map[string]interface{}{})
	score.SetState = []wfmodel.StateRule{
		{Key: "score", Rule: expression.Rule{{Return: "40"}}},
	}
	wf := &wfmodel.Workflow{
		ID: "branch-conditions",
		Nodes: []wfmodel.Node{
			score,
			transformNode("high", map[string]interface{}{"result": "high"}),
			transformNode("low", map[string]interface{}{"result": "low"}),
		},
		Edges: []wfmodel.Edge{
			{ID: "e1", From: "score", Conditions: []expression.Condition{
				{Condition: "state.score >= 70", Node: "high"},
				{Node: "low"},
			}},
		},
		StartNode: "score", EndNode: "low", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	result, _, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"result": "low"}, result)
}

func TestEngine_ParentContextPropagation(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID: "parents",
		Nodes: []wfmodel.Node{
			transformNode("A", map[string]interface{}{"a": float64(1)}),
			transformNode("B", map[string]interface{}{"b": float64(2)}),
			transformNode("C", map[string]interface{}{
				"fromA": "{{parent.A.a}}",
				"fromB": "{{parent.B.b}}",
			}),
		},
		Edges: []wfmodel.Edge{
			{ID: "e1", From: "A", To: "B"},
			{ID: "e2", From: "B", To: "C"},
		},
		StartNode: "A", EndNode: "C", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	result, _, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"fromA": float64(1), "fromB": float64(2)}, result)
}

func TestEngine_InvalidDynamicTarget(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID: "bad-target",
		Nodes: []wfmodel.Node{
			transformNode("A", nil),
			transformNode("B", nil),
		},
		Edges: []wfmodel.Edge{
			{ID: "e1", From: "A", Rule: expression.Rule{{Return: "'non_existent_node'"}}},
		},
		StartNode: "A", EndNode: "B", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, exec, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGraphNavigation)
	assert.EqualError(t, err, "dynamic edge 'e1' returned invalid node ID 'non_existent_node'")
	assert.Equal(t, execmodel.StatusFailed, exec.Status)
}

func TestEngine_DynamicEdgeNonStringResult(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID: "non-string",
		Nodes: []wfmodel.Node{
			transformNode("A", nil),
			transformNode("B", nil),
		},
		Edges: []wfmodel.Edge{
			{ID: "e1", From: "A", Rule: expression.Rule{{Return: "42"}}},
		},
		StartNode: "A", EndNode: "B", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, _, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGraphNavigation)
}

func TestEngine_IterationLimitOne(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID: "limit-one",
		Nodes: []wfmodel.Node{
			transformNode("A", nil),
			transformNode("B", nil),
		},
		Edges:     []wfmodel.Edge{{ID: "e1", From: "A", To: "B"}},
		StartNode: "A", EndNode: "B", MaxIterations: 1,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, _, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIterationLimit)
}

func TestEngine_StartEqualsEnd(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID:        "single",
		Nodes:     []wfmodel.Node{transformNode("only", map[string]interface{}{"ok": true})},
		StartNode: "only", EndNode: "only", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	result, exec, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ok": true}, result)

	records, _ := journal.ListNodeExecutions(context.Background(), exec.ID)
	assert.Len(t, records, 1)
}

func TestEngine_ValidationFailureMarksFailed(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID:        "invalid",
		Nodes:     []wfmodel.Node{transformNode("A", nil)},
		StartNode: "ghost", EndNode: "A",
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, exec, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, execmodel.StatusFailed, exec.Status)
	assert.Equal(t, "start node 'ghost' does not exist in workflow", exec.Error)
}

func TestEngine_SetStateFailureIsAtomic(t *testing.T) {
	node := transformNode("A", nil)
	node.SetState = []wfmodel.StateRule{
		{Key: "good", Rule: expression.Rule{{Return: "1"}}},
		{Key: "bad", Rule: expression.Rule{{Return: "1 +* 2"}}},
	}
	wf := &wfmodel.Workflow{
		ID:        "setstate-fail",
		State:     map[string]interface{}{"good": "untouched"},
		Nodes:     []wfmodel.Node{node},
		StartNode: "A", EndNode: "A", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, exec, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStateUpdate)
	assert.Contains(t, err.Error(), "failed to execute setState for key 'bad'")
	assert.Equal(t, execmodel.StatusFailed, exec.Status)

	records, _ := journal.ListNodeExecutions(context.Background(), exec.ID)
	require.Len(t, records, 1)
	assert.Equal(t, execmodel.StatusFailed, records[0].Status)
}

func TestEngine_MissingOutgoingEdge(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID: "dangling",
		Nodes: []wfmodel.Node{
			transformNode("A", nil),
			transformNode("B", nil),
		},
		StartNode: "A", EndNode: "B", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, _, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.Error(t, err)
	assert.EqualError(t, err, "no outgoing edge found from 'A'")
}

func TestEngine_ExecutorFailure(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID:        "exec-fail",
		Nodes:     []wfmodel.Node{{ID: "A", Type: "failing"}},
		StartNode: "A", EndNode: "A", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, exec, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutor)
	assert.Contains(t, err.Error(), "node 'A' execution failed")
	assert.Equal(t, execmodel.StatusFailed, exec.Status)
}

func TestEngine_UnknownNodeType(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID:        "unknown-type",
		Nodes:     []wfmodel.Node{{ID: "A", Type: "mystery"}},
		StartNode: "A", EndNode: "A", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, _, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.Error(t, err)
	assert.EqualError(t, err, "executor not found for node type: mystery")
}

func TestEngine_SubWorkflow(t *testing.T) {
	sub := &wfmodel.Workflow{
		ID: "sub",
		Nodes: []wfmodel.Node{
			transformNode("inner", map[string]interface{}{"echo": "{{parameters.msg}}"}),
		},
		StartNode: "inner", EndNode: "inner", MaxIterations: 100,
	}
	parent := &wfmodel.Workflow{
		ID: "parent",
		Nodes: []wfmodel.Node{
			{ID: "call", Type: wfmodel.WorkflowTypeExecutor, Config: map[string]interface{}{
				"workflow_id": "sub",
				"parameters":  map[string]interface{}{"msg": "{{parameters.greeting}}"},
			}},
		},
		StartNode: "call", EndNode: "call", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(map[string]*wfmodel.Workflow{"sub": sub})

	result, exec, err := runWorkflow(t, e, journal, parent, map[string]interface{}{"greeting": "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"echo": "hi"}, result)

	subExecs, err := journal.ListExecutions(context.Background(), "sub", 10, 0)
	require.NoError(t, err)
	require.Len(t, subExecs, 1)
	assert.Equal(t, execmodel.StatusCompleted, subExecs[0].Status)
	assert.Equal(t, exec.ID, subExecs[0].ParentExecutionID)
}

func TestEngine_SubWorkflowFailurePropagates(t *testing.T) {
	sub := &wfmodel.Workflow{
		ID:        "sub-fail",
		Nodes:     []wfmodel.Node{{ID: "inner", Type: "failing"}},
		StartNode: "inner", EndNode: "inner", MaxIterations: 100,
	}
	parent := &wfmodel.Workflow{
		ID: "parent-fail",
		Nodes: []wfmodel.Node{
			{ID: "call", Type: wfmodel.WorkflowTypeExecutor, Config: map[string]interface{}{
				"workflow_id": "sub-fail",
				"parameters":  map[string]interface{}{},
			}},
		},
		StartNode: "call", EndNode: "call", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(map[string]*wfmodel.Workflow{"sub-fail": sub})

	_, exec, err := runWorkflow(t, e, journal, parent, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubWorkflow)
	assert.Contains(t, err.Error(), "workflow execution failed for workflow_id 'sub-fail'")
	assert.Equal(t, execmodel.StatusFailed, exec.Status)

	subExecs, _ := journal.ListExecutions(context.Background(), "sub-fail", 10, 0)
	require.Len(t, subExecs, 1)
	assert.Equal(t, execmodel.StatusFailed, subExecs[0].Status)
}

func TestEngine_SubWorkflowMissingConfig(t *testing.T) {
	parent := &wfmodel.Workflow{
		ID: "missing-config",
		Nodes: []wfmodel.Node{
			{ID: "call", Type: wfmodel.WorkflowTypeExecutor, Config: map[string]interface{}{
				"workflow_id": "sub",
			}},
		},
		StartNode: "call", EndNode: "call", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, _, err := runWorkflow(t, e, journal, parent, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires 'parameters' in config")
}

func TestEngine_StreamingEvents(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID: "streamed",
		Nodes: []wfmodel.Node{
			transformNode("A", map[string]interface{}{"v": float64(1)}),
			transformNode("B", map[string]interface{}{"v": float64(2)}),
		},
		Edges:     []wfmodel.Edge{{ID: "e1", From: "A", To: "B"}},
		StartNode: "A", EndNode: "B", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)
	sink := &recordingSink{}

	_, exec, err := runWorkflow(t, e, journal, wf, nil, sink)
	require.NoError(t, err)

	assert.Equal(t, []EventType{
		EventWorkflowStart,
		EventNodeStart, EventNodeComplete,
		EventNodeStart, EventNodeComplete,
		EventWorkflowComplete,
	}, sink.types())

	for _, event := range sink.events {
		assert.Equal(t, "streamed", event.WorkflowID)
		assert.Equal(t, exec.ID, event.ExecutionID)
		assert.Equal(t, 0, event.Depth)
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestEngine_StreamingChunks(t *testing.T) {
	node := wfmodel.Node{
		ID: "A", Type: "chunker",
		Streaming: &wfmodel.StreamingPolicy{Enabled: true},
	}
	wf := &wfmodel.Workflow{
		ID:        "chunked",
		Nodes:     []wfmodel.Node{node},
		StartNode: "A", EndNode: "A", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)
	sink := &recordingSink{}

	result, _, err := runWorkflow(t, e, journal, wf, nil, sink)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"text": "abc"}, result)

	assert.Equal(t, []EventType{
		EventWorkflowStart,
		EventNodeStart,
		EventNodeChunk, EventNodeChunk, EventNodeChunk,
		EventNodeComplete,
		EventWorkflowComplete,
	}, sink.types())
	assert.Equal(t, "a", sink.events[2].Data)
}

func TestEngine_StreamingSubWorkflowDepthAndPath(t *testing.T) {
	sub := &wfmodel.Workflow{
		ID: "sub-stream",
		Nodes: []wfmodel.Node{
			transformNode("inner", map[string]interface{}{"ok": true}),
		},
		StartNode: "inner", EndNode: "inner", MaxIterations: 100,
	}
	parent := &wfmodel.Workflow{
		ID: "parent-stream",
		Nodes: []wfmodel.Node{
			{ID: "call", Type: wfmodel.WorkflowTypeExecutor, Config: map[string]interface{}{
				"workflow_id": "sub-stream",
				"parameters":  map[string]interface{}{},
			}},
		},
		StartNode: "call", EndNode: "call", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(map[string]*wfmodel.Workflow{"sub-stream": sub})
	sink := &recordingSink{}

	_, exec, err := runWorkflow(t, e, journal, parent, nil, sink)
	require.NoError(t, err)

	var inner []Event
	for _, event := range sink.events {
		if event.WorkflowID == "sub-stream" {
			inner = append(inner, event)
		}
	}
	require.NotEmpty(t, inner)
	for _, event := range inner {
		assert.Equal(t, 1, event.Depth)
		assert.Equal(t, []string{"call"}, event.Path)
		assert.Equal(t, exec.ID, event.ParentExecutionID)
	}

	// Sub-workflow events sit between the invoking node's start and
	// complete events.
	assert.Equal(t, EventWorkflowStart, inner[0].Type)
	assert.Equal(t, EventWorkflowComplete, inner[len(inner)-1].Type)
}

func TestEngine_ErrorEventOnStreamingFailure(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID:        "stream-fail",
		Nodes:     []wfmodel.Node{{ID: "A", Type: "failing"}},
		StartNode: "A", EndNode: "A", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)
	sink := &recordingSink{}

	_, _, err := runWorkflow(t, e, journal, wf, nil, sink)
	require.Error(t, err)

	types := sink.types()
	assert.Equal(t, EventError, types[len(types)-1])
}

func TestEngine_SendOnCompleteFalseSuppressesNodeComplete(t *testing.T) {
	off := false
	node := transformNode("A", map[string]interface{}{"v": float64(1)})
	node.Streaming = &wfmodel.StreamingPolicy{Enabled: false, SendOnComplete: &off}
	wf := &wfmodel.Workflow{
		ID:        "quiet",
		Nodes:     []wfmodel.Node{node},
		StartNode: "A", EndNode: "A", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)
	sink := &recordingSink{}

	_, _, err := runWorkflow(t, e, journal, wf, nil, sink)
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventWorkflowStart, EventNodeStart, EventWorkflowComplete}, sink.types())
}

func TestEngine_Cancellation(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID: "cancelled",
		Nodes: []wfmodel.Node{
			transformNode("A", nil),
			transformNode("B", nil),
		},
		Edges:     []wfmodel.Edge{{ID: "e1", From: "A", To: "B"}},
		StartNode: "A", EndNode: "B", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := NewExecution(wf.ID, nil, nil)
	require.NoError(t, journal.CreateExecution(context.Background(), exec))
	_, err := e.Execute(ctx, journal, wf, exec, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, execmodel.StatusFailed, exec.Status)
}

func TestEngine_DefaultMaxIterationsApplied(t *testing.T) {
	wf := &wfmodel.Workflow{
		ID: "default-bound",
		Nodes: []wfmodel.Node{
			transformNode("loop", nil),
			transformNode("end", nil),
		},
		Edges:     []wfmodel.Edge{{ID: "e1", From: "loop", To: "loop"}},
		StartNode: "loop", EndNode: "end",
	}
	journal := memory.NewJournal()
	e := newTestEngine(nil)

	_, _, err := runWorkflow(t, e, journal, wf, nil, nil)
	require.Error(t, err)
	assert.EqualError(t, err, "workflow execution exceeded maximum iterations (100)")
}

func TestEngine_RunnerBacksCustomExecutors(t *testing.T) {
	stored := &wfmodel.Workflow{
		ID: "stored",
		Nodes: []wfmodel.Node{
			transformNode("n", map[string]interface{}{"echo": "{{parameters.in}}"}),
		},
		StartNode: "n", EndNode: "n", MaxIterations: 100,
	}
	journal := memory.NewJournal()
	e := newTestEngine(map[string]*wfmodel.Workflow{"stored": stored})

	runner := e.Runner(journal)
	out, err := runner(context.Background(), "stored", map[string]interface{}{"in": "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"echo": "x"}, out)
}
