package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearWorkflow() *Workflow {
	return &Workflow{
		ID:   "wf-1",
		Name: "linear",
		Nodes: []Node{
			{ID: "a", Type: "transform"},
			{ID: "b", Type: "transform"},
			{ID: "c", Type: "transform"},
		},
		Edges: []Edge{
			{ID: "e1", From: "a", To: "b"},
			{ID: "e2", From: "b", To: "c"},
		},
		StartNode: "a",
		EndNode:   "c",
	}
}

func TestWorkflow_Validate(t *testing.T) {
	t.Run("valid workflow", func(t *testing.T) {
		assert.NoError(t, linearWorkflow().Validate())
	})

	t.Run("missing start node", func(t *testing.T) {
		wf := linearWorkflow()
		wf.StartNode = "ghost"
		err := wf.Validate()
		require.Error(t, err)
		assert.EqualError(t, err, "start node 'ghost' does not exist in workflow")
	})

	t.Run("missing end node", func(t *testing.T) {
		wf := linearWorkflow()
		wf.EndNode = "ghost"
		err := wf.Validate()
		require.Error(t, err)
		assert.EqualError(t, err, "end node 'ghost' does not exist in workflow")
	})

	t.Run("edge from missing node", func(t *testing.T) {
		wf := linearWorkflow()
		wf.Edges = append(wf.Edges, Edge{ID: "e3", From: "ghost", To: "a"})
		err := wf.Validate()
		require.Error(t, err)
		assert.EqualError(t, err, "edge 'e3' references non-existent 'from' node: ghost")
	})

	t.Run("static edge to missing node", func(t *testing.T) {
		wf := linearWorkflow()
		wf.Edges = append(wf.Edges, Edge{ID: "e3", From: "c", To: "ghost"})
		err := wf.Validate()
		require.Error(t, err)
		assert.EqualError(t, err, "edge 'e3' references non-existent 'to' node: ghost")
	})

	t.Run("multiple outgoing edges", func(t *testing.T) {
		wf := linearWorkflow()
		wf.Edges = append(wf.Edges, Edge{ID: "e3", From: "a", To: "c"})
		err := wf.Validate()
		require.Error(t, err)
		assert.EqualError(t, err, "node 'a' has 2 outgoing edges. Each node can only have one outgoing edge.")
	})

	t.Run("duplicate node ids", func(t *testing.T) {
		wf := linearWorkflow()
		wf.Nodes = append(wf.Nodes, Node{ID: "a", Type: "transform"})
		assert.Error(t, wf.Validate())
	})

	t.Run("dynamic edge needs no to", func(t *testing.T) {
		wf := linearWorkflow()
		wf.Edges[1] = Edge{ID: "e2", From: "b", Conditions: nil, Rule: nil, To: "c"}
		assert.NoError(t, wf.Validate())
	})

	t.Run("cycles are legal", func(t *testing.T) {
		wf := linearWorkflow()
		wf.Edges = []Edge{
			{ID: "e1", From: "a", To: "b"},
			{ID: "e2", From: "b", To: "a"},
		}
		wf.EndNode = "b"
		assert.NoError(t, wf.Validate())
	})
}

func TestWorkflow_Indexes(t *testing.T) {
	wf := linearWorkflow()

	nodes := wf.NodeIndex()
	assert.Len(t, nodes, 3)
	assert.Equal(t, "transform", nodes["a"].Type)

	edges := wf.EdgeIndex()
	assert.Len(t, edges, 2)
	assert.Equal(t, "b", edges["a"].To)
	_, ok := edges["c"]
	assert.False(t, ok)
}

func TestWorkflow_Iterations(t *testing.T) {
	wf := &Workflow{}
	assert.Equal(t, DefaultMaxIterations, wf.Iterations())
	wf.MaxIterations = 5
	assert.Equal(t, 5, wf.Iterations())
}

func TestEdge_JSONShapes(t *testing.T) {
	t.Run("static", func(t *testing.T) {
		var e Edge
		require.NoError(t, json.Unmarshal([]byte(`{"id":"e1","from":"a","to":"b"}`), &e))
		assert.True(t, e.IsStatic())
	})

	t.Run("rule as string", func(t *testing.T) {
		var e Edge
		data := []byte(`{"id":"e1","from":"a","rule":"state.done ? 'end' : 'a'"}`)
		require.NoError(t, json.Unmarshal(data, &e))
		assert.False(t, e.IsStatic())
		require.Len(t, e.Rule, 1)
	})

	t.Run("conditions list", func(t *testing.T) {
		var e Edge
		data := []byte(`{"id":"e1","from":"a","conditions":[{"condition":"state.x > 1","node":"b"},{"node":"c"}]}`)
		require.NoError(t, json.Unmarshal(data, &e))
		assert.False(t, e.IsStatic())
		assert.Len(t, e.Conditions, 2)
	})
}

func TestStreamingPolicy(t *testing.T) {
	var p *StreamingPolicy
	assert.True(t, p.EmitOnComplete())

	off := false
	p = &StreamingPolicy{Enabled: true, SendOnComplete: &off}
	assert.False(t, p.EmitOnComplete())

	n := Node{ID: "x", Streaming: p}
	assert.True(t, n.StreamEnabled())
	assert.False(t, Node{ID: "y"}.StreamEnabled())
}
