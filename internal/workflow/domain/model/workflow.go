// Package model defines the workflow aggregate: the static graph of
// nodes and edges that executions interpret.
package model

import (
	"fmt"
	"time"

	"github.com/flowbase-io/flowbase/pkg/expression"
)

const DefaultMaxIterations = 100

// Workflow is the static program: a directed graph of typed nodes joined
// by static or dynamic edges, walked from StartNode to EndNode.
type Workflow struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	ParameterSchema map[string]interface{} `json:"parameterSchema,omitempty"`
	Nodes           []Node                 `json:"nodes"`
	Edges           []Edge                 `json:"edges"`
	StartNode       string                 `json:"startNode"`
	EndNode         string                 `json:"endNode"`
	State           map[string]interface{} `json:"state,omitempty"`
	MaxIterations   int                    `json:"maxIterations,omitempty"`
	DefaultConfigID string                 `json:"defaultConfigId,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// Node is one processing step. Config is a template tree expanded per
// visit; SetState rules run after the node completes.
type Node struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Name      string                 `json:"name,omitempty"`
	Config    map[string]interface{} `json:"config,omitempty"`
	SetState  []StateRule            `json:"setState,omitempty"`
	Streaming *StreamingPolicy       `json:"streaming,omitempty"`
}

// StateRule assigns the rule's result to state[Key] after the node runs.
type StateRule struct {
	Key  string          `json:"key"`
	Rule expression.Rule `json:"rule"`
}

// StreamingPolicy controls event emission for a node. SendOnComplete
// defaults to true when unset.
type StreamingPolicy struct {
	Enabled        bool  `json:"enabled"`
	SendOnComplete *bool `json:"sendOnComplete,omitempty"`
}

// EmitOnComplete reports whether node_complete events should be sent.
func (p *StreamingPolicy) EmitOnComplete() bool {
	if p == nil || p.SendOnComplete == nil {
		return true
	}
	return *p.SendOnComplete
}

// StreamEnabled reports whether chunk streaming is requested for the node.
func (n Node) StreamEnabled() bool {
	return n.Streaming != nil && n.Streaming.Enabled
}

// Edge connects nodes. Static edges carry To; dynamic edges carry a Rule
// program or a Conditions list selecting the next node at runtime.
type Edge struct {
	ID         string                 `json:"id"`
	From       string                 `json:"from"`
	To         string                 `json:"to,omitempty"`
	Rule       expression.Rule        `json:"rule,omitempty"`
	Conditions []expression.Condition `json:"conditions,omitempty"`
}

// IsStatic reports whether the edge names its destination directly.
func (e Edge) IsStatic() bool {
	return e.To != "" && len(e.Rule) == 0 && len(e.Conditions) == 0
}

// WorkflowTypeExecutor is the reserved node type handled by the engine
// itself: it runs a referenced workflow as a sub-execution.
const WorkflowTypeExecutor = "workflow_executor"

// NodeIndex builds the id → node lookup used during traversal.
func (w *Workflow) NodeIndex() map[string]Node {
	index := make(map[string]Node, len(w.Nodes))
	for _, n := range w.Nodes {
		index[n.ID] = n
	}
	return index
}

// EdgeIndex builds the from-id → edge lookup. Valid workflows have at
// most one outgoing edge per node.
func (w *Workflow) EdgeIndex() map[string]Edge {
	index := make(map[string]Edge, len(w.Edges))
	for _, e := range w.Edges {
		index[e.From] = e
	}
	return index
}

// Iterations returns the effective traversal bound.
func (w *Workflow) Iterations() int {
	if w.MaxIterations > 0 {
		return w.MaxIterations
	}
	return DefaultMaxIterations
}

// Validate performs the structural checks required before traversal:
// start and end nodes exist, edge endpoints exist, node ids are unique,
// and no node has more than one outgoing edge. Cycles are legal.
func (w *Workflow) Validate() error {
	nodes := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if nodes[n.ID] {
			return fmt.Errorf("duplicate node id '%s'", n.ID)
		}
		nodes[n.ID] = true
	}

	if !nodes[w.StartNode] {
		return fmt.Errorf("start node '%s' does not exist in workflow", w.StartNode)
	}
	if !nodes[w.EndNode] {
		return fmt.Errorf("end node '%s' does not exist in workflow", w.EndNode)
	}

	outgoing := make(map[string]int, len(w.Edges))
	for _, e := range w.Edges {
		if !nodes[e.From] {
			return fmt.Errorf("edge '%s' references non-existent 'from' node: %s", e.ID, e.From)
		}
		if e.IsStatic() && !nodes[e.To] {
			return fmt.Errorf("edge '%s' references non-existent 'to' node: %s", e.ID, e.To)
		}
		outgoing[e.From]++
	}

	for _, n := range w.Nodes {
		if count := outgoing[n.ID]; count > 1 {
			return fmt.Errorf("node '%s' has %d outgoing edges. Each node can only have one outgoing edge.", n.ID, count)
		}
	}
	return nil
}
