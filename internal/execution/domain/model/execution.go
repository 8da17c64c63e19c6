// Package model defines execution and node-execution records: the
// journal entries produced by one workflow run.
package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle of executions and node executions.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// canTransition encodes pending → running → completed|failed.
func (s Status) canTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to.Terminal()
	default:
		return false
	}
}

// Execution is one run of a workflow. Records are never re-used; a new
// run creates a new record.
type Execution struct {
	ID                string                 `json:"id"`
	WorkflowID        string                 `json:"workflowId"`
	ParentExecutionID string                 `json:"parentExecutionId,omitempty"`
	Status            Status                 `json:"status"`
	Parameters        map[string]interface{} `json:"parameters,omitempty"`
	Config            map[string]interface{} `json:"config,omitempty"`
	ConfigID          string                 `json:"configId,omitempty"`
	Result            interface{}            `json:"result,omitempty"`
	Error             string                 `json:"error,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	CompletedAt       *time.Time             `json:"completedAt,omitempty"`
}

// Transition moves the execution to a new status, enforcing the
// lifecycle order.
func (e *Execution) Transition(to Status) error {
	if !e.Status.canTransition(to) {
		return fmt.Errorf("invalid execution status transition: %s -> %s", e.Status, to)
	}
	e.Status = to
	if to.Terminal() {
		now := time.Now().UTC()
		e.CompletedAt = &now
	}
	return nil
}

// Complete marks the execution terminal with its final result.
func (e *Execution) Complete(result interface{}) error {
	if err := e.Transition(StatusCompleted); err != nil {
		return err
	}
	e.Result = result
	return nil
}

// Fail marks the execution terminal with an error message.
func (e *Execution) Fail(msg string) error {
	if err := e.Transition(StatusFailed); err != nil {
		return err
	}
	e.Error = msg
	return nil
}

// NodeExecution is one invocation of one node inside one execution.
// Cyclic workflows produce multiple records per (executionId, nodeId).
type NodeExecution struct {
	ID          string      `json:"id"`
	ExecutionID string      `json:"executionId"`
	NodeID      string      `json:"nodeId"`
	Status      Status      `json:"status"`
	Output      interface{} `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// Complete marks the node execution terminal with its output.
func (n *NodeExecution) Complete(output interface{}) {
	now := time.Now().UTC()
	n.Status = StatusCompleted
	n.Output = output
	n.CompletedAt = &now
}

// Fail marks the node execution terminal with an error message.
func (n *NodeExecution) Fail(msg string) {
	now := time.Now().UTC()
	n.Status = StatusFailed
	n.Error = msg
	n.CompletedAt = &now
}
