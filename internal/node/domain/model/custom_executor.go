// Package model defines custom executor records: stored workflows
// exposed as node types.
package model

import "time"

// CustomExecutor registers a workflow as a reusable node type. The
// registry wraps the referenced workflow in an engine-backed executor.
type CustomExecutor struct {
	Type             string                 `json:"type"`
	SourceWorkflowID string                 `json:"sourceWorkflowId"`
	ConfigSchema     map[string]interface{} `json:"configSchema,omitempty"`
	Description      string                 `json:"description,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}
