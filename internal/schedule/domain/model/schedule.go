// Package model defines cron schedules that trigger workflow runs.
package model

import "time"

// Schedule runs a workflow on a cron expression with fixed parameters.
type Schedule struct {
	ID         string                 `json:"id"`
	WorkflowID string                 `json:"workflowId"`
	CronExpr   string                 `json:"cronExpr"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	ConfigID   string                 `json:"configId,omitempty"`
	Enabled    bool                   `json:"enabled"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}
