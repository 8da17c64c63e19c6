// Package model defines named config records: opaque variable mappings
// resolved into executions.
package model

import "time"

// Config is a named set of variables exposed to templates as the
// `config` section of the context. The engine treats the mapping as
// opaque.
type Config struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Variables map[string]interface{} `json:"variables"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}
