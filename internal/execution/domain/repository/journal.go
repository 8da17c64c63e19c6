// Package repository declares the execution journal: the persistence
// contract the engine writes through.
package repository

import (
	"context"
	"errors"

	"github.com/flowbase-io/flowbase/internal/execution/domain/model"
)

// ErrNotFound is returned when no record matches the given id.
var ErrNotFound = errors.New("execution not found")

// Journal records executions and node executions. The engine is the
// single writer; observers read through the same interface. Both a
// durable postgres backing and a per-request in-memory backing exist.
type Journal interface {
	CreateExecution(ctx context.Context, exec *model.Execution) error
	UpdateExecution(ctx context.Context, exec *model.Execution) error
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
	ListExecutions(ctx context.Context, workflowID string, limit, offset int) ([]*model.Execution, error)

	CreateNodeExecution(ctx context.Context, ne *model.NodeExecution) error
	UpdateNodeExecution(ctx context.Context, ne *model.NodeExecution) error
	ListNodeExecutions(ctx context.Context, executionID string) ([]*model.NodeExecution, error)
}
