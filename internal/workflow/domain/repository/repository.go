// Package repository declares the workflow persistence contract.
package repository

import (
	"context"
	"errors"

	"github.com/flowbase-io/flowbase/internal/workflow/domain/model"
)

// ErrNotFound is returned when no workflow matches the given id.
var ErrNotFound = errors.New("workflow not found")

// Repository persists workflow definitions.
type Repository interface {
	Create(ctx context.Context, wf *model.Workflow) error
	GetByID(ctx context.Context, id string) (*model.Workflow, error)
	List(ctx context.Context, limit, offset int) ([]*model.Workflow, error)
	Update(ctx context.Context, wf *model.Workflow) error
	Delete(ctx context.Context, id string) error
}
