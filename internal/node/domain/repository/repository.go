// Package repository declares persistence for custom executor records.
package repository

import (
	"context"
	"errors"

	"github.com/flowbase-io/flowbase/internal/node/domain/model"
)

// ErrNotFound is returned when no custom executor matches the type.
var ErrNotFound = errors.New("custom executor not found")

// Repository persists custom executor registrations.
type Repository interface {
	Create(ctx context.Context, ce *model.CustomExecutor) error
	GetByType(ctx context.Context, execType string) (*model.CustomExecutor, error)
	List(ctx context.Context) ([]*model.CustomExecutor, error)
	Delete(ctx context.Context, execType string) error
}
