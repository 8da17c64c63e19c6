// Package repository declares persistence for named configs.
package repository

import (
	"context"
	"errors"

	"github.com/flowbase-io/flowbase/internal/config/domain/model"
)

// ErrNotFound is returned when no config matches the given id.
var ErrNotFound = errors.New("config not found")

// Repository persists config records.
type Repository interface {
	Create(ctx context.Context, cfg *model.Config) error
	GetByID(ctx context.Context, id string) (*model.Config, error)
	List(ctx context.Context, limit, offset int) ([]*model.Config, error)
	Update(ctx context.Context, cfg *model.Config) error
	Delete(ctx context.Context, id string) error
}
