// Package repository defines the schedule store port.
package repository

import (
	"context"
	"errors"

	"github.com/flowbase-io/flowbase/internal/schedule/domain/model"
)

var ErrNotFound = errors.New("schedule not found")

type Repository interface {
	Create(ctx context.Context, sched *model.Schedule) error
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	List(ctx context.Context, limit, offset int) ([]*model.Schedule, error)
	ListEnabled(ctx context.Context) ([]*model.Schedule, error)
	Update(ctx context.Context, sched *model.Schedule) error
	Delete(ctx context.Context, id string) error
}
