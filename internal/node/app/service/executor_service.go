// Package service manages custom executor registrations and keeps the
// registry cache coherent with them.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flowbase-io/flowbase/internal/node/domain/model"
	"github.com/flowbase-io/flowbase/internal/node/domain/repository"
	"github.com/flowbase-io/flowbase/internal/node/runtime"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
	wfrepo "github.com/flowbase-io/flowbase/internal/workflow/domain/repository"
)

type ExecutorService struct {
	repo      repository.Repository
	workflows wfrepo.Repository
	registry  *runtime.Registry
	log       logger.Logger
}

func NewExecutorService(repo repository.Repository, workflows wfrepo.Repository, registry *runtime.Registry, log logger.Logger) *ExecutorService {
	return &ExecutorService{repo: repo, workflows: workflows, registry: registry, log: log}
}

// Register stores a custom executor after checking the type is free and
// the source workflow exists.
func (s *ExecutorService) Register(ctx context.Context, ce *model.CustomExecutor) (*model.CustomExecutor, error) {
	if ce.Type == "" {
		return nil, fmt.Errorf("executor type is required")
	}
	for _, builtin := range s.registry.Builtins() {
		if builtin == ce.Type {
			return nil, fmt.Errorf("executor type '%s' is reserved by a built-in", ce.Type)
		}
	}
	if _, err := s.workflows.GetByID(ctx, ce.SourceWorkflowID); err != nil {
		return nil, fmt.Errorf("source workflow '%s': %w", ce.SourceWorkflowID, err)
	}

	now := time.Now().UTC()
	ce.CreatedAt = now
	ce.UpdatedAt = now
	if err := s.repo.Create(ctx, ce); err != nil {
		return nil, err
	}

	s.registry.ClearCache(ce.Type)
	s.log.Info("custom executor registered", "type", ce.Type, "source_workflow_id", ce.SourceWorkflowID)
	return ce, nil
}

func (s *ExecutorService) List(ctx context.Context) ([]*model.CustomExecutor, error) {
	return s.repo.List(ctx)
}

func (s *ExecutorService) Get(ctx context.Context, execType string) (*model.CustomExecutor, error) {
	return s.repo.GetByType(ctx, execType)
}

// Delete removes a custom executor and evicts its cached wrapper.
func (s *ExecutorService) Delete(ctx context.Context, execType string) error {
	if err := s.repo.Delete(ctx, execType); err != nil {
		return err
	}
	s.registry.ClearCache(execType)
	s.log.Info("custom executor deleted", "type", execType)
	return nil
}

// Builtins lists the built-in executor types.
func (s *ExecutorService) Builtins() []string {
	return s.registry.Builtins()
}
