// Package service holds the workflow application service: CRUD with
// structural validation on every write.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowbase-io/flowbase/internal/platform/logger"
	"github.com/flowbase-io/flowbase/internal/workflow/domain/model"
	"github.com/flowbase-io/flowbase/internal/workflow/domain/repository"
)

type WorkflowService struct {
	repo repository.Repository
	log  logger.Logger
}

func NewWorkflowService(repo repository.Repository, log logger.Logger) *WorkflowService {
	return &WorkflowService{repo: repo, log: log}
}

// Create validates and stores a new workflow, assigning id and
// timestamps.
func (s *WorkflowService) Create(ctx context.Context, wf *model.Workflow) (*model.Workflow, error) {
	if wf.Name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	now := time.Now().UTC()
	wf.ID = uuid.New().String()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	if wf.MaxIterations <= 0 {
		wf.MaxIterations = model.DefaultMaxIterations
	}

	if err := s.repo.Create(ctx, wf); err != nil {
		return nil, err
	}
	s.log.Info("workflow created", "workflow_id", wf.ID, "name", wf.Name)
	return wf, nil
}

func (s *WorkflowService) Get(ctx context.Context, id string) (*model.Workflow, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *WorkflowService) List(ctx context.Context, limit, offset int) ([]*model.Workflow, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update validates and stores changes to an existing workflow.
func (s *WorkflowService) Update(ctx context.Context, wf *model.Workflow) (*model.Workflow, error) {
	existing, err := s.repo.GetByID(ctx, wf.ID)
	if err != nil {
		return nil, err
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	wf.CreatedAt = existing.CreatedAt
	wf.UpdatedAt = time.Now().UTC()
	if wf.MaxIterations <= 0 {
		wf.MaxIterations = model.DefaultMaxIterations
	}

	if err := s.repo.Update(ctx, wf); err != nil {
		return nil, err
	}
	s.log.Info("workflow updated", "workflow_id", wf.ID)
	return wf, nil
}

func (s *WorkflowService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("workflow deleted", "workflow_id", id)
	return nil
}
