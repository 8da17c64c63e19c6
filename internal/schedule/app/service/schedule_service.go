// Package service manages cron schedules and drives their workflow runs.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	execservice "github.com/flowbase-io/flowbase/internal/execution/app/service"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
	"github.com/flowbase-io/flowbase/internal/schedule/domain/model"
	"github.com/flowbase-io/flowbase/internal/schedule/domain/repository"
	wfrepo "github.com/flowbase-io/flowbase/internal/workflow/domain/repository"
)

type ScheduleService struct {
	repo      repository.Repository
	workflows wfrepo.Repository
	runner    *execservice.ExecutionService
	cron      *cron.Cron
	log       logger.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduleService(repo repository.Repository, workflows wfrepo.Repository, runner *execservice.ExecutionService, log logger.Logger) *ScheduleService {
	return &ScheduleService{
		repo:      repo,
		workflows: workflows,
		runner:    runner,
		cron:      cron.New(),
		log:       log,
		entries:   make(map[string]cron.EntryID),
	}
}

// Start loads enabled schedules and begins the cron loop.
func (s *ScheduleService) Start(ctx context.Context) error {
	schedules, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}
	for _, sched := range schedules {
		if err := s.arm(sched); err != nil {
			s.log.Error("failed to arm schedule", "schedule_id", sched.ID, "error", err)
		}
	}
	s.cron.Start()
	s.log.Info("scheduler started", "schedules", len(schedules))
	return nil
}

// Stop halts the cron loop and waits for in-flight runs.
func (s *ScheduleService) Stop() {
	<-s.cron.Stop().Done()
}

// Create validates and stores a schedule, arming it when enabled.
func (s *ScheduleService) Create(ctx context.Context, sched *model.Schedule) (*model.Schedule, error) {
	if sched.WorkflowID == "" {
		return nil, fmt.Errorf("workflow id is required")
	}
	if _, err := cron.ParseStandard(sched.CronExpr); err != nil {
		return nil, fmt.Errorf("invalid cron expression '%s': %w", sched.CronExpr, err)
	}
	if _, err := s.workflows.GetByID(ctx, sched.WorkflowID); err != nil {
		return nil, fmt.Errorf("workflow '%s': %w", sched.WorkflowID, err)
	}

	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sched.CreatedAt = now
	sched.UpdatedAt = now

	if err := s.repo.Create(ctx, sched); err != nil {
		return nil, err
	}
	if sched.Enabled {
		if err := s.arm(sched); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func (s *ScheduleService) Get(ctx context.Context, id string) (*model.Schedule, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ScheduleService) List(ctx context.Context, limit, offset int) ([]*model.Schedule, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update stores the new definition and re-arms the cron entry.
func (s *ScheduleService) Update(ctx context.Context, sched *model.Schedule) (*model.Schedule, error) {
	if _, err := cron.ParseStandard(sched.CronExpr); err != nil {
		return nil, fmt.Errorf("invalid cron expression '%s': %w", sched.CronExpr, err)
	}
	sched.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, sched); err != nil {
		return nil, err
	}

	s.disarm(sched.ID)
	if sched.Enabled {
		if err := s.arm(sched); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.disarm(id)
	return nil
}

func (s *ScheduleService) arm(sched *model.Schedule) error {
	id := sched.ID
	workflowID := sched.WorkflowID
	req := execservice.RunRequest{Parameters: sched.Parameters, ConfigID: sched.ConfigID}

	entry, err := s.cron.AddFunc(sched.CronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()

		exec, err := s.runner.Run(ctx, workflowID, req)
		if err != nil {
			s.log.Error("scheduled run failed to start", "schedule_id", id, "workflow_id", workflowID, "error", err)
			return
		}
		s.log.Info("scheduled run finished",
			"schedule_id", id, "workflow_id", workflowID,
			"execution_id", exec.ID, "status", string(exec.Status))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule '%s': %w", sched.CronExpr, err)
	}

	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()
	return nil
}

func (s *ScheduleService) disarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[id]; ok {
		s.cron.Remove(entry)
		delete(s.entries, id)
	}
}
