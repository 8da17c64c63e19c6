// Package service drives workflow runs: it resolves the workflow and
// config snapshot, picks the journal backing, invokes the engine, and
// publishes lifecycle events.
package service

import (
	"context"
	"time"

	"github.com/flowbase-io/flowbase/internal/engine"
	"github.com/flowbase-io/flowbase/internal/execution/adapters/repository/memory"
	execmodel "github.com/flowbase-io/flowbase/internal/execution/domain/model"
	execrepo "github.com/flowbase-io/flowbase/internal/execution/domain/repository"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
	"github.com/flowbase-io/flowbase/internal/platform/messaging/kafka"
	wfmodel "github.com/flowbase-io/flowbase/internal/workflow/domain/model"
	wfrepo "github.com/flowbase-io/flowbase/internal/workflow/domain/repository"
)

// RunRequest is the execution request surface.
type RunRequest struct {
	Parameters map[string]interface{} `json:"parameters"`
	ConfigID   string                 `json:"configId,omitempty"`
	Stream     bool                   `json:"stream,omitempty"`
	DryRun     bool                   `json:"dryRun,omitempty"`
}

// ConfigResolver supplies the variable snapshot for a config id.
type ConfigResolver interface {
	ResolveVariables(ctx context.Context, id string) (map[string]interface{}, error)
}

// EventBroadcaster mirrors stream events to monitoring clients. May be
// nil.
type EventBroadcaster interface {
	Broadcast(event engine.Event)
}

type ExecutionService struct {
	workflows   wfrepo.Repository
	journal     execrepo.Journal
	configs     ConfigResolver
	engine      *engine.Engine
	publisher   *kafka.Publisher
	broadcaster EventBroadcaster
	streamBuf   int
	log         logger.Logger
}

func NewExecutionService(
	workflows wfrepo.Repository,
	journal execrepo.Journal,
	configs ConfigResolver,
	eng *engine.Engine,
	publisher *kafka.Publisher,
	broadcaster EventBroadcaster,
	streamBuf int,
	log logger.Logger,
) *ExecutionService {
	return &ExecutionService{
		workflows:   workflows,
		journal:     journal,
		configs:     configs,
		engine:      eng,
		publisher:   publisher,
		broadcaster: broadcaster,
		streamBuf:   streamBuf,
		log:         log,
	}
}

// prepare resolves the workflow, config snapshot, journal backing and
// pending execution record shared by both run modes.
func (s *ExecutionService) prepare(ctx context.Context, workflowID string, req RunRequest) (*wfmodel.Workflow, execrepo.Journal, *execmodel.Execution, error) {
	wf, err := s.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return nil, nil, nil, err
	}

	configID := req.ConfigID
	if configID == "" {
		configID = wf.DefaultConfigID
	}
	variables, err := s.configs.ResolveVariables(ctx, configID)
	if err != nil {
		return nil, nil, nil, err
	}

	journal := s.journal
	if req.DryRun {
		journal = memory.NewJournal()
	}

	exec := engine.NewExecution(wf.ID, req.Parameters, variables)
	exec.ConfigID = configID
	if err := journal.CreateExecution(ctx, exec); err != nil {
		return nil, nil, nil, err
	}
	return wf, journal, exec, nil
}

// Run executes a workflow to completion and returns the terminal
// execution record. Engine failures are reported on the record, not as
// an error.
func (s *ExecutionService) Run(ctx context.Context, workflowID string, req RunRequest) (*execmodel.Execution, error) {
	wf, journal, exec, err := s.prepare(ctx, workflowID, req)
	if err != nil {
		return nil, err
	}

	s.publishLifecycle("execution_started", exec)
	if _, err := s.engine.Execute(ctx, journal, wf, exec, nil); err != nil {
		s.publishLifecycle("execution_failed", exec)
		return exec, nil
	}
	s.publishLifecycle("execution_completed", exec)
	return exec, nil
}

// RunStream executes a workflow with streaming. Events arrive on the
// returned channel, which closes after the terminal event.
func (s *ExecutionService) RunStream(ctx context.Context, workflowID string, req RunRequest) (<-chan engine.Event, error) {
	wf, journal, exec, err := s.prepare(ctx, workflowID, req)
	if err != nil {
		return nil, err
	}

	sink := engine.NewChannelSink(s.streamBuf)
	var engineSink engine.Sink = sink
	if s.broadcaster != nil {
		engineSink = &teeSink{primary: sink, broadcaster: s.broadcaster}
	}

	go func() {
		defer sink.Close()
		s.publishLifecycle("execution_started", exec)
		if _, err := s.engine.Execute(ctx, journal, wf, exec, engineSink); err != nil {
			s.publishLifecycle("execution_failed", exec)
			return
		}
		s.publishLifecycle("execution_completed", exec)
	}()
	return sink.Events(), nil
}

func (s *ExecutionService) Get(ctx context.Context, id string) (*execmodel.Execution, error) {
	return s.journal.GetExecution(ctx, id)
}

func (s *ExecutionService) List(ctx context.Context, workflowID string, limit, offset int) ([]*execmodel.Execution, error) {
	return s.journal.ListExecutions(ctx, workflowID, limit, offset)
}

func (s *ExecutionService) ListNodes(ctx context.Context, executionID string) ([]*execmodel.NodeExecution, error) {
	return s.journal.ListNodeExecutions(ctx, executionID)
}

func (s *ExecutionService) publishLifecycle(event string, exec *execmodel.Execution) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(kafka.LifecycleEvent{
		Event:       event,
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		Status:      string(exec.Status),
		Timestamp:   time.Now().UTC(),
		Error:       exec.Error,
	})
}

// teeSink forwards events to the request stream and mirrors them to the
// realtime broadcaster.
type teeSink struct {
	primary     engine.Sink
	broadcaster EventBroadcaster
}

func (t *teeSink) Send(ctx context.Context, event engine.Event) {
	t.primary.Send(ctx, event)
	t.broadcaster.Broadcast(event)
}
