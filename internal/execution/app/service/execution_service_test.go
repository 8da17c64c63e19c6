package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbase-io/flowbase/internal/engine"
	"github.com/flowbase-io/flowbase/internal/execution/adapters/repository/memory"
	execmodel "github.com/flowbase-io/flowbase/internal/execution/domain/model"
	execrepo "github.com/flowbase-io/flowbase/internal/execution/domain/repository"
	"github.com/flowbase-io/flowbase/internal/node/runtime"
	"github.com/flowbase-io/flowbase/internal/platform/config"
	"github.com/flowbase-io/flowbase/internal/platform/logger"
	wfmodel "github.com/flowbase-io/flowbase/internal/workflow/domain/model"
	wfrepo "github.com/flowbase-io/flowbase/internal/workflow/domain/repository"
	"github.com/flowbase-io/flowbase/pkg/expression"
)

type echoExecutor struct{}

func (echoExecutor) Type() string                         { return "transform" }
func (echoExecutor) ConfigSchema() map[string]interface{} { return nil }
func (echoExecutor) Execute(_ context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	return cfg, nil
}

type stubWorkflowRepo struct {
	byID map[string]*wfmodel.Workflow
}

func (s *stubWorkflowRepo) Create(context.Context, *wfmodel.Workflow) error { return nil }
func (s *stubWorkflowRepo) Update(context.Context, *wfmodel.Workflow) error { return nil }
func (s *stubWorkflowRepo) Delete(context.Context, string) error            { return nil }
func (s *stubWorkflowRepo) List(context.Context, int, int) ([]*wfmodel.Workflow, error) {
	return nil, nil
}
func (s *stubWorkflowRepo) GetByID(_ context.Context, id string) (*wfmodel.Workflow, error) {
	wf, ok := s.byID[id]
	if !ok {
		return nil, wfrepo.ErrNotFound
	}
	return wf, nil
}

type stubConfigs struct {
	variables map[string]map[string]interface{}
}

func (s *stubConfigs) ResolveVariables(_ context.Context, id string) (map[string]interface{}, error) {
	if id == "" {
		return map[string]interface{}{}, nil
	}
	return s.variables[id], nil
}

func testWorkflow() *wfmodel.Workflow {
	return &wfmodel.Workflow{
		ID: "wf-1",
		Nodes: []wfmodel.Node{
			{ID: "only", Type: "transform", Config: map[string]interface{}{
				"greeting": "hello {{parameters.name}}",
				"url":      "{{config.apiUrl}}",
			}},
		},
		StartNode: "only", EndNode: "only", MaxIterations: 100,
	}
}

func newTestService(journal execrepo.Journal) *ExecutionService {
	workflows := &stubWorkflowRepo{byID: map[string]*wfmodel.Workflow{"wf-1": testWorkflow()}}
	reg := runtime.NewRegistry(nil)
	reg.Register(echoExecutor{})
	eng := engine.New(workflows, reg, expression.NewEvaluator(), config.EngineConfig{}, logger.NewNop(), nil, nil)
	configs := &stubConfigs{variables: map[string]map[string]interface{}{
		"cfg-1": {"apiUrl": "https://api"},
	}}
	return NewExecutionService(workflows, journal, configs, eng, nil, nil, 16, logger.NewNop())
}

func TestExecutionService_Run(t *testing.T) {
	journal := memory.NewJournal()
	svc := newTestService(journal)

	exec, err := svc.Run(context.Background(), "wf-1", RunRequest{
		Parameters: map[string]interface{}{"name": "world"},
		ConfigID:   "cfg-1",
	})
	require.NoError(t, err)
	assert.Equal(t, execmodel.StatusCompleted, exec.Status)
	assert.Equal(t, map[string]interface{}{
		"greeting": "hello world",
		"url":      "https://api",
	}, exec.Result)

	stored, err := svc.Get(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, execmodel.StatusCompleted, stored.Status)
}

func TestExecutionService_RunUnknownWorkflow(t *testing.T) {
	journal := memory.NewJournal()
	svc := newTestService(journal)

	_, err := svc.Run(context.Background(), "ghost", RunRequest{})
	assert.ErrorIs(t, err, wfrepo.ErrNotFound)
}

func TestExecutionService_DryRunLeavesDurableJournalEmpty(t *testing.T) {
	journal := memory.NewJournal()
	svc := newTestService(journal)

	exec, err := svc.Run(context.Background(), "wf-1", RunRequest{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, execmodel.StatusCompleted, exec.Status)

	durable, err := journal.ListExecutions(context.Background(), "wf-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, durable)
}

func TestExecutionService_RunStream(t *testing.T) {
	journal := memory.NewJournal()
	svc := newTestService(journal)

	events, err := svc.RunStream(context.Background(), "wf-1", RunRequest{
		Parameters: map[string]interface{}{"name": "stream"},
	})
	require.NoError(t, err)

	var types []engine.EventType
	for event := range events {
		types = append(types, event.Type)
	}
	assert.Equal(t, []engine.EventType{
		engine.EventWorkflowStart,
		engine.EventNodeStart,
		engine.EventNodeComplete,
		engine.EventWorkflowComplete,
	}, types)
}
