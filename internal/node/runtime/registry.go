package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	nodemodel "github.com/flowbase-io/flowbase/internal/node/domain/model"
	noderepo "github.com/flowbase-io/flowbase/internal/node/domain/repository"
)

// WorkflowRunner runs a stored workflow and returns its final output.
// It is injected by the engine wiring so the registry does not depend
// on the engine package.
type WorkflowRunner func(ctx context.Context, workflowID string, parameters, config map[string]interface{}) (interface{}, error)

// Registry maps node types to executors. Built-ins are checked first,
// then custom executors loaded from their store and cached per type.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]Executor
	cache    map[string]Executor

	customs noderepo.Repository
	runner  WorkflowRunner
}

// NewRegistry creates a registry. The custom executor store may be nil,
// in which case only built-ins resolve.
func NewRegistry(customs noderepo.Repository) *Registry {
	return &Registry{
		builtins: make(map[string]Executor),
		cache:    make(map[string]Executor),
		customs:  customs,
	}
}

// SetRunner installs the workflow runner used to back custom executors.
func (r *Registry) SetRunner(runner WorkflowRunner) {
	r.mu.Lock()
	r.runner = runner
	r.mu.Unlock()
}

// Register adds a built-in executor. Later registrations for the same
// type win.
func (r *Registry) Register(exec Executor) {
	r.mu.Lock()
	r.builtins[exec.Type()] = exec
	r.mu.Unlock()
}

// Builtins lists the registered built-in types.
func (r *Registry) Builtins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.builtins))
	for t := range r.builtins {
		types = append(types, t)
	}
	return types
}

// Resolve returns the executor for a node type: built-ins first, then
// cached custom wrappers, then a store lookup.
func (r *Registry) Resolve(ctx context.Context, nodeType string) (Executor, error) {
	r.mu.RLock()
	if exec, ok := r.builtins[nodeType]; ok {
		r.mu.RUnlock()
		return exec, nil
	}
	if exec, ok := r.cache[nodeType]; ok {
		r.mu.RUnlock()
		return exec, nil
	}
	customs, runner := r.customs, r.runner
	r.mu.RUnlock()

	if customs == nil || runner == nil {
		return nil, fmt.Errorf("executor not found for node type: %s", nodeType)
	}

	record, err := customs.GetByType(ctx, nodeType)
	if err != nil {
		if errors.Is(err, noderepo.ErrNotFound) {
			return nil, fmt.Errorf("executor not found for node type: %s", nodeType)
		}
		return nil, fmt.Errorf("failed to load custom executor '%s': %w", nodeType, err)
	}

	wrapper := newCustomExecutor(record, runner)
	r.mu.Lock()
	r.cache[nodeType] = wrapper
	r.mu.Unlock()
	return wrapper, nil
}

// ClearCache evicts one cached custom executor.
func (r *Registry) ClearCache(nodeType string) {
	r.mu.Lock()
	delete(r.cache, nodeType)
	r.mu.Unlock()
}

// ClearAllCache evicts every cached custom executor.
func (r *Registry) ClearAllCache() {
	r.mu.Lock()
	r.cache = make(map[string]Executor)
	r.mu.Unlock()
}

// customExecutor wraps a stored workflow as an executor. The node's
// expanded config becomes the sub-workflow's parameters.
type customExecutor struct {
	record *nodemodel.CustomExecutor
	runner WorkflowRunner
}

func newCustomExecutor(record *nodemodel.CustomExecutor, runner WorkflowRunner) Executor {
	return &customExecutor{record: record, runner: runner}
}

func (c *customExecutor) Type() string { return c.record.Type }

func (c *customExecutor) ConfigSchema() map[string]interface{} { return c.record.ConfigSchema }

func (c *customExecutor) Execute(ctx context.Context, nodeConfig map[string]interface{}, input Input) (interface{}, error) {
	return c.runner(ctx, c.record.SourceWorkflowID, nodeConfig, input.Config)
}
