// Package memory implements the per-request journal used by dry-run
// executions. Records live only as long as the journal itself.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/flowbase-io/flowbase/internal/execution/domain/model"
	"github.com/flowbase-io/flowbase/internal/execution/domain/repository"
)

type journal struct {
	mu             sync.RWMutex
	executions     map[string]model.Execution
	nodeExecutions map[string][]model.NodeExecution
	nodeIndex      map[string]int // node-execution id -> slice position
	nodeOwner      map[string]string
}

// NewJournal creates an empty in-memory journal.
func NewJournal() repository.Journal {
	return &journal{
		executions:     make(map[string]model.Execution),
		nodeExecutions: make(map[string][]model.NodeExecution),
		nodeIndex:      make(map[string]int),
		nodeOwner:      make(map[string]string),
	}
}

func (j *journal) CreateExecution(_ context.Context, exec *model.Execution) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.executions[exec.ID] = *exec
	return nil
}

func (j *journal) UpdateExecution(_ context.Context, exec *model.Execution) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.executions[exec.ID]; !ok {
		return repository.ErrNotFound
	}
	j.executions[exec.ID] = *exec
	return nil
}

func (j *journal) GetExecution(_ context.Context, id string) (*model.Execution, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	exec, ok := j.executions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := exec
	return &copied, nil
}

func (j *journal) ListExecutions(_ context.Context, workflowID string, limit, offset int) ([]*model.Execution, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var matched []*model.Execution
	for _, exec := range j.executions {
		if exec.WorkflowID == workflowID {
			copied := exec
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(a, b int) bool {
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (j *journal) CreateNodeExecution(_ context.Context, ne *model.NodeExecution) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nodeExecutions[ne.ExecutionID] = append(j.nodeExecutions[ne.ExecutionID], *ne)
	j.nodeIndex[ne.ID] = len(j.nodeExecutions[ne.ExecutionID]) - 1
	j.nodeOwner[ne.ID] = ne.ExecutionID
	return nil
}

func (j *journal) UpdateNodeExecution(_ context.Context, ne *model.NodeExecution) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	owner, ok := j.nodeOwner[ne.ID]
	if !ok {
		return repository.ErrNotFound
	}
	j.nodeExecutions[owner][j.nodeIndex[ne.ID]] = *ne
	return nil
}

func (j *journal) ListNodeExecutions(_ context.Context, executionID string) ([]*model.NodeExecution, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	records := j.nodeExecutions[executionID]
	result := make([]*model.NodeExecution, len(records))
	for i := range records {
		copied := records[i]
		result[i] = &copied
	}
	return result, nil
}
