// Package postgres implements the durable execution journal.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowbase-io/flowbase/internal/execution/domain/model"
	"github.com/flowbase-io/flowbase/internal/execution/domain/repository"
)

type journal struct {
	db *sql.DB
}

// NewJournal creates the postgres-backed execution journal.
func NewJournal(db *sql.DB) repository.Journal {
	return &journal{db: db}
}

type executionRow struct {
	id                string
	workflowID        string
	parentExecutionID sql.NullString
	status            string
	parameters        []byte
	config            []byte
	configID          sql.NullString
	result            []byte
	errMsg            sql.NullString
	createdAt         time.Time
	completedAt       sql.NullTime
}

const executionColumns = `id, workflow_id, parent_execution_id, status, parameters,
	config, config_id, result, error, created_at, completed_at`

func (j *journal) CreateExecution(ctx context.Context, exec *model.Execution) error {
	parameters, err := json.Marshal(exec.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	cfg, err := json.Marshal(exec.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, NULL, $8, NULL)`
	_, err = j.db.ExecContext(ctx, query,
		exec.ID, exec.WorkflowID, nullString(exec.ParentExecutionID), string(exec.Status),
		parameters, cfg, nullString(exec.ConfigID), exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (j *journal) UpdateExecution(ctx context.Context, exec *model.Execution) error {
	result, err := json.Marshal(exec.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	query := `
		UPDATE executions
		SET status = $2, result = $3, error = $4, completed_at = $5
		WHERE id = $1`
	res, err := j.db.ExecContext(ctx, query,
		exec.ID, string(exec.Status), result, nullString(exec.Error), nullTime(exec.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	return requireRowAffected(res)
}

func (j *journal) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	var row executionRow
	err := j.db.QueryRowContext(ctx, query, id).Scan(
		&row.id, &row.workflowID, &row.parentExecutionID, &row.status, &row.parameters,
		&row.config, &row.configID, &row.result, &row.errMsg, &row.createdAt, &row.completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return row.toDomain()
}

func (j *journal) ListExecutions(ctx context.Context, workflowID string, limit, offset int) ([]*model.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + executionColumns + ` FROM executions
		WHERE workflow_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := j.db.QueryContext(ctx, query, workflowID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []*model.Execution
	for rows.Next() {
		var row executionRow
		if err := rows.Scan(
			&row.id, &row.workflowID, &row.parentExecutionID, &row.status, &row.parameters,
			&row.config, &row.configID, &row.result, &row.errMsg, &row.createdAt, &row.completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		exec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		executions = append(executions, exec)
	}
	return executions, rows.Err()
}

func (j *journal) CreateNodeExecution(ctx context.Context, ne *model.NodeExecution) error {
	query := `
		INSERT INTO node_executions (id, execution_id, node_id, status, output, error, created_at, completed_at)
		VALUES ($1, $2, $3, $4, NULL, NULL, $5, NULL)`
	_, err := j.db.ExecContext(ctx, query,
		ne.ID, ne.ExecutionID, ne.NodeID, string(ne.Status), ne.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create node execution: %w", err)
	}
	return nil
}

func (j *journal) UpdateNodeExecution(ctx context.Context, ne *model.NodeExecution) error {
	output, err := json.Marshal(ne.Output)
	if err != nil {
		return fmt.Errorf("failed to encode node output: %w", err)
	}

	query := `
		UPDATE node_executions
		SET status = $2, output = $3, error = $4, completed_at = $5
		WHERE id = $1`
	res, err := j.db.ExecContext(ctx, query,
		ne.ID, string(ne.Status), output, nullString(ne.Error), nullTime(ne.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update node execution: %w", err)
	}
	return requireRowAffected(res)
}

func (j *journal) ListNodeExecutions(ctx context.Context, executionID string) ([]*model.NodeExecution, error) {
	query := `
		SELECT id, execution_id, node_id, status, output, error, created_at, completed_at
		FROM node_executions WHERE execution_id = $1 ORDER BY created_at ASC`

	rows, err := j.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node executions: %w", err)
	}
	defer rows.Close()

	var nodeExecutions []*model.NodeExecution
	for rows.Next() {
		ne := &model.NodeExecution{}
		var output []byte
		var errMsg sql.NullString
		var status string
		var completedAt sql.NullTime
		if err := rows.Scan(&ne.ID, &ne.ExecutionID, &ne.NodeID, &status, &output, &errMsg, &ne.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan node execution: %w", err)
		}
		ne.Status = model.Status(status)
		ne.Error = errMsg.String
		if completedAt.Valid {
			t := completedAt.Time
			ne.CompletedAt = &t
		}
		if len(output) > 0 {
			if err := json.Unmarshal(output, &ne.Output); err != nil {
				return nil, fmt.Errorf("failed to decode node output: %w", err)
			}
		}
		nodeExecutions = append(nodeExecutions, ne)
	}
	return nodeExecutions, rows.Err()
}

func (row *executionRow) toDomain() (*model.Execution, error) {
	exec := &model.Execution{
		ID:                row.id,
		WorkflowID:        row.workflowID,
		ParentExecutionID: row.parentExecutionID.String,
		Status:            model.Status(row.status),
		ConfigID:          row.configID.String,
		Error:             row.errMsg.String,
		CreatedAt:         row.createdAt,
	}
	if row.completedAt.Valid {
		t := row.completedAt.Time
		exec.CompletedAt = &t
	}
	if len(row.parameters) > 0 {
		if err := json.Unmarshal(row.parameters, &exec.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
	}
	if len(row.config) > 0 {
		if err := json.Unmarshal(row.config, &exec.Config); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}
	if len(row.result) > 0 {
		if err := json.Unmarshal(row.result, &exec.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return exec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
