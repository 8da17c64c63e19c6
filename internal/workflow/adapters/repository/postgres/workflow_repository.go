// Package postgres implements the workflow repository on postgres with
// JSONB columns for the graph payload.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowbase-io/flowbase/internal/workflow/domain/model"
	"github.com/flowbase-io/flowbase/internal/workflow/domain/repository"
)

type workflowRepository struct {
	db *sql.DB
}

// NewWorkflowRepository creates the postgres-backed workflow repository.
func NewWorkflowRepository(db *sql.DB) repository.Repository {
	return &workflowRepository{db: db}
}

type workflowRow struct {
	id              string
	name            string
	description     sql.NullString
	parameterSchema []byte
	nodes           []byte
	edges           []byte
	startNode       string
	endNode         string
	state           []byte
	maxIterations   int
	defaultConfigID sql.NullString
	createdAt       time.Time
	updatedAt       time.Time
}

const workflowColumns = `id, name, description, parameter_schema, nodes, edges,
	start_node, end_node, state, max_iterations, default_config_id, created_at, updated_at`

func (r *workflowRepository) Create(ctx context.Context, wf *model.Workflow) error {
	nodes, edges, state, schema, err := encodeGraph(wf)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = r.db.ExecContext(ctx, query,
		wf.ID, wf.Name, nullString(wf.Description), schema, nodes, edges,
		wf.StartNode, wf.EndNode, state, wf.Iterations(), nullString(wf.DefaultConfigID),
		wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

func (r *workflowRepository) GetByID(ctx context.Context, id string) (*model.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	var row workflowRow
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&row.id, &row.name, &row.description, &row.parameterSchema, &row.nodes, &row.edges,
		&row.startNode, &row.endNode, &row.state, &row.maxIterations, &row.defaultConfigID,
		&row.createdAt, &row.updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return row.toDomain()
}

func (r *workflowRepository) List(ctx context.Context, limit, offset int) ([]*model.Workflow, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + workflowColumns + ` FROM workflows
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*model.Workflow
	for rows.Next() {
		var row workflowRow
		if err := rows.Scan(
			&row.id, &row.name, &row.description, &row.parameterSchema, &row.nodes, &row.edges,
			&row.startNode, &row.endNode, &row.state, &row.maxIterations, &row.defaultConfigID,
			&row.createdAt, &row.updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		wf, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (r *workflowRepository) Update(ctx context.Context, wf *model.Workflow) error {
	nodes, edges, state, schema, err := encodeGraph(wf)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflows
		SET name = $2, description = $3, parameter_schema = $4, nodes = $5, edges = $6,
			start_node = $7, end_node = $8, state = $9, max_iterations = $10,
			default_config_id = $11, updated_at = $12
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		wf.ID, wf.Name, nullString(wf.Description), schema, nodes, edges,
		wf.StartNode, wf.EndNode, state, wf.Iterations(), nullString(wf.DefaultConfigID),
		wf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}
	return requireRowAffected(result)
}

func (r *workflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return requireRowAffected(result)
}

func (row *workflowRow) toDomain() (*model.Workflow, error) {
	wf := &model.Workflow{
		ID:              row.id,
		Name:            row.name,
		Description:     row.description.String,
		StartNode:       row.startNode,
		EndNode:         row.endNode,
		MaxIterations:   row.maxIterations,
		DefaultConfigID: row.defaultConfigID.String,
		CreatedAt:       row.createdAt,
		UpdatedAt:       row.updatedAt,
	}

	if len(row.nodes) > 0 {
		if err := json.Unmarshal(row.nodes, &wf.Nodes); err != nil {
			return nil, fmt.Errorf("failed to decode nodes for workflow %s: %w", row.id, err)
		}
	}
	if len(row.edges) > 0 {
		if err := json.Unmarshal(row.edges, &wf.Edges); err != nil {
			return nil, fmt.Errorf("failed to decode edges for workflow %s: %w", row.id, err)
		}
	}
	if len(row.state) > 0 {
		if err := json.Unmarshal(row.state, &wf.State); err != nil {
			return nil, fmt.Errorf("failed to decode state for workflow %s: %w", row.id, err)
		}
	}
	if len(row.parameterSchema) > 0 {
		if err := json.Unmarshal(row.parameterSchema, &wf.ParameterSchema); err != nil {
			return nil, fmt.Errorf("failed to decode parameter schema for workflow %s: %w", row.id, err)
		}
	}
	return wf, nil
}

func encodeGraph(wf *model.Workflow) (nodes, edges, state, schema []byte, err error) {
	if nodes, err = json.Marshal(wf.Nodes); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to encode nodes: %w", err)
	}
	if edges, err = json.Marshal(wf.Edges); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to encode edges: %w", err)
	}
	if state, err = json.Marshal(orEmpty(wf.State)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to encode state: %w", err)
	}
	if schema, err = json.Marshal(orEmpty(wf.ParameterSchema)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to encode parameter schema: %w", err)
	}
	return nodes, edges, state, schema, nil
}

func orEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRowAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
