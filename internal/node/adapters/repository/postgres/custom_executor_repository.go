// Package postgres persists custom executor records.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flowbase-io/flowbase/internal/node/domain/model"
	"github.com/flowbase-io/flowbase/internal/node/domain/repository"
)

type customExecutorRepository struct {
	db *sql.DB
}

// NewCustomExecutorRepository creates the postgres-backed store.
func NewCustomExecutorRepository(db *sql.DB) repository.Repository {
	return &customExecutorRepository{db: db}
}

func (r *customExecutorRepository) Create(ctx context.Context, ce *model.CustomExecutor) error {
	configSchema, err := json.Marshal(ce.ConfigSchema)
	if err != nil {
		return fmt.Errorf("failed to encode config schema: %w", err)
	}

	query := `
		INSERT INTO custom_executors (type, source_workflow_id, config_schema, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.db.ExecContext(ctx, query,
		ce.Type, ce.SourceWorkflowID, configSchema, ce.Description, ce.CreatedAt, ce.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create custom executor: %w", err)
	}
	return nil
}

func (r *customExecutorRepository) GetByType(ctx context.Context, execType string) (*model.CustomExecutor, error) {
	query := `
		SELECT type, source_workflow_id, config_schema, description, created_at, updated_at
		FROM custom_executors WHERE type = $1`

	ce := &model.CustomExecutor{}
	var configSchema []byte
	err := r.db.QueryRowContext(ctx, query, execType).Scan(
		&ce.Type, &ce.SourceWorkflowID, &configSchema, &ce.Description, &ce.CreatedAt, &ce.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get custom executor: %w", err)
	}
	if len(configSchema) > 0 {
		if err := json.Unmarshal(configSchema, &ce.ConfigSchema); err != nil {
			return nil, fmt.Errorf("failed to decode config schema: %w", err)
		}
	}
	return ce, nil
}

func (r *customExecutorRepository) List(ctx context.Context) ([]*model.CustomExecutor, error) {
	query := `
		SELECT type, source_workflow_id, config_schema, description, created_at, updated_at
		FROM custom_executors ORDER BY type ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom executors: %w", err)
	}
	defer rows.Close()

	var executors []*model.CustomExecutor
	for rows.Next() {
		ce := &model.CustomExecutor{}
		var configSchema []byte
		if err := rows.Scan(&ce.Type, &ce.SourceWorkflowID, &configSchema, &ce.Description, &ce.CreatedAt, &ce.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan custom executor: %w", err)
		}
		if len(configSchema) > 0 {
			if err := json.Unmarshal(configSchema, &ce.ConfigSchema); err != nil {
				return nil, fmt.Errorf("failed to decode config schema: %w", err)
			}
		}
		executors = append(executors, ce)
	}
	return executors, rows.Err()
}

func (r *customExecutorRepository) Delete(ctx context.Context, execType string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM custom_executors WHERE type = $1`, execType)
	if err != nil {
		return fmt.Errorf("failed to delete custom executor: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
