// Package postgres persists named configs with a JSONB variables column.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flowbase-io/flowbase/internal/config/domain/model"
	"github.com/flowbase-io/flowbase/internal/config/domain/repository"
)

type configRepository struct {
	db *sql.DB
}

// NewConfigRepository creates the postgres-backed config store.
func NewConfigRepository(db *sql.DB) repository.Repository {
	return &configRepository{db: db}
}

func (r *configRepository) Create(ctx context.Context, cfg *model.Config) error {
	variables, err := json.Marshal(cfg.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}

	query := `
		INSERT INTO configs (id, name, variables, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, cfg.ID, cfg.Name, variables, cfg.CreatedAt, cfg.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	return nil
}

func (r *configRepository) GetByID(ctx context.Context, id string) (*model.Config, error) {
	query := `SELECT id, name, variables, created_at, updated_at FROM configs WHERE id = $1`

	cfg := &model.Config{}
	var variables []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&cfg.ID, &cfg.Name, &variables, &cfg.CreatedAt, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &cfg.Variables); err != nil {
			return nil, fmt.Errorf("failed to decode variables: %w", err)
		}
	}
	return cfg, nil
}

func (r *configRepository) List(ctx context.Context, limit, offset int) ([]*model.Config, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, name, variables, created_at, updated_at FROM configs
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	var configs []*model.Config
	for rows.Next() {
		cfg := &model.Config{}
		var variables []byte
		if err := rows.Scan(&cfg.ID, &cfg.Name, &variables, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		if len(variables) > 0 {
			if err := json.Unmarshal(variables, &cfg.Variables); err != nil {
				return nil, fmt.Errorf("failed to decode variables: %w", err)
			}
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

func (r *configRepository) Update(ctx context.Context, cfg *model.Config) error {
	variables, err := json.Marshal(cfg.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}

	query := `UPDATE configs SET name = $2, variables = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, cfg.ID, cfg.Name, variables, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update config: %w", err)
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

func (r *configRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
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
