// Package postgres persists workflow schedules.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flowbase-io/flowbase/internal/schedule/domain/model"
	"github.com/flowbase-io/flowbase/internal/schedule/domain/repository"
)

type scheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates the postgres-backed schedule store.
func NewScheduleRepository(db *sql.DB) repository.Repository {
	return &scheduleRepository{db: db}
}

const scheduleColumns = `id, workflow_id, cron_expr, parameters, config_id, enabled, created_at, updated_at`

func (r *scheduleRepository) Create(ctx context.Context, sched *model.Schedule) error {
	parameters, err := json.Marshal(sched.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	query := `
		INSERT INTO schedules (` + scheduleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.db.ExecContext(ctx, query,
		sched.ID, sched.WorkflowID, sched.CronExpr, parameters,
		nullString(sched.ConfigID), sched.Enabled, sched.CreatedAt, sched.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	sched, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return sched, nil
}

func (r *scheduleRepository) List(ctx context.Context, limit, offset int) ([]*model.Schedule, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + scheduleColumns + ` FROM schedules
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *scheduleRepository) ListEnabled(ctx context.Context) ([]*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE enabled = true ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *scheduleRepository) Update(ctx context.Context, sched *model.Schedule) error {
	parameters, err := json.Marshal(sched.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	query := `UPDATE schedules
		SET workflow_id = $2, cron_expr = $3, parameters = $4, config_id = $5, enabled = $6, updated_at = $7
		WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query,
		sched.ID, sched.WorkflowID, sched.CronExpr, parameters,
		nullString(sched.ConfigID), sched.Enabled, sched.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return requireRowAffected(result)
}

func (r *scheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return requireRowAffected(result)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*model.Schedule, error) {
	sched := &model.Schedule{}
	var parameters []byte
	var configID sql.NullString
	err := row.Scan(&sched.ID, &sched.WorkflowID, &sched.CronExpr, &parameters,
		&configID, &sched.Enabled, &sched.CreatedAt, &sched.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sched.ConfigID = configID.String
	if len(parameters) > 0 {
		if err := json.Unmarshal(parameters, &sched.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
	}
	return sched, nil
}

func collectSchedules(rows *sql.Rows) ([]*model.Schedule, error) {
	var schedules []*model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
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
