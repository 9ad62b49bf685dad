package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sentipulse/sentipulse-go/internal/models"
	"github.com/sentipulse/sentipulse-go/internal/utils"
)

// PipelineRepository handles database operations for pipeline run records.
type PipelineRepository struct {
	pool DatabasePool
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(pool DatabasePool) *PipelineRepository {
	return &PipelineRepository{
		pool: pool,
	}
}

// InsertRun persists a newly started pipeline run.
func (r *PipelineRepository) InsertRun(ctx context.Context, run *models.PipelineRun) error {
	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline stages: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (id, status, stages, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.pool.Exec(ctx, query,
		run.ID, string(run.Status), stages, nullableString(run.Error),
		run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pipeline run: %w", err)
	}

	return nil
}

// UpdateRun refreshes the status, stages, error, and finish time of an
// existing pipeline run.
func (r *PipelineRepository) UpdateRun(ctx context.Context, run *models.PipelineRun) error {
	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline stages: %w", err)
	}

	query := `
		UPDATE pipeline_runs
		SET status = $2, stages = $3, error = $4, finished_at = $5
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		run.ID, string(run.Status), stages, nullableString(run.Error), run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.NewNotFoundError("pipeline_run", run.ID)
	}

	return nil
}

// GetRun returns a pipeline run by id.
func (r *PipelineRepository) GetRun(ctx context.Context, id string) (*models.PipelineRun, error) {
	query := `
		SELECT id, status, stages, error, started_at, finished_at
		FROM pipeline_runs
		WHERE id = $1
	`

	run, err := scanPipelineRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.NewNotFoundError("pipeline_run", id)
		}
		return nil, fmt.Errorf("failed to get pipeline run: %w", err)
	}

	return run, nil
}

// ListRuns returns recent pipeline runs, newest first.
func (r *PipelineRepository) ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	query := `
		SELECT id, status, stages, error, started_at, finished_at
		FROM pipeline_runs
		ORDER BY started_at DESC
	`
	var args []interface{}

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []models.PipelineRun
	for rows.Next() {
		run, err := scanPipelineRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipeline runs: %w", err)
	}

	return runs, nil
}

func scanPipelineRun(row pgx.Row) (*models.PipelineRun, error) {
	var run models.PipelineRun
	var status string
	var stages []byte
	var runErr *string

	if err := row.Scan(&run.ID, &status, &stages, &runErr, &run.StartedAt, &run.FinishedAt); err != nil {
		return nil, err
	}

	run.Status = models.PipelineStatus(status)
	if runErr != nil {
		run.Error = *runErr
	}
	if len(stages) > 0 {
		if err := json.Unmarshal(stages, &run.Stages); err != nil {
			return nil, fmt.Errorf("failed to decode pipeline stages: %w", err)
		}
	}

	return &run, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
