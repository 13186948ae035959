package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// RunRepository keeps the audit trail of generation runs.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository constructs repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts the audit row for a freshly accepted run.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	if run == nil {
		return fmt.Errorf("run payload is nil")
	}
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO scheduler_runs (id, term_id, algorithm, status, session_count, scheduled_count, fitness, hard_violations, duration_ms, error, timetable_id, created_at, finished_at)
VALUES (:id, :term_id, :algorithm, :status, :session_count, :scheduled_count, :fitness, :hard_violations, :duration_ms, :error, :timetable_id, :created_at, :finished_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, run); err != nil {
		return fmt.Errorf("insert scheduler run: %w", err)
	}
	return nil
}

// UpdateOutcome records the terminal state of a run.
func (r *RunRepository) UpdateOutcome(ctx context.Context, run *models.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	const query = `
UPDATE scheduler_runs
SET status = :status,
    algorithm = :algorithm,
    session_count = :session_count,
    scheduled_count = :scheduled_count,
    fitness = :fitness,
    hard_violations = :hard_violations,
    duration_ms = :duration_ms,
    error = :error,
    timetable_id = :timetable_id,
    finished_at = :finished_at
WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.db, query, run)
	if err != nil {
		return fmt.Errorf("update scheduler run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("scheduler run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID loads the audit row of a run.
func (r *RunRepository) FindByID(ctx context.Context, id string) (*models.Run, error) {
	const query = `SELECT id, term_id, algorithm, status, session_count, scheduled_count, fitness, hard_violations, duration_ms, error, timetable_id, created_at, finished_at
FROM scheduler_runs WHERE id = $1`
	var run models.Run
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecent returns the newest runs, most recent first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, term_id, algorithm, status, session_count, scheduled_count, fitness, hard_violations, duration_ms, error, timetable_id, created_at, finished_at
FROM scheduler_runs ORDER BY created_at DESC LIMIT $1`
	var runs []models.Run
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list scheduler runs: %w", err)
	}
	return runs, nil
}
