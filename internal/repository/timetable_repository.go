package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// TimetableRepository persists versioned generated timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a timetable assigning the next version for the
// term-program tuple.
func (r *TimetableRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if timetable.TermID == "" {
		return fmt.Errorf("term_id is required")
	}
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	if len(timetable.Meta) == 0 {
		timetable.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetables WHERE term_id = $1 AND program = $2`
	if err := sqlx.GetContext(ctx, target, &timetable.Version, nextVersionQuery, timetable.TermID, timetable.Program); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetables (id, term_id, program, version, status, algorithm, fitness, meta, created_at, updated_at)
VALUES (:id, :term_id, :program, :version, :status, :algorithm, :fitness, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, timetable); err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}
	return nil
}

// List returns stored timetables newest version first, optionally filtered
// by term, program and status.
func (r *TimetableRepository) List(ctx context.Context, termID, program, status string) ([]models.Timetable, error) {
	query := `SELECT id, term_id, program, version, status, algorithm, fitness, meta, created_at, updated_at
FROM timetables WHERE 1=1`
	args := make([]interface{}, 0, 3)
	if termID != "" {
		args = append(args, termID)
		query += fmt.Sprintf(" AND term_id = $%d", len(args))
	}
	if program != "" {
		args = append(args, program)
		query += fmt.Sprintf(" AND program = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, version DESC"

	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return timetables, nil
}

// FindByID loads a timetable by its identifier.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	const query = `SELECT id, term_id, program, version, status, algorithm, fitness, meta, created_at, updated_at FROM timetables WHERE id = $1`
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// Delete removes a stored timetable version.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM timetables WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus updates the status (and optionally meta) of a timetable.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	var (
		query string
		args  []interface{}
	)
	if len(meta) > 0 {
		query = `UPDATE timetables SET status = $1, meta = $2, updated_at = $3 WHERE id = $4`
		args = []interface{}{status, meta, now, id}
	} else {
		query = `UPDATE timetables SET status = $1, updated_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	}
	result, err := target.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ArchivePublished demotes the currently published version for the
// term-program tuple, keeping at most one published timetable per pair.
func (r *TimetableRepository) ArchivePublished(ctx context.Context, exec sqlx.ExtContext, termID, program string) error {
	target := r.exec(exec)
	const query = `UPDATE timetables SET status = $1, updated_at = $2 WHERE term_id = $3 AND program = $4 AND status = $5`
	if _, err := target.ExecContext(ctx, query, models.TimetableStatusArchived, time.Now().UTC(), termID, program, models.TimetableStatusPublished); err != nil {
		return fmt.Errorf("archive published timetables: %w", err)
	}
	return nil
}
