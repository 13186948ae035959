package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
)

// TimetableSlotRepository manages the placed sessions of stored timetables.
type TimetableSlotRepository struct {
	db *sqlx.DB
}

// NewTimetableSlotRepository builds repository.
func NewTimetableSlotRepository(db *sqlx.DB) *TimetableSlotRepository {
	return &TimetableSlotRepository{db: db}
}

func (r *TimetableSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertBatch inserts or updates the slots of a timetable. Session keys
// are unique within a timetable, so re-saving a run is idempotent.
func (r *TimetableSlotRepository) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_slots (id, timetable_id, session_key, course_id, course_code, session_type, division_id, batch_id, teacher_id, teacher_name, classroom_id, day_of_week, start_time, end_time, slot_index, created_at)
VALUES (:id, :timetable_id, :session_key, :course_id, :course_code, :session_type, :division_id, :batch_id, :teacher_id, :teacher_name, :classroom_id, :day_of_week, :start_time, :end_time, :slot_index, :created_at)
ON CONFLICT (timetable_id, session_key) DO UPDATE
SET teacher_id = EXCLUDED.teacher_id,
    teacher_name = EXCLUDED.teacher_name,
    classroom_id = EXCLUDED.classroom_id,
    day_of_week = EXCLUDED.day_of_week,
    start_time = EXCLUDED.start_time,
    end_time = EXCLUDED.end_time,
    slot_index = EXCLUDED.slot_index`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("upsert timetable slot: %w", err)
		}
	}
	return nil
}

// ListByTimetable returns slots ordered by day and start time.
func (r *TimetableSlotRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error) {
	const query = `SELECT id, timetable_id, session_key, course_id, course_code, session_type, division_id, batch_id, teacher_id, teacher_name, classroom_id, day_of_week, start_time, end_time, slot_index, created_at
FROM timetable_slots WHERE timetable_id = $1 ORDER BY day_of_week ASC, slot_index ASC, division_id ASC`
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return slots, nil
}
