package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableStatus captures the lifecycle state of a stored timetable.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Timetable is one generated timetable version for a term and program.
// Versions are allocated per (term_id, program) pair; publishing archives
// the previously published version.
type Timetable struct {
	ID        string          `db:"id" json:"id"`
	TermID    string          `db:"term_id" json:"term_id"`
	Program   string          `db:"program" json:"program"`
	Version   int             `db:"version" json:"version"`
	Status    TimetableStatus `db:"status" json:"status"`
	Algorithm string          `db:"algorithm" json:"algorithm"`
	Fitness   float64         `db:"fitness" json:"fitness"`
	Meta      types.JSONText  `db:"meta" json:"meta,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableSlot is a single placed session inside a stored timetable.
type TimetableSlot struct {
	ID          string    `db:"id" json:"id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	SessionKey  string    `db:"session_key" json:"session_key"`
	CourseID    string    `db:"course_id" json:"course_id"`
	CourseCode  string    `db:"course_code" json:"course_code"`
	SessionType string    `db:"session_type" json:"session_type"`
	DivisionID  string    `db:"division_id" json:"division_id"`
	BatchID     *string   `db:"batch_id" json:"batch_id,omitempty"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	TeacherName string    `db:"teacher_name" json:"teacher_name"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	DayOfWeek   string    `db:"day_of_week" json:"day_of_week"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	SlotIndex   int       `db:"slot_index" json:"slot_index"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
