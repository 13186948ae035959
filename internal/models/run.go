package models

import "time"

// Run is the persisted audit row of one generation run. The in-memory
// registry remains authoritative while the process lives; this row is what
// survives a restart.
type Run struct {
	ID             string     `db:"id" json:"id"`
	TermID         string     `db:"term_id" json:"term_id"`
	Algorithm      string     `db:"algorithm" json:"algorithm"`
	Status         string     `db:"status" json:"status"`
	SessionCount   int        `db:"session_count" json:"session_count"`
	ScheduledCount int        `db:"scheduled_count" json:"scheduled_count"`
	Fitness        float64    `db:"fitness" json:"fitness"`
	HardViolations int        `db:"hard_violations" json:"hard_violations"`
	DurationMs     int64      `db:"duration_ms" json:"duration_ms"`
	Error          *string    `db:"error" json:"error,omitempty"`
	TimetableID    *string    `db:"timetable_id" json:"timetable_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	FinishedAt     *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}
