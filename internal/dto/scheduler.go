package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

// GenerateTimetableRequest submits a snapshot for optimization. Calendar
// and solver parameters travel inside the snapshot settings.
type GenerateTimetableRequest struct {
	TermID   string             `json:"termId" validate:"required"`
	Program  string             `json:"program"`
	Persist  bool               `json:"persist"`
	Snapshot scheduler.Snapshot `json:"snapshot" validate:"required"`
}

// RunAccepted acknowledges an asynchronous generation request.
type RunAccepted struct {
	RunID     string `json:"runId"`
	Status    string `json:"status"`
	StatusURL string `json:"statusUrl"`
	EventsURL string `json:"eventsUrl"`
}

// RunStatusResponse reports the live state of a run from the registry.
type RunStatusResponse struct {
	RunID        string     `json:"runId"`
	TermID       string     `json:"termId"`
	Algorithm    string     `json:"algorithm"`
	Status       string     `json:"status"`
	Percent      float64    `json:"percent"`
	BestFitness  float64    `json:"bestFitness"`
	Iteration    int        `json:"iteration"`
	SessionCount int        `json:"sessionCount"`
	Unscheduled  int        `json:"unscheduled"`
	Error        string     `json:"error,omitempty"`
	TimetableID  string     `json:"timetableId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}
