package engine

import (
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/constraint"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/solver"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

// AssignmentView is one placed session, denormalized to boundary ids and
// clock strings for persistence and transport.
type AssignmentView struct {
	SessionKey      string `json:"sessionKey"`
	CourseID        string `json:"courseId"`
	CourseCode      string `json:"courseCode"`
	SessionType     string `json:"sessionType"`
	DivisionID      string `json:"divisionId"`
	BatchID         string `json:"batchId,omitempty"`
	TeacherID       string `json:"teacherId"`
	TeacherName     string `json:"teacherName"`
	ClassroomID     string `json:"classroomId"`
	ClassroomName   string `json:"classroomName"`
	Day             string `json:"day"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	SlotIndex       int    `json:"slotIndex"`
	DurationMinutes int    `json:"durationMinutes"`
}

// UnscheduledView names a session no solver could place and why.
type UnscheduledView struct {
	SessionKey  string `json:"sessionKey"`
	CourseID    string `json:"courseId"`
	SessionType string `json:"sessionType"`
	DivisionID  string `json:"divisionId"`
	BatchID     string `json:"batchId,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// RunMetrics aggregates the counters of a finished run.
type RunMetrics struct {
	DurationMs     int64   `json:"durationMs"`
	Iterations     int     `json:"iterations"`
	Backtracks     int     `json:"backtracks"`
	Generations    int     `json:"generations"`
	HardViolations int     `json:"hardViolationCount"`
	SoftScore      float64 `json:"softScore"`
	Fitness        float64 `json:"fitness"`
	SessionCount   int     `json:"sessionCount"`
	ScheduledCount int     `json:"scheduledCount"`
}

// RunResult is the complete outcome of one generation run. Failure is
// nil for solved and partial runs; otherwise it holds the typed error
// that also terminated the progress stream.
type RunResult struct {
	RunID       string                `json:"runId"`
	Algorithm   string                `json:"algorithm"`
	Status      solver.Status         `json:"status"`
	Assignments []AssignmentView      `json:"assignments"`
	Unscheduled []UnscheduledView     `json:"unscheduled,omitempty"`
	Conflicts   []constraint.Conflict `json:"conflicts,omitempty"`
	Metrics     RunMetrics            `json:"metrics"`
	Warnings    []string              `json:"warnings,omitempty"`
	Failure     *appErrors.Error      `json:"failure,omitempty"`
}

func newRunResult(runID, algorithm string, inst *scheduler.Instance, prob *solver.Problem, res *solver.Result, conflicts []constraint.Conflict, took time.Duration) *RunResult {
	out := &RunResult{
		RunID:     runID,
		Algorithm: algorithm,
		Status:    res.Status,
		Conflicts: conflicts,
		Metrics: RunMetrics{
			DurationMs:     took.Milliseconds(),
			Iterations:     res.Metrics.Iterations,
			Backtracks:     res.Metrics.Backtracks,
			Generations:    res.Metrics.Generations,
			HardViolations: res.Metrics.HardViolations,
			SoftScore:      res.Metrics.SoftScore,
			Fitness:        res.Metrics.Fitness,
			SessionCount:   len(inst.Sessions),
			ScheduledCount: res.Schedule.Len(),
		},
	}
	out.Warnings = append(out.Warnings, inst.Warnings...)
	out.Warnings = append(out.Warnings, res.Diagnostics...)

	cal := inst.Calendar
	for _, a := range res.Schedule.Assignments() {
		sess := &inst.Sessions[a.Session]
		teacher := &inst.Teachers[a.Teacher]
		room := &inst.Rooms[a.Room]
		slot := cal.Slots[a.Slot]
		out.Assignments = append(out.Assignments, AssignmentView{
			SessionKey:      sess.Key,
			CourseID:        sess.CourseID,
			CourseCode:      sess.CourseCode,
			SessionType:     string(sess.Type),
			DivisionID:      sess.DivisionID,
			BatchID:         sess.BatchID,
			TeacherID:       teacher.ID,
			TeacherName:     teacher.Name,
			ClassroomID:     room.ID,
			ClassroomName:   room.Name,
			Day:             slot.Day.String(),
			StartTime:       slot.StartTime(),
			EndTime:         scheduler.Clock(slot.Start + sess.DurationMinutes),
			SlotIndex:       slot.Index,
			DurationMinutes: sess.DurationMinutes,
		})
	}

	for _, si := range res.Unscheduled {
		sess := &inst.Sessions[si]
		reason := prob.ReasonFor(si)
		if reason == "" {
			reason = "no conflict-free placement found"
		}
		out.Unscheduled = append(out.Unscheduled, UnscheduledView{
			SessionKey:  sess.Key,
			CourseID:    sess.CourseID,
			SessionType: string(sess.Type),
			DivisionID:  sess.DivisionID,
			BatchID:     sess.BatchID,
			Reason:      reason,
		})
	}
	return out
}
