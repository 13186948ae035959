package constraint

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

// Severity ranks detected conflicts for downstream display.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Conflict is one classified finding of the post-hoc detector, with
// denormalized ids for display.
type Conflict struct {
	Kind        Kind     `json:"kind"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	SessionKey  string   `json:"sessionKey,omitempty"`
	OtherKey    string   `json:"otherKey,omitempty"`
	TeacherID   string   `json:"teacherId,omitempty"`
	ClassroomID string   `json:"classroomId,omitempty"`
	Day         string   `json:"day,omitempty"`
	StartTime   string   `json:"startTime,omitempty"`
	EndTime     string   `json:"endTime,omitempty"`
}

// Detector classifies the residual conflicts of any schedule,
// independent of the solver that produced it. Detection is idempotent
// and side-effect-free.
type Detector struct {
	check *Checker
}

// NewDetector wraps a checker for post-hoc classification.
func NewDetector(check *Checker) *Detector {
	return &Detector{check: check}
}

// Detect scans the schedule and returns one record per violation pair or
// unary breach, plus low-severity preferred-time misses. Output order is
// deterministic: severity, then kind, then session keys.
func (d *Detector) Detect(s *scheduler.Schedule) []Conflict {
	inst := d.check.Instance()
	var out []Conflict

	for _, v := range d.check.ScheduleViolations(s) {
		out = append(out, d.describe(s, v))
	}

	for _, a := range s.Assignments() {
		teacher := &inst.Teachers[a.Teacher]
		day, start, end := d.check.span(a)
		if hit, has := teacher.Prefers(day, start, end); has && !hit {
			out = append(out, Conflict{
				Kind:        KindPreferenceMiss,
				Severity:    SeverityLow,
				Description: fmt.Sprintf("%s teaches %s outside preferred hours", teacher.ID, inst.Sessions[a.Session].Key),
				SessionKey:  inst.Sessions[a.Session].Key,
				TeacherID:   teacher.ID,
				Day:         day.String(),
				StartTime:   minutesClock(start),
				EndTime:     minutesClock(end),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if severityRank[out[i].Severity] != severityRank[out[j].Severity] {
			return severityRank[out[i].Severity] < severityRank[out[j].Severity]
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].SessionKey != out[j].SessionKey {
			return out[i].SessionKey < out[j].SessionKey
		}
		return out[i].OtherKey < out[j].OtherKey
	})
	return out
}

// HardCount returns the number of detected conflicts at medium severity
// or above, which equals the checker's schedule-wide violation count.
func HardCount(conflicts []Conflict) int {
	n := 0
	for _, c := range conflicts {
		if c.Severity != SeverityLow {
			n++
		}
	}
	return n
}

func (d *Detector) describe(s *scheduler.Schedule, v Violation) Conflict {
	inst := d.check.Instance()
	out := Conflict{Kind: v.Kind, Severity: severityOf(v.Kind)}

	if v.Kind == KindWorkloadExceeded && v.Teacher >= 0 && v.Session < 0 {
		t := &inst.Teachers[v.Teacher]
		out.TeacherID = t.ID
		out.Description = fmt.Sprintf("%s exceeds %d weekly hours", t.ID, t.MaxMinutes/60)
		return out
	}

	a := s.At(v.Session)
	sess := &inst.Sessions[v.Session]
	day, start, end := d.check.span(a)
	out.SessionKey = sess.Key
	out.TeacherID = inst.Teachers[a.Teacher].ID
	out.ClassroomID = inst.Rooms[a.Room].ID
	out.Day = day.String()
	out.StartTime = minutesClock(start)
	out.EndTime = minutesClock(end)

	switch v.Kind {
	case KindTeacherConflict:
		out.OtherKey = inst.Sessions[v.Other].Key
		out.Description = fmt.Sprintf("%s double-booked: %s overlaps %s", out.TeacherID, sess.Key, out.OtherKey)
	case KindRoomConflict:
		out.OtherKey = inst.Sessions[v.Other].Key
		out.Description = fmt.Sprintf("room %s double-booked: %s overlaps %s", out.ClassroomID, sess.Key, out.OtherKey)
	case KindStudentGroupConflict:
		out.OtherKey = inst.Sessions[v.Other].Key
		out.Description = fmt.Sprintf("student group clash: %s overlaps %s", sess.Key, out.OtherKey)
	case KindTeacherUnavailable:
		out.Description = fmt.Sprintf("%s not available on %s %s-%s", out.TeacherID, out.Day, out.StartTime, out.EndTime)
	case KindRoomUnavailable:
		out.Description = fmt.Sprintf("room %s not available on %s %s-%s", out.ClassroomID, out.Day, out.StartTime, out.EndTime)
	case KindCapacityShortfall:
		out.Description = fmt.Sprintf("room %s seats %d, session %s needs %d", out.ClassroomID, inst.Rooms[a.Room].Capacity, sess.Key, sess.StudentCount)
	case KindFeatureShortfall:
		out.Description = fmt.Sprintf("room %s lacks required features for %s", out.ClassroomID, sess.Key)
	case KindWorkloadExceeded:
		out.Description = fmt.Sprintf("%s over weekly hour limit with %s", out.TeacherID, sess.Key)
	default:
		out.Description = string(v.Kind)
	}
	return out
}

func severityOf(kind Kind) Severity {
	switch kind {
	case KindTeacherConflict, KindRoomConflict, KindStudentGroupConflict:
		return SeverityCritical
	case KindCapacityShortfall, KindFeatureShortfall, KindTeacherUnavailable, KindRoomUnavailable:
		return SeverityHigh
	case KindWorkloadExceeded:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func minutesClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
