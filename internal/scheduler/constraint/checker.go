package constraint

import (
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

// Kind enumerates hard constraint violations.
type Kind string

const (
	KindTeacherConflict      Kind = "TEACHER_CONFLICT"
	KindRoomConflict         Kind = "ROOM_CONFLICT"
	KindStudentGroupConflict Kind = "STUDENT_GROUP_CONFLICT"
	KindTeacherUnavailable   Kind = "TEACHER_UNAVAILABLE"
	KindRoomUnavailable      Kind = "ROOM_UNAVAILABLE"
	KindCapacityShortfall    Kind = "CAPACITY_SHORTFALL"
	KindFeatureShortfall     Kind = "FEATURE_SHORTFALL"
	KindWorkloadExceeded     Kind = "WORKLOAD_EXCEEDED"
	KindPreferenceMiss       Kind = "PREFERRED_TIME_MISS"
)

// Violation is one detected hard-constraint breach. Session is the
// offending session index; Other the second session of a pairwise
// conflict, -1 otherwise. Teacher is set on workload records only.
type Violation struct {
	Kind    Kind
	Session int
	Other   int
	Teacher int
}

// Checker evaluates assignments against the hard rules and scores soft
// quality. It holds only read-only interned snapshot data and may be
// shared by concurrent runs.
type Checker struct {
	inst    *scheduler.Instance
	weights weights
	balance bool
}

// NewChecker builds a checker over an instance with the given soft
// weights. balanceWorkload toggles the workload-balance component of the
// soft score.
func NewChecker(inst *scheduler.Instance, w scheduler.SoftWeights, balanceWorkload bool) *Checker {
	return &Checker{
		inst:    inst,
		weights: normalizeWeights(w),
		balance: balanceWorkload,
	}
}

// Instance exposes the interned problem data.
func (c *Checker) Instance() *scheduler.Instance { return c.inst }

// span returns the day and minute interval an assignment occupies.
func (c *Checker) span(a scheduler.Assignment) (scheduler.Weekday, int, int) {
	slot := c.inst.Calendar.Slots[a.Slot]
	dur := c.inst.Sessions[a.Session].DurationSlots
	return slot.Day, slot.Start, slot.Start + dur*c.inst.Calendar.SlotDuration
}

// HardViolations returns every hard rule the candidate assignment breaks
// against the current schedule and ledger. It never short-circuits;
// callers treat the list as boolean when they only need feasibility.
func (c *Checker) HardViolations(a scheduler.Assignment, s *scheduler.Schedule, ledger *Ledger) []Violation {
	var out []Violation
	sess := &c.inst.Sessions[a.Session]
	teacher := &c.inst.Teachers[a.Teacher]
	room := &c.inst.Rooms[a.Room]
	day, start, end := c.span(a)

	for _, other := range s.TeacherSessions(a.Teacher) {
		if other == a.Session {
			continue
		}
		if s.Overlaps(a, s.At(other)) {
			out = append(out, Violation{Kind: KindTeacherConflict, Session: a.Session, Other: other, Teacher: -1})
		}
	}
	for _, other := range s.RoomSessions(a.Room) {
		if other == a.Session {
			continue
		}
		ob := s.At(other)
		if !s.Overlaps(a, ob) {
			continue
		}
		if c.labShareAllowed(sess, a.Teacher, &c.inst.Sessions[other], ob.Teacher) {
			continue
		}
		out = append(out, Violation{Kind: KindRoomConflict, Session: a.Session, Other: other, Teacher: -1})
	}
	for _, other := range s.CohortSessions(sess.Cohort) {
		if other == a.Session {
			continue
		}
		ob := s.At(other)
		osess := &c.inst.Sessions[other]
		if !sess.StudentOverlap(osess) || !s.Overlaps(a, ob) {
			continue
		}
		if sess.IsElective && osess.IsElective && sess.Course != osess.Course {
			continue
		}
		out = append(out, Violation{Kind: KindStudentGroupConflict, Session: a.Session, Other: other, Teacher: -1})
	}

	if !teacher.Available(day, start, end) {
		out = append(out, Violation{Kind: KindTeacherUnavailable, Session: a.Session, Other: -1, Teacher: -1})
	}
	if !room.Available(day, start, end) {
		out = append(out, Violation{Kind: KindRoomUnavailable, Session: a.Session, Other: -1, Teacher: -1})
	}
	if room.Capacity < sess.StudentCount {
		out = append(out, Violation{Kind: KindCapacityShortfall, Session: a.Session, Other: -1, Teacher: -1})
	}
	if !room.HasFeatures(sess.RequiredFeatures) || (sess.RequiresLab && !room.Type.IsLabCapable()) {
		out = append(out, Violation{Kind: KindFeatureShortfall, Session: a.Session, Other: -1, Teacher: -1})
	}
	if ledger != nil && ledger.Minutes(a.Teacher)+sess.DurationMinutes > teacher.MaxMinutes {
		out = append(out, Violation{Kind: KindWorkloadExceeded, Session: a.Session, Other: -1, Teacher: a.Teacher})
	}
	return out
}

// Feasible is the early-exit form of HardViolations used in solver inner
// loops.
func (c *Checker) Feasible(a scheduler.Assignment, s *scheduler.Schedule, ledger *Ledger) bool {
	sess := &c.inst.Sessions[a.Session]
	teacher := &c.inst.Teachers[a.Teacher]
	room := &c.inst.Rooms[a.Room]
	day, start, end := c.span(a)

	if !teacher.Available(day, start, end) || !room.Available(day, start, end) {
		return false
	}
	if room.Capacity < sess.StudentCount {
		return false
	}
	if !room.HasFeatures(sess.RequiredFeatures) || (sess.RequiresLab && !room.Type.IsLabCapable()) {
		return false
	}
	if ledger != nil && ledger.Minutes(a.Teacher)+sess.DurationMinutes > teacher.MaxMinutes {
		return false
	}
	for _, other := range s.TeacherSessions(a.Teacher) {
		if other != a.Session && s.Overlaps(a, s.At(other)) {
			return false
		}
	}
	for _, other := range s.RoomSessions(a.Room) {
		if other == a.Session {
			continue
		}
		ob := s.At(other)
		if s.Overlaps(a, ob) && !c.labShareAllowed(sess, a.Teacher, &c.inst.Sessions[other], ob.Teacher) {
			return false
		}
	}
	for _, other := range s.CohortSessions(sess.Cohort) {
		if other == a.Session {
			continue
		}
		ob := s.At(other)
		osess := &c.inst.Sessions[other]
		if !sess.StudentOverlap(osess) || !s.Overlaps(a, ob) {
			continue
		}
		if sess.IsElective && osess.IsElective && sess.Course != osess.Course {
			continue
		}
		return false
	}
	return true
}

// Compatible reports whether two concrete assignments could coexist,
// ignoring schedule state. Used for pairwise arc checks.
func (c *Checker) Compatible(a, b scheduler.Assignment) bool {
	if a.Session == b.Session {
		return false
	}
	sa := &c.inst.Sessions[a.Session]
	sb := &c.inst.Sessions[b.Session]
	la := sa.DurationSlots
	lb := sb.DurationSlots
	if a.Slot >= b.Slot+lb || b.Slot >= a.Slot+la {
		return true
	}
	if a.Teacher == b.Teacher {
		return false
	}
	if a.Room == b.Room && !c.labShareAllowed(sa, a.Teacher, sb, b.Teacher) {
		return false
	}
	if sa.StudentOverlap(sb) {
		if !(sa.IsElective && sb.IsElective && sa.Course != sb.Course) {
			return false
		}
	}
	return true
}

// labShareAllowed implements the room-sharing exception: two lab
// sessions may overlap in one room when taught by different teachers for
// different courses.
func (c *Checker) labShareAllowed(a *scheduler.Session, aTeacher int, b *scheduler.Session, bTeacher int) bool {
	return a.RequiresLab && b.RequiresLab && aTeacher != bTeacher && a.Course != b.Course
}

// ScheduleViolations scans a whole schedule and returns every hard
// violation exactly once: each conflicting pair yields one record, each
// unary breach one record, each overloaded teacher one record.
func (c *Checker) ScheduleViolations(s *scheduler.Schedule) []Violation {
	var out []Violation
	inst := c.inst

	pair := func(kind Kind, x, y int) Violation {
		if x > y {
			x, y = y, x
		}
		return Violation{Kind: kind, Session: x, Other: y, Teacher: -1}
	}

	for t := range inst.Teachers {
		list := s.TeacherSessions(t)
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				if s.Overlaps(s.At(list[i]), s.At(list[j])) {
					out = append(out, pair(KindTeacherConflict, list[i], list[j]))
				}
			}
		}
	}
	for r := range inst.Rooms {
		list := s.RoomSessions(r)
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				ai, aj := s.At(list[i]), s.At(list[j])
				if !s.Overlaps(ai, aj) {
					continue
				}
				if c.labShareAllowed(&inst.Sessions[list[i]], ai.Teacher, &inst.Sessions[list[j]], aj.Teacher) {
					continue
				}
				out = append(out, pair(KindRoomConflict, list[i], list[j]))
			}
		}
	}
	for g := 0; g < inst.Cohorts; g++ {
		list := s.CohortSessions(g)
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				si := &inst.Sessions[list[i]]
				sj := &inst.Sessions[list[j]]
				if !si.StudentOverlap(sj) || !s.Overlaps(s.At(list[i]), s.At(list[j])) {
					continue
				}
				if si.IsElective && sj.IsElective && si.Course != sj.Course {
					continue
				}
				out = append(out, pair(KindStudentGroupConflict, list[i], list[j]))
			}
		}
	}

	for _, a := range s.Assignments() {
		sess := &inst.Sessions[a.Session]
		teacher := &inst.Teachers[a.Teacher]
		room := &inst.Rooms[a.Room]
		day, start, end := c.span(a)
		if !teacher.Available(day, start, end) {
			out = append(out, Violation{Kind: KindTeacherUnavailable, Session: a.Session, Other: -1, Teacher: -1})
		}
		if !room.Available(day, start, end) {
			out = append(out, Violation{Kind: KindRoomUnavailable, Session: a.Session, Other: -1, Teacher: -1})
		}
		if room.Capacity < sess.StudentCount {
			out = append(out, Violation{Kind: KindCapacityShortfall, Session: a.Session, Other: -1, Teacher: -1})
		}
		if !room.HasFeatures(sess.RequiredFeatures) || (sess.RequiresLab && !room.Type.IsLabCapable()) {
			out = append(out, Violation{Kind: KindFeatureShortfall, Session: a.Session, Other: -1, Teacher: -1})
		}
	}

	ledger := LedgerFor(s)
	for t := range inst.Teachers {
		if ledger.Minutes(t) > inst.Teachers[t].MaxMinutes {
			out = append(out, Violation{Kind: KindWorkloadExceeded, Session: -1, Other: -1, Teacher: t})
		}
	}
	return out
}

// Fitness folds a hard-violation count and soft score into the scalar
// quality measure in [0,1]. The violation count is normalized by the
// session count.
func Fitness(hard, sessions int, soft, alpha, beta float64) float64 {
	if sessions <= 0 {
		return 0
	}
	f := 1 - alpha*(float64(hard)/float64(sessions)) - beta*(1-soft)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
