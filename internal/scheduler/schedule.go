package scheduler

import "sort"

// Assignment places one session at a teacher, room, and starting slot.
// Slot is the global ordinal of the first occupied calendar slot; the
// session's DurationSlots consecutive slots are occupied.
type Assignment struct {
	Session int
	Teacher int
	Room    int
	Slot    int
}

// Schedule is the mutable working state of one solver run: a dense
// assignment table indexed by session plus occupancy lists per teacher,
// room, and cohort. Occupancy tolerates conflicting placements so that
// annealing and genetic search can walk through infeasible states.
type Schedule struct {
	inst    *Instance
	entries []Assignment
	placed  []bool
	count   int

	byTeacher [][]int
	byRoom    [][]int
	byCohort  [][]int
}

// NewSchedule returns an empty schedule sized for the instance.
func NewSchedule(inst *Instance) *Schedule {
	return &Schedule{
		inst:      inst,
		entries:   make([]Assignment, len(inst.Sessions)),
		placed:    make([]bool, len(inst.Sessions)),
		byTeacher: make([][]int, len(inst.Teachers)),
		byRoom:    make([][]int, len(inst.Rooms)),
		byCohort:  make([][]int, inst.Cohorts),
	}
}

// Instance exposes the read-only problem data this schedule indexes into.
func (s *Schedule) Instance() *Instance { return s.inst }

// Len returns the number of placed sessions.
func (s *Schedule) Len() int { return s.count }

// Sessions returns the total session count, placed or not.
func (s *Schedule) Sessions() int { return len(s.entries) }

// Placed reports whether the session is currently assigned.
func (s *Schedule) Placed(session int) bool { return s.placed[session] }

// At returns the assignment of a placed session.
func (s *Schedule) At(session int) Assignment { return s.entries[session] }

// Place records an assignment, replacing any previous placement of the
// same session.
func (s *Schedule) Place(a Assignment) {
	if s.placed[a.Session] {
		s.Remove(a.Session)
	}
	s.entries[a.Session] = a
	s.placed[a.Session] = true
	s.count++
	sess := &s.inst.Sessions[a.Session]
	s.byTeacher[a.Teacher] = append(s.byTeacher[a.Teacher], a.Session)
	s.byRoom[a.Room] = append(s.byRoom[a.Room], a.Session)
	s.byCohort[sess.Cohort] = append(s.byCohort[sess.Cohort], a.Session)
}

// Remove unplaces a session. Removing an unplaced session is a no-op.
func (s *Schedule) Remove(session int) {
	if !s.placed[session] {
		return
	}
	a := s.entries[session]
	sess := &s.inst.Sessions[session]
	s.byTeacher[a.Teacher] = cut(s.byTeacher[a.Teacher], session)
	s.byRoom[a.Room] = cut(s.byRoom[a.Room], session)
	s.byCohort[sess.Cohort] = cut(s.byCohort[sess.Cohort], session)
	s.placed[session] = false
	s.count--
}

// TeacherSessions lists sessions currently assigned to the teacher.
func (s *Schedule) TeacherSessions(teacher int) []int { return s.byTeacher[teacher] }

// RoomSessions lists sessions currently assigned to the room.
func (s *Schedule) RoomSessions(room int) []int { return s.byRoom[room] }

// CohortSessions lists sessions currently assigned for the cohort.
func (s *Schedule) CohortSessions(cohort int) []int { return s.byCohort[cohort] }

// Unplaced returns the session indices without an assignment, ascending.
func (s *Schedule) Unplaced() []int {
	var out []int
	for i, ok := range s.placed {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

// Assignments returns the placed assignments ordered by slot, then
// session index for deterministic output.
func (s *Schedule) Assignments() []Assignment {
	out := make([]Assignment, 0, s.count)
	for i, ok := range s.placed {
		if ok {
			out = append(out, s.entries[i])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot != out[j].Slot {
			return out[i].Slot < out[j].Slot
		}
		return out[i].Session < out[j].Session
	})
	return out
}

// Clone deep-copies the schedule. The instance is shared.
func (s *Schedule) Clone() *Schedule {
	c := &Schedule{
		inst:      s.inst,
		entries:   append([]Assignment(nil), s.entries...),
		placed:    append([]bool(nil), s.placed...),
		count:     s.count,
		byTeacher: cloneLists(s.byTeacher),
		byRoom:    cloneLists(s.byRoom),
		byCohort:  cloneLists(s.byCohort),
	}
	return c
}

// Overlaps reports whether two assignments occupy intersecting slot
// ranges. Ranges never span days, so ordinal intersection implies a
// same-day clash.
func (s *Schedule) Overlaps(a, b Assignment) bool {
	la := s.inst.Sessions[a.Session].DurationSlots
	lb := s.inst.Sessions[b.Session].DurationSlots
	return a.Slot < b.Slot+lb && b.Slot < a.Slot+la
}

func cut(list []int, session int) []int {
	for i, v := range list {
		if v == session {
			list[i] = list[len(list)-1]
			return list[:len(list)-1]
		}
	}
	return list
}

func cloneLists(lists [][]int) [][]int {
	out := make([][]int, len(lists))
	for i, l := range lists {
		if len(l) > 0 {
			out[i] = append([]int(nil), l...)
		}
	}
	return out
}
