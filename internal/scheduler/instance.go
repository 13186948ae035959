package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// availWindow is a parsed availability window in minutes from midnight.
type availWindow struct {
	ok    bool
	start int
	end   int
}

// TeacherInfo is the interned solver view of a teacher.
type TeacherInfo struct {
	ID             string
	Name           string
	Type           TeacherType
	Priority       int
	MaxMinutes     int
	MaxConsecutive int

	windows   [7]availWindow
	preferred [7][]availWindow
}

// Available reports whether the teacher can teach [start, end) minutes
// on the given day.
func (t *TeacherInfo) Available(day Weekday, start, end int) bool {
	w := t.windows[day]
	return w.ok && start >= w.start && end <= w.end
}

// Prefers reports whether [start, end) falls inside a preferred window.
// The second result is false when the teacher lists no preferences at all.
func (t *TeacherInfo) Prefers(day Weekday, start, end int) (bool, bool) {
	any := false
	for d := range t.preferred {
		if len(t.preferred[d]) > 0 {
			any = true
			break
		}
	}
	if !any {
		return false, false
	}
	for _, w := range t.preferred[day] {
		if start >= w.start && end <= w.end {
			return true, true
		}
	}
	return false, true
}

// RoomInfo is the interned solver view of a classroom.
type RoomInfo struct {
	ID       string
	Name     string
	Building string
	Capacity int
	Type     RoomType
	Features map[string]bool

	windows [7]availWindow
}

// Available reports whether the room is open for [start, end) minutes on
// the given day.
func (r *RoomInfo) Available(day Weekday, start, end int) bool {
	w := r.windows[day]
	return w.ok && start >= w.start && end <= w.end
}

// HasFeatures reports whether the room provides every required feature.
func (r *RoomInfo) HasFeatures(required []string) bool {
	for _, f := range required {
		if !r.Features[f] {
			return false
		}
	}
	return true
}

// Session is one atomic scheduling unit: a weekly occurrence of a course
// session-type for a division or batch. All cross-references are dense
// indices into the owning Instance.
type Session struct {
	Key              string
	Course           int
	CourseID         string
	CourseCode       string
	Type             SessionType
	DivisionID       string
	BatchID          string
	Cohort           int
	Batch            int
	Occurrence       int
	DurationMinutes  int
	DurationSlots    int
	Teachers         []int
	RequiresLab      bool
	RequiredFeatures []string
	IsElective       bool
	StudentCount     int
	Priority         int
}

// StudentOverlap reports whether two sessions draw from overlapping
// student groups. A whole-division session overlaps every batch of the
// same cohort; distinct batches do not overlap each other.
func (s *Session) StudentOverlap(o *Session) bool {
	if s.Cohort != o.Cohort {
		return false
	}
	return s.Batch == 0 || o.Batch == 0 || s.Batch == o.Batch
}

// Instance is the interned, read-only view of a snapshot shared by every
// solver in a run: dense teacher/room/session arenas plus the calendar.
// String ids appear only at the boundary.
type Instance struct {
	Calendar *Calendar
	Teachers []TeacherInfo
	Rooms    []RoomInfo
	Sessions []Session
	Cohorts  int
	Warnings []string

	teacherIdx map[string]int
	roomIdx    map[string]int
}

// NewInstance interns a validated snapshot against a built calendar and
// extracts the session set. Courses whose session-types have no eligible
// teacher contribute warnings, not errors.
func NewInstance(snap *Snapshot, cal *Calendar) (*Instance, error) {
	inst := &Instance{
		Calendar:   cal,
		teacherIdx: make(map[string]int, len(snap.Teachers)),
		roomIdx:    make(map[string]int, len(snap.Classrooms)),
	}

	for i, t := range snap.Teachers {
		info := TeacherInfo{
			ID:             t.ID,
			Name:           t.Name,
			Type:           t.Type,
			Priority:       t.PriorityScore(),
			MaxMinutes:     t.MaxHoursPerWeek * 60,
			MaxConsecutive: t.MaxConsecutive,
		}
		if info.MaxConsecutive <= 0 {
			info.MaxConsecutive = 3
		}
		windows, err := parseAvailability(t.Availability)
		if err != nil {
			return nil, fmt.Errorf("teacher %q availability: %w", t.ID, err)
		}
		info.windows = windows
		for _, p := range t.PreferredTimes {
			day, err := ParseWeekday(p.Day)
			if err != nil {
				return nil, fmt.Errorf("teacher %q preferred time: %w", t.ID, err)
			}
			start, err := ParseClock(p.StartTime)
			if err != nil {
				return nil, fmt.Errorf("teacher %q preferred time: %w", t.ID, err)
			}
			end, err := ParseClock(p.EndTime)
			if err != nil {
				return nil, fmt.Errorf("teacher %q preferred time: %w", t.ID, err)
			}
			info.preferred[day] = append(info.preferred[day], availWindow{ok: true, start: start, end: end})
		}
		inst.Teachers = append(inst.Teachers, info)
		inst.teacherIdx[t.ID] = i
	}

	for i, r := range snap.Classrooms {
		info := RoomInfo{
			ID:       r.ID,
			Name:     r.Name,
			Building: r.Building,
			Capacity: r.Capacity,
			Type:     r.Type,
			Features: make(map[string]bool, len(r.Features)),
		}
		for _, f := range normalizeFeatures(r.Features) {
			info.Features[f] = true
		}
		windows, err := parseAvailability(r.Availability)
		if err != nil {
			return nil, fmt.Errorf("classroom %q availability: %w", r.ID, err)
		}
		info.windows = windows
		inst.Rooms = append(inst.Rooms, info)
		inst.roomIdx[r.ID] = i
	}

	if err := inst.extractSessions(snap); err != nil {
		return nil, err
	}
	return inst, nil
}

// extractSessions expands each course into per-division, per-batch weekly
// session instances. Practical sessions split per batch when the division
// defines batches; everything else is emitted per division.
func (inst *Instance) extractSessions(snap *Snapshot) error {
	cohorts := make(map[string]int)
	batches := make(map[string]int)
	slotLen := inst.Calendar.SlotDuration

	for ci, course := range snap.Courses {
		divisions := course.Divisions
		if len(divisions) == 0 {
			divisions = []Division{{ID: "", StudentCount: course.StudentCount}}
		}
		for _, st := range course.SessionTypesOf() {
			spec := course.Sessions[st]
			teachers := inst.eligibleTeachers(course, st)
			if len(teachers) == 0 {
				inst.Warnings = append(inst.Warnings,
					fmt.Sprintf("course %s: no eligible teacher for %s sessions, skipped", course.ID, st))
				continue
			}
			durationSlots := (spec.Duration + slotLen - 1) / slotLen
			required := normalizeFeatures(spec.RequiredFeatures)
			priority := 0
			for _, ti := range teachers {
				if p := inst.Teachers[ti].Priority; p > priority {
					priority = p
				}
			}

			for _, div := range divisions {
				cohortKey := strings.Join([]string{course.Program, fmt.Sprint(course.Year), div.ID}, "|")
				cohort, ok := cohorts[cohortKey]
				if !ok {
					cohort = len(cohorts)
					cohorts[cohortKey] = cohort
				}

				type unit struct {
					batchID  string
					batch    int
					students int
				}
				units := []unit{{batchID: "", batch: 0, students: div.StudentCount}}
				if st == SessionPractical && len(div.Batches) > 0 {
					units = units[:0]
					for _, b := range div.Batches {
						batchKey := cohortKey + "|" + b.ID
						id, ok := batches[batchKey]
						if !ok {
							id = len(batches) + 1
							batches[batchKey] = id
						}
						units = append(units, unit{batchID: b.ID, batch: id, students: b.StudentCount})
					}
				}

				for _, u := range units {
					for occ := 1; occ <= spec.SessionsPerWeek; occ++ {
						inst.Sessions = append(inst.Sessions, Session{
							Key:              sessionKey(course.ID, st, div.ID, u.batchID, occ),
							Course:           ci,
							CourseID:         course.ID,
							CourseCode:       course.Code,
							Type:             st,
							DivisionID:       div.ID,
							BatchID:          u.batchID,
							Cohort:           cohort,
							Batch:            u.batch,
							Occurrence:       occ,
							DurationMinutes:  spec.Duration,
							DurationSlots:    durationSlots,
							Teachers:         teachers,
							RequiresLab:      spec.RequiresLab,
							RequiredFeatures: required,
							IsElective:       !course.IsCore,
							StudentCount:     u.students,
							Priority:         priority,
						})
					}
				}
			}
		}
	}
	inst.Cohorts = len(cohorts)
	if len(inst.Sessions) == 0 {
		return fmt.Errorf("no schedulable sessions extracted")
	}
	return nil
}

// eligibleTeachers resolves assigned teacher references for one session
// type, ordered by descending priority, input order as tie-break.
func (inst *Instance) eligibleTeachers(course Course, st SessionType) []int {
	var out []int
	for _, ref := range course.AssignedTeachers {
		ti, ok := inst.teacherIdx[ref.TeacherID]
		if !ok {
			inst.Warnings = append(inst.Warnings,
				fmt.Sprintf("course %s: assigned teacher %s not in snapshot", course.ID, ref.TeacherID))
			continue
		}
		for _, t := range ref.SessionTypes {
			if strings.EqualFold(string(t), string(st)) {
				out = append(out, ti)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return inst.Teachers[out[i]].Priority > inst.Teachers[out[j]].Priority
	})
	return out
}

// TeacherIndex resolves a teacher id to its arena index.
func (inst *Instance) TeacherIndex(id string) (int, bool) {
	i, ok := inst.teacherIdx[id]
	return i, ok
}

// RoomIndex resolves a classroom id to its arena index.
func (inst *Instance) RoomIndex(id string) (int, bool) {
	i, ok := inst.roomIdx[id]
	return i, ok
}

func sessionKey(courseID string, st SessionType, divisionID, batchID string, occ int) string {
	parts := []string{courseID, string(st)}
	if divisionID != "" {
		parts = append(parts, divisionID)
	}
	if batchID != "" {
		parts = append(parts, batchID)
	}
	parts = append(parts, fmt.Sprint(occ))
	return strings.Join(parts, ":")
}

// parseAvailability converts the day-name keyed windows into per-weekday
// minute ranges. A nil or empty map means available around the clock; a
// populated map marks unlisted days unavailable.
func parseAvailability(avail map[string]DayWindow) ([7]availWindow, error) {
	var out [7]availWindow
	if len(avail) == 0 {
		for d := range out {
			out[d] = availWindow{ok: true, start: 0, end: 24 * 60}
		}
		return out, nil
	}
	for name, w := range avail {
		day, err := ParseWeekday(name)
		if err != nil {
			return out, err
		}
		if !w.Available {
			continue
		}
		start, end := 0, 24*60
		if w.StartTime != "" {
			if start, err = ParseClock(w.StartTime); err != nil {
				return out, err
			}
		}
		if w.EndTime != "" {
			if end, err = ParseClock(w.EndTime); err != nil {
				return out, err
			}
		}
		if end <= start {
			return out, fmt.Errorf("window %s-%s on %s is empty", w.StartTime, w.EndTime, name)
		}
		out[day] = availWindow{ok: true, start: start, end: end}
	}
	return out, nil
}
