// Package scheduler defines the shared data model of the timetable
// optimization core: the input snapshot, the slot calendar, extracted
// sessions, schedules, and the progress event stream consumed by callers.
package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// TeacherType distinguishes staffing categories; visiting and guest
// faculty are always scheduled at top priority.
type TeacherType string

const (
	TeacherCore     TeacherType = "core"
	TeacherVisiting TeacherType = "visiting"
	TeacherGuest    TeacherType = "guest"
	TeacherAdjunct  TeacherType = "adjunct"
)

// PriorityLevel is the explicit priority of a core/adjunct teacher.
type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
)

// SessionType enumerates the kinds of weekly course sessions.
type SessionType string

const (
	SessionTheory    SessionType = "theory"
	SessionPractical SessionType = "practical"
	SessionTutorial  SessionType = "tutorial"
)

// RoomType categorises classrooms; lab and computer rooms satisfy
// lab-required sessions.
type RoomType string

const (
	RoomLecture    RoomType = "lecture"
	RoomLab        RoomType = "lab"
	RoomComputer   RoomType = "computer"
	RoomSeminar    RoomType = "seminar"
	RoomAuditorium RoomType = "auditorium"
)

// IsLabCapable reports whether the room type can host lab sessions.
func (r RoomType) IsLabCapable() bool {
	return r == RoomLab || r == RoomComputer
}

// Weekday indexes working days, Monday first.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return "unknown"
	}
	return weekdayNames[d]
}

// ParseWeekday resolves a case-insensitive day name.
func ParseWeekday(name string) (Weekday, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for i, n := range weekdayNames {
		if n == needle {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// DayWindow is the availability of a teacher or classroom on one day.
// Times are HH:MM, end exclusive.
type DayWindow struct {
	Available bool   `json:"available"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// PreferredWindow marks a time range a teacher prefers to teach in.
type PreferredWindow struct {
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Teacher is an immutable snapshot record. Weekly hour counters live in
// the per-run ledger, never on the teacher itself.
type Teacher struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Type            TeacherType          `json:"type"`
	Priority        PriorityLevel        `json:"priority,omitempty"`
	MaxHoursPerWeek int                  `json:"maxHoursPerWeek"`
	Subjects        []string             `json:"subjects,omitempty"`
	Availability    map[string]DayWindow `json:"availability"`
	PreferredTimes  []PreferredWindow    `json:"preferredTimes,omitempty"`
	MaxConsecutive  int                  `json:"maxConsecutiveSlots,omitempty"`
}

// PriorityScore maps teacher type and priority onto the 1..3 scale used
// to order sessions. Visiting and guest faculty always score 3.
func (t Teacher) PriorityScore() int {
	if t.Type == TeacherVisiting || t.Type == TeacherGuest {
		return 3
	}
	switch t.Priority {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// Classroom is an immutable snapshot record.
type Classroom struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Building     string               `json:"building,omitempty"`
	Capacity     int                  `json:"capacity"`
	Type         RoomType             `json:"type"`
	Features     []string             `json:"features,omitempty"`
	Availability map[string]DayWindow `json:"availability"`
}

// SessionSpec describes one session-type requirement of a course.
type SessionSpec struct {
	Duration         int      `json:"duration"`
	SessionsPerWeek  int      `json:"sessionsPerWeek"`
	RequiresLab      bool     `json:"requiresLab,omitempty"`
	RequiredFeatures []string `json:"requiredFeatures,omitempty"`
}

// TeacherRef links a course to a teacher for a set of session types.
type TeacherRef struct {
	TeacherID    string        `json:"teacherId"`
	SessionTypes []SessionType `json:"sessionTypes"`
	IsPrimary    bool          `json:"isPrimary,omitempty"`
}

// Batch is a practical-session subdivision of a division.
type Batch struct {
	ID           string `json:"id"`
	StudentCount int    `json:"studentCount"`
	Type         string `json:"type,omitempty"`
}

// Division is a cohort subdivision of a course.
type Division struct {
	ID           string  `json:"id"`
	StudentCount int     `json:"studentCount"`
	Batches      []Batch `json:"batches,omitempty"`
}

// Course is an immutable snapshot record. An empty division list means a
// single implicit division covering the whole cohort.
type Course struct {
	ID               string                      `json:"id"`
	Code             string                      `json:"code"`
	Name             string                      `json:"name,omitempty"`
	Program          string                      `json:"program"`
	Year             int                         `json:"year"`
	Semester         int                         `json:"semester"`
	Department       string                      `json:"department,omitempty"`
	IsCore           bool                        `json:"isCore"`
	StudentCount     int                         `json:"studentCount,omitempty"`
	Sessions         map[SessionType]SessionSpec `json:"sessions"`
	AssignedTeachers []TeacherRef                `json:"assignedTeachers"`
	Divisions        []Division                  `json:"divisions,omitempty"`
}

// BreakWindow is a daily interval during which no slot may start or run.
type BreakWindow struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Snapshot is the complete immutable input of one optimization run.
type Snapshot struct {
	Teachers   []Teacher   `json:"teachers"`
	Classrooms []Classroom `json:"classrooms"`
	Courses    []Course    `json:"courses"`
	Settings   Settings    `json:"settings"`
}

// Validate applies the semantic input rules: non-empty entity lists,
// every course demanding at least one weekly session, and every course
// having at least one resolvable eligible teacher. Violations are
// deterministic and never retried.
func (s *Snapshot) Validate() error {
	if len(s.Teachers) == 0 {
		return fmt.Errorf("snapshot has no teachers")
	}
	if len(s.Classrooms) == 0 {
		return fmt.Errorf("snapshot has no classrooms")
	}
	if len(s.Courses) == 0 {
		return fmt.Errorf("snapshot has no courses")
	}
	teacherIDs := make(map[string]bool, len(s.Teachers))
	for i, t := range s.Teachers {
		if t.ID == "" {
			return fmt.Errorf("teacher %d has no id", i)
		}
		if teacherIDs[t.ID] {
			return fmt.Errorf("duplicate teacher id %q", t.ID)
		}
		teacherIDs[t.ID] = true
		if t.MaxHoursPerWeek < 1 || t.MaxHoursPerWeek > 60 {
			return fmt.Errorf("teacher %q maxHoursPerWeek must be within 1-60", t.ID)
		}
	}
	roomIDs := make(map[string]bool, len(s.Classrooms))
	for i, r := range s.Classrooms {
		if r.ID == "" {
			return fmt.Errorf("classroom %d has no id", i)
		}
		if roomIDs[r.ID] {
			return fmt.Errorf("duplicate classroom id %q", r.ID)
		}
		roomIDs[r.ID] = true
		if r.Capacity < 1 {
			return fmt.Errorf("classroom %q capacity must be at least 1", r.ID)
		}
	}
	courseIDs := make(map[string]bool, len(s.Courses))
	for i, c := range s.Courses {
		if c.ID == "" {
			return fmt.Errorf("course %d has no id", i)
		}
		if courseIDs[c.ID] {
			return fmt.Errorf("duplicate course id %q", c.ID)
		}
		courseIDs[c.ID] = true
		weekly := 0
		for _, spec := range c.Sessions {
			if spec.SessionsPerWeek < 0 {
				return fmt.Errorf("course %q has negative sessionsPerWeek", c.ID)
			}
			if spec.SessionsPerWeek > 0 && spec.Duration <= 0 {
				return fmt.Errorf("course %q defines a session type without a duration", c.ID)
			}
			weekly += spec.SessionsPerWeek
		}
		if weekly == 0 {
			return fmt.Errorf("course %q demands no weekly sessions", c.ID)
		}
		eligible := false
		for _, ref := range c.AssignedTeachers {
			if teacherIDs[ref.TeacherID] && len(ref.SessionTypes) > 0 {
				eligible = true
				break
			}
		}
		if !eligible {
			return fmt.Errorf("course %q has no eligible teacher", c.ID)
		}
		for _, div := range c.Divisions {
			if div.ID == "" {
				return fmt.Errorf("course %q has a division without an id", c.ID)
			}
		}
	}
	return nil
}

// SessionTypesOf returns the session types a course defines with a
// positive weekly count, in the canonical theory/practical/tutorial order.
func (c Course) SessionTypesOf() []SessionType {
	order := []SessionType{SessionTheory, SessionPractical, SessionTutorial}
	out := make([]SessionType, 0, len(order))
	for _, st := range order {
		if spec, ok := c.Sessions[st]; ok && spec.SessionsPerWeek > 0 {
			out = append(out, st)
		}
	}
	return out
}

// normalizeFeatures lowercases and dedupes a feature list.
func normalizeFeatures(features []string) []string {
	seen := make(map[string]bool, len(features))
	out := make([]string, 0, len(features))
	for _, f := range features {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
