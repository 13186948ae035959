package solver

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/constraint"
)

// easySnapshot has plenty of slack: four sessions, two teachers, two
// rooms, eight slots. Every solver should place all of it.
func easySnapshot() *scheduler.Snapshot {
	return &scheduler.Snapshot{
		Teachers: []scheduler.Teacher{
			{ID: "t-ani", Name: "Ani", Type: scheduler.TeacherCore, Priority: scheduler.PriorityMedium, MaxHoursPerWeek: 20},
			{ID: "t-rudi", Name: "Rudi", Type: scheduler.TeacherGuest, MaxHoursPerWeek: 20},
		},
		Classrooms: []scheduler.Classroom{
			{ID: "r-aula", Name: "Aula", Capacity: 60, Type: scheduler.RoomLecture},
			{ID: "r-komp", Name: "Lab Komputer", Capacity: 30, Type: scheduler.RoomComputer},
		},
		Courses: []scheduler.Course{
			{
				ID: "mat", Code: "MAT101", Program: "science", Year: 1, Semester: 1, IsCore: true,
				Sessions: map[scheduler.SessionType]scheduler.SessionSpec{
					scheduler.SessionTheory: {Duration: 60, SessionsPerWeek: 2},
				},
				AssignedTeachers: []scheduler.TeacherRef{{TeacherID: "t-ani", SessionTypes: []scheduler.SessionType{scheduler.SessionTheory}}},
				Divisions:        []scheduler.Division{{ID: "A", StudentCount: 40}},
			},
			{
				ID: "inf", Code: "INF102", Program: "science", Year: 1, Semester: 1, IsCore: true,
				Sessions: map[scheduler.SessionType]scheduler.SessionSpec{
					scheduler.SessionPractical: {Duration: 120, SessionsPerWeek: 1, RequiresLab: true},
				},
				AssignedTeachers: []scheduler.TeacherRef{{TeacherID: "t-rudi", SessionTypes: []scheduler.SessionType{scheduler.SessionPractical}}},
				Divisions:        []scheduler.Division{{ID: "A", StudentCount: 28}},
			},
			{
				ID: "eng", Code: "ENG103", Program: "science", Year: 1, Semester: 1, IsCore: true,
				Sessions: map[scheduler.SessionType]scheduler.SessionSpec{
					scheduler.SessionTheory: {Duration: 60, SessionsPerWeek: 1},
				},
				AssignedTeachers: []scheduler.TeacherRef{{TeacherID: "t-ani", SessionTypes: []scheduler.SessionType{scheduler.SessionTheory}}},
				Divisions:        []scheduler.Division{{ID: "B", StudentCount: 35}},
			},
		},
	}
}

// tightSnapshot defeats first-fit: the high-priority session can move but
// greedily grabs the only slot the other session's teacher can use.
func tightSnapshot() *scheduler.Snapshot {
	return &scheduler.Snapshot{
		Teachers: []scheduler.Teacher{
			{
				ID: "t-visit", Name: "Visiting", Type: scheduler.TeacherVisiting, MaxHoursPerWeek: 10,
				Availability: map[string]scheduler.DayWindow{
					"monday": {Available: true, StartTime: "09:00", EndTime: "11:00"},
				},
			},
			{
				ID: "t-core", Name: "Core", Type: scheduler.TeacherCore, Priority: scheduler.PriorityMedium, MaxHoursPerWeek: 10,
				Availability: map[string]scheduler.DayWindow{
					"monday": {Available: true, StartTime: "09:00", EndTime: "10:00"},
				},
			},
		},
		Classrooms: []scheduler.Classroom{
			{ID: "r-only", Name: "Only Room", Capacity: 25, Type: scheduler.RoomLecture},
		},
		Courses: []scheduler.Course{
			{
				ID: "ca", Code: "CA1", Program: "science", Year: 1, Semester: 1, IsCore: true,
				Sessions: map[scheduler.SessionType]scheduler.SessionSpec{
					scheduler.SessionTheory: {Duration: 60, SessionsPerWeek: 1},
				},
				AssignedTeachers: []scheduler.TeacherRef{{TeacherID: "t-visit", SessionTypes: []scheduler.SessionType{scheduler.SessionTheory}}},
				Divisions:        []scheduler.Division{{ID: "VA", StudentCount: 20}},
			},
			{
				ID: "cb", Code: "CB1", Program: "science", Year: 1, Semester: 1, IsCore: true,
				Sessions: map[scheduler.SessionType]scheduler.SessionSpec{
					scheduler.SessionTheory: {Duration: 60, SessionsPerWeek: 1},
				},
				AssignedTeachers: []scheduler.TeacherRef{{TeacherID: "t-core", SessionTypes: []scheduler.SessionType{scheduler.SessionTheory}}},
				Divisions:        []scheduler.Division{{ID: "CB", StudentCount: 25}},
			},
		},
	}
}

// pigeonSnapshot is provably infeasible: three single-teacher sessions
// into two slots.
func pigeonSnapshot() *scheduler.Snapshot {
	course := func(id string, div string) scheduler.Course {
		return scheduler.Course{
			ID: id, Code: id, Program: "science", Year: 1, Semester: 1, IsCore: true,
			Sessions: map[scheduler.SessionType]scheduler.SessionSpec{
				scheduler.SessionTheory: {Duration: 60, SessionsPerWeek: 1},
			},
			AssignedTeachers: []scheduler.TeacherRef{{TeacherID: "t-one", SessionTypes: []scheduler.SessionType{scheduler.SessionTheory}}},
			Divisions:        []scheduler.Division{{ID: div, StudentCount: 20}},
		}
	}
	return &scheduler.Snapshot{
		Teachers: []scheduler.Teacher{
			{ID: "t-one", Name: "One", Type: scheduler.TeacherCore, Priority: scheduler.PriorityMedium, MaxHoursPerWeek: 10},
		},
		Classrooms: []scheduler.Classroom{
			{ID: "r1", Name: "R1", Capacity: 60, Type: scheduler.RoomLecture},
			{ID: "r2", Name: "R2", Capacity: 60, Type: scheduler.RoomLecture},
		},
		Courses: []scheduler.Course{course("c1", "D1"), course("c2", "D2"), course("c3", "D3")},
	}
}

type problemOptions struct {
	settings func(*scheduler.Settings)
	seed     int64
	sink     scheduler.ProgressSink
}

func buildProblem(t *testing.T, snap *scheduler.Snapshot, opts problemOptions) *Problem {
	t.Helper()
	settings := scheduler.Settings{
		WorkingDays: []string{"monday", "tuesday"},
		StartTime:   "09:00",
		EndTime:     "13:00",
	}
	if opts.settings != nil {
		opts.settings(&settings)
	}
	normalized, err := settings.Normalize()
	require.NoError(t, err)
	cal, err := scheduler.BuildCalendar(normalized)
	require.NoError(t, err)
	inst, err := scheduler.NewInstance(snap, cal)
	require.NoError(t, err)
	check := constraint.NewChecker(inst, normalized.Weights(), true)
	seed := opts.seed
	if seed == 0 {
		seed = 42
	}
	return NewProblem(inst, check, ParamsFrom(normalized), opts.sink, rand.New(rand.NewSource(seed)))
}

// assertAccounted checks that placements plus unscheduled cover every
// session exactly once.
func assertAccounted(t *testing.T, p *Problem, res *Result) {
	t.Helper()
	seen := make(map[int]bool, len(p.Inst.Sessions))
	for _, a := range res.Schedule.Assignments() {
		assert.False(t, seen[a.Session], "session placed twice")
		seen[a.Session] = true
	}
	for _, si := range res.Unscheduled {
		assert.False(t, seen[si], "session both placed and unscheduled")
		seen[si] = true
	}
	assert.Len(t, seen, len(p.Inst.Sessions))
}

func assertConflictFree(t *testing.T, p *Problem, res *Result) {
	t.Helper()
	assert.Empty(t, p.Check.ScheduleViolations(res.Schedule))
	assert.Zero(t, res.Metrics.HardViolations)
}

func TestGreedySolvesSlackInstance(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})
	res, err := NewGreedy().Solve(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, StatusSolved, res.Status)
	assert.Empty(t, res.Unscheduled)
	assert.Equal(t, len(p.Order), res.Schedule.Len())
	assertConflictFree(t, p, res)
	assertAccounted(t, p, res)
	assert.Greater(t, res.Metrics.Fitness, 0.0)
}

func TestGreedyIsDeterministic(t *testing.T) {
	p1 := buildProblem(t, easySnapshot(), problemOptions{})
	p2 := buildProblem(t, easySnapshot(), problemOptions{})

	r1, err := NewGreedy().Solve(context.Background(), p1)
	require.NoError(t, err)
	r2, err := NewGreedy().Solve(context.Background(), p2)
	require.NoError(t, err)

	assert.Equal(t, r1.Schedule.Assignments(), r2.Schedule.Assignments())
}

func TestGreedyLeavesBlockedSessionUnscheduled(t *testing.T) {
	p := buildProblem(t, tightSnapshot(), problemOptions{})
	res, err := NewGreedy().Solve(context.Background(), p)
	require.NoError(t, err)

	// First-fit gives the flexible visiting session the 09:00 slot and
	// strands the one-slot teacher.
	assert.Equal(t, StatusPartial, res.Status)
	require.Len(t, res.Unscheduled, 1)
	assert.Equal(t, "cb:theory:CB:1", p.Inst.Sessions[res.Unscheduled[0]].Key)
	assert.NotEmpty(t, res.Diagnostics)
	assertConflictFree(t, p, res)
}

func TestGreedyHonorsCancellation(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewGreedy().Solve(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
}
