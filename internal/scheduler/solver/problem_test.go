package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

func sessionByKey(t *testing.T, p *Problem, key string) int {
	t.Helper()
	for si := range p.Inst.Sessions {
		if p.Inst.Sessions[si].Key == key {
			return si
		}
	}
	t.Fatalf("session %q not found", key)
	return -1
}

func TestNewProblemBuildsStaticallyFeasibleDomains(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})

	require.Len(t, p.Domains, len(p.Inst.Sessions))
	for si, domain := range p.Domains {
		assert.NotEmpty(t, domain)
		for _, c := range domain {
			assert.True(t, p.StaticFeasible(si, int(c.Teacher), int(c.Room), int(c.Slot)))
		}
	}
	assert.Empty(t, p.Unschedulable)
}

func TestNewProblemOrdersByPriorityThenDomainSize(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})

	// The guest-taught practical outranks the core theory sessions.
	require.NotEmpty(t, p.Order)
	assert.Equal(t, "inf:practical:A:1", p.Inst.Sessions[p.Order[0]].Key)
	for i := 1; i < len(p.Order); i++ {
		prev := p.Inst.Sessions[p.Order[i-1]].Priority
		cur := p.Inst.Sessions[p.Order[i]].Priority
		assert.GreaterOrEqual(t, prev, cur)
	}
}

func TestNewProblemFlagsUnschedulableSessions(t *testing.T) {
	snap := easySnapshot()
	snap.Courses[0].Divisions[0].StudentCount = 200
	p := buildProblem(t, snap, problemOptions{})

	require.Len(t, p.Unschedulable, 2)
	for _, si := range p.Unschedulable {
		assert.Empty(t, p.Domains[si])
		reason := p.ReasonFor(si)
		assert.Contains(t, reason, "no classroom seats 200 students")
		assert.Contains(t, reason, "CAPACITY_SHORTFALL")
	}
	assert.Empty(t, p.ReasonFor(p.Order[0]), "searchable sessions carry no reason")
}

func TestNewProblemRoomShortlistPrefersSnugRooms(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})

	// eng (35 students) fits only the hall; inf needs the lab.
	eng := sessionByKey(t, p, "eng:theory:B:1")
	rooms := p.FeasibleRooms(eng)
	require.Len(t, rooms, 1)
	assert.Equal(t, "r-aula", p.Inst.Rooms[rooms[0]].ID)

	inf := sessionByKey(t, p, "inf:practical:A:1")
	rooms = p.FeasibleRooms(inf)
	require.Len(t, rooms, 1)
	assert.Equal(t, "r-komp", p.Inst.Rooms[rooms[0]].ID)
}

func TestNewProblemNeighborsLinkPossibleConflicts(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})

	mat := sessionByKey(t, p, "mat:theory:A:1")
	eng := sessionByKey(t, p, "eng:theory:B:1")
	inf := sessionByKey(t, p, "inf:practical:A:1")

	// mat and eng share a teacher and a room; mat and inf share students.
	assert.Contains(t, p.Neighbors(mat), eng)
	assert.Contains(t, p.Neighbors(mat), inf)
	// eng and inf share nothing: distinct teacher, room, and cohort.
	assert.NotContains(t, p.Neighbors(eng), inf)
}

func TestProblemFeasibleSubsetDropsConflicts(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})

	mat1 := sessionByKey(t, p, "mat:theory:A:1")
	mat2 := sessionByKey(t, p, "mat:theory:A:2")
	ani, ok := p.Inst.TeacherIndex("t-ani")
	require.True(t, ok)
	aula, ok := p.Inst.RoomIndex("r-aula")
	require.True(t, ok)

	dirty := scheduler.NewSchedule(p.Inst)
	dirty.Place(scheduler.Assignment{Session: mat1, Teacher: ani, Room: aula, Slot: 0})
	dirty.Place(scheduler.Assignment{Session: mat2, Teacher: ani, Room: aula, Slot: 0})

	clean, dropped := p.FeasibleSubset(dirty)
	assert.Equal(t, 1, clean.Len())
	require.Len(t, dropped, 1)
	assert.Equal(t, mat2, dropped[0])
	assert.Empty(t, p.Check.ScheduleViolations(clean))
}

func TestProblemFeasibleSubsetKeepsCleanSchedules(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})
	res, err := NewGreedy().Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusSolved, res.Status)

	clean, dropped := p.FeasibleSubset(res.Schedule)
	assert.Empty(t, dropped)
	assert.Equal(t, res.Schedule.Assignments(), clean.Assignments())
}

func TestProblemMeasureMatchesChecker(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})
	res, err := NewGreedy().Solve(context.Background(), p)
	require.NoError(t, err)

	hard, soft, fitness := p.Measure(res.Schedule)
	assert.Zero(t, hard)
	assert.Greater(t, soft, 0.0)
	assert.InDelta(t, 0.7+0.3*soft, fitness, 1e-9)
}

func TestProblemLCVRanksContestedValuesHigher(t *testing.T) {
	p := buildProblem(t, tightSnapshot(), problemOptions{})

	ca := sessionByKey(t, p, "ca:theory:VA:1")
	require.Len(t, p.Domains[ca], 2)
	slot0, slot1 := p.Domains[ca][0], p.Domains[ca][1]
	require.Equal(t, int32(0), slot0.Slot)

	// Both sessions want 09:00; only ca can use 10:00.
	assert.Greater(t, p.LCVRank(ca, slot0), p.LCVRank(ca, slot1))
}
