package solver

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/constraint"
)

// Candidate is one (teacher, room, slot) value of a session's domain.
// Fields are dense arena indices; Slot is a calendar ordinal.
type Candidate struct {
	Teacher int32
	Room    int32
	Slot    int32
}

// Assignment converts a candidate into an assignment for a session.
func (c Candidate) Assignment(session int) scheduler.Assignment {
	return scheduler.Assignment{
		Session: session,
		Teacher: int(c.Teacher),
		Room:    int(c.Room),
		Slot:    int(c.Slot),
	}
}

// Problem bundles everything one solver run needs: the interned
// instance, the checker, per-session value domains, the deterministic
// session order, run parameters, a progress sink, and the run's RNG.
// Domains and order are shared read-only; solvers copy before mutating.
type Problem struct {
	Inst   *scheduler.Instance
	Check  *constraint.Checker
	Params Params
	Sink   scheduler.ProgressSink
	Rand   *rand.Rand

	// Order lists searchable sessions by descending priority, ties by
	// ascending domain size, the minimum-remaining-values rule.
	Order []int
	// Domains holds the statically feasible candidates per session,
	// teacher-major, then slot, then room. Greedy consumes them in this
	// order directly.
	Domains [][]Candidate
	// Seeds optionally warm-start population solvers.
	Seeds []*scheduler.Schedule
	// Unschedulable lists sessions with empty domains; Diagnostics
	// explains each one.
	Unschedulable []int
	Diagnostics   []string

	rooms   [][]int // feasible rooms per session, smallest adequate first
	starts  [][]int // feasible start ordinals per session
	startOK [][]bool
	reasons map[int]string

	// static demand tables used as the least-constraining-value rank
	teacherDemand [][]int
	roomDemand    [][]int
	cohortDemand  [][]int

	neighbors [][]int
}

// NewProblem precomputes domains, ordering, and contention tables for a
// run. A nil sink discards progress; a nil rng falls back to a fixed
// seed so replays stay deterministic.
func NewProblem(inst *scheduler.Instance, check *constraint.Checker, params Params, sink scheduler.ProgressSink, rnd *rand.Rand) *Problem {
	if sink == nil {
		sink = scheduler.NopSink
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}
	p := &Problem{
		Inst:   inst,
		Check:  check,
		Params: params,
		Sink:   sink,
		Rand:   rnd,
	}
	p.buildDomains()
	p.buildOrder()
	p.buildDemand()
	p.buildNeighbors()
	return p
}

func (p *Problem) buildDomains() {
	inst := p.Inst
	cal := inst.Calendar
	total := len(cal.Slots)

	p.Domains = make([][]Candidate, len(inst.Sessions))
	p.rooms = make([][]int, len(inst.Sessions))
	p.starts = make([][]int, len(inst.Sessions))
	p.startOK = make([][]bool, len(inst.Sessions))

	for si := range inst.Sessions {
		sess := &inst.Sessions[si]

		rooms := make([]int, 0, len(inst.Rooms))
		capacityOK := false
		featureOK := false
		for ri := range inst.Rooms {
			room := &inst.Rooms[ri]
			if room.Capacity >= sess.StudentCount {
				capacityOK = true
			} else {
				continue
			}
			if room.HasFeatures(sess.RequiredFeatures) && (!sess.RequiresLab || room.Type.IsLabCapable()) {
				featureOK = true
			} else {
				continue
			}
			rooms = append(rooms, ri)
		}
		sort.SliceStable(rooms, func(i, j int) bool {
			a, b := &inst.Rooms[rooms[i]], &inst.Rooms[rooms[j]]
			if a.Capacity != b.Capacity {
				return a.Capacity < b.Capacity
			}
			return len(a.Features) < len(b.Features)
		})
		p.rooms[si] = rooms

		starts := make([]int, 0, total)
		ok := make([]bool, total)
		for o := 0; o < total; o++ {
			if cal.FitsInDay(o, sess.DurationSlots) {
				starts = append(starts, o)
				ok[o] = true
			}
		}
		p.starts[si] = starts
		p.startOK[si] = ok

		var domain []Candidate
		for _, ti := range sess.Teachers {
			teacher := &inst.Teachers[ti]
			if sess.DurationMinutes > teacher.MaxMinutes {
				continue
			}
			for _, o := range starts {
				slot := cal.Slots[o]
				end := slot.Start + sess.DurationSlots*cal.SlotDuration
				if !teacher.Available(slot.Day, slot.Start, end) {
					continue
				}
				for _, ri := range rooms {
					if !inst.Rooms[ri].Available(slot.Day, slot.Start, end) {
						continue
					}
					domain = append(domain, Candidate{Teacher: int32(ti), Room: int32(ri), Slot: int32(o)})
				}
			}
		}
		p.Domains[si] = domain

		if len(domain) == 0 {
			reason := p.emptyDomainReason(sess, capacityOK, featureOK, len(starts) > 0)
			p.Unschedulable = append(p.Unschedulable, si)
			p.Diagnostics = append(p.Diagnostics, reason)
			if p.reasons == nil {
				p.reasons = make(map[int]string)
			}
			p.reasons[si] = reason
		}
	}
}

// ReasonFor returns the recorded diagnostic of a session with an empty
// domain, or the empty string.
func (p *Problem) ReasonFor(session int) string { return p.reasons[session] }

// emptyDomainReason names the dominant cause of an empty domain so the
// caller can surface an actionable diagnostic.
func (p *Problem) emptyDomainReason(sess *scheduler.Session, capacityOK, featureOK, startsOK bool) string {
	switch {
	case !capacityOK:
		return fmt.Sprintf("%s: %s: no classroom seats %d students", constraint.KindCapacityShortfall, sess.Key, sess.StudentCount)
	case !featureOK:
		return fmt.Sprintf("%s: %s: no classroom provides the required features", constraint.KindFeatureShortfall, sess.Key)
	case !startsOK:
		return fmt.Sprintf("%s: session of %d slots does not fit any working day", sess.Key, sess.DurationSlots)
	default:
		return fmt.Sprintf("%s: %s: no eligible teacher and room are jointly available", constraint.KindTeacherUnavailable, sess.Key)
	}
}

// buildOrder sorts searchable sessions by descending priority, breaking
// ties by ascending static domain size.
func (p *Problem) buildOrder() {
	for si := range p.Inst.Sessions {
		if len(p.Domains[si]) > 0 {
			p.Order = append(p.Order, si)
		}
	}
	sort.SliceStable(p.Order, func(i, j int) bool {
		a, b := p.Order[i], p.Order[j]
		pa, pb := p.Inst.Sessions[a].Priority, p.Inst.Sessions[b].Priority
		if pa != pb {
			return pa > pb
		}
		return len(p.Domains[a]) < len(p.Domains[b])
	})
}

// buildDemand counts, per teacher, room, and cohort slot, how many
// session domains want it. The counts rank candidates by how contested
// their values are, the static least-constraining-value measure.
func (p *Problem) buildDemand() {
	inst := p.Inst
	total := len(inst.Calendar.Slots)
	p.teacherDemand = makeTable(len(inst.Teachers), total)
	p.roomDemand = makeTable(len(inst.Rooms), total)
	p.cohortDemand = makeTable(inst.Cohorts, total)

	for si, domain := range p.Domains {
		sess := &inst.Sessions[si]
		for _, c := range domain {
			for k := 0; k < sess.DurationSlots; k++ {
				o := int(c.Slot) + k
				p.teacherDemand[c.Teacher][o]++
				p.roomDemand[c.Room][o]++
				p.cohortDemand[sess.Cohort][o]++
			}
		}
	}
}

// LCVRank scores how contested a candidate's values are; lower ranks
// prune fewer competing domains.
func (p *Problem) LCVRank(session int, c Candidate) int {
	sess := &p.Inst.Sessions[session]
	rank := 0
	for k := 0; k < sess.DurationSlots; k++ {
		o := int(c.Slot) + k
		rank += p.teacherDemand[c.Teacher][o] + p.roomDemand[c.Room][o] + p.cohortDemand[sess.Cohort][o]
	}
	return rank
}

// buildNeighbors links sessions that can possibly conflict: shared
// eligible teacher, intersecting feasible rooms, or overlapping student
// groups.
func (p *Problem) buildNeighbors() {
	inst := p.Inst
	n := len(inst.Sessions)
	p.neighbors = make([][]int, n)

	teacherSets := make([]map[int]bool, n)
	roomSets := make([]map[int]bool, n)
	for si := range inst.Sessions {
		ts := make(map[int]bool, len(inst.Sessions[si].Teachers))
		for _, t := range inst.Sessions[si].Teachers {
			ts[t] = true
		}
		teacherSets[si] = ts
		rs := make(map[int]bool, len(p.rooms[si]))
		for _, r := range p.rooms[si] {
			rs[r] = true
		}
		roomSets[si] = rs
	}

	for i := 0; i < n; i++ {
		if len(p.Domains[i]) == 0 {
			continue
		}
		for j := i + 1; j < n; j++ {
			if len(p.Domains[j]) == 0 {
				continue
			}
			if !p.related(i, j, teacherSets, roomSets) {
				continue
			}
			p.neighbors[i] = append(p.neighbors[i], j)
			p.neighbors[j] = append(p.neighbors[j], i)
		}
	}
}

func (p *Problem) related(i, j int, teacherSets, roomSets []map[int]bool) bool {
	si, sj := &p.Inst.Sessions[i], &p.Inst.Sessions[j]
	if si.StudentOverlap(sj) {
		return true
	}
	for t := range teacherSets[i] {
		if teacherSets[j][t] {
			return true
		}
	}
	small, large := roomSets[i], roomSets[j]
	if len(small) > len(large) {
		small, large = large, small
	}
	for r := range small {
		if large[r] {
			return true
		}
	}
	return false
}

// Neighbors returns the sessions that can conflict with the given one.
func (p *Problem) Neighbors(session int) []int { return p.neighbors[session] }

// FeasibleRooms returns the static room shortlist of a session, smallest
// adequate capacity first.
func (p *Problem) FeasibleRooms(session int) []int { return p.rooms[session] }

// FeasibleStarts returns the start ordinals where the session fits
// inside one day.
func (p *Problem) FeasibleStarts(session int) []int { return p.starts[session] }

// StaticFeasible checks the slot-dependent unary rules for a concrete
// placement: day fit plus teacher and room availability. Capacity and
// feature rules are implied when room comes from the session shortlist.
func (p *Problem) StaticFeasible(session, teacher, room, slot int) bool {
	sess := &p.Inst.Sessions[session]
	if slot < 0 || slot >= len(p.startOK[session]) || !p.startOK[session][slot] {
		return false
	}
	cal := p.Inst.Calendar
	s := cal.Slots[slot]
	end := s.Start + sess.DurationSlots*cal.SlotDuration
	return p.Inst.Teachers[teacher].Available(s.Day, s.Start, end) &&
		p.Inst.Rooms[room].Available(s.Day, s.Start, end)
}

// Measure computes the schedule-wide counters reported with results.
func (p *Problem) Measure(s *scheduler.Schedule) (hard int, soft, fitness float64) {
	hard = len(p.Check.ScheduleViolations(s))
	soft = p.Check.ScheduleSoftScore(s)
	fitness = constraint.Fitness(hard, len(p.Inst.Sessions), soft, p.Params.FitnessAlpha, p.Params.FitnessBeta)
	return hard, soft, fitness
}

// FeasibleSubset rebuilds a schedule keeping only placements that stay
// conflict-free, visiting sessions in priority order. Stochastic solvers
// use it so every returned schedule honors the hard rules; dropped
// sessions are reported as unscheduled.
func (p *Problem) FeasibleSubset(s *scheduler.Schedule) (*scheduler.Schedule, []int) {
	clean := scheduler.NewSchedule(p.Inst)
	ledger := constraint.NewLedger(len(p.Inst.Teachers))
	var dropped []int
	for _, si := range p.Order {
		if !s.Placed(si) {
			continue
		}
		a := s.At(si)
		if p.Check.Feasible(a, clean, ledger) {
			clean.Place(a)
			ledger.Add(a.Teacher, p.Inst.Sessions[si].DurationMinutes)
		} else {
			dropped = append(dropped, si)
		}
	}
	return clean, dropped
}

func makeTable(rows, cols int) [][]int {
	t := make([][]int, rows)
	for i := range t {
		t[i] = make([]int, cols)
	}
	return t
}
