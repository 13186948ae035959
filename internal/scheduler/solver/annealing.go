package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/constraint"
)

// Annealing is a simulated annealing solver. It starts from a greedy
// schedule, explores neighbor schedules that may violate hard rules, and
// accepts worse states with Metropolis probability under a geometric
// cooling ladder. The final schedule is reduced to its conflict-free
// subset before it is returned.
type Annealing struct{}

// NewAnnealing returns the simulated annealing solver.
func NewAnnealing() *Annealing { return &Annealing{} }

// Name implements Solver.
func (a *Annealing) Name() string { return scheduler.AlgoAnnealing }

// Solve implements Solver.
func (a *Annealing) Solve(ctx context.Context, p *Problem) (*Result, error) {
	started := time.Now()
	rnd := p.Rand

	cur := annealingSeed(p)
	curEnergy := annealingEnergy(p, cur)
	best := cur.Clone()
	bestEnergy := curEnergy

	temp := p.Params.InitialTemperature
	iterations := 0
	cancelled := false

	for temp >= p.Params.MinTemperature && iterations < p.Params.MaxIterations {
		for i := 0; i < p.Params.IterationsPerTemp && iterations < p.Params.MaxIterations; i++ {
			iterations++
			if ctx.Err() != nil {
				cancelled = true
				break
			}

			undo, ok := a.perturb(p, cur)
			if !ok {
				continue
			}
			nextEnergy := annealingEnergy(p, cur)
			delta := nextEnergy - curEnergy
			if delta <= 0 || rnd.Float64() < math.Exp(-delta/temp) {
				curEnergy = nextEnergy
				if curEnergy < bestEnergy {
					bestEnergy = curEnergy
					best = cur.Clone()
				}
			} else {
				undo()
			}

			if iterations%p.Params.ProgressEvery == 0 {
				_, _, fitness := p.Measure(best)
				progress(p, "annealing",
					float64(iterations)/float64(p.Params.MaxIterations)*100,
					fitness, iterations, started)
			}
		}
		if cancelled {
			break
		}
		temp *= p.Params.CoolingRate
	}

	clean, droppedSessions := p.FeasibleSubset(best)
	unscheduled := append([]int(nil), p.Unschedulable...)
	unscheduled = append(unscheduled, droppedSessions...)
	diagnostics := append([]string(nil), p.Diagnostics...)
	if len(droppedSessions) > 0 {
		diagnostics = append(diagnostics,
			fmt.Sprintf("annealing: dropped %d conflicting placements after cooling", len(droppedSessions)))
	}

	status := StatusSolved
	switch {
	case cancelled:
		status = StatusCancelled
	case len(unscheduled) > 0:
		status = StatusPartial
	}

	hard, soft, fitness := p.Measure(clean)
	return &Result{
		Status:   status,
		Schedule: clean,
		Metrics: Metrics{
			Iterations:     iterations,
			HardViolations: hard,
			SoftScore:      soft,
			Fitness:        fitness,
		},
		Unscheduled: unscheduled,
		Diagnostics: diagnostics,
	}, nil
}

// perturb applies one random move and returns how to revert it. The
// move keeps static rules intact; hard conflicts against other sessions
// are allowed and paid for through the energy function.
func (a *Annealing) perturb(p *Problem, s *scheduler.Schedule) (func(), bool) {
	if p.Rand.Float64() < 0.3 {
		if undo, ok := a.swapSlots(p, s); ok {
			return undo, true
		}
	}
	return a.reassign(p, s)
}

// reassign moves one random session to a random candidate placement.
func (a *Annealing) reassign(p *Problem, s *scheduler.Schedule) (func(), bool) {
	si := a.randomPlaced(p, s)
	if si < 0 {
		return nil, false
	}
	domain := p.Domains[si]
	prev := s.At(si)
	next := domain[p.Rand.Intn(len(domain))].Assignment(si)
	if next == prev {
		return nil, false
	}
	s.Place(next)
	return func() { s.Place(prev) }, true
}

// swapSlots exchanges the time slots of two equally long sessions while
// keeping their teachers and rooms.
func (a *Annealing) swapSlots(p *Problem, s *scheduler.Schedule) (func(), bool) {
	si := a.randomPlaced(p, s)
	sj := a.randomPlaced(p, s)
	if si < 0 || sj < 0 || si == sj {
		return nil, false
	}
	if p.Inst.Sessions[si].DurationSlots != p.Inst.Sessions[sj].DurationSlots {
		return nil, false
	}
	ai, aj := s.At(si), s.At(sj)
	if !p.StaticFeasible(si, ai.Teacher, ai.Room, aj.Slot) ||
		!p.StaticFeasible(sj, aj.Teacher, aj.Room, ai.Slot) {
		return nil, false
	}
	s.Place(scheduler.Assignment{Session: si, Teacher: ai.Teacher, Room: ai.Room, Slot: aj.Slot})
	s.Place(scheduler.Assignment{Session: sj, Teacher: aj.Teacher, Room: aj.Room, Slot: ai.Slot})
	return func() {
		s.Place(ai)
		s.Place(aj)
	}, true
}

func (a *Annealing) randomPlaced(p *Problem, s *scheduler.Schedule) int {
	if len(p.Order) == 0 {
		return -1
	}
	for tries := 0; tries < 8; tries++ {
		si := p.Order[p.Rand.Intn(len(p.Order))]
		if s.Placed(si) {
			return si
		}
	}
	return -1
}

// annealingSeed builds the starting schedule: greedy placements first,
// then every remaining searchable session lands on a random candidate
// so the walk starts complete.
func annealingSeed(p *Problem) *scheduler.Schedule {
	sched := scheduler.NewSchedule(p.Inst)
	ledger := constraint.NewLedger(len(p.Inst.Teachers))
	for _, si := range p.Order {
		placed := false
		for _, c := range p.Domains[si] {
			a := c.Assignment(si)
			if p.Check.Feasible(a, sched, ledger) {
				sched.Place(a)
				ledger.Add(a.Teacher, p.Inst.Sessions[si].DurationMinutes)
				placed = true
				break
			}
		}
		if !placed && len(p.Domains[si]) > 0 {
			c := p.Domains[si][p.Rand.Intn(len(p.Domains[si]))]
			sched.Place(c.Assignment(si))
		}
	}
	return sched
}

// annealingEnergy scores a schedule for the walk: hard violations
// dominate, soft quality breaks ties. Lower is better.
func annealingEnergy(p *Problem, s *scheduler.Schedule) float64 {
	hard := len(p.Check.ScheduleViolations(s))
	soft := p.Check.ScheduleSoftScore(s)
	return 100*float64(hard) + 10*(1-soft)
}
