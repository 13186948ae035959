package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/constraint"
)

// Greedy places sessions in priority order, accepting for each the first
// hard-violation-free candidate: best teacher first, then earliest slot,
// then the smallest adequate room. Sessions with no feasible value are
// left unscheduled; the output never contains hard violations.
type Greedy struct{}

// NewGreedy returns the greedy scheduler.
func NewGreedy() *Greedy { return &Greedy{} }

// Name implements Solver.
func (g *Greedy) Name() string { return scheduler.AlgoGreedy }

// Solve implements Solver. It is deterministic: the same snapshot always
// yields the same schedule.
func (g *Greedy) Solve(ctx context.Context, p *Problem) (*Result, error) {
	started := time.Now()
	sched := scheduler.NewSchedule(p.Inst)
	ledger := constraint.NewLedger(len(p.Inst.Teachers))

	unscheduled := append([]int(nil), p.Unschedulable...)
	diagnostics := append([]string(nil), p.Diagnostics...)
	total := len(p.Order)
	best := 0.0

	for done, si := range p.Order {
		if ctx.Err() != nil {
			return g.finish(p, StatusCancelled, sched, done, unscheduled, diagnostics), nil
		}
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
		if !placed {
			unscheduled = append(unscheduled, si)
			diagnostics = append(diagnostics, fmt.Sprintf("%s: no conflict-free placement left", p.Inst.Sessions[si].Key))
		}
		if (done+1)%p.Params.ProgressEvery == 0 || done+1 == total {
			_, _, best = p.Measure(sched)
			progress(p, "placing", float64(done+1)/float64(total)*100, best, done+1, started)
		}
	}

	status := StatusSolved
	if len(unscheduled) > 0 {
		status = StatusPartial
	}
	return g.finish(p, status, sched, total, unscheduled, diagnostics), nil
}

func (g *Greedy) finish(p *Problem, status Status, sched *scheduler.Schedule, iterations int, unscheduled []int, diagnostics []string) *Result {
	hard, soft, fitness := p.Measure(sched)
	return &Result{
		Status:   status,
		Schedule: sched,
		Metrics: Metrics{
			Iterations:     iterations,
			HardViolations: hard,
			SoftScore:      soft,
			Fitness:        fitness,
		},
		Unscheduled: unscheduled,
		Diagnostics: diagnostics,
	}
}
