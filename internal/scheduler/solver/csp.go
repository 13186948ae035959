package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

// CSP runs AC-3 arc consistency over the session domains before handing
// the pruned problem to the backtracking search. Propagation alone can
// prove infeasibility when a domain empties.
type CSP struct{}

// NewCSP returns the constraint propagation solver.
func NewCSP() *CSP { return &CSP{} }

// Name implements Solver.
func (c *CSP) Name() string { return scheduler.AlgoCSP }

// Solve implements Solver.
func (c *CSP) Solve(ctx context.Context, p *Problem) (*Result, error) {
	return c.solve(ctx, p, p.Params.MaxBacktracks), nil
}

func (c *CSP) solve(ctx context.Context, p *Problem, budget int) *Result {
	propProb := *p
	propProb.Sink = scaleSink(p.Sink, 0, 25, 0)
	pruned, wiped, revisions, cancelled := propagate(ctx, &propProb, p.Domains)
	if cancelled {
		res := emptyResult(p, StatusCancelled, nil)
		res.Metrics.Iterations = revisions
		return res
	}
	if wiped >= 0 {
		reason := fmt.Sprintf("%s: arc consistency emptied the placement domain",
			p.Inst.Sessions[wiped].Key)
		res := emptyResult(p, StatusInfeasible, []string{reason})
		res.Metrics.Iterations = revisions
		return res
	}
	// Search iterations continue the propagation count so the stream
	// stays monotone across the phase switch.
	searchProb := *p
	searchProb.Sink = scaleSink(p.Sink, 25, 100, revisions)
	res := runBacktracking(ctx, &searchProb, pruned, budget, "search")
	res.Metrics.Iterations += revisions
	return res
}

type arc struct {
	x, y int
}

// propagate enforces pairwise consistency: a candidate survives only
// while every constrained neighbor still has a compatible candidate.
// Returns the reduced domains, the first wiped-out session (-1 when
// none), the number of arc revisions, and whether the context fired.
func propagate(ctx context.Context, p *Problem, domains [][]Candidate) ([][]Candidate, int, int, bool) {
	started := time.Now()
	work := make([][]Candidate, len(domains))
	for si, d := range domains {
		work[si] = append([]Candidate(nil), d...)
	}

	n := len(domains)
	queued := make([]map[int]bool, n)
	var queue []arc
	push := func(x, y int) {
		if queued[x] == nil {
			queued[x] = make(map[int]bool, 8)
		}
		if !queued[x][y] {
			queued[x][y] = true
			queue = append(queue, arc{x, y})
		}
	}
	for si := range domains {
		if len(work[si]) == 0 {
			continue
		}
		for _, nb := range p.Neighbors(si) {
			if len(work[nb]) > 0 {
				push(si, nb)
			}
		}
	}

	total := len(queue)
	revisions := 0
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		queued[a.x][a.y] = false

		revisions++
		if revisions%p.Params.ProgressEvery == 0 {
			if ctx.Err() != nil {
				return work, -1, revisions, true
			}
			done := float64(total-len(queue)) / float64(total+1)
			progress(p, "propagation", done*100, 0, revisions, started)
		}

		if !revise(p, work, a.x, a.y) {
			continue
		}
		if len(work[a.x]) == 0 {
			return work, a.x, revisions, false
		}
		for _, nb := range p.Neighbors(a.x) {
			if nb != a.y && len(work[nb]) > 0 {
				push(nb, a.x)
			}
		}
	}
	return work, -1, revisions, false
}

// revise drops candidates of x that no candidate of y can coexist with.
func revise(p *Problem, work [][]Candidate, x, y int) bool {
	changed := false
	kept := work[x][:0]
	for _, cx := range work[x] {
		ax := cx.Assignment(x)
		supported := false
		for _, cy := range work[y] {
			if p.Check.Compatible(ax, cy.Assignment(y)) {
				supported = true
				break
			}
		}
		if supported {
			kept = append(kept, cx)
		} else {
			changed = true
		}
	}
	work[x] = kept
	return changed
}

// emptyResult reports a run that never produced placements.
func emptyResult(p *Problem, status Status, diagnostics []string) *Result {
	sched := scheduler.NewSchedule(p.Inst)
	unscheduled := append([]int(nil), p.Unschedulable...)
	unscheduled = append(unscheduled, p.Order...)
	hard, soft, fitness := p.Measure(sched)
	return &Result{
		Status:   status,
		Schedule: sched,
		Metrics: Metrics{
			HardViolations: hard,
			SoftScore:      soft,
			Fitness:        fitness,
		},
		Unscheduled: unscheduled,
		Diagnostics: append(append([]string(nil), p.Diagnostics...), diagnostics...),
	}
}
