package solver

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/constraint"
)

// Backtracking is a classical constraint search: minimum-remaining-values
// variable order, least-constraining-value ordering, and forward checking
// with trail-based undo. The total number of retracted placements is
// capped; hitting the cap returns the best partial schedule found.
type Backtracking struct{}

// NewBacktracking returns the backtracking solver.
func NewBacktracking() *Backtracking { return &Backtracking{} }

// Name implements Solver.
func (b *Backtracking) Name() string { return scheduler.AlgoBacktracking }

// Solve implements Solver.
func (b *Backtracking) Solve(ctx context.Context, p *Problem) (*Result, error) {
	return runBacktracking(ctx, p, p.Domains, p.Params.MaxBacktracks, "search"), nil
}

type btOutcome int

const (
	btFound btOutcome = iota
	btExhausted
	btLimit
	btCancelled
)

type prune struct {
	session int32
	cand    int32
}

type btSearch struct {
	p       *Problem
	domains [][]Candidate

	alive      [][]bool
	aliveCount []int
	assigned   []bool
	sched      *scheduler.Schedule
	ledger     *constraint.Ledger
	trail      []prune

	remaining  int
	total      int
	nodes      int
	backtracks int
	budget     int

	best        *scheduler.Schedule
	bestPlaced  int
	bestFitness float64

	phase   string
	started time.Time
}

// runBacktracking searches the given domains, which may already be
// pruned by arc consistency, under a retraction budget.
func runBacktracking(ctx context.Context, p *Problem, domains [][]Candidate, budget int, phase string) *Result {
	s := &btSearch{
		p:          p,
		domains:    domains,
		alive:      make([][]bool, len(domains)),
		aliveCount: make([]int, len(domains)),
		assigned:   make([]bool, len(domains)),
		sched:      scheduler.NewSchedule(p.Inst),
		ledger:     constraint.NewLedger(len(p.Inst.Teachers)),
		budget:     budget,
		phase:      phase,
		started:    time.Now(),
	}
	for si, d := range domains {
		if len(d) == 0 {
			continue
		}
		s.alive[si] = make([]bool, len(d))
		for i := range s.alive[si] {
			s.alive[si][i] = true
		}
		s.aliveCount[si] = len(d)
		s.total++
	}
	s.remaining = s.total
	s.best = s.sched.Clone()

	outcome := s.run(ctx)

	unscheduled := append([]int(nil), p.Unschedulable...)
	diagnostics := append([]string(nil), p.Diagnostics...)
	var status Status
	var final *scheduler.Schedule
	switch outcome {
	case btFound:
		final = s.sched
		status = StatusSolved
		if len(unscheduled) > 0 {
			status = StatusPartial
		}
	case btCancelled:
		final = s.best
		status = StatusCancelled
	case btLimit:
		final = s.best
		status = StatusBacktrackLimit
		if s.bestPlaced == 0 {
			status = StatusInfeasible
		}
	default:
		final = s.best
		status = StatusInfeasible
	}
	unscheduled = append(unscheduled, finalUnplaced(final, domains)...)

	hard, soft, fitness := p.Measure(final)
	return &Result{
		Status:   status,
		Schedule: final,
		Metrics: Metrics{
			Iterations:     s.nodes,
			Backtracks:     s.backtracks,
			HardViolations: hard,
			SoftScore:      soft,
			Fitness:        fitness,
		},
		Unscheduled: unscheduled,
		Diagnostics: diagnostics,
	}
}

func (s *btSearch) run(ctx context.Context) btOutcome {
	if s.remaining == 0 {
		return btFound
	}
	if ctx.Err() != nil {
		return btCancelled
	}

	si := s.pickVar()
	order := s.valueOrder(si)

	for _, ci := range order {
		s.nodes++
		if s.nodes%s.p.Params.ProgressEvery == 0 {
			if ctx.Err() != nil {
				return btCancelled
			}
			progress(s.p, s.phase, float64(s.bestPlaced)/float64(s.total)*100, s.bestFitness, s.nodes, s.started)
		}

		a := s.domains[si][ci].Assignment(si)
		if !s.p.Check.Feasible(a, s.sched, s.ledger) {
			continue
		}

		s.sched.Place(a)
		s.ledger.Add(a.Teacher, s.p.Inst.Sessions[si].DurationMinutes)
		s.assigned[si] = true
		s.remaining--
		if s.sched.Len() > s.bestPlaced {
			s.bestPlaced = s.sched.Len()
			s.best = s.sched.Clone()
			_, _, s.bestFitness = s.p.Measure(s.best)
		}

		mark := len(s.trail)
		if s.forwardCheck(si, a) {
			out := s.run(ctx)
			if out != btExhausted {
				return out
			}
		}
		s.undo(mark)
		s.sched.Remove(si)
		s.ledger.Remove(a.Teacher, s.p.Inst.Sessions[si].DurationMinutes)
		s.assigned[si] = false
		s.remaining++

		s.backtracks++
		if s.backtracks >= s.budget {
			return btLimit
		}
	}
	return btExhausted
}

// pickVar selects the unassigned session with the fewest live values,
// breaking ties by priority, then by unassigned neighbor count.
func (s *btSearch) pickVar() int {
	bestVar := -1
	bestCount := 0
	bestPriority := 0
	bestDegree := 0
	for si := range s.domains {
		if s.assigned[si] || len(s.domains[si]) == 0 {
			continue
		}
		count := s.aliveCount[si]
		priority := s.p.Inst.Sessions[si].Priority
		degree := 0
		if bestVar < 0 || count < bestCount ||
			(count == bestCount && priority > bestPriority) {
			bestVar, bestCount, bestPriority = si, count, priority
			bestDegree = -1
			continue
		}
		if count == bestCount && priority == bestPriority {
			if bestDegree < 0 {
				bestDegree = s.unassignedDegree(bestVar)
			}
			degree = s.unassignedDegree(si)
			if degree > bestDegree {
				bestVar, bestDegree = si, degree
			}
		}
	}
	return bestVar
}

func (s *btSearch) unassignedDegree(si int) int {
	n := 0
	for _, other := range s.p.Neighbors(si) {
		if !s.assigned[other] && len(s.domains[other]) > 0 {
			n++
		}
	}
	return n
}

// valueOrder lists the live candidate indices of a session, least
// contested first.
func (s *btSearch) valueOrder(si int) []int {
	order := make([]int, 0, s.aliveCount[si])
	for ci, ok := range s.alive[si] {
		if ok {
			order = append(order, ci)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.p.LCVRank(si, s.domains[si][order[a]]) < s.p.LCVRank(si, s.domains[si][order[b]])
	})
	return order
}

// forwardCheck prunes candidates of unassigned neighbors that conflict
// with the new placement. Returns false when a neighbor's domain wipes
// out; the caller unwinds the trail.
func (s *btSearch) forwardCheck(si int, a scheduler.Assignment) bool {
	for _, n := range s.p.Neighbors(si) {
		if s.assigned[n] || len(s.domains[n]) == 0 {
			continue
		}
		for ci, ok := range s.alive[n] {
			if !ok {
				continue
			}
			if !s.p.Check.Compatible(a, s.domains[n][ci].Assignment(n)) {
				s.alive[n][ci] = false
				s.aliveCount[n]--
				s.trail = append(s.trail, prune{session: int32(n), cand: int32(ci)})
			}
		}
		if s.aliveCount[n] == 0 {
			return false
		}
	}
	return true
}

func (s *btSearch) undo(mark int) {
	for i := len(s.trail) - 1; i >= mark; i-- {
		pr := s.trail[i]
		s.alive[pr.session][pr.cand] = true
		s.aliveCount[pr.session]++
	}
	s.trail = s.trail[:mark]
}

// finalUnplaced lists searchable sessions a schedule leaves unplaced.
func finalUnplaced(s *scheduler.Schedule, domains [][]Candidate) []int {
	var out []int
	for _, si := range s.Unplaced() {
		if len(domains[si]) > 0 {
			out = append(out, si)
		}
	}
	return out
}
