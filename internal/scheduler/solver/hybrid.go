package solver

import (
	"context"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

// Hybrid chains constraint propagation with evolution: a budgeted CSP
// phase either solves the instance outright or leaves its best partial
// schedule as a seed for the genetic phase.
type Hybrid struct {
	csp *CSP
	ga  *Genetic
}

// NewHybrid returns the two-phase solver.
func NewHybrid() *Hybrid { return &Hybrid{csp: NewCSP(), ga: NewGenetic()} }

// Name implements Solver.
func (h *Hybrid) Name() string { return scheduler.AlgoHybrid }

// Solve implements Solver.
func (h *Hybrid) Solve(ctx context.Context, p *Problem) (*Result, error) {
	cspProb := *p
	cspProb.Sink = scaleSink(p.Sink, 0, 40, 0)
	first := h.csp.solve(ctx, &cspProb, p.Params.HybridBacktracks)
	if first.Status == StatusSolved || first.Status == StatusCancelled {
		return first, nil
	}

	gaProb := *p
	gaProb.Diagnostics = first.Diagnostics
	gaProb.Sink = scaleSink(p.Sink, 40, 100, first.Metrics.Iterations)
	if first.Schedule != nil && first.Schedule.Len() > 0 {
		gaProb.Seeds = append([]*scheduler.Schedule{first.Schedule}, p.Seeds...)
	}
	final, err := h.ga.Solve(ctx, &gaProb)
	if err != nil {
		return nil, err
	}
	final.Metrics.Iterations += first.Metrics.Iterations
	final.Metrics.Backtracks = first.Metrics.Backtracks
	return final, nil
}

// scaleSink remaps solver-local percents into a window of the full run
// and offsets iteration counters so they keep rising across phases.
func scaleSink(next scheduler.ProgressSink, lo, hi float64, iterOffset int) scheduler.ProgressSink {
	return scheduler.SinkFunc(func(e scheduler.Event) {
		if e.Type == scheduler.EventProgress {
			e.Percent = lo + e.Percent*(hi-lo)/100
			e.Iteration += iterOffset
		}
		next.Publish(e)
	})
}
