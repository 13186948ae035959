// Package solver implements the optimization portfolio: greedy,
// backtracking, simulated annealing, genetic, CSP, and the hybrid
// composition. Every solver consumes the same Problem and produces the
// same Result, so the engine can dispatch them interchangeably.
package solver

import (
	"context"
	"time"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

// Status classifies a solver outcome.
type Status string

const (
	// StatusSolved marks a complete schedule with no hard violations.
	StatusSolved Status = "solved"
	// StatusPartial marks a usable schedule with unscheduled sessions or
	// residual violations (heuristic solvers).
	StatusPartial Status = "partial"
	// StatusInfeasible marks a proven or strongly evidenced absence of
	// any hard-constraint-free schedule.
	StatusInfeasible Status = "infeasible"
	// StatusBacktrackLimit marks an exhausted search budget; the best
	// partial schedule is attached.
	StatusBacktrackLimit Status = "backtrack_limit"
	// StatusCancelled marks a cooperative stop; the best-so-far schedule
	// is attached.
	StatusCancelled Status = "cancelled"
)

// Metrics aggregates the counters a solver reports with its result.
type Metrics struct {
	Iterations     int     `json:"iterations"`
	Backtracks     int     `json:"backtracks"`
	Generations    int     `json:"generations"`
	HardViolations int     `json:"hardViolationCount"`
	SoftScore      float64 `json:"softScore"`
	Fitness        float64 `json:"fitness"`
}

// Result is the uniform solver outcome: a schedule (possibly partial),
// counters, the sessions left unscheduled, and human-readable
// diagnostics for them.
type Result struct {
	Status      Status
	Schedule    *scheduler.Schedule
	Metrics     Metrics
	Unscheduled []int
	Diagnostics []string
}

// Solver is the capability every algorithm implements. Solve observes
// ctx at least once per iteration or generation and returns a
// StatusCancelled result promptly after cancellation. The returned error
// is reserved for internal invariant breaches.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p *Problem) (*Result, error)
}

// Params are the normalized run parameters shared by the portfolio.
type Params struct {
	MaxBacktracks      int
	PopulationSize     int
	MaxGenerations     int
	CrossoverRate      float64
	MutationRate       float64
	MaxStagnant        int
	InitialTemperature float64
	CoolingRate        float64
	MinTemperature     float64
	IterationsPerTemp  int
	MaxIterations      int
	HybridBacktracks   int
	HybridSeedMutation float64
	FitnessAlpha       float64
	FitnessBeta        float64
	ProgressEvery      int
}

// ParamsFrom lifts normalized snapshot settings into solver parameters.
func ParamsFrom(s scheduler.Settings) Params {
	return Params{
		MaxBacktracks:      s.MaxBacktracks,
		PopulationSize:     s.PopulationSize,
		MaxGenerations:     s.MaxGenerations,
		CrossoverRate:      s.CrossoverRate,
		MutationRate:       s.MutationRate,
		MaxStagnant:        s.MaxStagnant,
		InitialTemperature: s.InitialTemperature,
		CoolingRate:        s.CoolingRate,
		MinTemperature:     s.MinTemperature,
		IterationsPerTemp:  s.IterationsPerTemp,
		MaxIterations:      s.MaxIterations,
		HybridBacktracks:   s.HybridBacktracks,
		HybridSeedMutation: s.HybridSeedMutation,
		FitnessAlpha:       0.7,
		FitnessBeta:        0.3,
		ProgressEvery:      64,
	}
}

// progress publishes a throttle-friendly Progress event.
func progress(p *Problem, phase string, percent, best float64, iter int, started time.Time) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	p.Sink.Publish(scheduler.Event{
		Type:        scheduler.EventProgress,
		Phase:       phase,
		Percent:     percent,
		BestFitness: best,
		Iteration:   iter,
		ElapsedMs:   time.Since(started).Milliseconds(),
	})
}
