// Package engine orchestrates timetable generation runs: it validates
// the snapshot, builds the run instance, picks a solver, executes it
// under the deadline, and packages the outcome with residual conflicts.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/constraint"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/solver"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
)

// Session counts that bound automatic algorithm selection.
const (
	autoGreedyMax       = 50
	autoBacktrackingMax = 200
)

// Engine runs the solver portfolio over validated snapshots.
type Engine struct {
	logger  *zap.Logger
	solvers map[string]solver.Solver
}

// New constructs an engine with the full portfolio registered.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{logger: logger, solvers: make(map[string]solver.Solver)}
	for _, s := range []solver.Solver{
		solver.NewGreedy(),
		solver.NewBacktracking(),
		solver.NewAnnealing(),
		solver.NewGenetic(),
		solver.NewCSP(),
		solver.NewHybrid(),
	} {
		e.Register(s)
	}
	return e
}

// Register adds or replaces a solver under its name.
func (e *Engine) Register(s solver.Solver) { e.solvers[s.Name()] = s }

// Generate executes one run to completion. Rejected input and empty
// calendars return a typed error before any solver starts. Solver
// outcomes always return a RunResult; outcomes that are failures carry
// the mapped error in RunResult.Failure alongside the best partial
// schedule.
func (e *Engine) Generate(ctx context.Context, runID string, snap *scheduler.Snapshot, settings scheduler.Settings, sink scheduler.ProgressSink) (*RunResult, error) {
	started := time.Now()
	if sink == nil {
		sink = scheduler.NopSink
	}

	normalized, err := settings.Normalize()
	if err != nil {
		return nil, e.reject(sink, runID, wrapAs(appErrors.ErrInvalidInput, err))
	}
	if snap == nil {
		return nil, e.reject(sink, runID, appErrors.Clone(appErrors.ErrInvalidInput, "snapshot is required"))
	}
	if err := snap.Validate(); err != nil {
		return nil, e.reject(sink, runID, wrapAs(appErrors.ErrInvalidInput, err))
	}

	cal, err := scheduler.BuildCalendar(normalized)
	if err != nil {
		return nil, e.reject(sink, runID, wrapAs(appErrors.ErrNoFeasibleSlots, err))
	}
	inst, err := scheduler.NewInstance(snap, cal)
	if err != nil {
		return nil, e.reject(sink, runID, wrapAs(appErrors.ErrInvalidInput, err))
	}

	algorithm := normalized.Algorithm
	if algorithm == scheduler.AlgoAuto {
		algorithm = pickAlgorithm(len(inst.Sessions))
	}
	sv, ok := e.solvers[algorithm]
	if !ok {
		return nil, e.reject(sink, runID,
			appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("solver %q is not registered", algorithm)))
	}

	check := constraint.NewChecker(inst, normalized.Weights(), normalized.WorkloadBalanced())
	rs := newRunSink(sink, runID, algorithm, len(inst.Sessions))
	prob := solver.NewProblem(inst, check, solver.ParamsFrom(normalized), rs,
		rand.New(rand.NewSource(seedOf(normalized))))

	runCtx := ctx
	if d := normalized.Deadline(); d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	e.logger.Info("timetable run started",
		zap.String("run_id", runID),
		zap.String("algorithm", algorithm),
		zap.Int("sessions", len(inst.Sessions)),
		zap.Int("slots", len(cal.Slots)))
	rs.Publish(scheduler.Event{Type: scheduler.EventStarted})

	res, err := sv.Solve(runCtx, prob)
	if err != nil {
		appErr := wrapAs(appErrors.ErrInternal, err)
		e.logger.Error("timetable run failed",
			zap.String("run_id", runID), zap.String("algorithm", algorithm), zap.Error(err))
		rs.Publish(scheduler.Event{Type: scheduler.EventFailed, Reason: appErr.Code})
		return nil, appErr
	}

	conflicts := constraint.NewDetector(check).Detect(res.Schedule)
	result := newRunResult(runID, algorithm, inst, prob, res, conflicts, time.Since(started))

	switch res.Status {
	case solver.StatusSolved, solver.StatusPartial:
		rs.Publish(scheduler.Event{
			Type:        scheduler.EventCompleted,
			Percent:     100,
			BestFitness: result.Metrics.Fitness,
			Unscheduled: len(result.Unscheduled),
		})
	case solver.StatusCancelled:
		result.Failure = cancelReason(runCtx)
		rs.Publish(scheduler.Event{
			Type:        scheduler.EventCancelled,
			BestFitness: result.Metrics.Fitness,
			Unscheduled: len(result.Unscheduled),
			Reason:      result.Failure.Message,
		})
	case solver.StatusBacktrackLimit:
		result.Failure = appErrors.ErrBacktrackLimit
		rs.Publish(scheduler.Event{
			Type:        scheduler.EventFailed,
			BestFitness: result.Metrics.Fitness,
			Unscheduled: len(result.Unscheduled),
			Reason:      result.Failure.Code,
		})
	default:
		result.Failure = appErrors.ErrInfeasible
		rs.Publish(scheduler.Event{
			Type:        scheduler.EventFailed,
			Unscheduled: len(result.Unscheduled),
			Reason:      result.Failure.Code,
		})
	}

	e.logger.Info("timetable run finished",
		zap.String("run_id", runID),
		zap.String("algorithm", algorithm),
		zap.String("status", string(res.Status)),
		zap.Float64("fitness", result.Metrics.Fitness),
		zap.Int("scheduled", result.Metrics.ScheduledCount),
		zap.Int("unscheduled", len(result.Unscheduled)),
		zap.Duration("took", time.Since(started)))
	return result, nil
}

// pickAlgorithm sizes the solver to the instance: small inputs go to the
// deterministic greedy pass, medium ones to exact search, large ones to
// the hybrid.
func pickAlgorithm(sessions int) string {
	switch {
	case sessions <= autoGreedyMax:
		return scheduler.AlgoGreedy
	case sessions <= autoBacktrackingMax:
		return scheduler.AlgoBacktracking
	default:
		return scheduler.AlgoHybrid
	}
}

func seedOf(s scheduler.Settings) int64 {
	if s.Seed != nil {
		return *s.Seed
	}
	return time.Now().UnixNano()
}

func cancelReason(ctx context.Context) *appErrors.Error {
	if ctx.Err() == context.DeadlineExceeded {
		return appErrors.Clone(appErrors.ErrCancelled, "run deadline exceeded")
	}
	return appErrors.ErrCancelled
}

func wrapAs(sentinel *appErrors.Error, err error) *appErrors.Error {
	return appErrors.Wrap(err, sentinel.Code, sentinel.Status, err.Error())
}

// reject publishes the single terminal event of a run that never
// started a solver.
func (e *Engine) reject(sink scheduler.ProgressSink, runID string, appErr *appErrors.Error) error {
	e.logger.Warn("timetable run rejected",
		zap.String("run_id", runID), zap.String("code", appErr.Code), zap.Error(appErr))
	sink.Publish(scheduler.Event{Type: scheduler.EventFailed, RunID: runID, Reason: appErr.Code})
	return appErr
}
