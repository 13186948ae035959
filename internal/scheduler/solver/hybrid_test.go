package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

func TestHybridSolvesOutrightViaCSP(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})
	res, err := NewHybrid().Solve(context.Background(), p)
	require.NoError(t, err)

	// The propagation phase settles a slack instance; evolution never runs.
	assert.Equal(t, StatusSolved, res.Status)
	assert.Zero(t, res.Metrics.Generations)
	assert.Empty(t, res.Unscheduled)
	assertConflictFree(t, p, res)
	assertAccounted(t, p, res)
}

func TestHybridFallsBackToEvolution(t *testing.T) {
	p := buildProblem(t, pigeonSnapshot(), problemOptions{settings: mondayOnly("11:00")})
	res, err := NewHybrid().Solve(context.Background(), p)
	require.NoError(t, err)

	// CSP proves the pigeonhole infeasible; the genetic phase turns its
	// best partial into a usable two-session schedule.
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 2, res.Schedule.Len())
	assert.Len(t, res.Unscheduled, 1)
	assert.Greater(t, res.Metrics.Generations, 0)
	assert.Greater(t, res.Metrics.Backtracks, 0, "search-phase counters carry over")
	assertConflictFree(t, p, res)
	assertAccounted(t, p, res)
}

func TestHybridAccumulatesIterations(t *testing.T) {
	p := buildProblem(t, pigeonSnapshot(), problemOptions{settings: mondayOnly("11:00")})

	cspOnly := NewCSP()
	first, err := cspOnly.Solve(context.Background(), buildProblem(t, pigeonSnapshot(), problemOptions{settings: mondayOnly("11:00")}))
	require.NoError(t, err)
	require.Equal(t, StatusInfeasible, first.Status)

	res, err := NewHybrid().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Greater(t, res.Metrics.Iterations, first.Metrics.Iterations,
		"evolution iterations stack on top of the search phase")
}

func TestHybridScalesProgressAcrossPhases(t *testing.T) {
	var events []scheduler.Event
	sink := scheduler.SinkFunc(func(e scheduler.Event) { events = append(events, e) })

	p := buildProblem(t, pigeonSnapshot(), problemOptions{settings: mondayOnly("11:00"), sink: sink})
	_, err := NewHybrid().Solve(context.Background(), p)
	require.NoError(t, err)

	require.NotEmpty(t, events)
	sawEvolution := false
	for _, e := range events {
		require.Equal(t, scheduler.EventProgress, e.Type)
		assert.GreaterOrEqual(t, e.Percent, 0.0)
		assert.LessOrEqual(t, e.Percent, 100.0)
		if e.Phase == "evolution" {
			sawEvolution = true
			assert.GreaterOrEqual(t, e.Percent, 40.0, "evolution reports inside its window")
		}
	}
	assert.True(t, sawEvolution)
}

func TestHybridHonorsCancellation(t *testing.T) {
	p := buildProblem(t, easySnapshot(), problemOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewHybrid().Solve(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
}
