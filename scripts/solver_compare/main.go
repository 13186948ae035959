// Command solver_compare runs every registered solver against one
// snapshot and prints a side-by-side quality report. Hard solver errors
// fail the run; solvers that finish without a complete schedule are
// reported as degraded.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/engine"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/solver"
)

type comparison struct {
	Algorithm  string
	Status     solver.Status
	Fitness    float64
	Scheduled  int
	Sessions   int
	Violations int
	Duration   time.Duration
	Err        error
}

func main() {
	var (
		snapshotPath string
		deadline     time.Duration
		seed         int64
	)

	flag.StringVar(&snapshotPath, "snapshot", "snapshot.json", "Path to the snapshot JSON file")
	flag.DurationVar(&deadline, "deadline", time.Minute, "Per-solver deadline")
	flag.Int64Var(&seed, "seed", 42, "Shared random seed so stochastic solvers are comparable")
	flag.Parse()

	raw, err := os.ReadFile(snapshotPath)
	if err != nil {
		log.Fatalf("failed to read snapshot: %v", err)
	}
	var snap scheduler.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Fatalf("failed to parse snapshot: %v", err)
	}

	algorithms := []string{
		scheduler.AlgoGreedy,
		scheduler.AlgoBacktracking,
		scheduler.AlgoAnnealing,
		scheduler.AlgoGenetic,
		scheduler.AlgoCSP,
		scheduler.AlgoHybrid,
	}

	eng := engine.New(zap.NewNop())
	var (
		rows     []comparison
		failed   int
		degraded int
	)

	for _, algo := range algorithms {
		settings := snap.Settings
		settings.Algorithm = algo
		settings.Seed = &seed
		settings.DeadlineMs = deadline.Milliseconds()

		start := time.Now()
		res, err := eng.Generate(context.Background(), uuid.NewString(), &snap, settings, scheduler.NopSink)
		row := comparison{Algorithm: algo, Duration: time.Since(start)}
		if err != nil {
			row.Err = err
			failed++
		} else {
			row.Status = res.Status
			row.Fitness = res.Metrics.Fitness
			row.Scheduled = res.Metrics.ScheduledCount
			row.Sessions = res.Metrics.SessionCount
			row.Violations = res.Metrics.HardViolations
			if res.Status != solver.StatusSolved {
				degraded++
			}
		}
		rows = append(rows, row)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ALGORITHM\tSTATUS\tFITNESS\tSCHEDULED\tVIOLATIONS\tDURATION")
	for _, row := range rows {
		if row.Err != nil {
			fmt.Fprintf(w, "%s\terror\t-\t-\t-\t%s\t(%v)\n",
				row.Algorithm, row.Duration.Round(time.Millisecond), row.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%d/%d\t%d\t%s\n",
			row.Algorithm, row.Status, row.Fitness, row.Scheduled, row.Sessions,
			row.Violations, row.Duration.Round(time.Millisecond))
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("failed to render report: %v", err)
	}

	if degraded > 0 {
		log.Printf("%d solver(s) finished without a complete schedule", degraded)
	}
	if failed > 0 {
		log.Printf("%d solver(s) failed outright", failed)
		os.Exit(1)
	}
}
