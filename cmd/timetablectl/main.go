package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/engine"
	"github.com/noah-isme/sma-timetable-engine/internal/scheduler/solver"
)

var (
	snapshotFile string
	outFile      string
	algorithm    string
	seed         int64
	deadline     time.Duration
	quiet        bool
)

func main() {
	log.SetFlags(log.Ltime)

	root := &cobra.Command{
		Use:   "timetablectl",
		Short: "Academic timetable generation toolkit",
		Long: "Runs the timetable optimization engine against a snapshot file\n" +
			"without the HTTP service, for batch generation and input checks.",
	}

	cmdGenerate := &cobra.Command{
		Use:   "generate",
		Short: "generate a timetable from a snapshot file",
		Run:   runGenerate,
	}
	cmdGenerate.Flags().StringVarP(&snapshotFile, "file", "f", "snapshot.json", "snapshot JSON file")
	cmdGenerate.Flags().StringVarP(&outFile, "out", "o", "", "write the run result to this file instead of stdout")
	cmdGenerate.Flags().StringVarP(&algorithm, "algorithm", "a", "", "override the snapshot algorithm (greedy, backtracking, simulated_annealing, genetic, csp, hybrid)")
	cmdGenerate.Flags().Int64Var(&seed, "seed", 0, "override the random seed")
	cmdGenerate.Flags().DurationVarP(&deadline, "deadline", "t", 0, "override the run deadline")
	cmdGenerate.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	root.AddCommand(cmdGenerate)

	cmdValidate := &cobra.Command{
		Use:   "validate",
		Short: "check a snapshot without solving it",
		Run:   runValidate,
	}
	cmdValidate.Flags().StringVarP(&snapshotFile, "file", "f", "snapshot.json", "snapshot JSON file")
	root.AddCommand(cmdValidate)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGenerate(cmd *cobra.Command, args []string) {
	if len(args) > 0 {
		log.Fatalf("unknown option: %s", strings.Join(args, " "))
	}

	snap, err := loadSnapshot(snapshotFile)
	if err != nil {
		log.Fatalf("%v", err)
	}

	settings := snap.Settings
	if algorithm != "" {
		settings.Algorithm = algorithm
	}
	if seed != 0 {
		settings.Seed = &seed
	}
	if deadline > 0 {
		settings.DeadlineMs = deadline.Milliseconds()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink := scheduler.NopSink
	if !quiet {
		sink = scheduler.SinkFunc(printEvent)
	}

	res, err := engine.New(zap.NewNop()).Generate(ctx, uuid.NewString(), snap, settings, sink)
	if err != nil {
		log.Fatalf("%v", err)
	}

	payload, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	payload = append(payload, '\n')

	if outFile == "" {
		if _, err := os.Stdout.Write(payload); err != nil {
			log.Fatalf("write result: %v", err)
		}
	} else if err := os.WriteFile(outFile, payload, 0o644); err != nil {
		log.Fatalf("write %s: %v", outFile, err)
	}

	if res.Status != solver.StatusSolved {
		log.Printf("run finished with status %s, %d sessions unscheduled", res.Status, len(res.Unscheduled))
		os.Exit(1)
	}
	log.Printf("solved %d/%d sessions, fitness %.4f, %d ms",
		res.Metrics.ScheduledCount, res.Metrics.SessionCount, res.Metrics.Fitness, res.Metrics.DurationMs)
}

func runValidate(cmd *cobra.Command, args []string) {
	if len(args) > 0 {
		log.Fatalf("unknown option: %s", strings.Join(args, " "))
	}

	snap, err := loadSnapshot(snapshotFile)
	if err != nil {
		log.Fatalf("%v", err)
	}

	settings, err := snap.Settings.Normalize()
	if err != nil {
		log.Fatalf("settings: %v", err)
	}
	if err := snap.Validate(); err != nil {
		log.Fatalf("snapshot: %v", err)
	}
	cal, err := scheduler.BuildCalendar(settings)
	if err != nil {
		log.Fatalf("calendar: %v", err)
	}
	inst, err := scheduler.NewInstance(snap, cal)
	if err != nil {
		log.Fatalf("extraction: %v", err)
	}

	log.Printf("snapshot ok: %d teachers, %d classrooms, %d courses",
		len(snap.Teachers), len(snap.Classrooms), len(snap.Courses))
	log.Printf("calendar: %d working days, %d slots of %d minutes",
		len(cal.Days), len(cal.Slots), cal.SlotDuration)
	log.Printf("sessions to place: %d across %d student cohorts", len(inst.Sessions), inst.Cohorts)
	for _, w := range inst.Warnings {
		log.Printf("warning: %s", w)
	}
	if len(inst.Warnings) > 0 {
		os.Exit(1)
	}
}

func loadSnapshot(path string) (*scheduler.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap scheduler.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &snap, nil
}

func printEvent(e scheduler.Event) {
	switch e.Type {
	case scheduler.EventStarted:
		log.Printf("run started: algorithm=%s sessions=%d", e.Algorithm, e.SessionCount)
	case scheduler.EventProgress:
		log.Printf("%5.1f%% best=%.4f iteration=%d %s", e.Percent, e.BestFitness, e.Iteration, e.Phase)
	case scheduler.EventCompleted:
		log.Printf("completed: best=%.4f after %d ms", e.BestFitness, e.ElapsedMs)
	case scheduler.EventFailed:
		log.Printf("failed: %s", e.Reason)
	case scheduler.EventCancelled:
		log.Printf("cancelled: %s", e.Reason)
	}
}
