package scheduler

import (
	"fmt"
	"time"
)

// Algorithm names accepted by Settings.Algorithm.
const (
	AlgoAuto         = "auto"
	AlgoGreedy       = "greedy"
	AlgoBacktracking = "backtracking"
	AlgoAnnealing    = "simulated_annealing"
	AlgoGenetic      = "genetic"
	AlgoCSP          = "csp"
	AlgoHybrid       = "hybrid"
)

var knownAlgorithms = map[string]bool{
	AlgoAuto:         true,
	AlgoGreedy:       true,
	AlgoBacktracking: true,
	AlgoAnnealing:    true,
	AlgoGenetic:      true,
	AlgoCSP:          true,
	AlgoHybrid:       true,
}

// SoftWeights parameterizes the soft-score blend. Weights are relative;
// the checker normalizes them to sum to one.
type SoftWeights struct {
	PreferredTime float64 `json:"preferredTime"`
	Utilization   float64 `json:"utilization"`
	Balance       float64 `json:"balance"`
	Consecutive   float64 `json:"consecutive"`
	Gaps          float64 `json:"gaps"`
}

// DefaultSoftWeights returns the standard blend.
func DefaultSoftWeights() SoftWeights {
	return SoftWeights{
		PreferredTime: 0.35,
		Utilization:   0.25,
		Balance:       0.20,
		Consecutive:   0.10,
		Gaps:          0.10,
	}
}

// Settings carries the per-run calendar configuration and solver
// parameters. Zero values are filled in by Normalize; unknown algorithm
// names are rejected there.
type Settings struct {
	Algorithm    string        `json:"algorithm,omitempty"`
	WorkingDays  []string      `json:"workingDays,omitempty"`
	StartTime    string        `json:"startTime,omitempty"`
	EndTime      string        `json:"endTime,omitempty"`
	SlotDuration int           `json:"slotDuration,omitempty"`
	Breaks       []BreakWindow `json:"breakSlots,omitempty"`
	// EnforceBreaks and BalanceWorkload default to true; nil means unset.
	EnforceBreaks   *bool        `json:"enforceBreaks,omitempty"`
	BalanceWorkload *bool        `json:"balanceWorkload,omitempty"`
	Seed            *int64       `json:"seed,omitempty"`
	DeadlineMs      int64        `json:"deadline,omitempty"`
	SoftWeights     *SoftWeights `json:"softWeights,omitempty"`

	MaxBacktracks      int     `json:"maxBacktracks,omitempty"`
	PopulationSize     int     `json:"populationSize,omitempty"`
	MaxGenerations     int     `json:"maxGenerations,omitempty"`
	CrossoverRate      float64 `json:"crossoverRate,omitempty"`
	MutationRate       float64 `json:"mutationRate,omitempty"`
	MaxStagnant        int     `json:"maxStagnant,omitempty"`
	InitialTemperature float64 `json:"initialTemperature,omitempty"`
	CoolingRate        float64 `json:"coolingRate,omitempty"`
	MinTemperature     float64 `json:"minTemperature,omitempty"`
	IterationsPerTemp  int     `json:"iterationsPerTemp,omitempty"`
	MaxIterations      int     `json:"maxIterations,omitempty"`
	HybridBacktracks   int     `json:"hybridBacktracks,omitempty"`
	HybridSeedMutation float64 `json:"hybridSeedMutation,omitempty"`
}

// Normalize fills documented defaults and clamps the genetic-algorithm
// parameters into their runtime caps. It returns a copy; the receiver is
// untouched.
func (s Settings) Normalize() (Settings, error) {
	out := s
	if out.Algorithm == "" {
		out.Algorithm = AlgoAuto
	}
	if !knownAlgorithms[out.Algorithm] {
		return out, fmt.Errorf("unknown algorithm %q", out.Algorithm)
	}
	if len(out.WorkingDays) == 0 {
		out.WorkingDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	}
	if out.StartTime == "" {
		out.StartTime = "09:00"
	}
	if out.EndTime == "" {
		out.EndTime = "17:00"
	}
	if out.SlotDuration <= 0 {
		out.SlotDuration = 60
	}
	if out.EnforceBreaks == nil {
		v := true
		out.EnforceBreaks = &v
	}
	if out.MaxBacktracks <= 0 {
		out.MaxBacktracks = 10000
	}
	out.PopulationSize = clampInt(defaultInt(out.PopulationSize, 50), 30, 100)
	out.MaxGenerations = clampInt(defaultInt(out.MaxGenerations, 150), 100, 300)
	if out.CrossoverRate <= 0 || out.CrossoverRate > 1 {
		out.CrossoverRate = 0.8
	}
	if out.MutationRate <= 0 || out.MutationRate > 1 {
		out.MutationRate = 0.1
	}
	if out.MaxStagnant <= 0 {
		out.MaxStagnant = 50
	}
	if out.InitialTemperature <= 0 {
		out.InitialTemperature = 100
	}
	if out.CoolingRate <= 0 || out.CoolingRate >= 1 {
		out.CoolingRate = 0.95
	}
	if out.MinTemperature <= 0 {
		out.MinTemperature = 0.01
	}
	if out.IterationsPerTemp <= 0 {
		out.IterationsPerTemp = 50
	}
	if out.MaxIterations <= 0 {
		out.MaxIterations = 10000
	}
	if out.HybridBacktracks <= 0 {
		out.HybridBacktracks = 3000
	}
	if out.HybridSeedMutation <= 0 || out.HybridSeedMutation >= 1 {
		out.HybridSeedMutation = 0.15
	}
	return out, nil
}

// BreaksEnforced reports whether break windows remove slots.
func (s Settings) BreaksEnforced() bool {
	return s.EnforceBreaks == nil || *s.EnforceBreaks
}

// WorkloadBalanced reports whether the workload-balance criterion
// participates in the soft score.
func (s Settings) WorkloadBalanced() bool {
	return s.BalanceWorkload == nil || *s.BalanceWorkload
}

// Deadline converts the millisecond deadline into a duration, zero when
// unset.
func (s Settings) Deadline() time.Duration {
	if s.DeadlineMs <= 0 {
		return 0
	}
	return time.Duration(s.DeadlineMs) * time.Millisecond
}

// Weights returns the configured soft weights or the defaults.
func (s Settings) Weights() SoftWeights {
	if s.SoftWeights != nil {
		return *s.SoftWeights
	}
	return DefaultSoftWeights()
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
