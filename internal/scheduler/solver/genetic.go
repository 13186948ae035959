package solver

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/noah-isme/sma-timetable-engine/internal/scheduler"
)

// Genetic is an evolutionary solver. Chromosomes index candidate
// placements per session, fitness evaluation runs on a bounded worker
// pool, and selection uses five-way tournaments with elitism. Seeds, when
// present, inject known-good schedules into the starting population.
type Genetic struct{}

// NewGenetic returns the genetic algorithm solver.
func NewGenetic() *Genetic { return &Genetic{} }

// Name implements Solver.
func (g *Genetic) Name() string { return scheduler.AlgoGenetic }

const (
	tournamentSize = 5
	earlyStopScore = 0.95
	seedKeepChance = 0.5
)

// Solve implements Solver.
func (g *Genetic) Solve(ctx context.Context, p *Problem) (*Result, error) {
	started := time.Now()
	genes := len(p.Order)
	if genes == 0 {
		return g.finish(p, StatusPartial, scheduler.NewSchedule(p.Inst), 0, 0, nil), nil
	}

	popSize := p.Params.PopulationSize
	population := g.seedPopulation(p, popSize, genes)
	fitness := make([]float64, popSize)
	g.evaluate(p, population, fitness)

	bestIdx := argMax(fitness)
	best := append(chromosome(nil), population[bestIdx]...)
	bestFitness := fitness[bestIdx]

	generations := 0
	stagnant := 0
	cancelled := false

	for gen := 0; gen < p.Params.MaxGenerations; gen++ {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		generations = gen + 1

		next := make([]chromosome, 0, popSize)
		for _, ei := range eliteIndices(fitness, popSize/10) {
			next = append(next, append(chromosome(nil), population[ei]...))
		}
		for len(next) < popSize {
			a := population[g.tournament(p, fitness)]
			b := population[g.tournament(p, fitness)]
			childA, childB := g.crossover(p, a, b)
			g.mutate(p, childA)
			next = append(next, childA)
			if len(next) < popSize {
				g.mutate(p, childB)
				next = append(next, childB)
			}
		}
		population = next
		g.evaluate(p, population, fitness)

		genBest := argMax(fitness)
		if fitness[genBest] > bestFitness {
			bestFitness = fitness[genBest]
			best = append(best[:0], population[genBest]...)
			stagnant = 0
		} else {
			stagnant++
		}

		progress(p, "evolution",
			float64(generations)/float64(p.Params.MaxGenerations)*100,
			bestFitness, generations*popSize, started)

		if bestFitness > earlyStopScore || stagnant >= p.Params.MaxStagnant {
			break
		}
	}

	status := StatusSolved
	if cancelled {
		status = StatusCancelled
	}
	return g.finish(p, status, g.decode(p, best), generations, generations*popSize, nil), nil
}

type chromosome []int32

// seedPopulation builds the starting pool: exact seed encodings first,
// then perturbed seed copies, then random chromosomes.
func (g *Genetic) seedPopulation(p *Problem, popSize, genes int) []chromosome {
	population := make([]chromosome, 0, popSize)
	for _, seed := range p.Seeds {
		if len(population) >= popSize/2 {
			break
		}
		population = append(population, g.encode(p, seed))
	}
	seeds := len(population)
	for len(population) < popSize {
		if seeds > 0 && p.Rand.Float64() < seedKeepChance {
			c := append(chromosome(nil), population[p.Rand.Intn(seeds)]...)
			for gi := range c {
				if p.Rand.Float64() < p.Params.HybridSeedMutation {
					c[gi] = g.randomGene(p, gi)
				}
			}
			population = append(population, c)
			continue
		}
		c := make(chromosome, genes)
		for gi := range c {
			c[gi] = g.randomGene(p, gi)
		}
		population = append(population, c)
	}
	return population
}

func (g *Genetic) randomGene(p *Problem, gi int) int32 {
	return int32(p.Rand.Intn(len(p.Domains[p.Order[gi]])))
}

// encode maps a schedule onto a chromosome; unplaced sessions and
// placements outside the domain fall back to random genes.
func (g *Genetic) encode(p *Problem, s *scheduler.Schedule) chromosome {
	c := make(chromosome, len(p.Order))
	for gi, si := range p.Order {
		c[gi] = g.randomGene(p, gi)
		if !s.Placed(si) {
			continue
		}
		a := s.At(si)
		for ci, cand := range p.Domains[si] {
			if cand.Assignment(si) == a {
				c[gi] = int32(ci)
				break
			}
		}
	}
	return c
}

func (g *Genetic) decode(p *Problem, c chromosome) *scheduler.Schedule {
	s := scheduler.NewSchedule(p.Inst)
	for gi, si := range p.Order {
		s.Place(p.Domains[si][c[gi]].Assignment(si))
	}
	return s
}

// evaluate scores every chromosome on a worker pool sized to the host.
func (g *Genetic) evaluate(p *Problem, population []chromosome, fitness []float64) {
	workers := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i := range population {
		i := i
		workers.Go(func() {
			_, _, fitness[i] = p.Measure(g.decode(p, population[i]))
		})
	}
	workers.Wait()
}

func (g *Genetic) tournament(p *Problem, fitness []float64) int {
	winner := p.Rand.Intn(len(fitness))
	for i := 1; i < tournamentSize; i++ {
		c := p.Rand.Intn(len(fitness))
		if fitness[c] > fitness[winner] {
			winner = c
		}
	}
	return winner
}

// crossover recombines two parents at a single random point.
func (g *Genetic) crossover(p *Problem, a, b chromosome) (chromosome, chromosome) {
	childA := append(chromosome(nil), a...)
	childB := append(chromosome(nil), b...)
	if len(a) > 1 && p.Rand.Float64() < p.Params.CrossoverRate {
		cut := 1 + p.Rand.Intn(len(a)-1)
		copy(childA[cut:], b[cut:])
		copy(childB[cut:], a[cut:])
	}
	return childA, childB
}

func (g *Genetic) mutate(p *Problem, c chromosome) {
	for gi := range c {
		if p.Rand.Float64() < p.Params.MutationRate {
			c[gi] = g.randomGene(p, gi)
		}
	}
}

func (g *Genetic) finish(p *Problem, status Status, raw *scheduler.Schedule, generations, iterations int, diagnostics []string) *Result {
	clean, droppedSessions := p.FeasibleSubset(raw)
	unscheduled := append([]int(nil), p.Unschedulable...)
	unscheduled = append(unscheduled, droppedSessions...)
	diagnostics = append(append([]string(nil), p.Diagnostics...), diagnostics...)
	if len(droppedSessions) > 0 {
		diagnostics = append(diagnostics,
			fmt.Sprintf("evolution: dropped %d conflicting placements from the best chromosome", len(droppedSessions)))
	}
	if status != StatusCancelled && len(unscheduled) > 0 {
		status = StatusPartial
	}

	hard, soft, fitness := p.Measure(clean)
	return &Result{
		Status:   status,
		Schedule: clean,
		Metrics: Metrics{
			Iterations:     iterations,
			Generations:    generations,
			HardViolations: hard,
			SoftScore:      soft,
			Fitness:        fitness,
		},
		Unscheduled: unscheduled,
		Diagnostics: diagnostics,
	}
}

func argMax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// eliteIndices returns the fittest chromosome indices, at least one.
func eliteIndices(fitness []float64, n int) []int {
	if n < 1 {
		n = 1
	}
	idx := make([]int, len(fitness))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return fitness[idx[a]] > fitness[idx[b]] })
	if n > len(idx) {
		n = len(idx)
	}
	return idx[:n]
}
