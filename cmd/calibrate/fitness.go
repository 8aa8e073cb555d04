package main

import (
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/game"
	"github.com/pthm-cable/weaver/telemetry"
)

// FitnessEvaluator runs simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxDays    int
	seeds      []uint64
	configPath string

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. Every run reloads the base
// config from configPath so runs never share maps or slices.
func NewFitnessEvaluator(params *ParamVector, maxDays int, seeds []uint64, configPath string) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		maxDays:    maxDays,
		seeds:      seeds,
		configPath: configPath,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// A species below minViablePop for extinctionGraceDays consecutive days
// counts as functionally extinct.
const (
	minViablePop        = 3
	extinctionGraceDays = 10
	warmupDays          = 5
)

// runResult holds the results from a single simulation run.
type runResult struct {
	survivalDays int                     // days before functional extinction (or maxDays if survived)
	windowStats  []telemetry.WindowStats // collected via StatsCallback each window
	counts       [][]int                 // living animals per species, one row per day
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is negative survival days: longer coexistence = lower fitness.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	fitness := make([]float64, len(fe.seeds))
	quality := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s uint64) {
			defer wg.Done()
			result := fe.runSimulation(x, s)
			quality[idx] = computeQuality(result)
			fitness[idx] = -(float64(result.survivalDays) * (1.0 + 0.2*quality[idx]))
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	for i := range fitness {
		totalFitness += fitness[i]
		totalQuality += quality[i]
	}
	n := float64(len(fe.seeds))

	fe.mu.Lock()
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return totalFitness / n
}

// runSimulation executes a single run until functional extinction or maxDays.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed uint64) *runResult {
	result := &runResult{}

	cfg, err := config.Load(fe.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return result
	}
	fe.params.ApplyToConfig(cfg, x)
	if err := cfg.Validate(); err != nil {
		// Parameters outside what the model accepts score as immediate extinction.
		return result
	}

	sim, err := game.New(cfg, game.Options{
		Seed: seed,
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
		},
	})
	if err != nil {
		slog.Warn("run could not start", "seed", seed, "error", err)
		return result
	}
	defer sim.Close()

	below := make([]int, len(cfg.AnimalSpecies))
	for sim.Day() < fe.maxDays {
		if err := sim.Step(); err != nil {
			result.survivalDays = sim.Day()
			return result
		}
		day := sim.Day()
		counts := sim.SpeciesCounts()
		result.counts = append(result.counts, counts)
		if day < warmupDays {
			continue
		}

		for i, n := range counts {
			// Hard extinction: a species completely gone
			if n == 0 {
				result.survivalDays = day
				return result
			}
			if n < minViablePop {
				below[i]++
			} else {
				below[i] = 0
			}
			if below[i] >= extinctionGraceDays {
				result.survivalDays = day
				return result
			}
		}
	}

	result.survivalDays = fe.maxDays
	return result
}

// Quality component weights.
const (
	qualityWeightStability = 0.4
	qualityWeightHunting   = 0.3
	qualityWeightResource  = 0.3

	qualityWarmupWindows = 2 // skip first N windows
)

// computeQuality computes community quality in [0, 1]: steady populations,
// predators that actually hunt and a resource that is grazed but not wiped out.
func computeQuality(r *runResult) float64 {
	if len(r.windowStats) <= qualityWarmupWindows || len(r.counts) == 0 {
		return 0
	}
	windows := r.windowStats[qualityWarmupWindows:]

	// 1. Population stability (CV of every species across the run)
	stabilityScore := 0.0
	nSpecies := len(r.counts[0])
	if len(r.counts) >= 2 && nSpecies > 0 {
		var cvSq float64
		for sp := 0; sp < nSpecies; sp++ {
			series := make([]float64, len(r.counts))
			for d, row := range r.counts {
				series[d] = float64(row[sp])
			}
			c := cv(series)
			cvSq += c * c
		}
		stabilityScore = math.Exp(-cvSq / float64(nSpecies))
	}

	// 2. Hunting activity (predation rate near 30%)
	var huntSum float64
	var huntCount int
	for _, w := range windows {
		if w.Encounters > 0 {
			huntSum += math.Exp(-math.Pow((w.PredationRate-0.3)/0.2, 2))
			huntCount++
		}
	}
	huntScore := 0.0
	if huntCount > 0 {
		huntScore = huntSum / float64(huntCount)
	}

	// 3. Resource use: some grazing without exhausting the standing stock
	var resSum float64
	for _, w := range windows {
		if w.TotalResource <= 0 {
			continue
		}
		ratio := w.Grazed / w.TotalResource
		resSum += 1.0 - math.Exp(-ratio/0.1)
	}
	resourceScore := resSum / float64(len(windows))

	quality := qualityWeightStability*stabilityScore +
		qualityWeightHunting*huntScore +
		qualityWeightResource*resourceScore

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	if mean == 0 {
		return 0
	}
	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	return math.Sqrt(sqDiff/n) / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
