// Package main calibrates species parameters with CMA-ES, searching for
// communities in which every species persists.
//
// Usage: go run ./cmd/calibrate -config base.yaml -output calib
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/weaver/config"
)

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxDays := flag.Int("max-days", 365, "Maximum simulated days per run (cap)")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if err := calibrate(*configPath, *outputDir, *maxDays, *seeds, *maxEvals, *population); err != nil {
		slog.Error("calibration failed", "error", err)
		os.Exit(1)
	}
}

// progress records every evaluation to calibrate_log.csv and keeps the best
// parameter set seen so far. CMA-ES may finish on a worse mean than an
// earlier sample, so the best sample is tracked separately.
type progress struct {
	w        *csv.Writer
	maxEvals int
	start    time.Time

	evals       int
	bestFitness float64
	bestParams  []float64
}

func newProgress(f *os.File, specs []ParamSpec, maxEvals int) *progress {
	w := csv.NewWriter(f)
	header := []string{"eval", "fitness", "quality"}
	for _, spec := range specs {
		header = append(header, spec.Name)
	}
	w.Write(header)
	w.Flush()
	return &progress{w: w, maxEvals: maxEvals, start: time.Now(), bestFitness: 1e9}
}

func (p *progress) record(fitness, quality float64, used []float64) {
	p.evals++
	if fitness < p.bestFitness {
		p.bestFitness = fitness
		p.bestParams = used
	}

	row := make([]string, 0, 3+len(used))
	row = append(row, strconv.Itoa(p.evals), strconv.FormatFloat(fitness, 'f', 6, 64), strconv.FormatFloat(quality, 'f', 4, 64))
	for _, v := range used {
		row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
	}
	p.w.Write(row)
	p.w.Flush()

	elapsed := time.Since(p.start)
	eta := time.Duration(p.maxEvals-p.evals) * (elapsed / time.Duration(p.evals))
	slog.Info("evaluation",
		"eval", fmt.Sprintf("%d/%d", p.evals, p.maxEvals),
		"survived_days", survivalDays(fitness, quality),
		"quality", quality,
		"best", p.bestFitness,
		"elapsed", elapsed.Round(time.Second),
		"eta", eta.Round(time.Second),
	)
}

// survivalDays inverts fitness = -(days × (1 + 0.2×quality)).
func survivalDays(fitness, quality float64) int {
	return int(-fitness/(1.0+0.2*quality) + 0.5)
}

func calibrate(configPath, outputDir string, maxDays, nSeeds, maxEvals, popSize int) error {
	if outputDir == "" {
		return fmt.Errorf("-output is required")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	baseCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	params := NewParamVector(baseCfg)

	seeds := make([]uint64, nSeeds)
	for i := range seeds {
		seeds[i] = uint64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, maxDays, seeds, configPath)

	logFile, err := os.Create(filepath.Join(outputDir, "calibrate_log.csv"))
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()
	prog := newProgress(logFile, params.Specs, maxEvals)

	dim := params.Dim()
	if popSize == 0 {
		popSize = 4 + 3*dim/2
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			used := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(used)
			prog.record(fitness, evaluator.LastQuality(), used)
			return fitness
		},
	}
	// Seeds already run in parallel inside Evaluate.
	settings := &optimize.Settings{FuncEvaluations: maxEvals, Concurrent: 0}
	method := &optimize.CmaEsChol{InitStepSize: 0.3, Population: popSize}

	slog.Info("starting calibration",
		"params", dim,
		"population", popSize,
		"max_evals", maxEvals,
		"seeds", nSeeds,
		"max_days", humanize.Comma(int64(maxDays)),
	)

	result, err := optimize.Minimize(problem, params.Normalize(params.DefaultVector()), settings, method)
	if err != nil {
		slog.Warn("optimizer stopped", "error", err)
	}

	best := prog.bestParams
	if best == nil && result != nil {
		best = params.Clamp(params.Denormalize(result.X))
	}
	if best == nil {
		return fmt.Errorf("no evaluation completed")
	}

	slog.Info("calibration complete",
		"evals", prog.evals,
		"elapsed", time.Since(prog.start).Round(time.Second),
		"best_fitness", prog.bestFitness,
	)
	for i, spec := range params.Specs {
		slog.Info("best parameter", "name", spec.Name, "value", best[i], "default", spec.Default)
	}

	bestCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("reloading config: %w", err)
	}
	params.ApplyToConfig(bestCfg, best)
	out := filepath.Join(outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(out); err != nil {
		return fmt.Errorf("writing best config: %w", err)
	}
	slog.Info("best config saved", "path", out)
	return nil
}
