// Package game drives a run: it owns the ECS world, the landscape and the
// random stream, and advances them one day at a time in a fixed phase order.
package game

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/mlange-42/ark/ecs"
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/landscape"
	"github.com/pthm-cable/weaver/patch"
	"github.com/pthm-cable/weaver/systems"
	"github.com/pthm-cable/weaver/telemetry"
)

// ErrTooManyAnimals aborts a run whose movement phase exceeds its wall-clock budget.
var ErrTooManyAnimals = errors.New("too many animals for too little food")

// Options configures a Simulation.
type Options struct {
	Seed        uint64
	RunID       string
	Output      *telemetry.OutputManager // nil disables CSV output
	SnapshotDir string                   // empty disables JSON snapshots
	LogStats    bool                     // log window and perf stats

	// StatsCallback, when set, receives every flushed telemetry window.
	StatsCallback func(telemetry.WindowStats)
}

// Simulation holds the complete state of a run.
type Simulation struct {
	cfg   *config.Config
	world *ecs.World
	pcg   *rand.PCG
	rng   *rand.Rand

	seed  uint64
	runID string

	mapper *ecs.Map4[
		components.Animal,
		components.Position,
		components.Phenotype,
		components.DietMemory,
	]
	filter *ecs.Filter4[
		components.Animal,
		components.Position,
		components.Phenotype,
		components.DietMemory,
	]

	animals   *ecs.Map1[components.Animal]
	positions *ecs.Map1[components.Position]
	phenos    *ecs.Map1[components.Phenotype]
	memories  *ecs.Map1[components.DietMemory]

	registry   *components.Registry
	land       *landscape.Landscape
	models     *systems.PredationModels
	evaluator  *systems.Evaluator
	ids        *components.IDAllocator
	priorities *components.IDAllocator

	day        int
	population int // living entities, tracked apart from the tree
	moveStart  time.Time

	collector   *telemetry.Collector
	perf        *telemetry.PerfCollector
	bookmarks   *telemetry.BookmarkDetector
	output      *telemetry.OutputManager
	snapshotDir string
	logStats    bool
	onWindow    func(telemetry.WindowStats)

	parallel *parallelState
}

// newSimulation builds everything but the landscape.
func newSimulation(cfg *config.Config, opts Options) (*Simulation, error) {
	registry, err := components.NewRegistry(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "building species registry")
	}
	world := ecs.NewWorld()
	pcg := rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)

	s := &Simulation{
		cfg:   cfg,
		world: world,
		pcg:   pcg,
		rng:   rand.New(pcg),
		seed:  opts.Seed,
		runID: opts.RunID,
		mapper: ecs.NewMap4[
			components.Animal,
			components.Position,
			components.Phenotype,
			components.DietMemory,
		](world),
		filter: ecs.NewFilter4[
			components.Animal,
			components.Position,
			components.Phenotype,
			components.DietMemory,
		](world),
		animals:     ecs.NewMap1[components.Animal](world),
		positions:   ecs.NewMap1[components.Position](world),
		phenos:      ecs.NewMap1[components.Phenotype](world),
		memories:    ecs.NewMap1[components.DietMemory](world),
		registry:    registry,
		models:      systems.NewPredationModels(registry, cfg.Simulation.AttackHistoryLength, cfg.Simulation.MinimumHistory),
		ids:         components.NewIDAllocator(1),
		priorities:  components.NewIDAllocator(1),
		collector:   telemetry.NewCollector(cfg.Output.WindowDays),
		perf:        telemetry.NewPerfCollector(max(cfg.Output.PerfEvery, 1)),
		bookmarks:   telemetry.NewBookmarkDetector(10),
		output:      opts.Output,
		snapshotDir: opts.SnapshotDir,
		logStats:    opts.LogStats,
		onWindow:    opts.StatsCallback,
	}
	s.parallel = newParallelState(cfg.Parallel)
	return s, nil
}

// New creates a simulation: the landscape is built and painted with the
// configured patches, then the initial populations are placed.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	s, err := newSimulation(cfg, opts)
	if err != nil {
		return nil, err
	}

	land, err := landscape.New(cfg, s.registry, s.world)
	if err != nil {
		return nil, errors.Wrap(err, "building landscape")
	}
	s.land = land
	s.evaluator = systems.NewEvaluator(s.world, land, s.models)

	patches, err := patch.FromConfig(cfg, s.priorities)
	if err != nil {
		return nil, errors.Wrap(err, "building patches")
	}
	if cfg.MoistureMosaic.Enabled {
		tiles := patch.Mosaic(cfg.MoistureMosaic, land.Bounds(), int64(opts.Seed), s.priorities)
		patches = append(patches, tiles...)
	}
	if err := land.ApplyPatches(patches); err != nil {
		return nil, err
	}

	if err := s.spawnPopulations(); err != nil {
		return nil, err
	}

	slog.Info("simulation created",
		"run_id", s.runID,
		"seed", s.seed,
		"cells", land.NumCells(),
		"patches", len(patches),
		"animals", s.population,
	)
	return s, nil
}

// Close stops the worker pool.
func (s *Simulation) Close() {
	s.parallel.stopWorkers()
}

// Config returns the configuration of the run.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Day returns the next day to be simulated.
func (s *Simulation) Day() int { return s.day }

// Seed returns the seed the run was created with.
func (s *Simulation) Seed() uint64 { return s.seed }

// RunID returns the run identifier.
func (s *Simulation) RunID() string { return s.runID }

// Population returns the number of living animals, eggs included.
func (s *Simulation) Population() int { return s.population }

// Landscape returns the spatial tree.
func (s *Simulation) Landscape() *landscape.Landscape { return s.land }

// Registry returns the species registry.
func (s *Simulation) Registry() *components.Registry { return s.registry }

// Models returns the predation models.
func (s *Simulation) Models() *systems.PredationModels { return s.models }

// Collector returns the telemetry collector.
func (s *Simulation) Collector() *telemetry.Collector { return s.collector }

// PerfStats returns the timing statistics of the recent steps.
func (s *Simulation) PerfStats() telemetry.PerfStats { return s.perf.Stats() }

// environment returns the weather of a cell on the current day. Before the
// first landscape update the values come straight from the moisture source.
func (s *Simulation) environment(id landscape.CellID) systems.Environment {
	c := s.land.Cell(id)
	if src := c.Moisture.Source; src != nil {
		return systems.Environment{Temperature: src.Temperature(s.day), Humidity: src.Humidity(s.day)}
	}
	return systems.Environment{Temperature: c.Moisture.Temperature, Humidity: c.Moisture.Humidity}
}

// randomPointIn draws a uniform coordinate inside a box.
func (s *Simulation) randomPointIn(b geometry.Box) geometry.Coordinate {
	c := b.Min
	for i := 0; i < b.Dims(); i++ {
		c.X[i] = b.Min.X[i] + s.rng.Float64()*b.Size(i)
		if c.X[i] >= b.Max.X[i] {
			c.X[i] = b.Min.X[i]
		}
	}
	return c
}
