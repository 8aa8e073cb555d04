package game

import (
	"github.com/mlange-42/ark/ecs"
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/landscape"
	"github.com/pthm-cable/weaver/patch"
	"github.com/pthm-cable/weaver/systems"
	"github.com/pthm-cable/weaver/traits"
)

// AnimalState is everything needed to recreate one animal.
type AnimalState struct {
	Animal      components.Animal
	Position    components.Position
	Genome      traits.Genome
	Temperature float64 // temperature the phenotype was tuned at
	Memory      components.DietMemory
}

// Checkpoint is the complete state of a run between two days.
type Checkpoint struct {
	RunID        string
	Seed         uint64
	Day          int
	NextAnimalID uint64
	NextPriority uint64
	RNG          []byte

	Cells     []landscape.Cell
	Sources   map[int]*patch.MoistureSource
	Animals   []AnimalState // in leaf index order
	Predation []systems.PredationState
}

// Checkpoint captures the state of the run. Animals are listed leaf by leaf
// in index order so that restoring them rebuilds identical buckets.
func (s *Simulation) Checkpoint() (*Checkpoint, error) {
	rng, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encoding random state")
	}
	cp := &Checkpoint{
		RunID:        s.runID,
		Seed:         s.seed,
		Day:          s.day,
		NextAnimalID: s.ids.Peek(),
		NextPriority: s.priorities.Peek(),
		RNG:          rng,
		Cells:        s.land.Cells(),
		Sources:      s.land.Sources(),
		Predation:    s.models.States(),
	}
	s.land.Leaves(func(c *landscape.Cell) {
		c.Animals.Each(landscape.SearchParams{}, func(_ landscape.Key, e ecs.Entity) bool {
			ph := s.phenos.Get(e)
			cp.Animals = append(cp.Animals, AnimalState{
				Animal:      *s.animals.Get(e),
				Position:    *s.positions.Get(e),
				Genome:      *ph.Genome,
				Temperature: ph.Temperature,
				Memory:      *s.memories.Get(e),
			})
			return true
		})
	})
	return cp, nil
}

// Restore rebuilds a simulation from a checkpoint. The telemetry window
// restarts at the checkpoint day.
func Restore(cfg *config.Config, opts Options, cp *Checkpoint) (*Simulation, error) {
	if opts.RunID == "" {
		opts.RunID = cp.RunID
	}
	opts.Seed = cp.Seed
	s, err := newSimulation(cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := s.pcg.UnmarshalBinary(cp.RNG); err != nil {
		return nil, errors.Wrap(err, "decoding random state")
	}
	s.day = cp.Day
	s.ids.Reset(cp.NextAnimalID)
	s.priorities.Reset(cp.NextPriority)

	land, err := landscape.NewFromCells(cfg, s.registry, s.world, cp.Cells, cp.Day, cp.Sources)
	if err != nil {
		return nil, errors.Wrap(err, "rebuilding landscape")
	}
	s.land = land
	s.evaluator = systems.NewEvaluator(s.world, land, s.models)
	s.models.Restore(cp.Predation)

	for i := range cp.Animals {
		st := &cp.Animals[i]
		if int(st.Animal.Species) >= len(s.registry.Animals) {
			return nil, errors.Errorf("animal %d has unknown species %d", st.Animal.ID, st.Animal.Species)
		}
		sp := s.registry.Animal(st.Animal.Species)
		genome := st.Genome
		a, pos, mem := st.Animal, st.Position, st.Memory
		if mem.Experience == nil {
			mem = components.NewDietMemory()
		}
		ph := components.NewPhenotype(&genome, sp, st.Temperature)
		e := s.mapper.NewEntity(&a, &pos, &ph, &mem)
		if err := land.RestoreAnimal(e); err != nil {
			return nil, errors.Wrapf(err, "restoring animal %d", a.ID)
		}
		s.population++
	}
	s.collector.Restart(cp.Day)
	return s, nil
}
