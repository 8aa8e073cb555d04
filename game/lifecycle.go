package game

import (
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/mlange-42/ark/ecs"
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/landscape"
	"github.com/pthm-cable/weaver/telemetry"
	"github.com/pthm-cable/weaver/traits"
)

// placementAttempts bounds the random draws for a free spot.
const placementAttempts = 1000

// spawnPopulations creates the starting animals of every configured population.
func (s *Simulation) spawnPopulations() error {
	for _, pop := range s.cfg.Populations {
		sp, ok := s.registry.AnimalByName(pop.Species)
		if !ok {
			return errors.Errorf("population of unknown species %q", pop.Species)
		}
		stage, err := components.ParseLifeStage(pop.Stage)
		if err != nil {
			return errors.Wrapf(err, "population of %s", pop.Species)
		}
		if pop.Instar < 1 || pop.Instar > sp.Instars {
			return errors.Errorf("population of %s: instar %d out of range", pop.Species, pop.Instar)
		}

		for i := 0; i < pop.Count; i++ {
			coord, err := s.freeSpot(sp, pop.Instar)
			if err != nil {
				return errors.Wrapf(err, "placing %s %d", pop.Species, i)
			}
			genome := traits.Random(&sp.TraitRanges, s.rng)
			a := components.Animal{
				ID:             s.ids.Next(),
				Species:        sp.ID,
				Gender:         s.drawGender(sp),
				Instar:         pop.Instar,
				Stage:          stage,
				DryMass:        referenceMass(sp, pop.Instar),
				LastActionStep: -1,
			}
			if stage == components.Unborn {
				a.DevelopmentTimer = max(1, int(genome.Trait(traits.EggDevelopmentTime)+0.5))
			}
			if _, err := s.spawnAnimal(a, coord, genome); err != nil {
				return errors.Wrapf(err, "spawning %s", pop.Species)
			}
		}
		slog.Info("population placed", "species", sp.Name, "count", humanize.Comma(int64(pop.Count)), "stage", stage.String())
	}
	return nil
}

// referenceMass is the dry mass at which an instar begins.
func referenceMass(sp *components.AnimalSpecies, instar int) float64 {
	return sp.InstarMass[instar-1]
}

func (s *Simulation) drawGender(sp *components.AnimalSpecies) components.Gender {
	if !sp.Parthenogenetic && s.rng.Float64() < sp.MaleRatio {
		return components.Male
	}
	return components.Female
}

// freeSpot draws random coordinates until one lands in a leaf the species may
// live in.
func (s *Simulation) freeSpot(sp *components.AnimalSpecies, instar int) (geometry.Coordinate, error) {
	bounds := s.land.Bounds()
	depth := sp.TargetDepth(instar, s.land.MaxDepth())
	for range placementAttempts {
		coord := s.randomPointIn(bounds)
		leaf, err := s.land.LeafFor(coord, depth)
		if err != nil {
			return coord, err
		}
		if s.land.Cell(leaf).HabitableFor(sp.ID) {
			return coord, nil
		}
	}
	return geometry.Coordinate{}, errors.Errorf("no habitable cell for %s after %d attempts", sp.Name, placementAttempts)
}

// spawnAnimal creates the entity of a new animal and indexes it in the tree.
// Must not be called while a query is open.
func (s *Simulation) spawnAnimal(a components.Animal, coord geometry.Coordinate, genome *traits.Genome) (ecs.Entity, error) {
	sp := s.registry.Animal(a.Species)
	leaf, err := s.land.LeafFor(coord, sp.TargetDepth(a.Instar, s.land.MaxDepth()))
	if err != nil {
		return ecs.Entity{}, err
	}
	pos := components.Position{Coord: coord, Cell: int32(landscape.NoCell)}
	ph := components.NewPhenotype(genome, sp, s.environment(leaf).Temperature)
	mem := components.NewDietMemory()

	e := s.mapper.NewEntity(&a, &pos, &ph, &mem)
	if err := s.land.InsertAnimal(e); err != nil {
		s.world.RemoveEntity(e)
		return ecs.Entity{}, err
	}
	s.population++
	return e, nil
}

// purge removes every animal in a terminal stage from the tree and the world.
// A second call in the same step finds nothing to do.
func (s *Simulation) purge() (int, error) {
	type deadInfo struct {
		entity  ecs.Entity
		id      uint64
		species components.SpeciesID
		cause   components.LifeStage
	}
	var toRemove []deadInfo

	// First pass: collect (no structural changes while the query is open)
	query := s.filter.Query()
	for query.Next() {
		a, _, _, _ := query.Get()
		if a.Stage.IsTerminal() {
			toRemove = append(toRemove, deadInfo{entity: query.Entity(), id: a.ID, species: a.Species, cause: a.Stage})
		}
	}

	// Second pass: remove
	for _, d := range toRemove {
		if err := s.land.EraseAnimal(d.entity); err != nil {
			return 0, errors.Wrapf(err, "purging animal %d", d.id)
		}
		s.world.RemoveEntity(d.entity)
		s.population--
		s.collector.Record(telemetry.NewDeathEvent(s.day, d.id, d.species, d.cause))
	}
	return len(toRemove), nil
}

// checkPopulation verifies that every living animal is indexed exactly once.
func (s *Simulation) checkPopulation() error {
	indexed := s.land.CountIndexed()
	if indexed != s.population || s.land.Population() != s.population {
		return errors.Errorf("population mismatch on day %d: %d alive, %d counted by the tree, %d found in leaves",
			s.day, s.population, s.land.Population(), indexed)
	}
	return nil
}
