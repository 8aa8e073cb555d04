package game

import (
	"github.com/mlange-42/ark/ecs"
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/landscape"
	"github.com/pthm-cable/weaver/systems"
	"github.com/pthm-cable/weaver/telemetry"
)

// Step simulates one day. Any error is fatal for the run: a partially applied
// day cannot be recovered.
func (s *Simulation) Step() error {
	s.perf.StartStep()

	s.perf.StartPhase(systems.PhaseLandscape)
	s.land.Update(s.day)
	s.models.Refresh()

	s.perf.StartPhase(systems.PhaseActivate)
	if err := s.activate(); err != nil {
		return errors.Wrapf(err, "activating animals on day %d", s.day)
	}

	s.perf.StartPhase(systems.PhaseTune)
	s.tune()

	s.perf.StartPhase(systems.PhaseMove)
	if err := s.move(); err != nil {
		return errors.Wrapf(err, "moving animals on day %d", s.day)
	}

	s.perf.StartPhase(systems.PhaseAssimilate)
	s.assimilate()

	s.perf.StartPhase(systems.PhaseMetabolize)
	if err := s.metabolize(); err != nil {
		return errors.Wrapf(err, "metabolizing on day %d", s.day)
	}

	s.perf.StartPhase(systems.PhaseGrow)
	if err := s.grow(); err != nil {
		return errors.Wrapf(err, "growing on day %d", s.day)
	}

	s.perf.StartPhase(systems.PhaseBreed)
	if err := s.breed(); err != nil {
		return errors.Wrapf(err, "breeding on day %d", s.day)
	}

	s.perf.StartPhase(systems.PhasePurge)
	if _, err := s.purge(); err != nil {
		return err
	}
	if s.cfg.Simulation.CheckPopulationCounter {
		if err := s.checkPopulation(); err != nil {
			return err
		}
	}

	s.perf.StartPhase(systems.PhaseTelemetry)
	s.recordTelemetry()
	s.perf.EndStep()

	s.day++
	return nil
}

// activate runs hatching, diapause, timers and mortality for every living
// animal. Stage changes go through the landscape so the cell index follows.
func (s *Simulation) activate() error {
	type change struct {
		entity ecs.Entity
		stage  components.LifeStage
	}
	var changes []change

	query := s.filter.Query()
	for query.Next() {
		a, pos, ph, _ := query.Get()
		if a.Stage.IsTerminal() {
			continue
		}
		sp := s.registry.Animal(a.Species)
		next := systems.Activate(a, sp, ph, s.environment(landscape.CellID(pos.Cell)), s.rng)
		if next != a.Stage {
			changes = append(changes, change{entity: query.Entity(), stage: next})
		}
	}

	for _, c := range changes {
		if err := s.land.ChangeStage(c.entity, c.stage); err != nil {
			return err
		}
	}
	return nil
}

// tune re-expresses traits at the temperature of each animal's cell and
// refills the daily voracity of active animals.
func (s *Simulation) tune() {
	query := s.filter.Query()
	for query.Next() {
		a, pos, ph, _ := query.Get()
		if a.Stage.IsTerminal() || a.Stage == components.Unborn {
			continue
		}
		sp := s.registry.Animal(a.Species)
		if t := s.environment(landscape.CellID(pos.Cell)).Temperature; t != ph.Temperature {
			ph.Tune(sp, t)
		}
		if a.Stage == components.Active {
			systems.ResetVoracity(a, ph)
		}
	}
}

// birth is a clutch waiting to be spawned once the query is closed.
type birth struct {
	mother    uint64
	species   components.SpeciesID
	coord     geometry.Coordinate
	offspring []systems.Offspring
}

// breed lets every reproducing animal lay a clutch. Sexual species need a
// mature male in the same leaf; without one the female returns to foraging.
func (s *Simulation) breed() error {
	var mothers []ecs.Entity
	query := s.filter.Query()
	for query.Next() {
		a, _, _, _ := query.Get()
		if a.Stage == components.Reproducing {
			mothers = append(mothers, query.Entity())
		}
	}

	var births []birth
	for _, e := range mothers {
		a := s.animals.Get(e)
		sp := s.registry.Animal(a.Species)
		ph := s.phenos.Get(e)

		var father *components.Animal
		var fatherPh *components.Phenotype
		if !sp.Parthenogenetic && a.Gender != components.Hermaphrodite {
			mate, ok := s.findMate(e, sp)
			if !ok {
				if err := s.land.ChangeStage(e, components.Active); err != nil {
					return err
				}
				continue
			}
			father, fatherPh = s.animals.Get(mate), s.phenos.Get(mate)
		}

		clutch := systems.Breed(a, ph, father, fatherPh, sp, s.rng)
		births = append(births, birth{mother: a.ID, species: sp.ID, coord: s.positions.Get(e).Coord, offspring: clutch})
		if err := s.land.ChangeStage(e, components.Active); err != nil {
			return err
		}
	}

	// Spawn outside any query: new entities change the world's structure.
	for _, b := range births {
		for _, off := range b.offspring {
			genome := off.Genome
			child := components.Animal{
				ID:               s.ids.Next(),
				Species:          b.species,
				Gender:           off.Gender,
				Instar:           1,
				Stage:            components.Unborn,
				DryMass:          off.DryMass,
				DevelopmentTimer: off.DevelopmentTimer,
				MotherID:         off.MotherID,
				FatherID:         off.FatherID,
				LastActionStep:   s.day,
			}
			if _, err := s.spawnAnimal(child, b.coord, &genome); err != nil {
				// The egg's finer cell can be solid rock under a mother on partial cover.
				if errors.Is(err, landscape.ErrFullObstacle) {
					continue
				}
				return errors.Wrapf(err, "laying egg of animal %d", b.mother)
			}
			s.collector.Record(telemetry.NewBirthEvent(s.day, child.ID, b.mother, b.species))
		}
	}
	return nil
}

// findMate returns a mature male of the species sharing the female's leaf.
func (s *Simulation) findMate(female ecs.Entity, sp *components.AnimalSpecies) (ecs.Entity, bool) {
	cell := s.land.Cell(landscape.CellID(s.positions.Get(female).Cell))
	if cell.Animals == nil {
		return ecs.Entity{}, false
	}
	var mate ecs.Entity
	found := false
	params := landscape.SearchParams{
		Species: []components.SpeciesID{sp.ID},
		Genders: []components.Gender{components.Male},
	}
	cell.Animals.Each(params, func(_ landscape.Key, e ecs.Entity) bool {
		if systems.IsMate(s.animals.Get(e), sp) {
			mate, found = e, true
			return false
		}
		return true
	})
	return mate, found
}
