package game

import (
	"slices"
	"time"

	"github.com/mlange-42/ark/ecs"
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/landscape"
	"github.com/pthm-cable/weaver/systems"
	"github.com/pthm-cable/weaver/telemetry"
	"github.com/pthm-cable/weaver/traits"
)

// destinationAttempts bounds the random draws for a landing spot inside the
// chosen cell.
const destinationAttempts = 8

// move walks the tree from the root, visiting the children of every branch in
// a fresh random order, and lets each active animal search for food.
func (s *Simulation) move() error {
	s.moveStart = time.Now()
	return s.moveCell(s.land.Root())
}

func (s *Simulation) moveCell(id landscape.CellID) error {
	if err := s.checkBudget(); err != nil {
		return err
	}
	if c := s.land.Cell(id); c.Kind == landscape.KindBranch {
		children := slices.Clone(c.Children)
		s.rng.Shuffle(len(children), func(i, j int) { children[i], children[j] = children[j], children[i] })
		for _, child := range children {
			if err := s.moveCell(child); err != nil {
				return err
			}
		}
		return nil
	}

	idx := s.land.Cell(id).Animals
	if err := idx.RandomApply(s.rng, landscape.StageParams(components.Active), s.forage); err != nil {
		return err
	}
	// An arrival may have promoted this leaf; its residents now live below it.
	if s.land.Cell(id).Kind == landscape.KindBranch {
		return s.moveCell(id)
	}
	return nil
}

func (s *Simulation) checkBudget() error {
	limit := s.cfg.Simulation.ExitTimeThreshold
	if limit <= 0 {
		return nil
	}
	if elapsed := time.Since(s.moveStart); elapsed > limit {
		return errors.Wrapf(ErrTooManyAnimals, "movement took %s, limit %s", elapsed.Round(time.Millisecond), limit)
	}
	return nil
}

// forage runs the search attempts of one animal: pick the best cell within
// its search radius, move there and try the most valuable food in it.
func (s *Simulation) forage(e ecs.Entity) error {
	a := s.animals.Get(e)
	if a.LastActionStep == s.day || a.Stage != components.Active {
		return nil
	}
	a.LastActionStep = s.day
	if err := s.checkBudget(); err != nil {
		return err
	}

	tried := systems.NewTried()
	for range max(s.cfg.Simulation.SearchAttempts, 1) {
		if a.Stage != components.Active || systems.IsSatiated(a) {
			break
		}
		ev, ok := s.chooseCell(e, tried)
		if !ok {
			break
		}
		if err := s.moveTo(e, ev.Cell); err != nil {
			return err
		}
		if !ev.HasFood {
			break
		}
		var err error
		if ev.Best.Resource {
			err = s.graze(e, ev.Best, tried)
		} else {
			err = s.hunt(e, ev.Best, tried)
		}
		if err != nil {
			return err
		}
	}

	if a.Stage == components.Active && systems.IsSatiated(a) {
		return s.land.ChangeStage(e, components.Satiated)
	}
	return nil
}

// chooseCell evaluates the habitable cells within the search radius at the
// animal's depth as one view and returns it. The view's Cell is where the
// animal should go next.
func (s *Simulation) chooseCell(e ecs.Entity, tried *systems.Tried) (systems.CellEvaluation, bool) {
	a := s.animals.Get(e)
	sp := s.registry.Animal(a.Species)
	pos := s.positions.Get(e)
	radius := s.phenos.Get(e).Trait(traits.SearchRadius)

	ring := s.land.Ring(pos.Coord, radius)
	cells := s.land.RadiusTerrainCells(ring, sp.TargetDepth(a.Instar, s.land.MaxDepth()))
	cells = slices.DeleteFunc(cells, func(rc landscape.RadiusCell) bool {
		return !s.land.Cell(rc.Cell).HabitableFor(a.Species)
	})
	if len(cells) == 0 {
		return systems.CellEvaluation{}, false
	}
	return s.evaluator.RadiusEvaluation(e, cells, tried), true
}

// moveTo migrates an animal into the given cell unless it already lives
// inside it. A destination that turns out to be rock or foreign habitat
// leaves the animal where it is.
func (s *Simulation) moveTo(e ecs.Entity, id landscape.CellID) error {
	pos := s.positions.Get(e)
	target := s.land.Cell(id)
	if target.Area.Contains(pos.Coord) {
		return nil
	}
	a := s.animals.Get(e)
	depth := s.registry.Animal(a.Species).TargetDepth(a.Instar, s.land.MaxDepth())
	area := target.Area

	for range destinationAttempts {
		to := s.randomPointIn(area)
		leaf, err := s.land.LeafFor(to, depth)
		if err != nil {
			return err
		}
		if !s.land.Cell(leaf).HabitableFor(a.Species) {
			continue
		}
		err = s.land.MigrateAnimal(e, to)
		if errors.Is(err, landscape.ErrFullObstacle) {
			continue
		}
		return err
	}
	return nil
}

// graze eats from a resource. On a branch the bite is shared among the leaves
// below in proportion to what each can give.
func (s *Simulation) graze(e ecs.Entity, food systems.Candidate, tried *systems.Tried) error {
	tried.MarkResource(food.Cell, food.Species)
	a := s.animals.Get(e)
	ph := s.phenos.Get(e)

	var leaves []landscape.CellID
	var shares []float64
	available := 0.0
	s.land.LeavesUnder(food.Cell, func(c *landscape.Cell) {
		if v := c.Resources[food.Species].Available(); v > 0 {
			leaves = append(leaves, c.ID)
			shares = append(shares, v)
			available += v
		}
	})

	eaten := systems.DryMassToBeEaten(a.RemainingVoracity, food.Profitability, ph.Trait(traits.AssimilationEfficiency), available)
	if eaten <= 0 {
		return nil
	}
	for i, leaf := range leaves {
		s.land.SubstractBiomassUp(leaf, food.Species, eaten*shares[i]/available)
	}
	systems.Eat(a, ph, eaten, food.Profitability)
	s.memories.Get(e).Record(food.Key(0), eaten, s.registry.Animal(a.Species).MemoryLength)
	s.collector.Record(telemetry.NewGrazeEvent(s.day, a.ID, a.Species, eaten))
	return nil
}

// hunt tries to catch a prey animal: an encounter draw, then a predation
// draw. A kill is marked PREDATED and left for the purge pass.
func (s *Simulation) hunt(e ecs.Entity, food systems.Candidate, tried *systems.Tried) error {
	prey := food.Entity
	tried.Animals[prey] = true
	if !s.world.Alive(prey) {
		return nil
	}
	pa := s.animals.Get(prey)
	if !pa.IsAlive() || pa.Stage == components.Unborn {
		return nil
	}
	a := s.animals.Get(e)
	model := s.models.Get(a.Species, pa.Species)
	if model == nil {
		return nil
	}

	hp, pp := s.evaluator.ProfileOf(e), s.evaluator.ProfileOf(prey)
	if s.rng.Float64() >= model.EncounterProbability(hp, pp) {
		return nil
	}
	model.Attempts++
	a.Encounters++
	s.collector.Record(telemetry.NewEncounterEvent(s.day, a.ID, pa.ID, a.Species))

	if s.rng.Float64() >= model.PredationProbability(hp, pp) {
		return nil
	}
	model.Record(hp, pp)
	pa.PredatorID = a.ID
	if err := s.land.ChangeStage(prey, components.Predated); err != nil {
		return err
	}

	ph := s.phenos.Get(e)
	sp := s.registry.Animal(a.Species)
	eaten := systems.DryMassToBeEaten(a.RemainingVoracity, food.Profitability, ph.Trait(traits.AssimilationEfficiency), pa.DryMass)
	systems.Eat(a, ph, eaten, food.Profitability)
	a.Predations++
	s.memories.Get(e).Record(food.Key(pa.Instar), eaten, sp.MemoryLength)
	s.collector.Record(telemetry.NewPredationEvent(s.day, a.ID, pa.ID, a.Species, eaten))

	if sp.HandlingDays > 0 {
		a.HandlingTimer = sp.HandlingDays
		return s.land.ChangeStage(e, components.Handling)
	}
	return nil
}
