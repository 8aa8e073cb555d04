package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/landscape"
	"github.com/pthm-cable/weaver/traits"
)

// preyStages are the life stages in which an animal can be caught.
var preyStages = []components.LifeStage{
	components.Active, components.Reproducing, components.Pupa,
	components.Satiated, components.Handling, components.Diapause,
}

// livingStages are the non-terminal stages counted as conspecific biomass.
var livingStages = append([]components.LifeStage{components.Unborn}, preyStages...)

// Candidate is one food item found in a cell.
type Candidate struct {
	Resource      bool
	Species       components.SpeciesID
	Entity        ecs.Entity // prey animal, zero for resources
	Cell          landscape.CellID
	Value         float64
	Profitability float64
}

// Key returns the diet memory key of the candidate.
func (c Candidate) Key(instar int) components.EdibleKey {
	if c.Resource {
		return components.EdibleKey{Resource: true, Species: c.Species}
	}
	return components.EdibleKey{Species: c.Species, Instar: instar}
}

// CellEvaluation scores a cell from one animal's point of view.
type CellEvaluation struct {
	Cell               landscape.CellID
	Edibility          float64
	PredatoryRisk      float64
	ConspecificBiomass float64
	Best               Candidate
	HasFood            bool
}

// Score ranks cells for movement.
func (c CellEvaluation) Score() float64 {
	return c.Edibility - c.PredatoryRisk
}

// Tried records the food an animal already attempted this step.
type Tried struct {
	Animals   map[ecs.Entity]bool
	Resources map[landscape.CellID]map[components.SpeciesID]bool
}

// NewTried creates an empty record.
func NewTried() *Tried {
	return &Tried{
		Animals:   make(map[ecs.Entity]bool),
		Resources: make(map[landscape.CellID]map[components.SpeciesID]bool),
	}
}

// MarkResource records an attempt on a resource of a cell.
func (t *Tried) MarkResource(cell landscape.CellID, species components.SpeciesID) {
	m := t.Resources[cell]
	if m == nil {
		m = make(map[components.SpeciesID]bool)
		t.Resources[cell] = m
	}
	m[species] = true
}

func (t *Tried) resource(cell landscape.CellID, species components.SpeciesID) bool {
	return t != nil && t.Resources[cell][species]
}

func (t *Tried) animal(e ecs.Entity) bool {
	return t != nil && t.Animals[e]
}

// Evaluator rates cells by food, risk and crowding.
type Evaluator struct {
	land     *landscape.Landscape
	registry *components.Registry
	models   *PredationModels
	animals  *ecs.Map1[components.Animal]
	phenos   *ecs.Map1[components.Phenotype]
	memories *ecs.Map1[components.DietMemory]
}

// NewEvaluator creates an evaluator over the landscape's animals.
func NewEvaluator(w *ecs.World, land *landscape.Landscape, models *PredationModels) *Evaluator {
	return &Evaluator{
		land:     land,
		registry: land.Registry(),
		models:   models,
		animals:  ecs.NewMap1[components.Animal](w),
		phenos:   ecs.NewMap1[components.Phenotype](w),
		memories: ecs.NewMap1[components.DietMemory](w),
	}
}

// ProfileOf returns the predation profile of an animal.
func (ev *Evaluator) ProfileOf(e ecs.Entity) Profile {
	return Profile{Mass: ev.animals.Get(e).DryMass, Speed: ev.phenos.Get(e).Trait(traits.Speed)}
}

// linearInterpolate01 maps v from [lo, hi] onto [0, 1], clamping outside.
func linearInterpolate01(v, lo, hi float64) float64 {
	if hi <= lo {
		if v > lo {
			return 1
		}
		return 0
	}
	return clamp01((v - lo) / (hi - lo))
}

// beats reports whether c should replace best. On equal value an animal wins
// over a resource.
func (c Candidate) beats(best Candidate, hasBest bool) bool {
	if c.Value <= 0 {
		return false
	}
	if !hasBest || c.Value > best.Value {
		return true
	}
	return c.Value == best.Value && best.Resource && !c.Resource
}

// carryingMass is the biomass of an animal species a cell of the given
// volume holds at carrying capacity.
func carryingMass(sp *components.AnimalSpecies, volume float64) float64 {
	return sp.AdultMass() * sp.CarryingDensity * volume
}

// CellEvaluation rates one cell for the hunter e, ignoring food in tried.
// Every food species is normalised by what the cell holds of it at carrying
// capacity and squashed into [0,1] before the species are summed, so a
// plentiful resource cannot drown out prey. Predatory risk is built the same
// way per predator species.
func (ev *Evaluator) CellEvaluation(e ecs.Entity, id landscape.CellID, tried *Tried) CellEvaluation {
	a := ev.animals.Get(e)
	sp := ev.registry.Animal(a.Species)
	memory := ev.memories.Get(e)
	self := ev.ProfileOf(e)
	out := CellEvaluation{Cell: id}

	cell := ev.land.Cell(id)
	volume := cell.Area.Volume()
	var food, risk map[components.EdibleKey]float64

	consider := func(c Candidate) {
		if c.Value <= 0 {
			return
		}
		if food == nil {
			food = make(map[components.EdibleKey]float64)
		}
		food[components.EdibleKey{Resource: c.Resource, Species: c.Species}] += c.Value
		if c.beats(out.Best, out.HasFood) {
			out.Best = c
			out.HasFood = true
		}
	}

	for _, edible := range sp.Diet {
		if !edible.Resource {
			continue
		}
		if tried.resource(id, edible.Species) {
			continue
		}
		r := cell.Resources[edible.Species]
		if r.Capacity <= 0 {
			continue
		}
		pref := Preference(sp, memory, edible, components.EdibleKey{Resource: true, Species: edible.Species})
		consider(Candidate{
			Resource:      true,
			Species:       edible.Species,
			Cell:          id,
			Value:         pref * r.Available() / r.Capacity,
			Profitability: edible.Profitability,
		})
	}

	predators := ev.registry.PredatorsOf(a.Species)
	ev.land.LeavesUnder(id, func(leaf *landscape.Cell) {
		idx := leaf.Animals
		if idx == nil || idx.Len() == 0 {
			return
		}
		if sp.HuntingMode != components.DoesNotHunt {
			for _, edible := range sp.Diet {
				if edible.Resource {
					continue
				}
				capacity := carryingMass(ev.registry.Animal(edible.Species), volume)
				if capacity <= 0 {
					continue
				}
				model := ev.models.Get(a.Species, edible.Species)
				p := landscape.SearchParams{Stages: preyStages, Species: []components.SpeciesID{edible.Species}}
				if edible.Instar > 0 {
					p.Instars = []int{edible.Instar}
				}
				idx.Each(p, func(k landscape.Key, prey ecs.Entity) bool {
					if prey == e || tried.animal(prey) {
						return true
					}
					pa := ev.animals.Get(prey)
					key := components.EdibleKey{Species: k.Species, Instar: k.Instar}
					pref := Preference(sp, memory, edible, key)
					enc := model.EncounterProbability(self, ev.ProfileOf(prey))
					consider(Candidate{
						Species:       k.Species,
						Entity:        prey,
						Cell:          leaf.ID,
						Value:         pref * pa.DryMass * enc / capacity,
						Profitability: edible.Profitability,
					})
					return true
				})
			}
		}

		for _, ps := range predators {
			model := ev.models.Get(ps, a.Species)
			crowd := ev.registry.Animal(ps).CarryingDensity * volume
			if crowd <= 0 {
				continue
			}
			p := landscape.SearchParams{Stages: []components.LifeStage{components.Active}, Species: []components.SpeciesID{ps}}
			idx.Each(p, func(_ landscape.Key, hunter ecs.Entity) bool {
				if hunter == e {
					return true
				}
				hp := ev.ProfileOf(hunter)
				if risk == nil {
					risk = make(map[components.EdibleKey]float64)
				}
				risk[components.EdibleKey{Species: ps}] += model.EncounterProbability(hp, self) * model.PredationProbability(hp, self) / crowd
				return true
			})
		}

		idx.Each(landscape.SearchParams{Stages: livingStages, Species: []components.SpeciesID{a.Species}},
			func(_ landscape.Key, other ecs.Entity) bool {
				if other != e {
					out.ConspecificBiomass += ev.animals.Get(other).DryMass
				}
				return true
			})
	})

	for _, v := range food {
		out.Edibility += linearInterpolate01(v, 0, 1)
	}
	for _, v := range risk {
		out.PredatoryRisk += linearInterpolate01(v, 0, 1)
	}
	return out
}

// RadiusEvaluation is the animal's view of everything within its search
// ring. Fully covered cells count outright; partially covered cells are
// weighted by their covered fraction. Best is the single most valuable food
// item seen and Cell is the cell holding it, or, when there is no food, the
// cell with the highest weighted score.
func (ev *Evaluator) RadiusEvaluation(e ecs.Entity, cells []landscape.RadiusCell, tried *Tried) CellEvaluation {
	var out CellEvaluation
	out.Cell = landscape.NoCell
	scoreCell, bestScore := landscape.NoCell, 0.0
	for _, rc := range cells {
		w := rc.Fraction
		if rc.Coverage == geometry.CoverageFull {
			w = 1
		}
		ce := ev.CellEvaluation(e, rc.Cell, tried)
		out.Edibility += w * ce.Edibility
		out.PredatoryRisk += w * ce.PredatoryRisk
		out.ConspecificBiomass += w * ce.ConspecificBiomass
		if ce.HasFood && ce.Best.beats(out.Best, out.HasFood) {
			out.Best = ce.Best
			out.HasFood = true
			out.Cell = rc.Cell
		}
		if score := w * ce.Score(); scoreCell == landscape.NoCell || score > bestScore {
			scoreCell, bestScore = rc.Cell, score
		}
	}
	if !out.HasFood {
		out.Cell = scoreCell
	}
	return out
}
