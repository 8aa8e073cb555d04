package systems

import (
	"math"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/traits"
)

// Assimilate converts the food eaten this step into assimilated mass.
func Assimilate(a *components.Animal, ph *components.Phenotype) {
	if a.FoodMass <= 0 {
		a.FoodMass = 0
		return
	}
	a.AssimilatedMass += a.FoodMass * ph.Trait(traits.AssimilationEfficiency)
	a.FoodMass = 0
}

// MetabolicCost is the daily dry-mass cost of maintenance. When the metabolic
// rate has no temperature section of its own, the species Q10 scales it.
func MetabolicCost(a *components.Animal, sp *components.AnimalSpecies, ph *components.Phenotype, temperature float64) float64 {
	if a.DryMass <= 0 {
		return 0
	}
	cost := ph.Trait(traits.MetabolicRate) * math.Pow(a.DryMass, sp.MetabolicExponent)
	if sp.Sections[traits.MetabolicRate].Kind == traits.SectionNone && sp.Q10 > 0 {
		cost *= math.Pow(sp.Q10, (temperature-sp.ReferenceTemperature)/10)
	}
	return cost
}

// Metabolize pays the maintenance cost, first from assimilated mass and then
// from body mass. It reports whether the animal starved.
func Metabolize(a *components.Animal, sp *components.AnimalSpecies, ph *components.Phenotype, temperature float64) bool {
	cost := MetabolicCost(a, sp, ph, temperature)
	fromGut := math.Min(cost, a.AssimilatedMass)
	a.AssimilatedMass -= fromGut
	a.DryMass -= cost - fromGut
	if a.DryMass < 0 {
		a.DryMass = 0
	}
	return a.DryMass < sp.MinimumMass(a.Instar)
}

// Growth is the outcome of the growth phase.
type Growth struct {
	Instar int
	Stage  components.LifeStage
}

// CanReproduce reports whether an animal of the species may lay eggs.
func CanReproduce(a *components.Animal, sp *components.AnimalSpecies) bool {
	return sp.Parthenogenetic || a.Gender == components.Female || a.Gender == components.Hermaphrodite
}

// Grow turns the remaining assimilated mass into body mass, moults through
// every instar whose mass threshold is reached, and decides whether the
// animal pupates or is ready to reproduce. Only mass and timers change on a.
func Grow(a *components.Animal, sp *components.AnimalSpecies, ph *components.Phenotype) Growth {
	out := Growth{Instar: a.Instar, Stage: a.Stage}
	if a.AssimilatedMass > 0 {
		a.DryMass += a.AssimilatedMass * ph.Trait(traits.GrowthRate)
	}
	a.AssimilatedMass = 0
	if a.Stage == components.Pupa || a.Stage == components.Unborn || a.Stage.IsTerminal() {
		return out
	}

	for out.Instar < sp.Instars && a.DryMass >= sp.InstarMass[out.Instar] {
		out.Instar++
		if out.Instar == sp.PupaInstar {
			a.PupaTimer = max(1, int(math.Round(ph.Trait(traits.PupaPeriod))))
			out.Stage = components.Pupa
			return out
		}
	}

	if out.Stage == components.Active && sp.IsMature(out.Instar) && CanReproduce(a, sp) {
		threshold := sp.InstarMass[sp.MaturityInstar-1] * (1 + ph.Trait(traits.ReproductionMassFraction))
		if a.DryMass >= threshold {
			out.Stage = components.Reproducing
		}
	}
	return out
}
