package systems

import (
	"log/slog"
	"math"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/traits"
)

// satiationEpsilon is the remaining voracity below which an animal is full.
const satiationEpsilon = 1e-9

// DryMassToBeEaten returns how much of a food an animal eats: the remaining
// daily voracity converted by the food's profitability and the animal's
// assimilation efficiency, capped by what is available.
func DryMassToBeEaten(remaining, profitability, assimilation, available float64) float64 {
	if available <= 0 {
		return 0
	}
	denom := profitability + assimilation
	eaten := math.Min(remaining/denom, available)
	if denom <= 0 || eaten < 0 || math.IsNaN(eaten) {
		slog.Warn("malformed intake", "remaining_voracity", remaining,
			"profitability", profitability, "assimilation", assimilation, "available", available)
		return 0
	}
	return eaten
}

// ResetVoracity sets the daily intake budget from the tuned voracity.
func ResetVoracity(a *components.Animal, ph *components.Phenotype) {
	a.RemainingVoracity = ph.Trait(traits.Voracity) * a.DryMass
}

// Eat books eaten dry mass against the voracity budget and the gut.
func Eat(a *components.Animal, ph *components.Phenotype, eaten, profitability float64) {
	a.RemainingVoracity -= eaten * (profitability + ph.Trait(traits.AssimilationEfficiency))
	if a.RemainingVoracity < 0 {
		a.RemainingVoracity = 0
	}
	a.FoodMass += eaten
}

// IsSatiated reports whether the animal has used up its daily intake.
func IsSatiated(a *components.Animal) bool {
	return a.RemainingVoracity <= satiationEpsilon
}

// Preference blends the species baseline preference for a food with what the
// animal remembers about it, weighted by the species experience influence.
func Preference(sp *components.AnimalSpecies, memory *components.DietMemory, edible components.Edible, key components.EdibleKey) float64 {
	if memory == nil {
		return edible.Preference
	}
	experienced, ok := memory.Experienced(key)
	if !ok {
		return edible.Preference
	}
	w := sp.ExperienceInfluence
	return (1-w)*edible.Preference + w*experienced
}
