package systems

import (
	"math/rand/v2"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/traits"
)

// Environment is the local weather an animal experiences on a day.
type Environment struct {
	Temperature float64
	Humidity    float64
}

// IsReadyToBeBorn counts down the egg development timer.
func IsReadyToBeBorn(a *components.Animal) bool {
	if a.DevelopmentTimer > 0 {
		a.DevelopmentTimer--
	}
	return a.DevelopmentTimer <= 0
}

// IsReadyToResumeFromDiapauseOrIncreaseDiapauseTimeSteps ends diapause once
// humidity is back at the species threshold, and otherwise counts another
// day spent in diapause.
func IsReadyToResumeFromDiapauseOrIncreaseDiapauseTimeSteps(a *components.Animal, sp *components.AnimalSpecies, humidity float64) bool {
	if humidity < sp.DiapauseHumidity {
		a.DiapauseSteps++
		return false
	}
	a.DiapauseSteps = 0
	return true
}

// ShouldEnterDiapause reports whether an active animal shuts down for the dry spell.
func ShouldEnterDiapause(sp *components.AnimalSpecies, humidity float64) bool {
	return sp.DiapauseHumidity > 0 && humidity < sp.DiapauseHumidity
}

// TickPupa counts down metamorphosis.
func TickPupa(a *components.Animal) bool {
	if a.PupaTimer > 0 {
		a.PupaTimer--
	}
	return a.PupaTimer <= 0
}

// TickHandling counts down the time spent handling a kill.
func TickHandling(a *components.Animal) bool {
	if a.HandlingTimer > 0 {
		a.HandlingTimer--
	}
	return a.HandlingTimer <= 0
}

// Mortality draws the daily causes of death in a fixed order: background,
// temperature shock, senescence. It returns the terminal stage and true when
// the animal dies.
func Mortality(a *components.Animal, sp *components.AnimalSpecies, ph *components.Phenotype, env Environment, rng *rand.Rand) (components.LifeStage, bool) {
	if sp.BackgroundMortality > 0 && rng.Float64() < sp.BackgroundMortality {
		return components.Background, true
	}
	if sp.ShockTemperatureMax > sp.ShockTemperatureMin &&
		(env.Temperature < sp.ShockTemperatureMin || env.Temperature > sp.ShockTemperatureMax) {
		return components.Shocked, true
	}
	if longevity := ph.Trait(traits.Longevity); longevity > 0 && float64(a.AgeDays) > longevity {
		return components.Senesced, true
	}
	return a.Stage, false
}

// Activate runs the daily life-stage transitions of one animal and returns
// its next stage. Timers and counters on a are updated in place; the stage
// itself is left for the caller to change through the landscape index.
func Activate(a *components.Animal, sp *components.AnimalSpecies, ph *components.Phenotype, env Environment, rng *rand.Rand) components.LifeStage {
	next := a.Stage
	switch a.Stage {
	case components.Unborn:
		if IsReadyToBeBorn(a) {
			return components.Active
		}
		return next
	case components.Diapause:
		if IsReadyToResumeFromDiapauseOrIncreaseDiapauseTimeSteps(a, sp, env.Humidity) {
			next = components.Active
		}
	case components.Pupa:
		if TickPupa(a) {
			next = components.Active
		}
	case components.Handling:
		if TickHandling(a) {
			next = components.Active
		}
	case components.Satiated:
		next = components.Active
	case components.Active:
		if ShouldEnterDiapause(sp, env.Humidity) {
			a.DiapauseSteps = 0
			next = components.Diapause
		}
	}
	if a.Stage.IsTerminal() {
		return a.Stage
	}

	a.AgeDays++
	if stage, dead := Mortality(a, sp, ph, env, rng); dead {
		return stage
	}
	return next
}
