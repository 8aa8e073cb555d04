// Package components defines the ECS components of an animal and the
// immutable species definitions they refer to.
package components

import (
	"fmt"

	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/traits"
)

// SpeciesID indexes a species within its registry list. Animal and resource
// species use separate id spaces.
type SpeciesID uint16

// Exponents weights the normalised factors of a probability product.
type Exponents struct {
	SizeRatio    float64
	SpeedRatio   float64
	MassRatioPDF float64
}

// Prior is a normal distribution over log10(prey mass / hunter mass).
type Prior struct {
	Mean float64
	SD   float64
}

// Edible is one entry of a species diet.
type Edible struct {
	Resource      bool
	Species       SpeciesID
	Instar        int // 0 = any instar
	Preference    float64
	Profitability float64
}

// Matches reports whether the entry covers the given target.
func (e Edible) Matches(resource bool, species SpeciesID, instar int) bool {
	return e.Resource == resource && e.Species == species && (e.Instar == 0 || e.Instar == instar)
}

// AnimalSpecies holds the biological constants of an animal species.
// Species are immutable for a run; pointer identity is equality.
type AnimalSpecies struct {
	ID                   SpeciesID
	Name                 string
	Instars              int
	InstarMass           []float64
	PupaInstar           int
	MaturityInstar       int
	HuntingMode          HuntingMode
	Parthenogenetic      bool
	MaleRatio            float64
	ClutchSize           int
	MutationSigma        float64
	ExperienceInfluence  float64
	MemoryLength         int
	HandlingDays         int
	DiapauseHumidity     float64
	BackgroundMortality  float64
	ShockTemperatureMin  float64
	ShockTemperatureMax  float64
	StarvationFraction   float64
	Q10                  float64
	ReferenceTemperature float64
	MetabolicExponent    float64
	CarryingDensity      float64
	CellDepth            []int
	EncounterExponents   Exponents
	PredationExponents   Exponents
	MassRatioPrior       Prior
	TraitRanges          traits.Ranges
	Sections             traits.Sections
	Diet                 []Edible
}

// TargetDepth returns the tree depth animals of the given instar live at.
func (s *AnimalSpecies) TargetDepth(instar, maxDepth int) int {
	if instar >= 1 && instar <= len(s.CellDepth) {
		if d := s.CellDepth[instar-1]; d > 0 && d < maxDepth {
			return d
		}
	}
	return maxDepth
}

// Eats returns the diet entry covering the target, if any.
func (s *AnimalSpecies) Eats(resource bool, species SpeciesID, instar int) (Edible, bool) {
	for _, e := range s.Diet {
		if e.Matches(resource, species, instar) {
			return e, true
		}
	}
	return Edible{}, false
}

// MinimumMass returns the dry mass below which an animal of the instar starves.
func (s *AnimalSpecies) MinimumMass(instar int) float64 {
	if instar < 1 || instar > len(s.InstarMass) {
		return 0
	}
	return s.StarvationFraction * s.InstarMass[instar-1]
}

// AdultMass is the dry mass of a fully grown animal.
func (s *AnimalSpecies) AdultMass() float64 {
	if len(s.InstarMass) == 0 {
		return 0
	}
	return s.InstarMass[len(s.InstarMass)-1]
}

// IsMature reports whether the instar can reproduce.
func (s *AnimalSpecies) IsMature(instar int) bool {
	return instar >= s.MaturityInstar
}

// ResourceSpecies holds the constants of a basal resource.
type ResourceSpecies struct {
	ID                   SpeciesID
	Name                 string
	GrowthRate           float64
	MinHumidity          float64
	OptimalHumidity      float64
	MinimumEdibleBiomass float64
}

// HumidityFactor maps relative humidity onto a growth multiplier in [0,1].
func (s *ResourceSpecies) HumidityFactor(rh float64) float64 {
	if s.OptimalHumidity <= s.MinHumidity {
		if rh > s.MinHumidity {
			return 1
		}
		return 0
	}
	f := (rh - s.MinHumidity) / (s.OptimalHumidity - s.MinHumidity)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// AnimalSpeciesFromConfig converts a species section into its runtime form.
func AnimalSpeciesFromConfig(id SpeciesID, sc *config.AnimalSpeciesConfig, cfg *config.Config) (*AnimalSpecies, error) {
	mode, err := ParseHuntingMode(sc.HuntingMode)
	if err != nil {
		return nil, fmt.Errorf("species %s: %w", sc.Name, err)
	}
	sp := &AnimalSpecies{
		ID:                   id,
		Name:                 sc.Name,
		Instars:              sc.Instars,
		InstarMass:           append([]float64(nil), sc.InstarMass...),
		PupaInstar:           sc.PupaInstar,
		MaturityInstar:       sc.MaturityInstar,
		HuntingMode:          mode,
		Parthenogenetic:      sc.Parthenogenetic,
		MaleRatio:            sc.MaleRatio,
		ClutchSize:           sc.ClutchSize,
		MutationSigma:        sc.MutationSigma,
		ExperienceInfluence:  sc.ExperienceInfluence,
		MemoryLength:         sc.MemoryLength,
		HandlingDays:         sc.HandlingDays,
		DiapauseHumidity:     sc.DiapauseHumidity,
		BackgroundMortality:  sc.BackgroundMortality,
		ShockTemperatureMin:  sc.ShockTemperatureMin,
		ShockTemperatureMax:  sc.ShockTemperatureMax,
		StarvationFraction:   sc.StarvationFraction,
		Q10:                  sc.Q10,
		ReferenceTemperature: sc.ReferenceTemperature,
		MetabolicExponent:    sc.MetabolicExponent,
		CarryingDensity:      sc.CarryingDensity,
		CellDepth:            append([]int(nil), sc.CellDepth...),
		EncounterExponents:   Exponents(sc.EncounterExponents),
		PredationExponents:   Exponents(sc.PredationExponents),
		MassRatioPrior:       Prior(sc.MassRatioPrior),
	}
	for name, tc := range sc.Traits {
		tid, err := traits.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("species %s: %w", sc.Name, err)
		}
		sp.TraitRanges[tid] = traits.Range{Min: tc.Min, Max: tc.Max}
		if tc.Temperature != nil {
			sp.Sections[tid] = *tc.Temperature
		}
	}
	for _, ec := range sc.Diet {
		e := Edible{Instar: ec.Instar, Preference: ec.Preference, Profitability: ec.Profitability}
		if ec.Resource != "" {
			e.Resource = true
			e.Species = SpeciesID(cfg.Derived.ResourceIndex[ec.Resource])
		} else {
			e.Species = SpeciesID(cfg.Derived.AnimalIndex[ec.Animal])
		}
		sp.Diet = append(sp.Diet, e)
	}
	return sp, nil
}

// ResourceSpeciesFromConfig converts a resource section into its runtime form.
func ResourceSpeciesFromConfig(id SpeciesID, rc *config.ResourceSpeciesConfig) *ResourceSpecies {
	return &ResourceSpecies{
		ID:                   id,
		Name:                 rc.Name,
		GrowthRate:           rc.GrowthRate,
		MinHumidity:          rc.MinHumidity,
		OptimalHumidity:      rc.OptimalHumidity,
		MinimumEdibleBiomass: rc.MinimumEdibleBiomass,
	}
}
