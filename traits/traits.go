// Package traits defines the heritable quantitative traits of an animal and the
// minimal genome the simulation core breeds and reads phenotype values from.
package traits

import (
	"fmt"
	"math/rand/v2"
)

// ID identifies a quantitative trait.
type ID uint8

const (
	Voracity ID = iota // daily intake capacity per unit dry mass
	SearchRadius
	Speed
	AssimilationEfficiency
	MetabolicRate
	GrowthRate
	EggDevelopmentTime // days
	PupaPeriod         // days
	Longevity          // days
	EggMassFraction    // egg dry mass relative to the mother
	ReproductionMassFraction

	Count
)

var names = [Count]string{
	"voracity",
	"search_radius",
	"speed",
	"assimilation_efficiency",
	"metabolic_rate",
	"growth_rate",
	"egg_development_time",
	"pupa_period",
	"longevity",
	"egg_mass_fraction",
	"reproduction_mass_fraction",
}

func (id ID) String() string {
	if id < Count {
		return names[id]
	}
	return fmt.Sprintf("trait(%d)", uint8(id))
}

// Parse returns the trait with the given name.
func Parse(name string) (ID, error) {
	for i, n := range names {
		if n == name {
			return ID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown trait %q", name)
}

// Range bounds the genetically possible values of one trait.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Clamp limits v to the range.
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Ranges holds one range per trait.
type Ranges [Count]Range

// Genome carries the genetic value of every trait.
type Genome struct {
	Values [Count]float64 `json:"values"`
}

// Trait returns the genetic value of id.
func (g *Genome) Trait(id ID) float64 {
	return g.Values[id]
}

// Random creates a de novo genome with values uniform within ranges.
func Random(ranges *Ranges, rng *rand.Rand) *Genome {
	g := &Genome{}
	for i := range g.Values {
		r := ranges[i]
		g.Values[i] = r.Min + rng.Float64()*(r.Max-r.Min)
	}
	return g
}

// Breed creates an offspring genome: midparent value plus gaussian mutation
// proportional to the trait range, clamped to the range. A nil partner breeds
// clonally.
func (g *Genome) Breed(partner *Genome, ranges *Ranges, rng *rand.Rand, sigma float64) *Genome {
	child := &Genome{}
	for i := range child.Values {
		v := g.Values[i]
		if partner != nil {
			v = (v + partner.Values[i]) / 2
		}
		r := ranges[i]
		v += rng.NormFloat64() * sigma * (r.Max - r.Min)
		child.Values[i] = r.Clamp(v)
	}
	return child
}
