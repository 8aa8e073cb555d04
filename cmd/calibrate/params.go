package main

import (
	"math"

	"github.com/pthm-cable/weaver/config"
)

// ParamSpec defines a single calibrated parameter.
type ParamSpec struct {
	Name    string  // species.parameter
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Value in the base config
	Integer bool    // rounded before use

	get func(cfg *config.Config) float64
	set func(cfg *config.Config, v float64)
}

// ParamVector holds the set of all calibrated parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// traitMax exposes the upper bound of a trait range. Lowering it below the
// minimum drags the minimum along.
func traitMax(species int, trait string) (func(*config.Config) float64, func(*config.Config, float64)) {
	get := func(cfg *config.Config) float64 {
		return cfg.AnimalSpecies[species].Traits[trait].Max
	}
	set := func(cfg *config.Config, v float64) {
		t := cfg.AnimalSpecies[species].Traits[trait]
		t.Max = v
		t.Min = math.Min(t.Min, v)
		cfg.AnimalSpecies[species].Traits[trait] = t
	}
	return get, set
}

// NewParamVector builds the parameter set for the species of a config:
// mortality, clutch size and voracity of every animal species and the growth
// rate of every resource.
func NewParamVector(base *config.Config) *ParamVector {
	pv := &ParamVector{}
	for i := range base.AnimalSpecies {
		name := base.AnimalSpecies[i].Name
		pv.add(ParamSpec{
			Name: name + ".background_mortality", Min: 0, Max: 0.05,
			get: func(cfg *config.Config) float64 { return cfg.AnimalSpecies[i].BackgroundMortality },
			set: func(cfg *config.Config, v float64) { cfg.AnimalSpecies[i].BackgroundMortality = v },
		}, base)
		pv.add(ParamSpec{
			Name: name + ".clutch_size", Min: 1, Max: 20, Integer: true,
			get: func(cfg *config.Config) float64 { return float64(cfg.AnimalSpecies[i].ClutchSize) },
			set: func(cfg *config.Config, v float64) { cfg.AnimalSpecies[i].ClutchSize = int(v) },
		}, base)
		get, set := traitMax(i, "voracity")
		pv.add(ParamSpec{Name: name + ".voracity_max", Min: 0.05, Max: 2, get: get, set: set}, base)
		get, set = traitMax(i, "search_radius")
		pv.add(ParamSpec{Name: name + ".search_radius_max", Min: 0.5, Max: 8, get: get, set: set}, base)
	}
	for j := range base.ResourceSpecies {
		pv.add(ParamSpec{
			Name: base.ResourceSpecies[j].Name + ".growth_rate", Min: 0.01, Max: 1.5,
			get: func(cfg *config.Config) float64 { return cfg.ResourceSpecies[j].GrowthRate },
			set: func(cfg *config.Config, v float64) { cfg.ResourceSpecies[j].GrowthRate = v },
		}, base)
	}
	return pv
}

// add appends a spec, widening its bounds so the base value lies inside.
func (pv *ParamVector) add(spec ParamSpec, base *config.Config) {
	spec.Default = spec.get(base)
	spec.Min = math.Min(spec.Min, spec.Default)
	spec.Max = math.Max(spec.Max, spec.Default)
	if spec.Max == spec.Min {
		spec.Max = spec.Min + 1
	}
	pv.Specs = append(pv.Specs, spec)
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds and integers are whole.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := math.Max(spec.Min, math.Min(spec.Max, v[i]))
		if spec.Integer {
			val = math.Round(val)
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig writes parameter values into a config.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		pv.Specs[i].set(cfg, v)
	}
}

// ExtractFromConfig reads current parameter values from a config.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = spec.get(cfg)
	}
	return out
}
