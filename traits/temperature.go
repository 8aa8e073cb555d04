package traits

import (
	"fmt"
	"math"
)

// boltzmann is the Boltzmann constant in eV/K.
const boltzmann = 8.617333262e-5

// kelvin converts degrees Celsius to Kelvin.
func kelvin(c float64) float64 { return c + 273.15 }

// SectionKind discriminates the temperature-dependence variants.
type SectionKind uint8

const (
	SectionNone SectionKind = iota
	SectionPawar
	SectionTempSizeRule
)

var sectionNames = map[SectionKind]string{
	SectionNone:         "none",
	SectionPawar:        "pawar",
	SectionTempSizeRule: "temp_size_rule",
}

func (k SectionKind) String() string {
	if n, ok := sectionNames[k]; ok {
		return n
	}
	return fmt.Sprintf("section(%d)", uint8(k))
}

// MarshalText encodes the kind by name.
func (k SectionKind) MarshalText() ([]byte, error) {
	n, ok := sectionNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown temperature section kind %d", uint8(k))
	}
	return []byte(n), nil
}

// UnmarshalText decodes the kind by name.
func (k *SectionKind) UnmarshalText(b []byte) error {
	for kind, n := range sectionNames {
		if n == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown temperature section kind %q", string(b))
}

// PawarParams is the unimodal Boltzmann-Arrhenius response with high
// temperature deactivation.
type PawarParams struct {
	ActivationEnergy     float64 `yaml:"activation_energy" json:"activation_energy"`
	DeactivationEnergy   float64 `yaml:"deactivation_energy" json:"deactivation_energy"`
	ReferenceTemperature float64 `yaml:"reference_temperature" json:"reference_temperature"`
	OptimalTemperature   float64 `yaml:"optimal_temperature" json:"optimal_temperature"`
}

// TempSizeRuleParams is a linear response around a reference temperature.
type TempSizeRuleParams struct {
	ReferenceTemperature float64 `yaml:"reference_temperature" json:"reference_temperature"`
	Coefficient          float64 `yaml:"coefficient" json:"coefficient"`
}

// TemperatureSection is the temperature dependence of one trait. Exactly the
// payload matching Kind is set.
type TemperatureSection struct {
	Kind         SectionKind         `yaml:"kind" json:"kind"`
	Pawar        *PawarParams        `yaml:"pawar,omitempty" json:"pawar,omitempty"`
	TempSizeRule *TempSizeRuleParams `yaml:"temp_size_rule,omitempty" json:"temp_size_rule,omitempty"`
}

// Validate checks that the payload matches the discriminant.
func (s TemperatureSection) Validate() error {
	switch s.Kind {
	case SectionNone:
		return nil
	case SectionPawar:
		if s.Pawar == nil {
			return fmt.Errorf("pawar section without parameters")
		}
	case SectionTempSizeRule:
		if s.TempSizeRule == nil {
			return fmt.Errorf("temp_size_rule section without parameters")
		}
	default:
		return fmt.Errorf("unknown temperature section kind %d", uint8(s.Kind))
	}
	return nil
}

// Apply returns value adjusted for the given temperature in Celsius.
func (s TemperatureSection) Apply(value, temperature float64) float64 {
	switch s.Kind {
	case SectionPawar:
		if s.Pawar == nil {
			return value
		}
		p := s.Pawar
		t := kelvin(temperature)
		v := value * math.Exp(p.ActivationEnergy/boltzmann*(1/kelvin(p.ReferenceTemperature)-1/t))
		if p.DeactivationEnergy > p.ActivationEnergy {
			ratio := p.ActivationEnergy / (p.DeactivationEnergy - p.ActivationEnergy)
			v /= 1 + ratio*math.Exp(p.DeactivationEnergy/boltzmann*(1/kelvin(p.OptimalTemperature)-1/t))
		}
		return v
	case SectionTempSizeRule:
		if s.TempSizeRule == nil {
			return value
		}
		r := s.TempSizeRule
		return math.Max(0, value*(1+r.Coefficient*(temperature-r.ReferenceTemperature)))
	}
	return value
}

// Sections holds the temperature dependence of every trait.
type Sections [Count]TemperatureSection

// Express tunes a genome into phenotype values at the given temperature.
func Express(g *Genome, sections *Sections, temperature float64) [Count]float64 {
	var out [Count]float64
	for i := range out {
		v := g.Values[i]
		if sections != nil {
			v = sections[i].Apply(v, temperature)
		}
		out[i] = v
	}
	return out
}
