package components

import (
	"fmt"

	"github.com/pthm-cable/weaver/traits"
)

// Phenotype holds the genome of an animal and its trait values tuned to the
// temperature of its current cell.
type Phenotype struct {
	Genome      *traits.Genome
	Values      [traits.Count]float64
	Temperature float64 // temperature the values were tuned at
}

// NewPhenotype expresses the genome at the given temperature.
func NewPhenotype(g *traits.Genome, sp *AnimalSpecies, temperature float64) Phenotype {
	return Phenotype{Genome: g, Values: traits.Express(g, &sp.Sections, temperature), Temperature: temperature}
}

// Trait returns the tuned value of id.
func (p *Phenotype) Trait(id traits.ID) float64 {
	return p.Values[id]
}

// Tune re-expresses the genome at a new temperature.
func (p *Phenotype) Tune(sp *AnimalSpecies, temperature float64) {
	p.Values = traits.Express(p.Genome, &sp.Sections, temperature)
	p.Temperature = temperature
}

// EdibleKey identifies a kind of food: a resource species, or an animal
// species at one instar.
type EdibleKey struct {
	Resource bool
	Species  SpeciesID
	Instar   int
}

// MarshalText encodes the key for use as a JSON object key.
func (k EdibleKey) MarshalText() ([]byte, error) {
	kind := "a"
	if k.Resource {
		kind = "r"
	}
	return []byte(fmt.Sprintf("%s:%d:%d", kind, k.Species, k.Instar)), nil
}

// UnmarshalText decodes a key written by MarshalText.
func (k *EdibleKey) UnmarshalText(b []byte) error {
	var kind string
	var species, instar int
	if _, err := fmt.Sscanf(string(b), "%1s:%d:%d", &kind, &species, &instar); err != nil {
		return fmt.Errorf("parsing edible key %q: %w", string(b), err)
	}
	*k = EdibleKey{Resource: kind == "r", Species: SpeciesID(species), Instar: instar}
	return nil
}

// DietMemory keeps the recently experienced value of each kind of food.
type DietMemory struct {
	Experience map[EdibleKey]*RingBuffer[float64] `json:"experience"`
}

// NewDietMemory creates an empty memory.
func NewDietMemory() DietMemory {
	return DietMemory{Experience: make(map[EdibleKey]*RingBuffer[float64])}
}

// Record stores one experienced value for key.
func (m *DietMemory) Record(key EdibleKey, value float64, length int) {
	if m.Experience == nil {
		m.Experience = make(map[EdibleKey]*RingBuffer[float64])
	}
	buf, ok := m.Experience[key]
	if !ok {
		buf = NewRingBuffer[float64](length)
		m.Experience[key] = buf
	}
	buf.Push(value)
}

// Experienced returns the mean remembered value of key normalised by the
// best remembered food, and false when nothing is remembered about key.
func (m *DietMemory) Experienced(key EdibleKey) (float64, bool) {
	buf, ok := m.Experience[key]
	if !ok || buf.Len() == 0 {
		return 0, false
	}
	best := 0.0
	for _, b := range m.Experience {
		if v := b.Mean(); v > best {
			best = v
		}
	}
	if best <= 0 {
		return 0, true
	}
	return buf.Mean() / best, true
}
