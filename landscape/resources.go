package landscape

import (
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
)

// Update advances the environment to day: moisture cycles are read at every
// leaf, resources grow, and branch summaries are rebuilt bottom-up.
func (l *Landscape) Update(day int) {
	l.day = day
	l.update(l.root)
}

func (l *Landscape) update(id CellID) {
	if l.cells[id].Kind == KindBranch {
		for _, child := range l.cells[id].Children {
			l.update(child)
		}
		l.summarize(id)
		return
	}
	c := &l.cells[id]
	if src := c.Moisture.Source; src != nil {
		c.Moisture.Temperature = src.Temperature(l.day)
		c.Moisture.Humidity = src.Humidity(l.day)
	}
	l.grow(c)
}

// grow applies one day of logistic growth to every resource of a leaf.
func (l *Landscape) grow(c *Cell) {
	if c.Obstacle.Full {
		return
	}
	for i := range c.Resources {
		r := &c.Resources[i]
		k := l.carryingCapacity(c, r)
		if k <= 0 {
			r.Biomass = 0
			continue
		}
		sp := l.registry.Resource(components.SpeciesID(i))
		rate := sp.GrowthRate * sp.HumidityFactor(c.Moisture.Humidity)
		r.Biomass += rate * r.Biomass * (1 - r.Biomass/k)
		r.Biomass = clamp(r.Biomass, 0, k)
	}
}

// carryingCapacity caps the patch capacity by the moisture regime's density limit.
func (l *Landscape) carryingCapacity(c *Cell, r *CellResource) float64 {
	k := r.Capacity
	if src := c.Moisture.Source; src != nil && src.MaxResourceCapacityDensity > 0 {
		k = min(k, src.MaxResourceCapacityDensity*c.Area.Volume())
	}
	return k
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SubstractBiomassUp removes amount of a resource at a cell and at every
// ancestor summary, each exactly once. Values clamp at zero.
func (l *Landscape) SubstractBiomassUp(id CellID, species components.SpeciesID, amount float64) {
	for cur := id; cur != NoCell; cur = l.cells[cur].Parent {
		r := &l.cells[cur].Resources[species]
		r.Biomass = max(0, r.Biomass-amount)
	}
}

// SetCurrentTotalDryMass overwrites the biomass of a leaf resource. Branch
// summaries are derived and cannot be set.
func (l *Landscape) SetCurrentTotalDryMass(id CellID, species components.SpeciesID, mass float64) error {
	c := &l.cells[id]
	if c.Kind == KindBranch {
		return errors.Wrapf(ErrNotSupported, "set biomass of cell %s", c.Pos)
	}
	r := &c.Resources[species]
	r.Biomass = clamp(mass, 0, r.Capacity)
	l.summarizeUp(id)
	return nil
}
