package landscape

import (
	"github.com/mlange-42/ark/ecs"
	"github.com/pkg/errors"

	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/config"
	"github.com/pthm-cable/weaver/patch"
)

// PopulationCounts returns the number of indexed animals per bucket key.
func (l *Landscape) PopulationCounts() map[Key]int {
	counts := make(map[Key]int)
	l.Leaves(func(c *Cell) {
		c.Animals.Each(SearchParams{}, func(k Key, _ ecs.Entity) bool {
			counts[k]++
			return true
		})
	})
	return counts
}

// CountIndexed sweeps the tree and returns the number of indexed animals.
func (l *Landscape) CountIndexed() int {
	n := 0
	l.Leaves(func(c *Cell) { n += c.Animals.Len() })
	return n
}

// ResourceTotals returns the standing biomass of every resource species.
func (l *Landscape) ResourceTotals() []float64 {
	root := &l.cells[l.root]
	out := make([]float64, len(root.Resources))
	for i, r := range root.Resources {
		out[i] = r.Biomass
	}
	return out
}

// Cells returns the arena. Animal indexes are not part of the copy.
func (l *Landscape) Cells() []Cell {
	out := make([]Cell, len(l.cells))
	for i, c := range l.cells {
		c.Animals = nil
		c.Children = append([]CellID(nil), c.Children...)
		c.Habitat.Excluded = append([]bool(nil), c.Habitat.Excluded...)
		c.Resources = append([]CellResource(nil), c.Resources...)
		out[i] = c
	}
	return out
}

// NewFromCells rebuilds a landscape from a saved arena. Cell 0 must be the
// root. Leaves get empty animal indexes; callers re-index animals with
// RestoreAnimal in their saved order.
func NewFromCells(cfg *config.Config, registry *components.Registry, world *ecs.World, cells []Cell, day int, sources map[int]*patch.MoistureSource) (*Landscape, error) {
	if len(cells) == 0 || cells[0].Parent != NoCell {
		return nil, errors.New("saved arena has no root at index 0")
	}
	l := newEmpty(cfg, registry, world)
	l.cells = cells
	l.root = 0
	l.day = day
	for id, src := range sources {
		l.sources[id] = src
	}
	for i := range l.cells {
		c := &l.cells[i]
		if c.ID != CellID(i) {
			return nil, errors.Errorf("cell %d stored at index %d", c.ID, i)
		}
		if c.IsLeaf() {
			c.Animals = NewAnimalIndex(l.shape)
		}
	}
	return l, nil
}
