package landscape

import (
	"github.com/pthm-cable/weaver/components"
	"github.com/pthm-cable/weaver/geometry"
	"github.com/pthm-cable/weaver/patch"
)

// CellID addresses a cell in the landscape arena. Ids never move.
type CellID int32

// NoCell is the parent of the root.
const NoCell CellID = -1

// Kind discriminates the three cell variants.
type Kind uint8

const (
	// KindLeaf is a finest-resolution cell.
	KindLeaf Kind = iota
	// KindBranch has 2^D children and holds summaries of them.
	KindBranch
	// KindTemporalLeaf is a coarse placeholder promoted on demand.
	KindTemporalLeaf
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindBranch:
		return "branch"
	case KindTemporalLeaf:
		return "temporal_leaf"
	}
	return "unknown"
}

// ObstacleElement flags impassable ground. Full implies Obstacle.
type ObstacleElement struct {
	Obstacle bool
	Full     bool
	Priority int
}

// MoistureElement is the moisture regime of a cell. Temperature and Humidity
// are the values of the current day; on a branch they are area-weighted means.
type MoistureElement struct {
	Source      *patch.MoistureSource
	Temperature float64
	Humidity    float64
	Priority    int
}

// HabitatElement records which animal species are excluded from a cell.
// On a branch a species is excluded only if every child excludes it.
type HabitatElement struct {
	Excluded []bool
	Priority int
}

// CellResource is the standing biomass of one resource species. Values are
// totals over the cell, so a coarse cell holds the sum of the finest cells it
// spans.
type CellResource struct {
	Biomass       float64
	Capacity      float64
	MinimumEdible float64
	Priority      int
}

// Available returns the grazable biomass. Biomass below the edible floor is
// an ungrazable residual.
func (r *CellResource) Available() float64 {
	if r.Biomass < r.MinimumEdible {
		return 0
	}
	return r.Biomass - r.MinimumEdible
}

// Cell is one node of the spatial tree.
type Cell struct {
	ID       CellID
	Kind     Kind
	Parent   CellID
	Children []CellID
	Pos      geometry.Point
	Area     geometry.Box

	Obstacle  ObstacleElement
	Moisture  MoistureElement
	Habitat   HabitatElement
	Resources []CellResource

	// Animals is nil on branches.
	Animals *AnimalIndex
}

// IsLeaf reports whether the cell can hold animals.
func (c *Cell) IsLeaf() bool {
	return c.Kind != KindBranch
}

// HabitableFor reports whether animals of the species may live in the cell.
func (c *Cell) HabitableFor(species components.SpeciesID) bool {
	if c.Obstacle.Full {
		return false
	}
	return int(species) >= len(c.Habitat.Excluded) || !c.Habitat.Excluded[species]
}

// inherit copies the environmental state of parent into a child covering
// 1/share of its area.
func (c *Cell) inherit(parent *Cell, share float64) {
	c.Obstacle = parent.Obstacle
	c.Moisture = parent.Moisture
	c.Habitat = HabitatElement{
		Excluded: append([]bool(nil), parent.Habitat.Excluded...),
		Priority: parent.Habitat.Priority,
	}
	c.Resources = make([]CellResource, len(parent.Resources))
	for i, r := range parent.Resources {
		c.Resources[i] = CellResource{
			Biomass:       r.Biomass / share,
			Capacity:      r.Capacity / share,
			MinimumEdible: r.MinimumEdible / share,
			Priority:      r.Priority,
		}
	}
}
