package landscape

import "github.com/pthm-cable/weaver/geometry"

// RadiusCell is one cell reached by a radius search.
type RadiusCell struct {
	Cell     CellID
	Coverage geometry.Coverage
	Fraction float64
}

// Ring returns a search area of the landscape's ring mode.
func (l *Landscape) Ring(center geometry.Coordinate, radius float64) geometry.RingModel {
	m := geometry.NewRingModel(center, radius)
	m.Mode = l.ringMode
	return m
}

// RadiusTerrainCells returns the cells touched by ring, resolved at depth or
// at any shallower leaf. The sum of Fraction times cell volume does not depend
// on how far the tree has been subdivided.
func (l *Landscape) RadiusTerrainCells(ring geometry.RingModel, depth int) []RadiusCell {
	var out []RadiusCell
	l.radius(l.root, ring, depth, &out)
	return out
}

func (l *Landscape) radius(id CellID, ring geometry.RingModel, depth int, out *[]RadiusCell) {
	c := &l.cells[id]
	if !ring.Overlaps(c.Area) {
		return
	}
	if c.Kind != KindBranch || c.Pos.Depth >= depth {
		f := ring.CoverageOf(c.Area)
		if cov := geometry.Classify(f); cov != geometry.CoverageNone {
			*out = append(*out, RadiusCell{Cell: id, Coverage: cov, Fraction: f})
		}
		return
	}
	for _, child := range c.Children {
		l.radius(child, ring, depth, out)
	}
}
