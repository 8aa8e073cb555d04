package geometry

import (
	"math"

	"github.com/ctessum/geom"
)

// discSegments is the number of polygon edges used to approximate a disc.
const discSegments = 128

// Sphere is a disc in 2D and a ball in 3D.
type Sphere struct {
	Center Coordinate
	Radius float64
}

// Bounds returns the box enclosing the sphere.
func (s Sphere) Bounds() Box {
	return Box{Min: s.Center.Offset(-s.Radius), Max: s.Center.Offset(s.Radius)}
}

// CoverageOf returns the fraction of cell's volume inside the sphere.
//
// In 2D the disc is the regular discSegments-gon inscribed in the circle, so
// fractions are exactly additive over any partition of the cell.
func (s Sphere) CoverageOf(cell Box) float64 {
	if s.Radius <= 0 || cell.Volume() == 0 {
		return 0
	}
	if cell.MinDist(s.Center) >= s.Radius {
		return 0
	}
	if cell.Dims() == 2 {
		inradius := s.Radius * math.Cos(math.Pi/discSegments)
		if cell.MaxDist(s.Center) <= inradius {
			return 1
		}
		isect := s.polygon().Intersection(cell.geomBounds())
		if isect == nil {
			return 0
		}
		return clamp01(math.Abs(isect.Area()) / cell.Volume())
	}
	if cell.MaxDist(s.Center) <= s.Radius {
		return 1
	}
	return clamp01(ballBoxVolume(s.Center, s.Radius, cell) / cell.Volume())
}

// polygon returns the inscribed polygon approximating a 2D disc.
func (s Sphere) polygon() geom.Polygon {
	path := make(geom.Path, discSegments)
	for i := 0; i < discSegments; i++ {
		a := 2 * math.Pi * float64(i) / discSegments
		path[i] = geom.Point{
			X: s.Center.X[0] + s.Radius*math.Cos(a),
			Y: s.Center.X[1] + s.Radius*math.Sin(a),
		}
	}
	return geom.Polygon{path}
}

// Polygon is an arbitrary 2D region described by rings of vertices.
type Polygon struct {
	Rings [][]Coordinate
}

// NewPolygon creates a single-ring polygon.
func NewPolygon(vertices ...Coordinate) Polygon {
	return Polygon{Rings: [][]Coordinate{vertices}}
}

func (p Polygon) geom() geom.Polygon {
	out := make(geom.Polygon, len(p.Rings))
	for i, ring := range p.Rings {
		path := make(geom.Path, len(ring))
		for j, v := range ring {
			path[j] = geom.Point{X: v.X[0], Y: v.X[1]}
		}
		out[i] = path
	}
	return out
}

// Bounds returns the box enclosing the polygon.
func (p Polygon) Bounds() Box {
	b := p.geom().Bounds()
	return Box{
		Min: NewCoordinate(b.Min.X, b.Min.Y),
		Max: NewCoordinate(b.Max.X, b.Max.Y),
	}
}

// CoverageOf returns the fraction of a 2D cell inside the polygon.
func (p Polygon) CoverageOf(cell Box) float64 {
	if cell.Dims() != 2 || cell.Volume() == 0 {
		return 0
	}
	if !p.Bounds().Overlaps(cell) {
		return 0
	}
	isect := p.geom().Intersection(cell.geomBounds())
	if isect == nil {
		return 0
	}
	return clamp01(math.Abs(isect.Area()) / cell.Volume())
}
