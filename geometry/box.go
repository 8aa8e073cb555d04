package geometry

import (
	"math"

	"github.com/ctessum/geom"
)

// Shape is any region a patch or search can cover.
type Shape interface {
	// Bounds returns the axis-aligned box enclosing the shape.
	Bounds() Box
	// CoverageOf returns the fraction of cell's volume that lies inside the shape.
	CoverageOf(cell Box) float64
}

// Box is an axis-aligned hyper-rectangle. Min is inclusive, Max exclusive.
type Box struct {
	Min, Max Coordinate
}

// NewBox creates a box from two opposite corners.
func NewBox(min, max Coordinate) Box {
	return Box{Min: min, Max: max}
}

// Dims returns the dimensionality of the box.
func (b Box) Dims() int {
	return b.Min.Dims
}

// Bounds returns the box itself.
func (b Box) Bounds() Box {
	return b
}

// Size returns the extent along axis i.
func (b Box) Size(i int) float64 {
	return b.Max.X[i] - b.Min.X[i]
}

// Volume returns the area (2D) or volume (3D) of the box.
func (b Box) Volume() float64 {
	v := 1.0
	for i := 0; i < b.Dims(); i++ {
		s := b.Size(i)
		if s <= 0 {
			return 0
		}
		v *= s
	}
	return v
}

// Overlaps reports whether the boxes share a region of positive volume.
func (b Box) Overlaps(o Box) bool {
	for i := 0; i < b.Dims(); i++ {
		if b.Max.X[i] <= o.Min.X[i] || o.Max.X[i] <= b.Min.X[i] {
			return false
		}
	}
	return true
}

// Intersect returns the common region of both boxes.
func (b Box) Intersect(o Box) (Box, bool) {
	if !b.Overlaps(o) {
		return Box{}, false
	}
	r := b
	for i := 0; i < b.Dims(); i++ {
		r.Min.X[i] = math.Max(b.Min.X[i], o.Min.X[i])
		r.Max.X[i] = math.Min(b.Max.X[i], o.Max.X[i])
	}
	return r, true
}

// Contains reports whether c lies inside the half-open box.
func (b Box) Contains(c Coordinate) bool {
	for i := 0; i < b.Dims(); i++ {
		if c.X[i] < b.Min.X[i] || c.X[i] >= b.Max.X[i] {
			return false
		}
	}
	return true
}

// ContainsBox reports whether o lies entirely inside b.
func (b Box) ContainsBox(o Box) bool {
	for i := 0; i < b.Dims(); i++ {
		if o.Min.X[i] < b.Min.X[i] || o.Max.X[i] > b.Max.X[i] {
			return false
		}
	}
	return true
}

// Center returns the midpoint of the box.
func (b Box) Center() Coordinate {
	c := b.Min
	for i := 0; i < b.Dims(); i++ {
		c.X[i] = (b.Min.X[i] + b.Max.X[i]) / 2
	}
	return c
}

// Corners returns the 2^D corner coordinates.
func (b Box) Corners() []Coordinate {
	n := 1 << uint(b.Dims())
	out := make([]Coordinate, n)
	for k := 0; k < n; k++ {
		c := b.Min
		for i := 0; i < b.Dims(); i++ {
			if k>>uint(i)&1 == 1 {
				c.X[i] = b.Max.X[i]
			}
		}
		out[k] = c
	}
	return out
}

// MinDist returns the distance from c to the closest point of the box.
func (b Box) MinDist(c Coordinate) float64 {
	var sum float64
	for i := 0; i < b.Dims(); i++ {
		var d float64
		switch {
		case c.X[i] < b.Min.X[i]:
			d = b.Min.X[i] - c.X[i]
		case c.X[i] > b.Max.X[i]:
			d = c.X[i] - b.Max.X[i]
		}
		sum += d * d
	}
	return math.Sqrt(sum)
}

// MaxDist returns the distance from c to the farthest corner of the box.
func (b Box) MaxDist(c Coordinate) float64 {
	var sum float64
	for i := 0; i < b.Dims(); i++ {
		d := math.Max(math.Abs(c.X[i]-b.Min.X[i]), math.Abs(c.X[i]-b.Max.X[i]))
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CoverageOf returns the fraction of cell's volume inside b.
func (b Box) CoverageOf(cell Box) float64 {
	vol := cell.Volume()
	if vol == 0 {
		return 0
	}
	isect, ok := b.Intersect(cell)
	if !ok {
		return 0
	}
	return clamp01(isect.Volume() / vol)
}

// geomBounds converts a 2D box to a ctessum/geom polygon.
func (b Box) geomBounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.Min.X[0], Y: b.Min.X[1]},
		Max: geom.Point{X: b.Max.X[0], Y: b.Max.X[1]},
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
