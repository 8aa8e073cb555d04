// Package geometry provides grid points, continuous coordinates, boxes and the
// coverage tests used to decide how much of a terrain cell a patch or a search
// ring overlaps.
package geometry

import (
	"fmt"
	"math"
	"strings"
)

// MaxDims is the highest supported landscape dimensionality.
const MaxDims = 3

// Point is an integer grid coordinate at a given tree depth.
// Depth 0 is the root; every level halves the cell size along each axis.
type Point struct {
	Coords [MaxDims]int
	Dims   int
	Depth  int
}

// NewPoint creates a point at depth with the given axis coordinates.
func NewPoint(depth int, coords ...int) Point {
	p := Point{Dims: len(coords), Depth: depth}
	copy(p.Coords[:], coords)
	return p
}

// Ancestor returns the point containing p at a shallower depth.
// Requesting a depth at or below p's own depth returns p unchanged.
func (p Point) Ancestor(depth int) Point {
	if depth >= p.Depth {
		return p
	}
	if depth < 0 {
		depth = 0
	}
	shift := uint(p.Depth - depth)
	a := Point{Dims: p.Dims, Depth: depth}
	for i := 0; i < p.Dims; i++ {
		a.Coords[i] = p.Coords[i] >> shift
	}
	return a
}

// Parent returns the ancestor one level up.
func (p Point) Parent() Point {
	return p.Ancestor(p.Depth - 1)
}

// ChildIndex returns the position of p inside its parent, one bit per axis.
func (p Point) ChildIndex() int {
	idx := 0
	for i := 0; i < p.Dims; i++ {
		idx |= (p.Coords[i] & 1) << uint(i)
	}
	return idx
}

// Child returns the point one level down at the given child index.
func (p Point) Child(index int) Point {
	c := Point{Dims: p.Dims, Depth: p.Depth + 1}
	for i := 0; i < p.Dims; i++ {
		c.Coords[i] = p.Coords[i]<<1 | (index>>uint(i))&1
	}
	return c
}

// Equal reports whether both points name the same cell.
func (p Point) Equal(o Point) bool {
	return p == o
}

func (p Point) String() string {
	parts := make([]string, p.Dims)
	for i := 0; i < p.Dims; i++ {
		parts[i] = fmt.Sprint(p.Coords[i])
	}
	return fmt.Sprintf("(%s)@%d", strings.Join(parts, ","), p.Depth)
}

// Coordinate is a continuous position in landscape units.
type Coordinate struct {
	X    [MaxDims]float64
	Dims int
}

// NewCoordinate creates a coordinate from its axis values.
func NewCoordinate(xs ...float64) Coordinate {
	c := Coordinate{Dims: len(xs)}
	copy(c.X[:], xs)
	return c
}

// Dist returns the euclidean distance between c and o.
func (c Coordinate) Dist(o Coordinate) float64 {
	var sum float64
	for i := 0; i < c.Dims; i++ {
		d := c.X[i] - o.X[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Offset returns c shifted by d along every axis.
func (c Coordinate) Offset(d float64) Coordinate {
	r := c
	for i := 0; i < c.Dims; i++ {
		r.X[i] += d
	}
	return r
}

func (c Coordinate) String() string {
	parts := make([]string, c.Dims)
	for i := 0; i < c.Dims; i++ {
		parts[i] = fmt.Sprintf("%.3f", c.X[i])
	}
	return "(" + strings.Join(parts, ",") + ")"
}
