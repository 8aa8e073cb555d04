package geometry

import "math"

// Coverage classifies how much of a cell a shape overlaps.
type Coverage uint8

const (
	CoverageNone Coverage = iota
	CoveragePartial
	CoverageOver50Percent
	CoverageFull
)

// coverageEpsilon absorbs floating point noise in area fractions.
const coverageEpsilon = 1e-9

// Classify maps a coverage fraction onto its class.
func Classify(fraction float64) Coverage {
	switch {
	case fraction <= coverageEpsilon:
		return CoverageNone
	case fraction >= 1-coverageEpsilon:
		return CoverageFull
	case fraction >= 0.5:
		return CoverageOver50Percent
	default:
		return CoveragePartial
	}
}

// AtLeastOver50 reports whether the class is Over50Percent or Full.
func (c Coverage) AtLeastOver50() bool {
	return c >= CoverageOver50Percent
}

func (c Coverage) String() string {
	switch c {
	case CoverageNone:
		return "none"
	case CoveragePartial:
		return "partial"
	case CoverageOver50Percent:
		return "over50"
	case CoverageFull:
		return "full"
	}
	return "unknown"
}

// Ring is a circular (or annular, when InnerRadius > 0) search area.
type Ring struct {
	Center      Coordinate
	Radius      float64
	InnerRadius float64
}

// RingMode selects how a Ring is tested against cells.
type RingMode uint8

const (
	// ModeCircular uses the true circle/annulus.
	ModeCircular RingMode = iota
	// ModeBoundingBox uses the axis-aligned box around the circle.
	ModeBoundingBox
)

// RingModel is a Ring together with the way its area is approximated.
type RingModel struct {
	Ring
	Mode RingMode
}

// NewRingModel creates a circular search area of the given radius.
func NewRingModel(center Coordinate, radius float64) RingModel {
	return RingModel{Ring: Ring{Center: center, Radius: radius}}
}

// Bounds returns the box enclosing the outer radius.
func (m RingModel) Bounds() Box {
	return Sphere{Center: m.Center, Radius: m.Radius}.Bounds()
}

// innerBounds returns the box of the inner radius.
func (m RingModel) innerBounds() Box {
	return Sphere{Center: m.Center, Radius: m.InnerRadius}.Bounds()
}

// CoverageOf returns the fraction of cell inside the ring.
func (m RingModel) CoverageOf(cell Box) float64 {
	var outer, inner float64
	switch m.Mode {
	case ModeBoundingBox:
		outer = m.Bounds().CoverageOf(cell)
		if m.InnerRadius > 0 {
			inner = m.innerBounds().CoverageOf(cell)
		}
	default:
		outer = Sphere{Center: m.Center, Radius: m.Radius}.CoverageOf(cell)
		if m.InnerRadius > 0 {
			inner = Sphere{Center: m.Center, Radius: m.InnerRadius}.CoverageOf(cell)
		}
	}
	return math.Max(0, outer-inner)
}

// Overlaps reports whether the ring can touch the cell at all.
func (m RingModel) Overlaps(cell Box) bool {
	if !m.Bounds().Overlaps(cell) {
		return false
	}
	if m.Mode == ModeCircular && cell.MinDist(m.Center) >= m.Radius {
		return false
	}
	if m.InnerRadius > 0 && m.Mode == ModeBoundingBox && m.innerBounds().ContainsBox(cell) {
		return false
	}
	return true
}
