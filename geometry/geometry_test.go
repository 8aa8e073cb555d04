package geometry

import (
	"math"
	"testing"
)

func box2(x0, y0, x1, y1 float64) Box {
	return NewBox(NewCoordinate(x0, y0), NewCoordinate(x1, y1))
}

func TestPointAncestorAndChild(t *testing.T) {
	p := NewPoint(3, 5, 6)
	if got := p.Ancestor(1); got != NewPoint(1, 1, 1) {
		t.Errorf("Ancestor(1) = %v, want (1,1)@1", got)
	}
	if got := p.Ancestor(0); got != NewPoint(0, 0, 0) {
		t.Errorf("Ancestor(0) = %v, want root", got)
	}
	if got := p.Ancestor(5); got != p {
		t.Errorf("Ancestor deeper than point should be identity, got %v", got)
	}

	parent := p.Parent()
	if got := parent.Child(p.ChildIndex()); got != p {
		t.Errorf("Child(ChildIndex()) = %v, want %v", got, p)
	}

	p3 := NewPoint(2, 1, 2, 3)
	if got := p3.Parent().Child(p3.ChildIndex()); got != p3 {
		t.Errorf("3D child round trip = %v, want %v", got, p3)
	}
}

func TestBoxCoverage(t *testing.T) {
	cell := box2(0, 0, 10, 10)
	tests := []struct {
		name  string
		shape Box
		want  float64
	}{
		{"disjoint", box2(20, 20, 30, 30), 0},
		{"touching edge", box2(10, 0, 20, 10), 0},
		{"quarter", box2(0, 0, 5, 5), 0.25},
		{"half", box2(-5, 0, 5, 10), 0.5},
		{"covers", box2(-1, -1, 11, 11), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.shape.CoverageOf(cell)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("CoverageOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		fraction float64
		want     Coverage
	}{
		{0, CoverageNone},
		{1e-12, CoverageNone},
		{0.2, CoveragePartial},
		{0.5, CoverageOver50Percent},
		{0.99, CoverageOver50Percent},
		{1, CoverageFull},
	}
	for _, tt := range tests {
		if got := Classify(tt.fraction); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.fraction, got, tt.want)
		}
	}
}

func TestDiscCoverageIsAdditive(t *testing.T) {
	disc := Sphere{Center: NewCoordinate(7, 9), Radius: 6}
	whole := box2(0, 0, 16, 16)
	total := disc.CoverageOf(whole) * whole.Volume()

	var sum float64
	for x := 0.0; x < 16; x += 4 {
		for y := 0.0; y < 16; y += 4 {
			c := box2(x, y, x+4, y+4)
			sum += disc.CoverageOf(c) * c.Volume()
		}
	}
	if math.Abs(total-sum) > 1e-6 {
		t.Errorf("coverage not additive: whole=%v, parts=%v", total, sum)
	}

	n := float64(discSegments)
	polyArea := n / 2 * disc.Radius * disc.Radius * math.Sin(2*math.Pi/n)
	if math.Abs(total-polyArea) > 1e-6 {
		t.Errorf("disc area = %v, want %v", total, polyArea)
	}
}

func TestDiscCoverageShortCircuits(t *testing.T) {
	disc := Sphere{Center: NewCoordinate(0, 0), Radius: 10}
	if got := disc.CoverageOf(box2(20, 20, 21, 21)); got != 0 {
		t.Errorf("far cell coverage = %v, want 0", got)
	}
	if got := disc.CoverageOf(box2(-1, -1, 1, 1)); got != 1 {
		t.Errorf("inner cell coverage = %v, want 1", got)
	}
}

func TestSphereCoverage3D(t *testing.T) {
	s := Sphere{Center: NewCoordinate(0, 0, 0), Radius: 5}
	inner := NewBox(NewCoordinate(-1, -1, -1), NewCoordinate(1, 1, 1))
	if got := s.CoverageOf(inner); got != 1 {
		t.Errorf("inner coverage = %v, want 1", got)
	}
	far := NewBox(NewCoordinate(10, 10, 10), NewCoordinate(11, 11, 11))
	if got := s.CoverageOf(far); got != 0 {
		t.Errorf("far coverage = %v, want 0", got)
	}
	half := NewBox(NewCoordinate(-6, -6, 0), NewCoordinate(6, 6, 6))
	got := s.CoverageOf(half)
	want := (4.0 / 3 * math.Pi * 125 / 2) / half.Volume()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("hemisphere coverage = %v, want ~%v", got, want)
	}
}

func box3(x0, y0, z0, x1, y1, z1 float64) Box {
	return NewBox(NewCoordinate(x0, y0, z0), NewCoordinate(x1, y1, z1))
}

func TestSphereCoverage3DIsAdditive(t *testing.T) {
	tests := []struct {
		name   string
		center Coordinate
		radius float64
	}{
		{"inside the box", NewCoordinate(3.3, 4.1, 2.7), 2.2},
		{"crossing faces", NewCoordinate(0.4, 7.9, 4), 3.1},
		{"on a lattice corner", NewCoordinate(4, 4, 4), 1.5},
	}
	whole := box3(0, 0, 0, 8, 8, 8)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sphere{Center: tt.center, Radius: tt.radius}
			total := s.CoverageOf(whole) * whole.Volume()

			var sum float64
			for x := 0.0; x < 8; x++ {
				for y := 0.0; y < 8; y++ {
					for z := 0.0; z < 8; z++ {
						c := box3(x, y, z, x+1, y+1, z+1)
						sum += s.CoverageOf(c) * c.Volume()
					}
				}
			}
			if math.Abs(total-sum) > 1e-7 {
				t.Errorf("coverage not additive: whole=%v, parts=%v", total, sum)
			}
		})
	}

	// A ball strictly inside the box has its full volume.
	s := Sphere{Center: NewCoordinate(3.3, 4.1, 2.7), Radius: 2.2}
	want := 4.0 / 3 * math.Pi * math.Pow(2.2, 3)
	if got := s.CoverageOf(whole) * whole.Volume(); math.Abs(got-want) > 1e-7 {
		t.Errorf("ball volume = %v, want %v", got, want)
	}
}

func TestSphereCoverage3DGrazingCell(t *testing.T) {
	// The ball reaches 0.01 into the cell along one axis; the cap volume is
	// pi*h^2*(3r-h)/3.
	s := Sphere{Center: NewCoordinate(0.5, 0.5, -0.99), Radius: 1}
	cell := box3(-1, -1, 0, 2, 2, 1)
	h := 0.01
	want := math.Pi * h * h * (3 - h) / 3 / cell.Volume()
	got := s.CoverageOf(cell)
	if got <= 0 {
		t.Fatal("grazing cell reported as uncovered")
	}
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("cap coverage = %v, want %v", got, want)
	}
}

func TestRingModelAnnulus(t *testing.T) {
	m := RingModel{
		Ring: Ring{Center: NewCoordinate(0, 0), Radius: 10, InnerRadius: 5},
		Mode: ModeBoundingBox,
	}
	if m.Overlaps(box2(-2, -2, 2, 2)) {
		t.Error("cell inside the inner box should not overlap the annulus")
	}
	cell := box2(0, 0, 10, 10)
	if got := m.CoverageOf(cell); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("annulus box coverage = %v, want 0.75", got)
	}

	circ := NewRingModel(NewCoordinate(0, 0), 10)
	if !circ.Overlaps(cell) {
		t.Error("circular ring should overlap adjacent cell")
	}
	if circ.Overlaps(box2(9, 9, 12, 12)) {
		t.Error("corner cell beyond radius should not overlap")
	}
}

func TestPolygonCoverage(t *testing.T) {
	tri := NewPolygon(
		NewCoordinate(0, 0),
		NewCoordinate(10, 0),
		NewCoordinate(0, 10),
	)
	got := tri.CoverageOf(box2(0, 0, 10, 10))
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("triangle coverage = %v, want 0.5", got)
	}
	b := tri.Bounds()
	if b.Max.X[0] != 10 || b.Max.X[1] != 10 {
		t.Errorf("Bounds = %+v", b)
	}
}
