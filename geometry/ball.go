package geometry

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/integrate/quad"
)

// sliceNodes is the Gauss-Legendre order used per smooth z segment.
const sliceNodes = 48

// Nodes and weights on [0, pi] for the cosine-substituted z integral.
var sliceTheta, sliceWeight = func() ([]float64, []float64) {
	x := make([]float64, sliceNodes)
	w := make([]float64, sliceNodes)
	quad.Legendre{}.FixedLocations(x, w, 0, math.Pi)
	return x, w
}()

// ballBoxVolume is the volume of a 3D ball inside a box. Each z slice of the
// ball is a disc whose overlap with the box's x-y rectangle is exact, and
// the z integral is split wherever that area stops being smooth in z (the
// disc radius crossing an edge or corner distance). Between those points the
// cosine substitution absorbs the square-root ends, so the quadrature is
// accurate to rounding and the volume is additive over any split of the box.
func ballBoxVolume(center Coordinate, r float64, box Box) float64 {
	cx, cy, cz := center.X[0], center.X[1], center.X[2]
	x0, x1 := box.Min.X[0]-cx, box.Max.X[0]-cx
	y0, y1 := box.Min.X[1]-cy, box.Max.X[1]-cy
	za := math.Max(box.Min.X[2]-cz, -r)
	zb := math.Min(box.Max.X[2]-cz, r)
	if za >= zb {
		return 0
	}

	breaks := []float64{za, zb}
	addBreak := func(d2 float64) {
		if d2 >= r*r {
			return
		}
		h := math.Sqrt(r*r - d2)
		for _, z := range [2]float64{-h, h} {
			if z > za && z < zb {
				breaks = append(breaks, z)
			}
		}
	}
	for _, x := range [2]float64{x0, x1} {
		addBreak(x * x)
		for _, y := range [2]float64{y0, y1} {
			addBreak(x*x + y*y)
		}
	}
	for _, y := range [2]float64{y0, y1} {
		addBreak(y * y)
	}
	slices.Sort(breaks)
	breaks = slices.Compact(breaks)

	slice := func(z float64) float64 {
		return discRectArea(math.Sqrt(math.Max(0, r*r-z*z)), x0, x1, y0, y1)
	}
	var vol float64
	for i := 1; i < len(breaks); i++ {
		a, b := breaks[i-1], breaks[i]
		half := (b - a) / 2
		for k, th := range sliceTheta {
			z := a + half*(1-math.Cos(th))
			vol += sliceWeight[k] * half * math.Sin(th) * slice(z)
		}
	}
	return vol
}

// discRectArea is the area of the disc of radius R at the origin inside the
// rectangle [x0,x1]×[y0,y1].
func discRectArea(R, x0, x1, y0, y1 float64) float64 {
	if R <= 0 {
		return 0
	}
	return quadrantArea(R, x1, y1) - quadrantArea(R, x0, y1) - quadrantArea(R, x1, y0) + quadrantArea(R, x0, y0)
}

// quadrantArea is the signed area of the disc between the origin and (x, y).
func quadrantArea(R, x, y float64) float64 {
	sign := 1.0
	if x < 0 {
		x, sign = -x, -sign
	}
	if y < 0 {
		y, sign = -y, -sign
	}
	if x == 0 || y == 0 {
		return 0
	}
	if x*x+y*y <= R*R {
		return sign * x * y
	}
	xc := math.Min(x, R)
	xs := 0.0
	if y < R {
		xs = math.Sqrt(R*R - y*y)
	}
	xm := math.Min(xs, xc)
	return sign * (y*xm + arcPrimitive(R, xc) - arcPrimitive(R, xm))
}

// arcPrimitive is the integral of sqrt(R²-t²) from 0 to x.
func arcPrimitive(R, x float64) float64 {
	return 0.5 * (x*math.Sqrt(math.Max(0, R*R-x*x)) + R*R*math.Asin(math.Max(-1, math.Min(1, x/R))))
}
