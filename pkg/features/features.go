// Package features builds the fixed 16-dimension eye-landmark feature vector
// consumed by the calibration regressors.
//
// Layout:
//
//	0-1   left iris, relative to the eye midpoint / inter-eye distance
//	2-3   right iris, same
//	4-5   left iris relative to the left eye center / eye width
//	6-7   right iris, same
//	8-9   left iris minus right iris / inter-eye distance
//	10-11 eye aspect ratio, left and right
//	12    mean eye-center height relative to the midpoint
//	13    left minus right eye-center height
//	14-15 mean iris-to-center vector / inter-eye distance
package features

import (
	"math"
)

// Dim is the feature vector length.
const Dim = 16

// Indices used by the geometric baseline.
const (
	LeftIrisX   = 0
	LeftIrisY   = 1
	RightIrisX  = 2
	RightIrisY  = 3
	InterX      = 8
	InterY      = 9
	LeftEAR     = 10
	RightEAR    = 11
	EyeCenterY  = 12
	EyeCenterDY = 13
	AvgVecX     = 14
	AvgVecY     = 15
)

// Names labels each dimension, for feature-importance reports.
var Names = [Dim]string{
	"l_iris_norm_x", "l_iris_norm_y",
	"r_iris_norm_x", "r_iris_norm_y",
	"l_iris_rel_x", "l_iris_rel_y",
	"r_iris_rel_x", "r_iris_rel_y",
	"inter_x", "inter_y",
	"l_ear", "r_ear",
	"eye_center_y", "eye_center_dy",
	"avg_vec_x", "avg_vec_y",
}

// defaultEAR is reported when an eye contour has no width.
const defaultEAR = 0.3

// Point is an image coordinate in pixels.
type Point struct {
	X, Y float64
}

func (p Point) sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) scale(s float64) Point { return Point{p.X * s, p.Y * s} }
func (p Point) norm() float64 { return math.Hypot(p.X, p.Y) }

// Eye holds the landmarks of one eye in image pixels.
type Eye struct {
	Iris   Point // iris center
	Center Point // eye center
	// Contour is ordered outer corner, two upper lid points, inner corner,
	// two lower lid points.
	Contour [6]Point
}

// Width is the corner-to-corner distance.
func (e Eye) Width() float64 {
	return e.Contour[3].sub(e.Contour[0]).norm()
}

// AspectRatio is the eye aspect ratio (lid opening over width).
func (e Eye) AspectRatio() float64 {
	a := e.Contour[1].sub(e.Contour[5]).norm()
	b := e.Contour[2].sub(e.Contour[4]).norm()
	c := e.Width()
	if c <= 0 {
		return defaultEAR
	}
	return (a + b) / (2 * c)
}

// Landmarks are the per-eye landmarks in the subject's frame of reference
// (Left is the subject's left eye after any mirroring).
type Landmarks struct {
	Left, Right Eye
}

// Vector is a 16-dimension feature vector.
type Vector [Dim]float64

// Slice returns a copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Dim)
	copy(out, v[:])
	return out
}

// IsZero reports whether extraction failed.
func (v Vector) IsZero() bool {
	return v == Vector{}
}

// FromSlice builds a vector from s, zero-padding or truncating to Dim.
func FromSlice(s []float64) Vector {
	var v Vector
	copy(v[:], s)
	return v
}

// Extract computes the feature vector. Any non-finite result yields the zero
// vector; downstream outlier rejection treats it as a low-confidence sample.
func Extract(lm Landmarks) Vector {
	l, r := lm.Left, lm.Right

	lWidth := math.Max(1, l.Width())
	rWidth := math.Max(1, r.Width())
	ipd := math.Max(1, l.Center.sub(r.Center).norm())
	mid := l.Center.add(r.Center).scale(0.5)

	lNorm := l.Iris.sub(mid).scale(1 / ipd)
	rNorm := r.Iris.sub(mid).scale(1 / ipd)
	lRel := l.Iris.sub(l.Center).scale(1 / lWidth)
	rRel := r.Iris.sub(r.Center).scale(1 / rWidth)
	inter := l.Iris.sub(r.Iris).scale(1 / ipd)

	centerY := ((l.Center.Y+r.Center.Y)/2 - mid.Y) / ipd
	centerDY := (l.Center.Y - r.Center.Y) / ipd

	lVec := l.Iris.sub(l.Center).scale(1 / ipd)
	rVec := r.Iris.sub(r.Center).scale(1 / ipd)
	avg := lVec.add(rVec).scale(0.5)

	v := Vector{
		lNorm.X, lNorm.Y,
		rNorm.X, rNorm.Y,
		lRel.X, lRel.Y,
		rRel.X, rRel.Y,
		inter.X, inter.Y,
		l.AspectRatio(), r.AspectRatio(),
		centerY, centerDY,
		avg.X, avg.Y,
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Vector{}
		}
	}
	return v
}
