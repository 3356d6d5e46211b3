// Package screen maps gaze angles onto a physical display.
package screen

import (
	"fmt"
	"math"
)

const (
	// DefaultPxPerMM converts a physical eye-to-screen distance to pixels.
	DefaultPxPerMM = 3.5

	// DefaultFOVDeg is the horizontal field of view assumed when no distance
	// is configured.
	DefaultFOVDeg = 60.0

	// minForward keeps the forward component away from zero.
	minForward = 1e-6
)

// Point is a screen coordinate in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Ints rounds the point to integer pixels.
func (p Point) Ints() (int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y))
}

// Geometry describes the display and the calibrated straight-ahead gaze.
type Geometry struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// DistancePx is the eye-to-screen distance expressed in screen pixels.
	DistancePx float64 `json:"distance_px"`

	// Gaze angles (deg) that land on the screen center.
	EyeCenterH float64 `json:"eye_center_h"`
	EyeCenterV float64 `json:"eye_center_v"`
}

// HeadRotation is the gyro reading and the reading captured at calibration,
// all in degrees.
type HeadRotation struct {
	H, V             float64
	CenterH, CenterV float64
}

// Delta returns the head rotation relative to calibration.
func (r HeadRotation) Delta() (float64, float64) {
	return r.H - r.CenterH, r.V - r.CenterV
}

// Projector turns gaze angles into a screen point by scaling the spherical
// gaze direction until its forward component reaches the screen plane.
type Projector struct {
	geom Geometry
}

// NewProjector creates a projector. A non-positive distance falls back to the
// default field-of-view assumption.
func NewProjector(g Geometry) *Projector {
	if g.DistancePx <= 0 {
		g.DistancePx = DistanceFromFOV(g.Width, DefaultFOVDeg)
	}
	return &Projector{geom: g}
}

// FromAnchorAngles derives the projector from the gaze angles recorded while
// the user fixated the left/right and top/bottom anchors. The horizontal
// spread fixes the distance; the anchor means fix the screen-center angles.
func FromAnchorAngles(width, height int, left, right, top, bottom float64) (*Projector, error) {
	spread := math.Abs(Radians(left - right))
	if spread < 1e-3 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("screen: degenerate anchor angles (left=%.2f right=%.2f)", left, right)
	}
	return NewProjector(Geometry{
		Width:      width,
		Height:     height,
		DistancePx: float64(width) / (2 * math.Tan(spread/2)),
		EyeCenterH: (left + right) / 2,
		EyeCenterV: (top + bottom) / 2,
	}), nil
}

// Geometry returns the projector's display geometry.
func (p *Projector) Geometry() Geometry { return p.geom }

// Center returns the screen center.
func (p *Projector) Center() Point {
	return Point{X: float64(p.geom.Width) / 2, Y: float64(p.geom.Height) / 2}
}

// Project maps gaze angles (deg, vertical positive up) to a clamped screen
// point. Screen y grows downward.
func (p *Projector) Project(h, v float64, head HeadRotation) Point {
	dh, dv := head.Delta()
	ah := Radians(h - p.geom.EyeCenterH + dh)
	av := Radians(-v + p.geom.EyeCenterV + dv)

	ux := math.Sin(ah) * math.Cos(av)
	uy := math.Cos(ah) * math.Cos(av)
	uz := math.Sin(av)

	if math.Abs(uy) < minForward {
		uy = math.Copysign(minForward, uy)
	}
	scale := p.geom.DistancePx / uy

	x := ux*scale + float64(p.geom.Width)/2
	y := uz*scale + float64(p.geom.Height)/2
	if math.IsNaN(x) || math.IsNaN(y) {
		return p.Center()
	}
	return p.Clamp(Point{X: x, Y: y})
}

// Clamp limits a point to [0, w-1] x [0, h-1].
func (p *Projector) Clamp(pt Point) Point {
	return ClampTo(pt, p.geom.Width, p.geom.Height)
}

// ClampTo limits a point to a width x height screen.
func ClampTo(pt Point, width, height int) Point {
	return Point{
		X: clamp(pt.X, 0, math.Max(0, float64(width-1))),
		Y: clamp(pt.Y, 0, math.Max(0, float64(height-1))),
	}
}

// DistanceFromMM converts a physical distance to pixels. A non-positive
// density uses DefaultPxPerMM.
func DistanceFromMM(mm, pxPerMM float64) float64 {
	if pxPerMM <= 0 {
		pxPerMM = DefaultPxPerMM
	}
	return mm * pxPerMM
}

// DistanceFromFOV returns the distance at which a screen of the given width
// spans fovDeg horizontally.
func DistanceFromFOV(width int, fovDeg float64) float64 {
	if fovDeg <= 0 || fovDeg >= 180 {
		fovDeg = DefaultFOVDeg
	}
	return float64(width) / (2 * math.Tan(Radians(fovDeg)/2))
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180 }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
