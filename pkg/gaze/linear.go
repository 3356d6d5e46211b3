package gaze

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// linearEyeRadius is the sphere the planar offset is wrapped onto (mm).
const linearEyeRadius = 12.0

// LinearModel is the original fixed-ROI mapping: the pupil offset from the ROI
// center, normalized by the ROI size, is wrapped onto a 12 mm sphere.
//
// It needs no warm-up and works near the screen center, but ignores
// perspective, so errors grow toward the edges.
type LinearModel struct {
	roiCenterX, roiCenterY float64
	roiWidth, roiHeight    float64

	updates int
}

// NewLinearModel derives the ROI from the frame: x in [0.2, 0.8], y in [0.3, 0.8].
func NewLinearModel(frameW, frameH int) *LinearModel {
	roiW := int(float64(frameW) * 0.6)
	roiH := int(float64(frameH) * 0.5)
	return &LinearModel{
		roiCenterX: float64(int(float64(frameW)*0.2) + roiW/2),
		roiCenterY: float64(int(float64(frameH)*0.3) + roiH/2),
		roiWidth:   float64(roiW),
		roiHeight:  float64(roiH),
	}
}

// Name implements Model.
func (m *LinearModel) Name() string { return string(KindLinear) }

// Updates counts observations since the last reset.
func (m *LinearModel) Updates() int { return m.updates }

// Reset clears the observation counter; the model has no other state.
func (m *LinearModel) Reset() { m.updates = 0 }

// Observe implements Model.
func (m *LinearModel) Observe(p Pixel) (Observation, bool) {
	if m.roiWidth <= 0 || m.roiHeight <= 0 {
		return Observation{}, false
	}
	m.updates++

	offX := (p.X - m.roiCenterX) / m.roiWidth
	offY := -(p.Y - m.roiCenterY) / m.roiHeight // up = positive

	x := offX * linearEyeRadius
	y := offY * linearEyeRadius
	z := math.Sqrt(math.Max(0, linearEyeRadius*linearEyeRadius-x*x-y*y))

	v := r3.Vector{X: x, Y: y, Z: z}
	n := v.Norm()
	if n < 1e-9 {
		return Observation{}, false
	}
	g := v.Mul(1 / n)

	return Observation{
		Pixel:      p,
		Pupil:      v,
		Gaze:       g,
		Horizontal: Degrees(math.Atan2(g.X, g.Z)),
		Vertical:   Degrees(math.Atan2(g.Y, g.Z)),
		Offset:     [2]float64{offX, offY},
	}, true
}

func (m *LinearModel) String() string {
	return fmt.Sprintf("LinearModel(ROI center=(%.0f, %.0f))", m.roiCenterX, m.roiCenterY)
}
