// Package gaze converts 2-D pupil pixels into 3-D gaze directions and angles.
//
// Two models share the Model interface: the adaptive EyeballModel, which keeps
// a running estimate of the eye's rotation center and intersects each camera
// ray with a fixed-radius sphere around it, and the LinearModel, the original
// fixed-ROI offset mapping kept for comparison.
//
// Coordinates are camera space in millimetres: +X right, +Y down, +Z into the
// scene. Angles are degrees, horizontal positive to the right and vertical
// positive up, in both models.
package gaze

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Pixel is a 2-D image coordinate reported by the pupil detector.
type Pixel struct {
	X, Y float64
}

// Observation is the per-frame result of a gaze model. It is recomputed every
// frame and never stored by the model.
type Observation struct {
	Pixel      Pixel
	Pupil      r3.Vector  // 3-D pupil point
	Gaze       r3.Vector  // unit gaze vector
	Horizontal float64    // degrees, + = right
	Vertical   float64    // degrees, + = up
	Offset     [2]float64 // planar offset (g_x, -g_y)
	EyeCenter  r3.Vector  // center estimate at observation time
}

// Angles returns (Horizontal, Vertical).
func (o Observation) Angles() (float64, float64) {
	return o.Horizontal, o.Vertical
}

// Model turns a pupil pixel into an Observation. Observe reports false when
// the pixel cannot be explained by the model; callers treat that as "no
// observation this frame", never as an error.
type Model interface {
	Name() string
	Observe(p Pixel) (Observation, bool)
	Reset()
}

// Kind selects a Model implementation.
type Kind string

const (
	KindEyeball Kind = "eyeball"
	KindLinear  Kind = "linear"
)

// NewModel builds the model selected by kind.
func NewModel(kind Kind, cfg Config) (Model, error) {
	switch kind {
	case KindEyeball, "":
		return NewEyeballModel(cfg), nil
	case KindLinear:
		return NewLinearModel(cfg.FrameWidth, cfg.FrameHeight), nil
	default:
		return nil, fmt.Errorf("gaze: unknown model %q", kind)
	}
}
