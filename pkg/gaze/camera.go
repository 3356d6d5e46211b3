package gaze

import (
	"math"

	"github.com/golang/geo/r3"
)

// Intrinsics is a pinhole camera model for the processed frame that reaches
// the pupil detector (after any digital zoom).
type Intrinsics struct {
	CX, CY float64 // Principal point in pixels
	Focal  float64 // Effective focal length in pixels
}

// NewIntrinsics places the principal point at the frame center. When focal is
// zero it is derived from the horizontal field of view left after zooming:
//
//	f = (w/2) / tan(baseFOV/zoom/2)
func NewIntrinsics(frameW, frameH int, focal, zoom, baseFOVDeg float64) Intrinsics {
	in := Intrinsics{
		CX: float64(frameW) / 2,
		CY: float64(frameH) / 2,
	}
	if focal > 0 {
		in.Focal = focal
		return in
	}
	if zoom <= 0 {
		zoom = 1
	}
	halfFOV := Radians(baseFOVDeg / zoom / 2)
	in.Focal = (float64(frameW) / 2) / math.Tan(halfFOV)
	return in
}

// Ray returns the unit direction from the camera origin through pixel p.
func (in Intrinsics) Ray(p Pixel) r3.Vector {
	d := r3.Vector{
		X: (p.X - in.CX) / in.Focal,
		Y: (p.Y - in.CY) / in.Focal,
		Z: 1,
	}
	return d.Normalize()
}

// Project maps a camera-space point back to a pixel. Points behind the camera
// report false.
func (in Intrinsics) Project(v r3.Vector) (Pixel, bool) {
	if v.Z <= 0 {
		return Pixel{}, false
	}
	return Pixel{
		X: in.CX + in.Focal*v.X/v.Z,
		Y: in.CY + in.Focal*v.Y/v.Z,
	}, true
}
