package gaze

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// EyeballModel keeps a running estimate of the eyeball rotation center and
// derives gaze from the sphere of radius R around it.
//
// Each Observe intersects the camera ray with the sphere, takes the near hit
// as the 3-D pupil point P and blends the center toward P + R·normalize(C−P).
// The model is not safe for concurrent use; tracking.Session serializes it.
type EyeballModel struct {
	camera Intrinsics
	radius float64
	depth  float64

	warmupAlpha  float64
	steadyAlpha  float64
	warmupFrames int

	center  r3.Vector
	updates int

	lastPixel Pixel
	lastObs   Observation
	hasLast   bool
}

// NewEyeballModel creates a model with the center at (0, 0, InitDepthMM).
func NewEyeballModel(cfg Config) *EyeballModel {
	m := &EyeballModel{
		camera:       NewIntrinsics(cfg.FrameWidth, cfg.FrameHeight, cfg.FocalLength, cfg.ZoomFactor, cfg.BaseFOVDeg),
		radius:       cfg.EyeRadiusMM,
		depth:        cfg.InitDepthMM,
		warmupAlpha:  cfg.WarmupAlpha,
		steadyAlpha:  cfg.SteadyAlpha,
		warmupFrames: cfg.WarmupFrames,
	}
	m.Reset()
	return m
}

// Name implements Model.
func (m *EyeballModel) Name() string { return string(KindEyeball) }

// Camera returns the intrinsics used to build rays.
func (m *EyeballModel) Camera() Intrinsics { return m.camera }

// Center returns the current rotation-center estimate in mm.
func (m *EyeballModel) Center() r3.Vector { return m.center }

// Updates returns how many measurement updates have been applied.
func (m *EyeballModel) Updates() int { return m.updates }

// Converged reports whether the warm-up window has passed.
func (m *EyeballModel) Converged() bool { return m.updates >= m.warmupFrames }

// SetSmoothing changes the warm-up and steady EMA factors. Non-positive
// values leave the current factor in place.
func (m *EyeballModel) SetSmoothing(warmup, steady float64) {
	if warmup > 0 {
		m.warmupAlpha = math.Min(warmup, 1)
	}
	if steady > 0 {
		m.steadyAlpha = math.Min(steady, 1)
	}
}

// Smoothing returns the warm-up and steady EMA factors.
func (m *EyeballModel) Smoothing() (warmup, steady float64) {
	return m.warmupAlpha, m.steadyAlpha
}

// Reset returns the center to its depth-only initial estimate.
func (m *EyeballModel) Reset() {
	m.center = r3.Vector{X: 0, Y: 0, Z: m.depth}
	m.updates = 0
	m.hasLast = false
}

// Observe ingests a pupil pixel, refines the center estimate and returns the
// gaze observation. A ray that misses the sphere returns false and leaves the
// estimate untouched.
//
// The same pixel seen twice in a row is applied once and returns the
// previous observation unchanged.
func (m *EyeballModel) Observe(p Pixel) (Observation, bool) {
	if m.hasLast && m.lastPixel == p {
		return m.lastObs, true
	}

	d := m.camera.Ray(p)
	t, ok := m.intersect(d)
	if !ok {
		return Observation{}, false
	}
	pupil := d.Mul(t)
	m.update(pupil)

	obs, ok := m.observation(p, pupil)
	if !ok {
		return Observation{}, false
	}
	m.lastPixel, m.lastObs, m.hasLast = p, obs, true
	return obs, true
}

// intersect solves |t·d − C|² = R² for the nearest positive t.
//
//	t² − 2t(d·C) + |C|² − R² = 0
func (m *EyeballModel) intersect(d r3.Vector) (float64, bool) {
	dc := d.Dot(m.center)
	disc := dc*dc - m.center.Dot(m.center) + m.radius*m.radius
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := dc - sq; t > 0 {
		return t, true
	}
	// Camera inside the sphere: only the far root is in front of it.
	if t := dc + sq; t > 0 {
		return t, true
	}
	return 0, false
}

func (m *EyeballModel) update(pupil r3.Vector) {
	offset := m.center.Sub(pupil)
	n := offset.Norm()
	if n < 1e-9 {
		return
	}
	measured := pupil.Add(offset.Mul(m.radius / n))

	alpha := m.steadyAlpha
	if m.updates < m.warmupFrames {
		alpha = m.warmupAlpha
	}
	m.center = m.center.Mul(1 - alpha).Add(measured.Mul(alpha))
	m.updates++
}

func (m *EyeballModel) observation(p Pixel, pupil r3.Vector) (Observation, bool) {
	raw := pupil.Sub(m.center)
	n := raw.Norm()
	if n < 1e-9 {
		return Observation{}, false
	}
	g := raw.Mul(1 / n)
	h, v := anglesFromGaze(g.X, g.Y, g.Z)

	return Observation{
		Pixel:      p,
		Pupil:      pupil,
		Gaze:       g,
		Horizontal: h,
		Vertical:   v,
		Offset:     [2]float64{g.X, -g.Y},
		EyeCenter:  m.center,
	}, true
}

func (m *EyeballModel) String() string {
	return fmt.Sprintf("EyeballModel(f=%.0fpx, R=%.1fmm, C=[%.1f, %.1f, %.1f]mm, n=%d)",
		m.camera.Focal, m.radius, m.center.X, m.center.Y, m.center.Z, m.updates)
}
