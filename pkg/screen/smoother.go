package screen

// DefaultBeta is the weight given to each new point by the runtime smoother.
const DefaultBeta = 0.28

// Smoother applies exponential smoothing to successive screen points.
// State persists until Reset; recalibration does not clear it.
type Smoother struct {
	beta    float64
	start   Point
	current Point
	primed  bool
}

// NewSmoother creates a smoother that starts at the given point, usually the
// screen center. beta outside (0, 1] falls back to DefaultBeta.
func NewSmoother(beta float64, start Point) *Smoother {
	if beta <= 0 || beta > 1 {
		beta = DefaultBeta
	}
	return &Smoother{beta: beta, start: start, current: start}
}

// Beta returns the smoothing weight.
func (s *Smoother) Beta() float64 { return s.beta }

// SetBeta changes the smoothing weight; values outside (0, 1] are ignored.
func (s *Smoother) SetBeta(beta float64) {
	if beta > 0 && beta <= 1 {
		s.beta = beta
	}
}

// Update blends p into the smoothed point. When ok is false the frame had no
// prediction and the last smoothed point is returned unchanged.
func (s *Smoother) Update(p Point, ok bool) Point {
	if !ok {
		return s.current
	}
	s.current = Point{
		X: (1-s.beta)*s.current.X + s.beta*p.X,
		Y: (1-s.beta)*s.current.Y + s.beta*p.Y,
	}
	s.primed = true
	return s.current
}

// Current returns the last smoothed point.
func (s *Smoother) Current() Point { return s.current }

// Primed reports whether any point has been blended in since the last reset.
func (s *Smoother) Primed() bool { return s.primed }

// Reset returns the smoother to its start point.
func (s *Smoother) Reset() {
	s.current = s.start
	s.primed = false
}

// Recenter moves the start point, e.g. after the screen size changes, and resets.
func (s *Smoother) Recenter(start Point) {
	s.start = start
	s.Reset()
}
