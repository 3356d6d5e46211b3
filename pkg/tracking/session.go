package tracking

import (
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-eyecue/pkg/screen"
)

// Gaze is the outcome of processing one frame.
type Gaze struct {
	Estimate
	OK       bool          // the frame produced a measurement
	Smoothed screen.Point  // pointer position after smoothing
	Latency  time.Duration // time spent in the strategy
}

// Session owns the strategy and the pointer smoother. Its mutex is the one
// boundary around frame processing, projector installation and reset.
type Session struct {
	mu       sync.Mutex
	strategy Strategy
	smoother *screen.Smoother

	frames int
	hits   int
	last   Gaze
}

// NewSession wraps a strategy. The smoother starts at its configured point.
func NewSession(strategy Strategy, smoother *screen.Smoother) *Session {
	return &Session{strategy: strategy, smoother: smoother}
}

// Strategy returns the active strategy.
func (s *Session) Strategy() Strategy { return s.strategy }

// Process runs the strategy on a frame and smooths the result. Frames with
// no point leave the smoothed position where it was.
func (s *Session) Process(frame gocv.Mat) Gaze {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	est, ok := s.strategy.Estimate(frame)
	g := Gaze{Estimate: est, OK: ok, Latency: time.Since(start)}
	g.Smoothed = s.smoother.Update(est.Point, ok && est.HasPoint)

	s.frames++
	if ok {
		s.hits++
	}
	s.last = g
	return g
}

// Measure runs the strategy for calibration: the measurement is returned and
// the smoother is left alone.
func (s *Session) Measure(frame gocv.Mat) ([]float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	est, ok := s.strategy.Estimate(frame)
	if !ok || len(est.Measurement) == 0 {
		return nil, false
	}
	return est.Measurement, true
}

// InstallProjector hands a calibrated projector to the sphere strategy. It
// reports false for strategies without a projector.
func (s *Session) InstallProjector(p *screen.Projector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sphere, ok := s.strategy.(*SphereStrategy)
	if !ok {
		return false
	}
	sphere.SetProjector(p)
	return true
}

// Reset clears strategy state and the smoother. Calibration results are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategy.Reset()
	s.smoother.Reset()
	s.frames, s.hits = 0, 0
	s.last = Gaze{}
}

// SetSmoothing changes the pointer smoothing weight.
func (s *Session) SetSmoothing(beta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.smoother.SetBeta(beta)
}

// Smoothing returns the pointer smoothing weight.
func (s *Session) Smoothing() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.smoother.Beta()
}

// Last returns the most recent Process result.
func (s *Session) Last() Gaze {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Counts returns frames processed and frames with a measurement.
func (s *Session) Counts() (frames, hits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.hits
}

// eyeballSmoothing adjusts the eyeball model's EMA factors when the sphere
// strategy runs one.
func (s *Session) eyeballSmoothing(warmup, steady float64) (float64, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sphere, ok := s.strategy.(*SphereStrategy)
	if !ok {
		return 0, 0, false
	}
	type smoothable interface {
		SetSmoothing(warmup, steady float64)
		Smoothing() (float64, float64)
	}
	m, ok := sphere.Model().(smoothable)
	if !ok {
		return 0, 0, false
	}
	m.SetSmoothing(warmup, steady)
	w, st := m.Smoothing()
	return w, st, true
}
