package tracking

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-eyecue/pkg/calibration"
	"github.com/teslashibe/go-eyecue/pkg/features"
	"github.com/teslashibe/go-eyecue/pkg/gaze"
	"github.com/teslashibe/go-eyecue/pkg/screen"
	"github.com/teslashibe/go-eyecue/pkg/tracking/detection"
)

// Estimate is one frame's measurement and, when available, its screen point.
type Estimate struct {
	// Measurement is what calibration collects: [h, v] gaze degrees for the
	// sphere strategy, the landmark feature vector for regression.
	Measurement []float64

	Point      screen.Point
	HasPoint   bool
	Calibrated bool // Point came from a calibrated model

	Pixel       gaze.Pixel        // sphere only
	Observation *gaze.Observation // sphere only
}

// Strategy turns a frame into an Estimate. Estimate returns false when the
// frame produced no measurement. Strategies are not safe for concurrent use;
// Session serializes them.
type Strategy interface {
	Name() string
	Estimate(frame gocv.Mat) (Estimate, bool)
	Reset()
}

// HeadSource reports the current head rotation.
type HeadSource interface {
	Rotation() screen.HeadRotation
}

// SphereStrategy detects the pupil, converts it to gaze angles with a
// gaze.Model and projects them onto the screen.
type SphereStrategy struct {
	perception *Perception
	model      gaze.Model
	head       HeadSource

	mu         sync.RWMutex
	projector  *screen.Projector
	calibrated bool
}

// NewSphereStrategy creates the strategy with an uncalibrated projector.
// head may be nil.
func NewSphereStrategy(p *Perception, model gaze.Model, projector *screen.Projector, head HeadSource) *SphereStrategy {
	return &SphereStrategy{perception: p, model: model, projector: projector, head: head}
}

// Name implements Strategy.
func (s *SphereStrategy) Name() string { return string(StrategySphere) }

// Model returns the gaze model.
func (s *SphereStrategy) Model() gaze.Model { return s.model }

// Projector returns the current projector.
func (s *SphereStrategy) Projector() *screen.Projector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projector
}

// SetProjector installs a projector derived from calibration.
func (s *SphereStrategy) SetProjector(p *screen.Projector) {
	s.mu.Lock()
	s.projector = p
	s.calibrated = true
	s.mu.Unlock()
}

// Estimate implements Strategy.
func (s *SphereStrategy) Estimate(frame gocv.Mat) (Estimate, bool) {
	px, ok := s.perception.LocatePupil(frame)
	if !ok {
		return Estimate{}, false
	}
	obs, ok := s.model.Observe(px)
	if !ok {
		return Estimate{Pixel: px}, false
	}

	var head screen.HeadRotation
	if s.head != nil {
		head = s.head.Rotation()
	}
	s.mu.RLock()
	proj, calibrated := s.projector, s.calibrated
	s.mu.RUnlock()

	return Estimate{
		Measurement: []float64{obs.Horizontal, obs.Vertical},
		Point:       proj.Project(obs.Horizontal, obs.Vertical, head),
		HasPoint:    true,
		Calibrated:  calibrated,
		Pixel:       px,
		Observation: &obs,
	}, true
}

// Reset implements Strategy. The projector is kept.
func (s *SphereStrategy) Reset() {
	s.perception.Reset()
	s.model.Reset()
}

// RegressionStrategy extracts eye landmarks, builds the feature vector and
// asks the calibrator for the screen point.
type RegressionStrategy struct {
	landmarker detection.Landmarker
	calibrator *calibration.Calibrator
	fallback   bool
}

// NewRegressionStrategy creates the strategy. With fallback the geometric
// baseline drives the pointer until a model is trained.
func NewRegressionStrategy(lm detection.Landmarker, cal *calibration.Calibrator, fallback bool) *RegressionStrategy {
	return &RegressionStrategy{landmarker: lm, calibrator: cal, fallback: fallback}
}

// Name implements Strategy.
func (s *RegressionStrategy) Name() string { return string(StrategyRegression) }

// Calibrator returns the residual calibrator.
func (s *RegressionStrategy) Calibrator() *calibration.Calibrator { return s.calibrator }

// Estimate implements Strategy.
func (s *RegressionStrategy) Estimate(frame gocv.Mat) (Estimate, bool) {
	lm, ok := s.landmarker.Landmarks(frame)
	if !ok {
		return Estimate{}, false
	}
	f := features.Extract(lm)
	if f.IsZero() {
		return Estimate{}, false
	}

	est := Estimate{Measurement: f.Slice()}
	if p, ok := s.calibrator.Predict(f); ok {
		est.Point, est.HasPoint, est.Calibrated = p, true, true
	} else if s.fallback {
		est.Point, est.HasPoint = s.calibrator.Baseline(f), true
	}
	return est, true
}

// Reset implements Strategy. The trained model is kept.
func (s *RegressionStrategy) Reset() {}

// NewStrategy builds the strategy selected by cfg.Strategy. The sphere
// strategy needs det, the regression strategy needs lm; head may be nil.
func NewStrategy(cfg Config, det detection.Detector, lm detection.Landmarker, head HeadSource) (Strategy, error) {
	switch cfg.Strategy {
	case StrategyRegression:
		if lm == nil {
			return nil, errors.New("tracking: regression strategy needs a landmarker")
		}
		cal := calibration.NewCalibrator(cfg.calibrationConfig())
		return NewRegressionStrategy(lm, cal, cfg.BaselineFallback), nil

	case StrategySphere, "":
		if det == nil {
			return nil, errors.New("tracking: sphere strategy needs a pupil detector")
		}
		model, err := gaze.NewModel(cfg.GazeModel, cfg.Gaze)
		if err != nil {
			return nil, err
		}
		proj := screen.NewProjector(screen.Geometry{
			Width:      cfg.Screen.Width,
			Height:     cfg.Screen.Height,
			DistancePx: cfg.Screen.DistancePx(),
		})
		return NewSphereStrategy(NewPerception(cfg, det), model, proj, head), nil

	default:
		return nil, fmt.Errorf("tracking: unknown strategy %q", cfg.Strategy)
	}
}

// NewSessionFor builds the configured strategy and wraps it in a session
// whose smoother starts at the screen center.
func NewSessionFor(cfg Config, det detection.Detector, lm detection.Landmarker, head HeadSource) (*Session, error) {
	st, err := NewStrategy(cfg, det, lm, head)
	if err != nil {
		return nil, err
	}
	center := screen.Point{X: float64(cfg.Screen.Width) / 2, Y: float64(cfg.Screen.Height) / 2}
	return NewSession(st, screen.NewSmoother(cfg.Smoothing, center)), nil
}
