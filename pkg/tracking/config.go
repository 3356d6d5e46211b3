package tracking

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-eyecue/pkg/calibration"
	"github.com/teslashibe/go-eyecue/pkg/gaze"
	"github.com/teslashibe/go-eyecue/pkg/screen"
	"github.com/teslashibe/go-eyecue/pkg/tracking/detection"
)

// StrategyKind selects how frames become screen points.
type StrategyKind string

const (
	// StrategySphere detects the pupil, runs a gaze.Model and projects the
	// angles onto the screen.
	StrategySphere StrategyKind = "sphere"
	// StrategyRegression extracts eye landmarks and predicts the screen point
	// with the trained calibrator.
	StrategyRegression StrategyKind = "regression"
)

// ParseStrategy validates a strategy name. Empty selects sphere.
func ParseStrategy(s string) (StrategyKind, error) {
	switch k := StrategyKind(s); k {
	case StrategySphere, StrategyRegression:
		return k, nil
	case "":
		return StrategySphere, nil
	default:
		return "", fmt.Errorf("tracking: unknown strategy %q", s)
	}
}

// ScreenConfig describes the display the pointer moves on.
type ScreenConfig struct {
	Width      int     `yaml:"width"`       // px; 0 = ask the OS
	Height     int     `yaml:"height"`      // px; 0 = ask the OS
	DistanceMM float64 `yaml:"distance_mm"` // eye to screen; 0 = derive from FOV
	PxPerMM    float64 `yaml:"px_per_mm"`
	FOVDeg     float64 `yaml:"fov_deg"`
}

// DistancePx converts the configured viewing distance to pixels.
func (s ScreenConfig) DistancePx() float64 {
	if s.DistanceMM > 0 {
		return screen.DistanceFromMM(s.DistanceMM, s.PxPerMM)
	}
	return screen.DistanceFromFOV(s.Width, s.FOVDeg)
}

// Config holds all tunable parameters for gaze tracking
type Config struct {
	Strategy StrategyKind `yaml:"strategy"`

	// Timing
	FrameInterval time.Duration `yaml:"frame_interval"` // How often to read and process a frame

	// Input
	Mirror bool `yaml:"mirror"` // Flip frames horizontally before detection

	// Output
	Smoothing        float64 `yaml:"smoothing"`         // Pointer EMA beta (0-1, higher = more new data)
	PointerEnabled   bool    `yaml:"pointer_enabled"`   // Move the OS cursor
	BaselineFallback bool    `yaml:"baseline_fallback"` // Regression: use the geometric baseline until trained

	// Perception
	MissLogThreshold int `yaml:"miss_log_threshold"` // Log once after this many consecutive misses

	// Models
	GazeModel   gaze.Kind          `yaml:"gaze_model"`
	Gaze        gaze.Config        `yaml:"gaze"`
	Screen      ScreenConfig       `yaml:"screen"`
	Detection   detection.Config   `yaml:"detection"`
	Calibration calibration.Config `yaml:"calibration"`
}

// DefaultConfig returns the recommended configuration: sphere strategy at
// 30 fps on a 1920x1080 screen roughly 60 cm away.
func DefaultConfig() Config {
	return Config{
		Strategy: StrategySphere,

		FrameInterval: 33 * time.Millisecond, // ~30 fps

		Mirror: false,

		Smoothing:        screen.DefaultBeta,
		PointerEnabled:   true,
		BaselineFallback: true,

		MissLogThreshold: 5,

		GazeModel: gaze.KindEyeball,
		Gaze:      gaze.DefaultConfig(),
		Screen: ScreenConfig{
			Width:      1920,
			Height:     1080,
			DistanceMM: 0,
			PxPerMM:    screen.DefaultPxPerMM,
			FOVDeg:     screen.DefaultFOVDeg,
		},
		Detection:   detection.DefaultConfig(),
		Calibration: calibration.DefaultConfig(),
	}
}

// SteadyConfig returns a configuration for a calmer pointer.
func SteadyConfig() Config {
	cfg := DefaultConfig()
	cfg.Smoothing = 0.15
	cfg.Gaze.SteadyAlpha = 0.02
	return cfg
}

// ResponsiveConfig returns a configuration for fast pointer response.
func ResponsiveConfig() Config {
	cfg := DefaultConfig()
	cfg.FrameInterval = 20 * time.Millisecond
	cfg.Smoothing = 0.5 // Trust new readings more
	cfg.Gaze.SteadyAlpha = 0.05
	return cfg
}

// calibrationConfig returns the sampler settings for the active strategy.
// The sphere strategy only needs the anchor angles, so the moving target is
// skipped and bursts are not augmented.
func (c Config) calibrationConfig() calibration.Config {
	cc := c.Calibration
	cc.ScreenWidth, cc.ScreenHeight = c.Screen.Width, c.Screen.Height
	if c.Strategy == StrategySphere {
		cc.Anchors = nil
		cc.MovingDuration = 0
	}
	return cc
}
