package calibration

import (
	"time"

	"github.com/teslashibe/go-eyecue/pkg/regress"
)

// BulkKind selects the bulk regressor.
type BulkKind string

const (
	BulkExtraTrees BulkKind = "extratrees"
	BulkRidge      BulkKind = "ridge"
)

// Config holds calibration parameters.
type Config struct {
	// Screen the targets are drawn on (pixels)
	ScreenWidth  int `yaml:"screen_width"`
	ScreenHeight int `yaml:"screen_height"`

	// Anchor protocol
	Anchors         []Anchor      `yaml:"anchors,omitempty"` // normalized; nil = AnchorGrid
	SamplesPerPoint int           `yaml:"samples_per_point"` // burst target size
	PointTimeout    time.Duration `yaml:"point_timeout"`     // burst deadline
	AnchorThreshold float64       `yaml:"anchor_threshold"`  // MAD units

	// Moving-target protocol
	MovingPath       PathKind      `yaml:"moving_path"`
	MovingDuration   time.Duration `yaml:"moving_duration"`    // 0 disables the protocol
	MovingRate       float64       `yaml:"moving_rate"`        // ticks per second
	MovingMinSamples int           `yaml:"moving_min_samples"` // raw frames needed to pool

	// Pooled dataset
	PooledThreshold float64 `yaml:"pooled_threshold"` // MAD units
	MinPoints       int     `yaml:"min_points"`

	// Model
	Bulk       BulkKind                 `yaml:"bulk"`
	Trees      regress.ExtraTreesConfig `yaml:"trees"`
	RidgeAlpha float64                  `yaml:"ridge_alpha"`
	Neighbors  int                      `yaml:"neighbors"`
}

// Anchor is a normalized anchor position.
type Anchor struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// DefaultConfig returns the 9-point grid followed by an 18 s zigzag.
func DefaultConfig() Config {
	return Config{
		ScreenWidth:  1920,
		ScreenHeight: 1080,

		SamplesPerPoint: 30,
		PointTimeout:    5 * time.Second,
		AnchorThreshold: 2.5,

		MovingPath:       PathZigzag,
		MovingDuration:   18 * time.Second,
		MovingRate:       25,
		MovingMinSamples: 180,

		PooledThreshold: 2.5 * 1.5,
		MinPoints:       9,

		Bulk:       BulkExtraTrees,
		Trees:      regress.DefaultExtraTreesConfig(),
		RidgeAlpha: regress.DefaultRidgeAlpha,
		Neighbors:  regress.DefaultNeighbors,
	}
}

// QuickConfig is a shorter run: fewer frames per point and no moving target.
func QuickConfig() Config {
	cfg := DefaultConfig()
	cfg.SamplesPerPoint = 15
	cfg.PointTimeout = 3 * time.Second
	cfg.MovingDuration = 0
	cfg.Trees.Trees = 60
	return cfg
}

// minBurst is the fewest frames a burst may end with.
func (c Config) minBurst() int { return max(6, c.SamplesPerPoint/2) }

// minSurvivors is the fewest frames that must survive outlier rejection.
func (c Config) minSurvivors() int { return max(6, c.SamplesPerPoint/3) }

// anchorTargets returns the anchors in pixels.
func (c Config) anchorTargets() []Target {
	var out []Target
	if len(c.Anchors) == 0 {
		for _, a := range AnchorGrid {
			out = append(out, Scaled(a, c.ScreenWidth, c.ScreenHeight))
		}
		return out
	}
	for _, a := range c.Anchors {
		out = append(out, Target{X: a.X * float64(c.ScreenWidth), Y: a.Y * float64(c.ScreenHeight)})
	}
	return out
}
