package calibration

import (
	"github.com/teslashibe/go-eyecue/pkg/screen"
)

// Target is an on-screen calibration target in pixels.
type Target = screen.Point

// Sample pairs an augmented feature vector with the target the user was
// looking at.
type Sample struct {
	Features []float64    `json:"features"`
	Target   screen.Point `json:"target"`
}

// Result is the outcome of a collection run.
type Result struct {
	Samples       []Sample
	Anchors       []Sample // aggregated anchors in target order, before pooling
	AnchorSamples int
	MovingSamples int // aggregated ticks pooled from the moving target
	MovingFrames  int // raw frames seen during the moving target
	Rejected      int // removed by the pooled outlier pass
}
