package tracking

import (
	"github.com/teslashibe/go-eyecue/internal/log"
	"github.com/teslashibe/go-eyecue/pkg/gaze"
	"github.com/teslashibe/go-eyecue/pkg/tracking/detection"

	"gocv.io/x/gocv"
)

// Perception turns camera frames into pupil pixels and keeps the miss count.
// It is not safe for concurrent use; Session serializes it.
type Perception struct {
	detector detection.Detector

	missLogThreshold int

	lastValid         gaze.Pixel
	hasLastValid      bool
	consecutiveMisses int
}

// NewPerception creates a perception stage around a pupil detector.
func NewPerception(config Config, detector detection.Detector) *Perception {
	return &Perception{
		detector:         detector,
		missLogThreshold: config.MissLogThreshold,
	}
}

// LocatePupil detects the pupil in frame. Detector errors count as misses.
func (p *Perception) LocatePupil(frame gocv.Mat) (gaze.Pixel, bool) {
	if p.detector == nil {
		return gaze.Pixel{}, false
	}

	cands, err := p.detector.Detect(frame)
	if err != nil {
		log.Track("pupil detection error", "error", err)
		p.miss()
		return gaze.Pixel{}, false
	}

	best := detection.SelectBest(cands)
	if best == nil {
		p.miss()
		return gaze.Pixel{}, false
	}

	x, y := best.Center()
	px := gaze.Pixel{X: x, Y: y}
	if p.consecutiveMisses >= p.missLogThreshold && p.missLogThreshold > 0 {
		log.Info("pupil reacquired", "after_misses", p.consecutiveMisses)
	}
	p.lastValid = px
	p.hasLastValid = true
	p.consecutiveMisses = 0
	log.Track("pupil", "x", px.X, "y", px.Y, "candidates", len(cands))
	return px, true
}

func (p *Perception) miss() {
	p.consecutiveMisses++
	if p.consecutiveMisses == p.missLogThreshold {
		log.Info("lost pupil", "consecutive_misses", p.consecutiveMisses)
	}
}

// ConsecutiveMisses returns how many consecutive detections have failed.
func (p *Perception) ConsecutiveMisses() int {
	return p.consecutiveMisses
}

// LastValid returns the last successfully detected pupil pixel.
func (p *Perception) LastValid() (gaze.Pixel, bool) {
	return p.lastValid, p.hasLastValid
}

// Reset clears the miss counter and the last pupil.
func (p *Perception) Reset() {
	p.consecutiveMisses = 0
	p.lastValid = gaze.Pixel{}
	p.hasLastValid = false
}
