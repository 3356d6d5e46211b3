// Package detection finds pupils and eye landmarks in camera frames.
package detection

import (
	"image"

	"gocv.io/x/gocv"
)

// Candidate is a dark blob that may be the pupil, in full-frame pixels.
type Candidate struct {
	X, Y       float64 // bounding-box center
	W, H       float64 // bounding-box size
	Area       float64 // contour area
	Confidence float64 // 0-1
}

// Center returns the candidate center.
func (c Candidate) Center() (x, y float64) {
	return c.X, c.Y
}

// Detector is the interface for pupil detection backends.
type Detector interface {
	// Detect finds pupil candidates in a BGR or grayscale frame.
	Detect(frame gocv.Mat) ([]Candidate, error)

	// Close releases resources
	Close() error
}

// ROI is a region of the frame as fractions of its size.
type ROI struct {
	X0, Y0, X1, Y1 float64
}

// Rect converts the fractions to pixels for a w x h frame.
func (r ROI) Rect(w, h int) image.Rectangle {
	return image.Rect(
		int(float64(w)*r.X0), int(float64(h)*r.Y0),
		int(float64(w)*r.X1), int(float64(h)*r.Y1),
	).Intersect(image.Rect(0, 0, w, h))
}

// Config holds detector configuration.
type Config struct {
	// Contour pupil search
	ROI       ROI     `yaml:"roi"`
	BlockSize int     `yaml:"block_size"` // adaptive threshold window, odd
	C         float64 `yaml:"c"`          // subtracted from the local mean
	MinArea   float64 `yaml:"min_area"`   // px²; smaller blobs are ignored

	// YuNet face model for the landmarker
	ModelPath        string  `yaml:"model_path"`
	ConfidenceThresh float64 `yaml:"confidence_thresh"`
	InputWidth       int     `yaml:"input_width"`
	InputHeight      int     `yaml:"input_height"`
}

// DefaultConfig returns defaults for a close-up eye camera: the pupil is
// searched in x 0.2..0.8, y 0.3..0.8.
func DefaultConfig() Config {
	return Config{
		ROI:       ROI{X0: 0.2, Y0: 0.3, X1: 0.8, Y1: 0.8},
		BlockSize: 21,
		C:         10,
		MinArea:   4,

		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// SelectBest picks the most likely pupil.
// Priority: confidence * 0.7 + relative area * 0.3
func SelectBest(cands []Candidate) *Candidate {
	if len(cands) == 0 {
		return nil
	}

	if len(cands) == 1 {
		return &cands[0]
	}

	maxArea := 0.0
	for _, c := range cands {
		if c.Area > maxArea {
			maxArea = c.Area
		}
	}

	bestScore := -1.0
	var best *Candidate

	for i := range cands {
		rel := 0.0
		if maxArea > 0 {
			rel = cands[i].Area / maxArea
		}
		score := cands[i].Confidence*0.7 + rel*0.3
		if score > bestScore {
			bestScore = score
			best = &cands[i]
		}
	}

	return best
}
