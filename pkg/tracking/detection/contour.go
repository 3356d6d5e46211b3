package detection

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned for frames with no pixels.
var ErrEmptyFrame = errors.New("detection: empty frame")

// ContourDetector finds the pupil as the largest dark blob in a fixed ROI:
// adaptive mean threshold (inverted), external contours, bounding-box center.
type ContourDetector struct {
	cfg Config
}

// NewContour creates a contour detector.
func NewContour(cfg Config) *ContourDetector {
	if cfg.BlockSize < 3 {
		cfg.BlockSize = 21
	}
	if cfg.BlockSize%2 == 0 {
		cfg.BlockSize++
	}
	if cfg.ROI == (ROI{}) {
		cfg.ROI = ROI{X0: 0, Y0: 0, X1: 1, Y1: 1}
	}
	return &ContourDetector{cfg: cfg}
}

// Detect implements Detector. Every blob above MinArea is returned; the
// largest has confidence 1 and the rest scale with their area.
func (d *ContourDetector) Detect(frame gocv.Mat) ([]Candidate, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}

	var gray gocv.Mat
	if frame.Channels() == 1 {
		gray = frame.Clone()
	} else {
		gray = gocv.NewMat()
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}
	defer gray.Close()

	rect := d.cfg.ROI.Rect(gray.Cols(), gray.Rows())
	if rect.Empty() {
		return nil, fmt.Errorf("%w: roi %v", ErrEmptyFrame, rect)
	}
	return d.detectIn(gray, rect)
}

// detectIn runs the blob search inside rect of an 8-bit grayscale image.
func (d *ContourDetector) detectIn(gray gocv.Mat, rect image.Rectangle) ([]Candidate, error) {
	roi := gray.Region(rect)
	defer roi.Close()

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(roi, &thresh, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinaryInv,
		d.cfg.BlockSize, float32(d.cfg.C))

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var cands []Candidate
	maxArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < d.cfg.MinArea {
			continue
		}
		box := gocv.BoundingRect(contour)
		cands = append(cands, Candidate{
			X:    float64(rect.Min.X + box.Min.X + box.Dx()/2),
			Y:    float64(rect.Min.Y + box.Min.Y + box.Dy()/2),
			W:    float64(box.Dx()),
			H:    float64(box.Dy()),
			Area: area,
		})
		if area > maxArea {
			maxArea = area
		}
	}
	for i := range cands {
		cands[i].Confidence = cands[i].Area / maxArea
	}
	return cands, nil
}

// Close implements Detector.
func (d *ContourDetector) Close() error { return nil }
