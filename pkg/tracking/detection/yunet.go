package detection

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-eyecue/internal/log"
	"github.com/teslashibe/go-eyecue/pkg/features"
)

// Face is one YuNet detection in pixels.
type Face struct {
	Box        image.Rectangle
	LeftEye    features.Point // subject's left eye (image right)
	RightEye   features.Point
	Confidence float64
}

// Landmarker produces per-eye landmarks for the regression strategy.
type Landmarker interface {
	Landmarks(frame gocv.Mat) (features.Landmarks, bool)
	Close() error
}

// YuNetLandmarker uses OpenCV's FaceDetectorYN for the face and eye
// centers, then a contour pupil search inside each eye box for the iris.
type YuNetLandmarker struct {
	detector gocv.FaceDetectorYN
	pupils   *ContourDetector
	config   Config
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a landmarker using GoCV's built-in FaceDetectorYN.
func NewYuNet(cfg Config) (*YuNetLandmarker, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	// Input size is updated per frame.
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	eyeCfg := cfg
	eyeCfg.ROI = ROI{X0: 0, Y0: 0, X1: 1, Y1: 1}
	return &YuNetLandmarker{
		detector: detector,
		pupils:   NewContour(eyeCfg),
		config:   cfg,
	}, nil
}

// Faces runs the face detector on a BGR frame.
func (d *YuNetLandmarker) Faces(frame gocv.Mat) ([]Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faces(frame)
}

func (d *YuNetLandmarker) faces(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, ErrEmptyFrame
	}

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()
	d.detector.Detect(img, &out)

	var faces []Face
	for r := 0; r < out.Rows(); r++ {
		// YuNet output format (15 columns):
		// 0-3: x, y, w, h (bounding box in pixels)
		// 4-5: right eye, 6-7: left eye, 8-13: nose and mouth corners
		// 14: face score
		at := func(c int) float64 { return float64(out.GetFloatAt(r, c)) }
		x, y := int(at(0)), int(at(1))
		faces = append(faces, Face{
			Box:        image.Rect(x, y, x+int(at(2)), y+int(at(3))),
			RightEye:   features.Point{X: at(4), Y: at(5)},
			LeftEye:    features.Point{X: at(6), Y: at(7)},
			Confidence: at(14),
		})
	}

	if len(faces) > 0 {
		log.Track("yunet faces", "count", len(faces))
	}
	return faces, nil
}

// Landmarks implements Landmarker for the most confident face.
func (d *YuNetLandmarker) Landmarks(frame gocv.Mat) (features.Landmarks, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	faces, err := d.faces(frame)
	if err != nil || len(faces) == 0 {
		return features.Landmarks{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Confidence > best.Confidence {
			best = f
		}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	ipd := math.Hypot(best.LeftEye.X-best.RightEye.X, best.LeftEye.Y-best.RightEye.Y)
	if ipd < 1 {
		return features.Landmarks{}, false
	}
	return features.Landmarks{
		Left:  d.eye(gray, best.LeftEye, ipd),
		Right: d.eye(gray, best.RightEye, ipd),
	}, true
}

// eye builds landmarks around a YuNet eye center. The eye box is sized from
// the interpupillary distance; the pupil blob gives the iris center and the
// lid opening. Without a blob the iris sits at the eye center.
func (d *YuNetLandmarker) eye(gray gocv.Mat, center features.Point, ipd float64) features.Eye {
	halfW := 0.25 * ipd
	halfH := 0.5 * halfW
	box := image.Rect(
		int(center.X-halfW), int(center.Y-halfH),
		int(center.X+halfW), int(center.Y+halfH),
	).Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))

	iris := center
	open := 0.6 * halfH
	if !box.Empty() {
		cands, err := d.pupils.detectIn(gray, box)
		if best := SelectBest(cands); err == nil && best != nil {
			iris = features.Point{X: best.X, Y: best.Y}
			open = best.H / 2
		}
	}

	return features.Eye{
		Iris:   iris,
		Center: center,
		Contour: [6]features.Point{
			{X: center.X - halfW, Y: center.Y},
			{X: center.X - halfW/3, Y: center.Y - open},
			{X: center.X + halfW/3, Y: center.Y - open},
			{X: center.X + halfW, Y: center.Y},
			{X: center.X + halfW/3, Y: center.Y + open},
			{X: center.X - halfW/3, Y: center.Y + open},
		},
	}
}

// Close releases the detector resources
func (d *YuNetLandmarker) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
