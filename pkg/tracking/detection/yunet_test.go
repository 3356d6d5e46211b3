package detection

import (
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

// TestYuNetNewInvalidPath tests error handling for missing model
func TestYuNetNewInvalidPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"

	if _, err := NewYuNet(cfg); err == nil {
		t.Error("Expected error for invalid model path")
	}
}

// TestYuNetLandmarks_NoFace tests a frame without a face
func TestYuNetLandmarks_NoFace(t *testing.T) {
	d := newTestLandmarker(t)
	defer d.Close()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 240, 320, gocv.MatTypeCV8UC3)
	defer img.Close()

	faces, err := d.Faces(img)
	if err != nil {
		t.Fatalf("Faces failed: %v", err)
	}
	if len(faces) > 0 {
		t.Errorf("Expected no faces in solid color image, got %d", len(faces))
	}
	if _, ok := d.Landmarks(img); ok {
		t.Error("Expected no landmarks without a face")
	}
}

// TestYuNetFaces_EmptyImage tests detection on an empty Mat
func TestYuNetFaces_EmptyImage(t *testing.T) {
	d := newTestLandmarker(t)
	defer d.Close()

	img := gocv.NewMat()
	defer img.Close()
	if _, err := d.Faces(img); err == nil {
		t.Error("Expected error for empty image")
	}
}

// TestYuNetConcurrency tests thread safety
func TestYuNetConcurrency(t *testing.T) {
	d := newTestLandmarker(t)
	defer d.Close()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 100, 100, 0), 240, 320, gocv.MatTypeCV8UC3)
			defer img.Close()
			if _, err := d.Faces(img); err != nil {
				t.Errorf("Concurrent detection failed: %v", err)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

// Helper functions

func newTestLandmarker(t *testing.T) *YuNetLandmarker {
	t.Helper()
	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}
	cfg := DefaultConfig()
	cfg.ModelPath = modelPath
	d, err := NewYuNet(cfg)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	return d
}

func findModelPath() string {
	if cwd, err := os.Getwd(); err == nil {
		// Walk up to find models directory
		for dir := cwd; dir != "/"; dir = filepath.Dir(dir) {
			modelPath := filepath.Join(dir, "models", "face_detection_yunet.onnx")
			if _, err := os.Stat(modelPath); err == nil {
				return modelPath
			}
		}
	}
	return ""
}
