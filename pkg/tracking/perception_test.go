package tracking

import (
	"errors"
	"sync"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-eyecue/pkg/gaze"
	"github.com/teslashibe/go-eyecue/pkg/tracking/detection"
)

// fakeDetector returns whatever next produces, or a fixed candidate list.
type fakeDetector struct {
	mu    sync.Mutex
	cands []detection.Candidate
	err   error
	next  func() []detection.Candidate
	calls int
}

func (d *fakeDetector) Detect(gocv.Mat) ([]detection.Candidate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if d.next != nil {
		return d.next(), nil
	}
	return d.cands, nil
}

func (d *fakeDetector) Close() error { return nil }

func (d *fakeDetector) set(cands []detection.Candidate, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cands, d.err = cands, err
}

func pupilAt(x, y float64) []detection.Candidate {
	return []detection.Candidate{{X: x, Y: y, W: 6, H: 6, Area: 28, Confidence: 1}}
}

func TestPerception_LocatePupil(t *testing.T) {
	det := &fakeDetector{cands: []detection.Candidate{
		{X: 100, Y: 100, W: 4, H: 4, Area: 10, Confidence: 0.3},
		{X: 300, Y: 250, W: 10, H: 8, Area: 60, Confidence: 0.9},
	}}
	p := NewPerception(DefaultConfig(), det)

	frame := gocv.NewMat()
	defer frame.Close()

	px, ok := p.LocatePupil(frame)
	if !ok {
		t.Fatal("expected a pupil")
	}
	if px != (gaze.Pixel{X: 300, Y: 250}) {
		t.Errorf("pupil = %v, want the best candidate (300, 250)", px)
	}
	if last, ok := p.LastValid(); !ok || last != px {
		t.Errorf("LastValid = %v, %v", last, ok)
	}
}

func TestPerception_Misses(t *testing.T) {
	det := &fakeDetector{}
	p := NewPerception(DefaultConfig(), det)

	frame := gocv.NewMat()
	defer frame.Close()

	for i := 0; i < 3; i++ {
		if _, ok := p.LocatePupil(frame); ok {
			t.Fatal("no candidates should be a miss")
		}
	}
	det.set(nil, errors.New("camera glitch"))
	if _, ok := p.LocatePupil(frame); ok {
		t.Fatal("detector error should be a miss")
	}
	if got := p.ConsecutiveMisses(); got != 4 {
		t.Errorf("ConsecutiveMisses = %d, want 4", got)
	}

	det.set(pupilAt(320, 240), nil)
	if _, ok := p.LocatePupil(frame); !ok {
		t.Fatal("expected reacquisition")
	}
	if got := p.ConsecutiveMisses(); got != 0 {
		t.Errorf("ConsecutiveMisses after hit = %d, want 0", got)
	}

	p.Reset()
	if _, ok := p.LastValid(); ok {
		t.Error("LastValid should be cleared by Reset")
	}
}

func TestPerception_NilDetector(t *testing.T) {
	p := NewPerception(DefaultConfig(), nil)
	frame := gocv.NewMat()
	defer frame.Close()

	if _, ok := p.LocatePupil(frame); ok {
		t.Error("nil detector should never find a pupil")
	}
}
