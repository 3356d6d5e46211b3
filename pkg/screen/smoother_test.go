package screen

import (
	"math"
	"testing"
)

func TestSmoother(t *testing.T) {
	start := Point{X: 960, Y: 540}
	s := NewSmoother(0, start)

	if s.Beta() != DefaultBeta {
		t.Fatalf("beta = %v, want %v", s.Beta(), DefaultBeta)
	}

	got := s.Update(Point{X: 1960, Y: 540}, true)
	if math.Abs(got.X-(960+0.28*1000)) > 1e-9 || got.Y != 540 {
		t.Errorf("first update = %v", got)
	}

	// A frame without a prediction keeps the last point.
	if held := s.Update(Point{}, false); held != got {
		t.Errorf("missing frame moved the point: %v -> %v", got, held)
	}

	for i := 0; i < 100; i++ {
		got = s.Update(Point{X: 100, Y: 100}, true)
	}
	if math.Abs(got.X-100) > 1e-6 || math.Abs(got.Y-100) > 1e-6 {
		t.Errorf("smoother should settle on a constant input, got %v", got)
	}

	s.Reset()
	if s.Current() != start || s.Primed() {
		t.Errorf("reset = %v primed=%v, want %v", s.Current(), s.Primed(), start)
	}
}
