package gaze

import (
	"math"
	"testing"
)

func TestLinearModel_ROI(t *testing.T) {
	m := NewLinearModel(640, 480)

	// x in [128, 512], y in [144, 384]
	if m.roiCenterX != 320 || m.roiCenterY != 264 {
		t.Errorf("ROI center = (%v, %v), want (320, 264)", m.roiCenterX, m.roiCenterY)
	}
	if m.roiWidth != 384 || m.roiHeight != 240 {
		t.Errorf("ROI size = %vx%v, want 384x240", m.roiWidth, m.roiHeight)
	}
}

func TestLinearModel_Observe(t *testing.T) {
	m := NewLinearModel(640, 480)

	tests := []struct {
		name         string
		px           Pixel
		wantH, wantV int
	}{
		{"center", Pixel{X: 320, Y: 264}, 0, 0},
		{"right", Pixel{X: 400, Y: 264}, 1, 0},
		{"left", Pixel{X: 250, Y: 264}, -1, 0},
		{"up", Pixel{X: 320, Y: 200}, 0, 1},
		{"down", Pixel{X: 320, Y: 330}, 0, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, ok := m.Observe(tt.px)
			if !ok {
				t.Fatal("expected observation")
			}
			if sign(obs.Horizontal) != tt.wantH {
				t.Errorf("horizontal = %v, want sign %d", obs.Horizontal, tt.wantH)
			}
			if sign(obs.Vertical) != tt.wantV {
				t.Errorf("vertical = %v, want sign %d", obs.Vertical, tt.wantV)
			}
			if n := obs.Gaze.Norm(); math.Abs(n-1) > 1e-9 {
				t.Errorf("|gaze| = %v, want 1", n)
			}
		})
	}
}

func TestLinearModel_OffsetNormalized(t *testing.T) {
	m := NewLinearModel(640, 480)

	obs, ok := m.Observe(Pixel{X: 320 + 96, Y: 264 - 60})
	if !ok {
		t.Fatal("expected observation")
	}
	if math.Abs(obs.Offset[0]-0.25) > 1e-12 || math.Abs(obs.Offset[1]-0.25) > 1e-12 {
		t.Errorf("offset = %v, want [0.25 0.25]", obs.Offset)
	}
}

func TestLinearModel_EmptyFrame(t *testing.T) {
	m := NewLinearModel(0, 0)
	if _, ok := m.Observe(Pixel{X: 1, Y: 1}); ok {
		t.Error("zero-size ROI should not observe")
	}
}

func TestLinearModel_Reset(t *testing.T) {
	m := NewLinearModel(640, 480)
	m.Observe(Pixel{X: 320, Y: 264})
	m.Observe(Pixel{X: 330, Y: 264})
	if m.Updates() != 2 {
		t.Fatalf("updates = %d, want 2", m.Updates())
	}
	m.Reset()
	if m.Updates() != 0 {
		t.Errorf("updates after reset = %d", m.Updates())
	}
}
