package screen

import (
	"math"
	"testing"
)

func TestProjector_CenterAndOffset(t *testing.T) {
	p := NewProjector(Geometry{Width: 1920, Height: 1080, DistancePx: 600})

	tests := []struct {
		name  string
		h, v  float64
		wantX float64
		wantY float64
	}{
		{"straight ahead", 0, 0, 960, 540},
		{"10 deg right", 10, 0, 960 + 600*math.Tan(Radians(10)), 540},
		{"10 deg left", -10, 0, 960 - 600*math.Tan(Radians(10)), 540},
		{"10 deg up", 0, 10, 960, 540 - 600*math.Tan(Radians(10))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Project(tt.h, tt.v, HeadRotation{})
			if math.Abs(got.X-tt.wantX) > 1e-9 || math.Abs(got.Y-tt.wantY) > 1e-9 {
				t.Errorf("Project(%v, %v) = %v, want (%v, %v)", tt.h, tt.v, got, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestProjector_AlwaysOnScreen(t *testing.T) {
	p := NewProjector(Geometry{Width: 1920, Height: 1080, DistancePx: 600})

	angles := []float64{-720, -180, -90, -89.9999, -45, -1, 0, 1, 45, 89.9999, 90, 135, 180, 1e6}
	for _, h := range angles {
		for _, v := range angles {
			got := p.Project(h, v, HeadRotation{H: 5, CenterH: 1})
			if got.X < 0 || got.X > 1919 || got.Y < 0 || got.Y > 1079 {
				t.Fatalf("Project(%v, %v) = %v, outside the screen", h, v, got)
			}
			if math.IsNaN(got.X) || math.IsNaN(got.Y) {
				t.Fatalf("Project(%v, %v) = %v, NaN", h, v, got)
			}
		}
	}
}

func TestProjector_HeadRotationShifts(t *testing.T) {
	p := NewProjector(Geometry{Width: 1920, Height: 1080, DistancePx: 600})

	still := p.Project(0, 0, HeadRotation{H: 12, V: -3, CenterH: 12, CenterV: -3})
	if still.X != 960 || still.Y != 540 {
		t.Errorf("head at its calibration pose moved the point: %v", still)
	}

	turned := p.Project(0, 0, HeadRotation{H: 5})
	if turned.X <= 960 {
		t.Errorf("head turned right should move x right, got %v", turned)
	}
}

func TestFromAnchorAngles(t *testing.T) {
	p, err := FromAnchorAngles(1920, 1080, -20, 20, 10, -6)
	if err != nil {
		t.Fatalf("FromAnchorAngles: %v", err)
	}

	g := p.Geometry()
	wantDist := 1920 / (2 * math.Tan(Radians(20)))
	if math.Abs(g.DistancePx-wantDist) > 1e-9 {
		t.Errorf("distance = %v, want %v", g.DistancePx, wantDist)
	}
	if g.EyeCenterH != 0 || g.EyeCenterV != 2 {
		t.Errorf("eye center = (%v, %v), want (0, 2)", g.EyeCenterH, g.EyeCenterV)
	}

	// Anchor extremes land on the screen edges.
	right := p.Project(20, 2, HeadRotation{})
	if math.Abs(right.X-1919) > 1e-6 {
		t.Errorf("right anchor x = %v, want the right edge", right.X)
	}
	center := p.Project(0, 2, HeadRotation{})
	if math.Abs(center.X-960) > 1e-9 || math.Abs(center.Y-540) > 1e-9 {
		t.Errorf("center anchor = %v, want (960, 540)", center)
	}

	if _, err := FromAnchorAngles(1920, 1080, 5, 5, 0, 0); err == nil {
		t.Error("expected error for zero horizontal spread")
	}
}

func TestDistanceHelpers(t *testing.T) {
	if got := DistanceFromMM(600, 0); got != 2100 {
		t.Errorf("DistanceFromMM default = %v, want 2100", got)
	}
	if got := DistanceFromMM(500, 4); got != 2000 {
		t.Errorf("DistanceFromMM = %v, want 2000", got)
	}

	want := 1920 / (2 * math.Tan(Radians(30)))
	if got := DistanceFromFOV(1920, 60); math.Abs(got-want) > 1e-9 {
		t.Errorf("DistanceFromFOV = %v, want %v", got, want)
	}
	if got := DistanceFromFOV(1920, 0); math.Abs(got-want) > 1e-9 {
		t.Errorf("DistanceFromFOV fallback = %v, want %v", got, want)
	}

	p := NewProjector(Geometry{Width: 1920, Height: 1080})
	if math.Abs(p.Geometry().DistancePx-want) > 1e-9 {
		t.Errorf("zero distance should fall back to the FOV default, got %v", p.Geometry().DistancePx)
	}
}
