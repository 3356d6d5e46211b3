package features

import (
	"math"
	"testing"
)

// eyeAt builds an eye 40 px wide centered at c with the iris shifted by d.
func eyeAt(c, d Point) Eye {
	return Eye{
		Iris:   c.add(d),
		Center: c,
		Contour: [6]Point{
			{c.X - 20, c.Y},
			{c.X - 7, c.Y - 6},
			{c.X + 7, c.Y - 6},
			{c.X + 20, c.Y},
			{c.X + 7, c.Y + 6},
			{c.X - 7, c.Y + 6},
		},
	}
}

func TestExtract_Centered(t *testing.T) {
	lm := Landmarks{
		Left:  eyeAt(Point{X: 400, Y: 200}, Point{}),
		Right: eyeAt(Point{X: 300, Y: 200}, Point{}),
	}

	v := Extract(lm)
	if v.IsZero() {
		t.Fatal("valid landmarks produced the zero vector")
	}

	// Irises on their eye centers: relative and average vectors vanish.
	for _, i := range []int{4, 5, 6, 7, AvgVecX, AvgVecY, EyeCenterY, EyeCenterDY} {
		if math.Abs(v[i]) > 1e-12 {
			t.Errorf("%s = %v, want 0", Names[i], v[i])
		}
	}
	if math.Abs(v[LeftIrisX]-0.5) > 1e-12 || math.Abs(v[RightIrisX]+0.5) > 1e-12 {
		t.Errorf("iris norm x = (%v, %v), want (0.5, -0.5)", v[LeftIrisX], v[RightIrisX])
	}
	if math.Abs(v[InterX]-1) > 1e-12 {
		t.Errorf("inter x = %v, want 1", v[InterX])
	}

	wantEAR := (12.0 + 12.0) / (2 * 40)
	if math.Abs(v[LeftEAR]-wantEAR) > 1e-12 || math.Abs(v[RightEAR]-wantEAR) > 1e-12 {
		t.Errorf("EAR = (%v, %v), want %v", v[LeftEAR], v[RightEAR], wantEAR)
	}
}

func TestExtract_GazeShift(t *testing.T) {
	shift := Point{X: 8, Y: -4}
	lm := Landmarks{
		Left:  eyeAt(Point{X: 400, Y: 200}, shift),
		Right: eyeAt(Point{X: 300, Y: 200}, shift),
	}

	v := Extract(lm)
	if math.Abs(v[AvgVecX]-0.08) > 1e-12 || math.Abs(v[AvgVecY]+0.04) > 1e-12 {
		t.Errorf("avg vec = (%v, %v), want (0.08, -0.04)", v[AvgVecX], v[AvgVecY])
	}
	if math.Abs(v[4]-0.2) > 1e-12 || math.Abs(v[5]+0.1) > 1e-12 {
		t.Errorf("left rel = (%v, %v), want (0.2, -0.1)", v[4], v[5])
	}
}

func TestExtract_NonFinite(t *testing.T) {
	lm := Landmarks{
		Left:  eyeAt(Point{X: math.NaN(), Y: 200}, Point{}),
		Right: eyeAt(Point{X: 300, Y: 200}, Point{}),
	}
	if v := Extract(lm); !v.IsZero() {
		t.Errorf("NaN landmarks should give the zero vector, got %v", v)
	}
}

func TestAspectRatio_Degenerate(t *testing.T) {
	var e Eye
	if got := e.AspectRatio(); got != defaultEAR {
		t.Errorf("AspectRatio of a collapsed eye = %v, want %v", got, defaultEAR)
	}
}

func TestFromSlice(t *testing.T) {
	v := FromSlice([]float64{1, 2, 3})
	if v[0] != 1 || v[2] != 3 || v[3] != 0 || v[Dim-1] != 0 {
		t.Errorf("short slice not zero-padded: %v", v)
	}

	long := make([]float64, Dim+4)
	for i := range long {
		long[i] = float64(i)
	}
	v = FromSlice(long)
	if v[Dim-1] != Dim-1 {
		t.Errorf("long slice not truncated: %v", v)
	}
	if s := v.Slice(); len(s) != Dim {
		t.Errorf("Slice len = %d", len(s))
	}
}
