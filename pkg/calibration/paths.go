package calibration

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-eyecue/pkg/screen"
)

// AnchorGrid is the default 3x3 anchor layout in normalized screen units,
// row by row from the top left.
var AnchorGrid = []screen.Point{
	{X: 0.1, Y: 0.1}, {X: 0.5, Y: 0.1}, {X: 0.9, Y: 0.1},
	{X: 0.1, Y: 0.5}, {X: 0.5, Y: 0.5}, {X: 0.9, Y: 0.5},
	{X: 0.1, Y: 0.9}, {X: 0.5, Y: 0.9}, {X: 0.9, Y: 0.9},
}

// Anchor indices in AnchorGrid used to derive a projector from gaze angles.
const (
	AnchorTopCenter    = 1
	AnchorMiddleLeft   = 3
	AnchorCenter       = 4
	AnchorMiddleRight  = 5
	AnchorBottomCenter = 7
)

// PathKind selects the moving-target trajectory.
type PathKind string

const (
	PathLine   PathKind = "line"
	PathZigzag PathKind = "zigzag"
	PathSpiral PathKind = "spiral"
)

// ParsePathKind validates a path name.
func ParsePathKind(s string) (PathKind, error) {
	switch k := PathKind(s); k {
	case PathLine, PathZigzag, PathSpiral:
		return k, nil
	case "":
		return PathZigzag, nil
	default:
		return "", fmt.Errorf("calibration: unknown path %q", s)
	}
}

// Path is a moving-target trajectory in normalized screen units.
type Path struct {
	Kind PathKind
	Rows int // zigzag rows
}

// NewPath sizes the zigzag so that a run of duration·rate steps visits
// roughly sqrt(steps) rows.
func NewPath(kind PathKind, steps int) Path {
	return Path{Kind: kind, Rows: max(2, int(math.Sqrt(float64(steps))))}
}

// At returns the target position at progress in [0, 1].
func (p Path) At(progress float64) screen.Point {
	t := math.Min(math.Max(progress, 0), 1)

	switch p.Kind {
	case PathLine:
		return screen.Point{X: 0.05 + 0.9*t, Y: 0.5}

	case PathSpiral:
		theta := 2 * math.Pi * t
		r := 0.45 * t
		return screen.Point{
			X: math.Min(math.Max(0.5+r*math.Cos(theta), 0), 1),
			Y: math.Min(math.Max(0.5+r*math.Sin(theta), 0), 1),
		}

	default: // zigzag: left-to-right, then right-to-left, row by row
		rows := max(2, p.Rows)
		s := t * float64(rows)
		row := min(int(s), rows-1)
		frac := s - float64(row)
		if row%2 == 1 {
			frac = 1 - frac
		}
		return screen.Point{
			X: 0.1 + 0.8*frac,
			Y: 0.1 + 0.8*float64(row)/float64(rows-1),
		}
	}
}

// Pixel returns the target position at progress in pixels. The spiral is a
// circle of radius 0.45·min(width, height) about the screen center; the
// other paths scale At to the screen.
func (p Path) Pixel(progress float64, width, height int) screen.Point {
	if p.Kind != PathSpiral {
		return Scaled(p.At(progress), width, height)
	}
	t := math.Min(math.Max(progress, 0), 1)
	w, h := float64(width), float64(height)
	theta := 2 * math.Pi * t
	r := 0.45 * math.Min(w, h) * t
	return screen.Point{
		X: math.Min(math.Max(w/2+r*math.Cos(theta), 0), w),
		Y: math.Min(math.Max(h/2+r*math.Sin(theta), 0), h),
	}
}

// Scaled converts a normalized point to pixels.
func Scaled(p screen.Point, width, height int) screen.Point {
	return screen.Point{X: p.X * float64(width), Y: p.Y * float64(height)}
}
