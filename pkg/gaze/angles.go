package gaze

import "math"

// Degrees converts radians to degrees for logging/display.
func Degrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}

// anglesFromGaze returns (horizontal, vertical) in degrees for a unit gaze
// vector in camera space (+X right, +Y down, +Z into the scene).
// A vector pointing back at the camera yields (0, 0).
func anglesFromGaze(gx, gy, gz float64) (h, v float64) {
	h = Degrees(math.Atan2(gx, -gz))  // + = right
	v = Degrees(math.Atan2(-gy, -gz)) // + = up
	return h, v
}
