package pointer

import (
	"github.com/go-vgo/robotgo"
)

// System drives the real cursor through robotgo.
type System struct{}

// NewSystem returns the desktop actuator.
func NewSystem() System { return System{} }

// MoveTo implements Actuator.
func (System) MoveTo(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

// ScreenSize returns the primary display size in pixels.
func ScreenSize() (width, height int) {
	return robotgo.GetScreenSize()
}
