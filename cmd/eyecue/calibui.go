package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-eyecue/pkg/calibration"
)

const (
	keySpace = 32
	keyEsc   = 27
	keyQ     = 'q'
)

// operatorKeys receives the window's confirm and abort key presses.
type operatorKeys interface {
	ConfirmCalibration() bool
	AbortCalibration(reason string) bool
}

// calibWindow is a fullscreen gocv window that draws calibration targets.
// ShowTarget, ShowMoving and Clear only record state; Loop renders it and
// must run on the main thread.
type calibWindow struct {
	keys          operatorKeys
	width, height int

	mu      sync.Mutex
	visible bool
	target  calibration.Target
	moving  bool
	index   int
	total   int
}

func newCalibWindow(keys operatorKeys, width, height int) *calibWindow {
	return &calibWindow{keys: keys, width: width, height: height}
}

// ShowTarget implements calibration.Display.
func (w *calibWindow) ShowTarget(index, total int, t calibration.Target) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible, w.moving = true, false
	w.target, w.index, w.total = t, index, total
}

// ShowMoving implements calibration.Display.
func (w *calibWindow) ShowMoving(t calibration.Target) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible, w.moving = true, true
	w.target = t
}

// Clear implements calibration.Display.
func (w *calibWindow) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visible = false
}

type frameState struct {
	visible, moving bool
	target          calibration.Target
	index, total    int
}

func (w *calibWindow) state() frameState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return frameState{w.visible, w.moving, w.target, w.index, w.total}
}

// Loop shows the window while a calibration is displayed and forwards keys:
// space confirms, esc or q aborts. It returns when ctx is done.
func (w *calibWindow) Loop(ctx context.Context) {
	var win *gocv.Window
	defer func() {
		if win != nil {
			_ = win.Close()
		}
	}()

	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), w.height, w.width, gocv.MatTypeCV8UC3)
	defer canvas.Close()

	for ctx.Err() == nil {
		st := w.state()
		if !st.visible {
			if win != nil {
				_ = win.Close()
				win = nil
			}
			select {
			case <-ctx.Done():
			case <-time.After(30 * time.Millisecond):
			}
			continue
		}
		if win == nil {
			win = gocv.NewWindow("eyecue calibration")
			win.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
		}

		w.draw(&canvas, st)
		win.IMShow(canvas)
		switch key := win.WaitKey(15); key {
		case keySpace:
			w.keys.ConfirmCalibration()
		case keyEsc, keyQ:
			w.keys.AbortCalibration("quit key")
		}
	}
}

func (w *calibWindow) draw(canvas *gocv.Mat, st frameState) {
	canvas.SetTo(gocv.NewScalar(0, 0, 0, 0))

	x, y := st.target.Ints()
	center := image.Pt(x, y)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	red := color.RGBA{R: 255, G: 40, B: 40, A: 255}

	gocv.Circle(canvas, center, 22, white, 2)
	gocv.Circle(canvas, center, 6, red, -1)

	msg := "follow the dot"
	if !st.moving {
		msg = fmt.Sprintf("point %d/%d: look at the dot and press space (esc to quit)", st.index+1, st.total)
	}
	gocv.PutText(canvas, msg, image.Pt(40, w.height-40), gocv.FontHersheySimplex, 0.9, white, 2)
}
