package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-eyecue/internal/log"
	"github.com/teslashibe/go-eyecue/pkg/calibration"
	"github.com/teslashibe/go-eyecue/pkg/metrics"
	"github.com/teslashibe/go-eyecue/pkg/pointer"
	"github.com/teslashibe/go-eyecue/pkg/screen"
)

// ErrCalibrating is returned when a calibration is already running.
var ErrCalibrating = errors.New("tracking: calibration already running")

// FrameSource reads camera frames. gocv.VideoCapture satisfies it.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
}

// StateUpdater receives live tracking state, e.g. the web hub.
type StateUpdater interface {
	UpdateGaze(GazeEvent)
	UpdateCalibration(calibration.Transition)
}

// Recenterer captures the neutral head orientation after calibration.
type Recenterer interface {
	Recenter()
}

// GazeEvent is the per-frame state published to observers.
type GazeEvent struct {
	Time       time.Time `json:"ts"`
	Detected   bool      `json:"detected"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	RawX       float64   `json:"raw_x"`
	RawY       float64   `json:"raw_y"`
	H          float64   `json:"angle_h,omitempty"`
	V          float64   `json:"angle_v,omitempty"`
	Calibrated bool      `json:"calibrated"`
	Strategy   string    `json:"strategy"`
}

// CalibrationOutcome is what a successful Calibrate installed.
type CalibrationOutcome struct {
	Result   calibration.Result
	Report   *calibration.FitReport // regression
	Geometry *screen.Geometry       // sphere
}

// Tracker reads frames on a fixed interval, runs the session and drives the
// pointer. Calibrate borrows the same frame loop for sample collection.
type Tracker struct {
	config  Config
	frames  FrameSource
	session *Session

	pointer  *pointer.Toggle
	metrics  *metrics.Collector
	state    StateUpdater
	head     Recenterer
	sessions *calibration.Sessions

	mu          sync.RWMutex
	isRunning   bool
	mirror      bool
	interval    time.Duration
	tickerReset chan time.Duration
	feed        chan measurement
	signals     *calibration.Signals
	outcome     *CalibrationOutcome
	readFailed  bool
}

type measurement struct {
	v  []float64
	ok bool
}

// New creates a tracker. The pointer starts disabled unless
// config.PointerEnabled is set.
func New(config Config, frames FrameSource, session *Session, act pointer.Actuator) *Tracker {
	interval := config.FrameInterval
	if interval <= 0 {
		interval = DefaultConfig().FrameInterval
	}
	return &Tracker{
		config:      config,
		frames:      frames,
		session:     session,
		pointer:     pointer.NewToggle(act, config.PointerEnabled),
		metrics:     metrics.New(metrics.DefaultWindow),
		sessions:    calibration.NewSessions(),
		mirror:      config.Mirror,
		interval:    interval,
		tickerReset: make(chan time.Duration, 1),
	}
}

// SetStateUpdater sets the live state observer.
func (t *Tracker) SetStateUpdater(state StateUpdater) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
}

// SetHead sets the head sensor recentered after each calibration.
func (t *Tracker) SetHead(h Recenterer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.head = h
}

// Session returns the tracking session.
func (t *Tracker) Session() *Session { return t.session }

// Metrics returns the frame metrics collector.
func (t *Tracker) Metrics() *metrics.Collector { return t.metrics }

// Sessions returns the calibration session store.
func (t *Tracker) Sessions() *calibration.Sessions { return t.sessions }

// Pointer returns the pointer switch.
func (t *Tracker) Pointer() *pointer.Toggle { return t.pointer }

// Run starts the frame loop and blocks until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.currentInterval())
	defer ticker.Stop()

	frame := gocv.NewMat()
	defer frame.Close()

	t.setRunning(true)
	defer t.setRunning(false)

	log.Info("gaze tracker started",
		"strategy", t.session.Strategy().Name(),
		"interval", t.currentInterval(),
		"mirror", t.Mirror(),
		"pointer", t.pointer.Enabled())

	for {
		select {
		case <-ctx.Done():
			log.Info("gaze tracker stopped")
			return nil

		case d := <-t.tickerReset:
			ticker.Reset(d)
			log.Info("frame interval changed", "interval", d)

		case <-ticker.C:
			t.step(&frame)
		}
	}
}

// step reads and handles one frame.
func (t *Tracker) step(frame *gocv.Mat) {
	if !t.frames.Read(frame) {
		t.mu.Lock()
		first := !t.readFailed
		t.readFailed = true
		t.mu.Unlock()
		if first {
			log.Warn("camera read failed")
		}
		t.metrics.Record(metrics.Frame{})
		return
	}

	t.mu.Lock()
	t.readFailed = false
	mirror, feed, state := t.mirror, t.feed, t.state
	t.mu.Unlock()

	if mirror && !frame.Empty() {
		gocv.Flip(*frame, frame, 1)
	}

	if feed != nil {
		v, ok := t.session.Measure(*frame)
		select {
		case feed <- measurement{v: v, ok: ok}:
		default:
		}
		return
	}

	g := t.session.Process(*frame)
	mf := metrics.Frame{Detected: g.OK, Latency: g.Latency}
	if g.Observation != nil {
		mf.Pupil = [2]float64{g.Pixel.X, g.Pixel.Y}
		mf.Angles = [2]float64{g.Observation.Horizontal, g.Observation.Vertical}
		mf.HasAngles = true
	}
	t.metrics.Record(mf)

	if g.OK && g.HasPoint {
		x, y := g.Smoothed.Ints()
		if err := t.pointer.MoveTo(x, y); err != nil {
			log.Track("pointer move failed", "error", err)
		}
	}

	if state != nil {
		state.UpdateGaze(t.event(g))
	}
}

func (t *Tracker) event(g Gaze) GazeEvent {
	x, y := g.Smoothed.Ints()
	ev := GazeEvent{
		Time:       time.Now(),
		Detected:   g.OK,
		X:          x,
		Y:          y,
		RawX:       g.Point.X,
		RawY:       g.Point.Y,
		Calibrated: g.Calibrated,
		Strategy:   t.session.Strategy().Name(),
	}
	if g.Observation != nil {
		ev.H, ev.V = g.Observation.Angles()
	}
	return ev
}

// Calibrate runs a calibration against live frames. The frame loop must be
// running. On success the regression strategy's calibrator is retrained or
// the sphere strategy's projector is rebuilt from the anchor angles.
func (t *Tracker) Calibrate(ctx context.Context, d calibration.Display, op calibration.Operator) (CalibrationOutcome, error) {
	feed := make(chan measurement, 64)
	t.mu.Lock()
	if t.feed != nil {
		t.mu.Unlock()
		return CalibrationOutcome{}, ErrCalibrating
	}
	t.feed = feed
	state, head := t.state, t.head
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.feed = nil
		t.mu.Unlock()
	}()

	cc := t.config.calibrationConfig()
	regression, _ := t.session.Strategy().(*RegressionStrategy)
	var augment calibration.Augmenter
	if regression != nil {
		augment = regression.Calibrator().AugmentRaw
	}

	src := calibration.SourceFunc(func(ctx context.Context) ([]float64, bool, error) {
		select {
		case m := <-feed:
			return m.v, m.ok, nil
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	})

	s := calibration.NewSampler(cc, src, augment)
	s.SetSessions(t.sessions)
	if state != nil {
		s.Machine().OnTransition(state.UpdateCalibration)
	}

	res, err := s.Run(ctx, d, op)
	out := CalibrationOutcome{Result: res}
	if err != nil {
		return out, err
	}

	if regression != nil {
		report, err := regression.Calibrator().Fit(res.Samples)
		if cerr := s.Complete(err); cerr != nil {
			log.Warn("calibration state", "error", cerr)
		}
		if err != nil {
			return out, fmt.Errorf("tracking: train: %w", err)
		}
		out.Report = &report
	} else {
		proj, err := projectorFromAnchors(res.Anchors, cc.ScreenWidth, cc.ScreenHeight)
		if cerr := s.Complete(err); cerr != nil {
			log.Warn("calibration state", "error", cerr)
		}
		if err != nil {
			return out, err
		}
		t.session.InstallProjector(proj)
		g := proj.Geometry()
		out.Geometry = &g
		log.Info("projector calibrated", "distance_px", fmt.Sprintf("%.0f", g.DistancePx),
			"center_h", fmt.Sprintf("%.2f", g.EyeCenterH), "center_v", fmt.Sprintf("%.2f", g.EyeCenterV))
	}

	if head != nil {
		head.Recenter()
	}
	t.mu.Lock()
	t.outcome = &out
	t.mu.Unlock()
	return out, nil
}

// projectorFromAnchors builds the projector from the median gaze angles at
// the middle-left/right and top/bottom-center anchors. The anchors sit
// inside the screen edges, so the distance is scaled by their span.
func projectorFromAnchors(anchors []calibration.Sample, width, height int) (*screen.Projector, error) {
	if len(anchors) <= calibration.AnchorBottomCenter {
		return nil, fmt.Errorf("%w: %d anchors, need the 3x3 grid", calibration.ErrInsufficientData, len(anchors))
	}
	at := func(i, dim int) (float64, error) {
		f := anchors[i].Features
		if len(f) < 2 {
			return 0, fmt.Errorf("%w: anchor %d has %d values", calibration.ErrDimensionMismatch, i, len(f))
		}
		return f[dim], nil
	}
	left, err := at(calibration.AnchorMiddleLeft, 0)
	if err != nil {
		return nil, err
	}
	right, err := at(calibration.AnchorMiddleRight, 0)
	if err != nil {
		return nil, err
	}
	top, err := at(calibration.AnchorTopCenter, 1)
	if err != nil {
		return nil, err
	}
	bottom, err := at(calibration.AnchorBottomCenter, 1)
	if err != nil {
		return nil, err
	}

	p, err := screen.FromAnchorAngles(width, height, left, right, top, bottom)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", calibration.ErrDegenerateInput, err)
	}
	span := (anchors[calibration.AnchorMiddleRight].Target.X - anchors[calibration.AnchorMiddleLeft].Target.X) / float64(width)
	if span <= 0 || span > 1 {
		return p, nil
	}
	g := p.Geometry()
	g.DistancePx *= span
	return screen.NewProjector(g), nil
}

// StartCalibration runs Calibrate in the background, driven by the returned
// signals. It fails if a calibration is already running.
func (t *Tracker) StartCalibration(ctx context.Context, d calibration.Display) (*calibration.Signals, error) {
	sig := calibration.NewSignals()
	t.mu.Lock()
	if t.signals != nil {
		t.mu.Unlock()
		return nil, ErrCalibrating
	}
	t.signals = sig
	t.mu.Unlock()

	go func() {
		defer func() {
			t.mu.Lock()
			t.signals = nil
			t.mu.Unlock()
		}()
		if _, err := t.Calibrate(ctx, d, sig); err != nil {
			log.Warn("calibration ended", "error", err)
		}
	}()
	return sig, nil
}

// ConfirmCalibration forwards an operator confirm. It reports false when no
// calibration is running.
func (t *Tracker) ConfirmCalibration() bool {
	t.mu.RLock()
	sig := t.signals
	t.mu.RUnlock()
	if sig == nil {
		return false
	}
	sig.Confirm()
	return true
}

// AbortCalibration forwards an operator abort.
func (t *Tracker) AbortCalibration(reason string) bool {
	t.mu.RLock()
	sig := t.signals
	t.mu.RUnlock()
	if sig == nil {
		return false
	}
	sig.Abort(reason)
	return true
}

// Calibrating reports whether a calibration is collecting frames.
func (t *Tracker) Calibrating() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.feed != nil
}

// LastCalibration returns the most recent successful outcome.
func (t *Tracker) LastCalibration() (CalibrationOutcome, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.outcome == nil {
		return CalibrationOutcome{}, false
	}
	return *t.outcome, true
}

// Reset clears tracking state and metrics. Calibration is kept.
func (t *Tracker) Reset() {
	t.session.Reset()
	t.metrics.Reset()
	log.Info("tracking reset")
}

// SetMirror toggles horizontal frame flipping.
func (t *Tracker) SetMirror(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mirror = on
}

// Mirror reports whether frames are flipped.
func (t *Tracker) Mirror() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mirror
}

// IsRunning reports whether the frame loop is active.
func (t *Tracker) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isRunning
}

func (t *Tracker) setRunning(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.isRunning = on
}

func (t *Tracker) currentInterval() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.interval
}

// Status is a snapshot for the control API.
type Status struct {
	Running        bool   `json:"running"`
	Strategy       string `json:"strategy"`
	Calibrating    bool   `json:"calibrating"`
	Calibrated     bool   `json:"calibrated"`
	PointerEnabled bool   `json:"pointer_enabled"`
	Mirror         bool   `json:"mirror"`
	Frames         int    `json:"frames"`
	Detections     int    `json:"detections"`

	Last   GazeEvent              `json:"last"`
	Report *calibration.FitReport `json:"report,omitempty"`
}

// Status returns the current tracker state.
func (t *Tracker) Status() Status {
	frames, hits := t.session.Counts()
	last := t.session.Last()

	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Status{
		Running:        t.isRunning,
		Strategy:       t.session.Strategy().Name(),
		Calibrating:    t.feed != nil,
		Calibrated:     t.outcome != nil,
		PointerEnabled: t.pointer.Enabled(),
		Mirror:         t.mirror,
		Frames:         frames,
		Detections:     hits,
		Last:           t.event(last),
	}
	if t.outcome != nil {
		s.Report = t.outcome.Report
	}
	return s
}
