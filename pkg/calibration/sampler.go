package calibration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-eyecue/internal/log"
)

// Source yields one raw feature vector per processed camera frame.
type Source interface {
	// Next blocks until the next frame. ok is false when the frame produced
	// nothing usable (no face, no pupil).
	Next(ctx context.Context) (v []float64, ok bool, err error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]float64, bool, error)

// Next implements Source.
func (f SourceFunc) Next(ctx context.Context) ([]float64, bool, error) { return f(ctx) }

// Augmenter turns a raw vector into the stored sample features. Nil keeps
// the raw vector.
type Augmenter func(raw []float64) []float64

// Display renders calibration targets. Implementations must not block.
type Display interface {
	ShowTarget(index, total int, t Target)
	ShowMoving(t Target)
	Clear()
}

// Operator forwards the user's confirm and abort signals.
type Operator interface {
	Confirmed() <-chan struct{}
	Aborted() <-chan struct{}
}

// Signals is a channel-backed Operator driven by a UI or an API.
type Signals struct {
	confirm chan struct{}
	abort   chan struct{}
	once    sync.Once

	mu     sync.Mutex
	reason string
}

// NewSignals creates an Operator with no pending signals.
func NewSignals() *Signals {
	return &Signals{
		confirm: make(chan struct{}, 1),
		abort:   make(chan struct{}),
	}
}

// Confirm signals readiness for the current target. Repeated confirms before
// the sampler consumes one collapse into one.
func (s *Signals) Confirm() {
	select {
	case s.confirm <- struct{}{}:
	default:
	}
}

// Abort stops the run. Only the first call's reason is kept.
func (s *Signals) Abort(reason string) {
	s.once.Do(func() {
		s.mu.Lock()
		s.reason = reason
		s.mu.Unlock()
		close(s.abort)
	})
}

// Reason returns the abort reason.
func (s *Signals) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Confirmed implements Operator.
func (s *Signals) Confirmed() <-chan struct{} { return s.confirm }

// Aborted implements Operator.
func (s *Signals) Aborted() <-chan struct{} { return s.abort }

// Sampler runs the anchor and moving-target protocols and reduces each
// burst to one robust sample. A Sampler runs one calibration at a time.
type Sampler struct {
	cfg     Config
	src     Source
	augment Augmenter
	machine *Machine

	sessions *Sessions
	session  uuid.UUID

	targets []Target
	index   int

	now func() time.Time
}

// NewSampler creates a sampler reading frames from src.
func NewSampler(cfg Config, src Source, augment Augmenter) *Sampler {
	return &Sampler{
		cfg:     cfg,
		src:     src,
		augment: augment,
		machine: NewMachine(),
		targets: cfg.anchorTargets(),
		index:   -1,
		now:     time.Now,
	}
}

// Machine exposes the state machine for observers.
func (s *Sampler) Machine() *Machine { return s.machine }

// SetSessions records runs in store.
func (s *Sampler) SetSessions(store *Sessions) { s.sessions = store }

// Targets returns the anchor targets in pixels.
func (s *Sampler) Targets() []Target { return append([]Target(nil), s.targets...) }

// StartAnchorPoint selects anchor i and waits for confirmation.
func (s *Sampler) StartAnchorPoint(i int) (Target, error) {
	if i < 0 || i >= len(s.targets) {
		return Target{}, fmt.Errorf("calibration: anchor %d out of range [0, %d)", i, len(s.targets))
	}
	t := s.targets[i]
	s.index = i
	if s.machine.State() == StateWaiting {
		return t, nil
	}
	if err := s.machine.To(StateWaiting, s.transition(t, "")); err != nil {
		return Target{}, err
	}
	return t, nil
}

// WaitConfirm blocks until the operator confirms, aborts or ctx ends.
func (s *Sampler) WaitConfirm(ctx context.Context, op Operator) error {
	select {
	case <-op.Confirmed():
		return nil
	case <-op.Aborted():
		return abortError(op)
	case <-ctx.Done():
		return aborted(ctx)
	}
}

// CollectBurst gathers up to SamplesPerPoint frames for the current anchor
// until deadline and aggregates them. Failures return the machine to
// waiting so the point can be retried.
func (s *Sampler) CollectBurst(ctx context.Context, target Target, deadline time.Time) (Sample, error) {
	if err := s.machine.To(StateCollecting, s.transition(target, "")); err != nil {
		return Sample{}, err
	}

	// A stalled source must not outlive the deadline.
	burstCtx, cancel := context.WithTimeout(ctx, deadline.Sub(s.now()))
	defer cancel()

	var burst [][]float64
	for len(burst) < s.cfg.SamplesPerPoint && s.now().Before(deadline) && burstCtx.Err() == nil {
		v, ok, err := s.src.Next(burstCtx)
		if err != nil {
			if ctx.Err() != nil {
				return Sample{}, aborted(ctx)
			}
			if burstCtx.Err() != nil {
				break
			}
			return Sample{}, fmt.Errorf("calibration: read frame: %w", err)
		}
		if !ok || allZero(v) {
			continue
		}
		burst = append(burst, s.features(v))
	}
	if ctx.Err() != nil {
		return Sample{}, aborted(ctx)
	}

	if len(burst) < s.cfg.minBurst() {
		err := &PointError{Index: s.index, Err: fmt.Errorf("%w: %d of %d before deadline",
			ErrInsufficientSamples, len(burst), s.cfg.minBurst())}
		_ = s.machine.To(StateWaiting, s.transition(target, err.Error()))
		return Sample{}, err
	}

	if err := s.machine.To(StateAggregating, s.transition(target, "")); err != nil {
		return Sample{}, err
	}
	agg, kept, err := Aggregate(burst, s.cfg.AnchorThreshold, 0)
	if err == nil && len(kept) < s.cfg.minSurvivors() {
		err = fmt.Errorf("%w: %d of %d kept", ErrTooManyOutliers, len(kept), len(burst))
	}
	if err != nil {
		perr := &PointError{Index: s.index, Err: err}
		_ = s.machine.To(StateWaiting, s.transition(target, perr.Error()))
		return Sample{}, perr
	}

	log.Debug("calibration point aggregated", "index", s.index, "frames", len(burst), "kept", len(kept))
	return Sample{Features: agg, Target: target}, nil
}

// StartMovingPath drives the moving target for duration. Every tick reads
// frames until the next tick is due; each tick's burst becomes one sample at
// the path position shown. It also returns the raw frame count.
func (s *Sampler) StartMovingPath(ctx context.Context, d Display, kind PathKind, duration time.Duration) ([]Sample, int, error) {
	if err := s.machine.To(StateMoving, Transition{Index: -1, Total: len(s.targets)}); err != nil {
		return nil, 0, err
	}

	rate := s.cfg.MovingRate
	if rate <= 0 {
		rate = 25
	}
	interval := time.Duration(float64(time.Second) / rate)
	path := NewPath(kind, int(duration.Seconds()*rate))

	var out []Sample
	frames := 0
	start := s.now()
	for {
		if ctx.Err() != nil {
			return out, frames, aborted(ctx)
		}
		elapsed := s.now().Sub(start)
		if elapsed >= duration {
			break
		}
		target := path.Pixel(float64(elapsed)/float64(duration), s.cfg.ScreenWidth, s.cfg.ScreenHeight)
		d.ShowMoving(target)

		tickEnd := s.now().Add(interval)
		burst, err := s.tick(ctx, tickEnd, interval)
		frames += len(burst)
		if err != nil {
			return out, frames, err
		}
		if len(burst) == 0 {
			continue
		}
		if agg, _, err := Aggregate(burst, s.cfg.AnchorThreshold, 0); err == nil {
			out = append(out, Sample{Features: agg, Target: target})
		}
	}

	log.Info("moving target finished", "path", kind, "frames", frames, "samples", len(out))
	return out, frames, nil
}

// tick reads frames until tickEnd. A source that stalls past the tick ends
// it with whatever was read.
func (s *Sampler) tick(ctx context.Context, tickEnd time.Time, interval time.Duration) ([][]float64, error) {
	tickCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	var burst [][]float64
	for {
		v, ok, err := s.src.Next(tickCtx)
		if err != nil {
			if ctx.Err() != nil {
				return burst, aborted(ctx)
			}
			if tickCtx.Err() != nil {
				return burst, nil
			}
			return burst, fmt.Errorf("calibration: read frame: %w", err)
		}
		if ok && !allZero(v) {
			burst = append(burst, s.features(v))
		}
		if !s.now().Before(tickEnd) || tickCtx.Err() != nil {
			return burst, nil
		}
	}
}

// Run collects every anchor (retrying failed points until the operator
// aborts), then the moving target when enabled, pools both and applies the
// coarse outlier pass. On success the machine is left in StateTraining;
// call Complete with the training result.
//
// Cancelling ctx or an operator abort stops collection with ErrAborted.
func (s *Sampler) Run(ctx context.Context, d Display, op Operator) (Result, error) {
	s.machine.Reset()
	s.index = -1

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-op.Aborted():
			cancel(abortError(op))
		case <-ctx.Done():
		}
	}()

	if s.sessions != nil {
		s.session = s.sessions.Start(s.protocol(), len(s.targets)).ID
	}

	var res Result
	if len(s.targets) == 0 {
		return res, s.fail(d, fmt.Errorf("%w: no anchors configured", ErrInsufficientData))
	}

	var pool []Sample
	for i := 0; i < len(s.targets); {
		t, err := s.StartAnchorPoint(i)
		if err != nil {
			return res, s.fail(d, err)
		}
		drain(op.Confirmed())
		d.ShowTarget(i, len(s.targets), t)

		if err := s.WaitConfirm(ctx, op); err != nil {
			return res, s.abort(d, err)
		}
		sample, err := s.CollectBurst(ctx, t, s.now().Add(s.cfg.PointTimeout))
		switch {
		case err == nil:
		case IsRetryable(err):
			log.Warn("calibration point rejected, retry", "index", i, "error", err)
			continue
		case errors.Is(err, ErrAborted):
			return res, s.abort(d, err)
		default:
			return res, s.fail(d, err)
		}

		pool = append(pool, sample)
		res.Anchors = append(res.Anchors, sample)
		res.AnchorSamples++
		if s.sessions != nil {
			_, _ = s.sessions.RecordNode(s.session, i, map[string]any{"x": t.X, "y": t.Y})
		}
		i++
	}

	if s.cfg.MovingDuration > 0 {
		moving, frames, err := s.StartMovingPath(ctx, d, s.cfg.MovingPath, s.cfg.MovingDuration)
		res.MovingFrames = frames
		switch {
		case errors.Is(err, ErrAborted):
			return res, s.abort(d, err)
		case err != nil:
			return res, s.fail(d, err)
		case frames >= s.cfg.MovingMinSamples:
			pool = append(pool, moving...)
			res.MovingSamples = len(moving)
		default:
			log.Warn("moving target collected few frames, using anchors only",
				"frames", frames, "min", s.cfg.MovingMinSamples)
		}
	}
	d.Clear()

	if len(pool) < s.cfg.MinPoints {
		return res, s.fail(d, fmt.Errorf("%w: %d samples, need %d", ErrInsufficientData, len(pool), s.cfg.MinPoints))
	}

	kept, removed := RejectOutliers(pool, s.cfg.PooledThreshold)
	res.Samples = kept
	res.Rejected = removed
	log.Info("calibration samples pooled", "anchors", res.AnchorSamples, "moving", res.MovingSamples,
		"kept", len(kept), "rejected", removed)

	if len(kept) < s.cfg.MinPoints {
		return res, s.fail(d, fmt.Errorf("%w: %d samples after outlier rejection, need %d",
			ErrInsufficientData, len(kept), s.cfg.MinPoints))
	}

	if err := s.machine.To(StateTraining, Transition{Index: -1, Total: len(s.targets)}); err != nil {
		return res, err
	}
	return res, nil
}

// Complete ends a run left in StateTraining: Trained when trainErr is nil,
// Failed otherwise.
func (s *Sampler) Complete(trainErr error) error {
	t := Transition{Index: -1, Total: len(s.targets)}
	if trainErr != nil {
		t.Reason = trainErr.Error()
		if s.sessions != nil {
			s.sessions.Abort(trainErr.Error())
		}
		return s.machine.To(StateFailed, t)
	}
	if s.sessions != nil {
		_, _ = s.sessions.Complete(s.session)
	}
	return s.machine.To(StateTrained, t)
}

func (s *Sampler) features(raw []float64) []float64 {
	if s.augment == nil {
		return append([]float64(nil), raw...)
	}
	return s.augment(raw)
}

func (s *Sampler) transition(t Target, reason string) Transition {
	return Transition{Index: s.index, Total: len(s.targets), Target: t, Reason: reason}
}

func (s *Sampler) protocol() string {
	if s.cfg.MovingDuration > 0 {
		return "anchors+" + string(s.cfg.MovingPath)
	}
	return "anchors"
}

func (s *Sampler) abort(d Display, cause error) error {
	d.Clear()
	_ = s.machine.To(StateAborted, Transition{Index: s.index, Total: len(s.targets), Reason: cause.Error()})
	if s.sessions != nil {
		s.sessions.Abort(cause.Error())
	}
	log.Info("calibration aborted", "reason", cause)
	if errors.Is(cause, ErrAborted) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}

func (s *Sampler) fail(d Display, cause error) error {
	d.Clear()
	_ = s.machine.To(StateFailed, Transition{Index: s.index, Total: len(s.targets), Reason: cause.Error()})
	if s.sessions != nil {
		s.sessions.Abort(cause.Error())
	}
	log.Warn("calibration failed", "error", cause)
	return cause
}

func abortError(op Operator) error {
	if r, ok := op.(interface{ Reason() string }); ok && r.Reason() != "" {
		return fmt.Errorf("%w: %s", ErrAborted, r.Reason())
	}
	return ErrAborted
}

func aborted(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrAborted) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}

func drain(ch <-chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func allZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
