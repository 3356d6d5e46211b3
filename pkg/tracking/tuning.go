package tracking

import "time"

// TuningParams holds the real-time adjustable tracking parameters.
// These can be modified via the tuning API without restarting.
type TuningParams struct {
	// Smoothing
	Smoothing   float64 `json:"smoothing"`    // Pointer EMA beta (0.15=steady, 0.5=responsive)
	WarmupAlpha float64 `json:"warmup_alpha"` // Eyeball center EMA during warm-up
	SteadyAlpha float64 `json:"steady_alpha"` // Eyeball center EMA afterwards

	// Frame rate
	FrameHz float64 `json:"frame_hz"` // Frame processing frequency (1-60 Hz)

	// Switches
	PointerEnabled *bool `json:"pointer_enabled,omitempty"`
	Mirror         *bool `json:"mirror,omitempty"`
}

// GetTuningParams returns current tuning parameters from the tracker.
func (t *Tracker) GetTuningParams() TuningParams {
	pointerOn := t.pointer.Enabled()
	p := TuningParams{
		Smoothing:      t.session.Smoothing(),
		PointerEnabled: &pointerOn,
	}
	if w, s, ok := t.session.eyeballSmoothing(0, 0); ok {
		p.WarmupAlpha, p.SteadyAlpha = w, s
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	mirror := t.mirror
	p.Mirror = &mirror
	p.FrameHz = 1.0 / t.interval.Seconds()
	return p
}

// SetTuningParams updates tuning parameters at runtime.
// Only non-zero values (and non-nil switches) are applied.
func (t *Tracker) SetTuningParams(params TuningParams) {
	if params.Smoothing > 0 {
		t.session.SetSmoothing(clamp(params.Smoothing, 0.01, 1.0))
	}
	if params.WarmupAlpha > 0 || params.SteadyAlpha > 0 {
		t.session.eyeballSmoothing(params.WarmupAlpha, params.SteadyAlpha)
	}
	if params.PointerEnabled != nil {
		t.pointer.SetEnabled(*params.PointerEnabled)
	}
	if params.Mirror != nil {
		t.SetMirror(*params.Mirror)
	}

	// Frame rate (handled by the loop via channel)
	if params.FrameHz > 0 {
		t.setFrameHz(params.FrameHz)
	}
}

// setFrameHz updates the frame rate at runtime.
// Valid range: 1-60 Hz
func (t *Tracker) setFrameHz(hz float64) {
	hz = clamp(hz, 1, 60)
	interval := time.Duration(float64(time.Second) / hz)

	t.mu.Lock()
	t.interval = interval
	t.mu.Unlock()

	// Send to the ticker reset channel (non-blocking)
	select {
	case t.tickerReset <- interval:
	default:
		// Channel full, skip (previous update still pending)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
