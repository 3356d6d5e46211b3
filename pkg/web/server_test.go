package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-eyecue/pkg/calibration"
	"github.com/teslashibe/go-eyecue/pkg/metrics"
	"github.com/teslashibe/go-eyecue/pkg/pointer"
	"github.com/teslashibe/go-eyecue/pkg/screen"
	"github.com/teslashibe/go-eyecue/pkg/tracking"
)

type fakeBackend struct {
	mu       sync.Mutex
	tuning   tracking.TuningParams
	signals  *calibration.Signals
	display  calibration.Display
	outcome  *tracking.CalibrationOutcome
	resets   int
	aborted  string
	sessions *calibration.Sessions
	metrics  *metrics.Collector
	pointer  *pointer.Toggle
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tuning:   tracking.TuningParams{Smoothing: 0.28, FrameHz: 30},
		sessions: calibration.NewSessions(),
		metrics:  metrics.New(metrics.DefaultWindow),
		pointer:  pointer.NewToggle(pointer.NewRecorder(), true),
	}
}

func (b *fakeBackend) Status() tracking.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return tracking.Status{
		Running:        true,
		Strategy:       "sphere",
		Calibrating:    b.signals != nil,
		Calibrated:     b.outcome != nil,
		PointerEnabled: b.pointer.Enabled(),
	}
}

func (b *fakeBackend) GetTuningParams() tracking.TuningParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tuning
}

func (b *fakeBackend) SetTuningParams(p tracking.TuningParams) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.Smoothing > 0 {
		b.tuning.Smoothing = p.Smoothing
	}
	if p.FrameHz > 0 {
		b.tuning.FrameHz = p.FrameHz
	}
}

func (b *fakeBackend) StartCalibration(_ context.Context, d calibration.Display) (*calibration.Signals, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.signals != nil {
		return nil, tracking.ErrCalibrating
	}
	b.signals = calibration.NewSignals()
	b.display = d
	b.sessions.Start("anchors", 9)
	return b.signals, nil
}

func (b *fakeBackend) ConfirmCalibration() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.signals == nil {
		return false
	}
	b.signals.Confirm()
	return true
}

func (b *fakeBackend) AbortCalibration(reason string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.signals == nil {
		return false
	}
	b.signals.Abort(reason)
	b.aborted = reason
	b.signals = nil
	return true
}

func (b *fakeBackend) LastCalibration() (tracking.CalibrationOutcome, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outcome == nil {
		return tracking.CalibrationOutcome{}, false
	}
	return *b.outcome, true
}

func (b *fakeBackend) Sessions() *calibration.Sessions { return b.sessions }
func (b *fakeBackend) Metrics() *metrics.Collector     { return b.metrics }
func (b *fakeBackend) Pointer() *pointer.Toggle        { return b.pointer }

func (b *fakeBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets++
}

var _ Backend = (*tracking.Tracker)(nil)

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

func TestHealthAndStatus(t *testing.T) {
	s := NewServer(DefaultConfig(), newFakeBackend())

	code, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = do(t, s, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sphere", body["strategy"])
	assert.Equal(t, true, body["running"])
	assert.Equal(t, false, body["calibrated"])
}

func TestMetrics(t *testing.T) {
	b := newFakeBackend()
	b.metrics.Record(metrics.Frame{Detected: true})
	b.metrics.Record(metrics.Frame{})
	s := NewServer(DefaultConfig(), b)

	code, body := do(t, s, http.MethodGet, "/api/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["total_frames"])
	assert.InDelta(t, 0.5, body["detection_rate"], 1e-9)
}

func TestTuning(t *testing.T) {
	s := NewServer(DefaultConfig(), newFakeBackend())

	code, body := do(t, s, http.MethodGet, "/api/tuning", "")
	assert.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 0.28, body["smoothing"], 1e-9)

	code, body = do(t, s, http.MethodPost, "/api/tuning", `{"smoothing": 0.5, "frame_hz": 15}`)
	assert.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 0.5, body["smoothing"], 1e-9)
	assert.InDelta(t, 15, body["frame_hz"], 1e-9)

	code, _ = do(t, s, http.MethodPost, "/api/tuning", `{"smoothing": "fast"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCalibrationLifecycle(t *testing.T) {
	b := newFakeBackend()
	s := NewServer(DefaultConfig(), b)

	code, _ := do(t, s, http.MethodPost, "/api/calibration/confirm", "")
	assert.Equal(t, http.StatusConflict, code, "confirm without a calibration")

	code, body := do(t, s, http.MethodPost, "/api/calibration/start", "")
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, true, body["started"])
	assert.Same(t, s, b.display, "the server should be the calibration display")

	code, _ = do(t, s, http.MethodPost, "/api/calibration/start", "")
	assert.Equal(t, http.StatusConflict, code, "second start")

	code, body = do(t, s, http.MethodGet, "/api/calibration", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["calibrating"])
	session, ok := body["session"].(map[string]any)
	require.True(t, ok, "session missing: %v", body)
	assert.Equal(t, "running", session["state"])
	assert.Equal(t, float64(9), session["total_nodes"])

	code, body = do(t, s, http.MethodPost, "/api/calibration/confirm", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["confirmed"])

	code, body = do(t, s, http.MethodPost, "/api/calibration/abort", `{"reason": "user left"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "user left", body["reason"])
	assert.Equal(t, "user left", b.aborted)

	code, _ = do(t, s, http.MethodPost, "/api/calibration/abort", "")
	assert.Equal(t, http.StatusConflict, code, "abort without a calibration")
}

func TestCalibrationAbortDefaultReason(t *testing.T) {
	b := newFakeBackend()
	s := NewServer(DefaultConfig(), b)

	code, _ := do(t, s, http.MethodPost, "/api/calibration/start", "")
	require.Equal(t, http.StatusAccepted, code)

	code, body := do(t, s, http.MethodPost, "/api/calibration/abort", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "aborted via API", body["reason"])
}

func TestCalibrationLastOutcome(t *testing.T) {
	b := newFakeBackend()
	b.outcome = &tracking.CalibrationOutcome{
		Result:   calibration.Result{AnchorSamples: 9, Rejected: 1},
		Geometry: &screen.Geometry{Width: 1920, Height: 1080, DistancePx: 1500},
	}
	s := NewServer(DefaultConfig(), b)

	code, body := do(t, s, http.MethodGet, "/api/calibration", "")
	assert.Equal(t, http.StatusOK, code)
	last, ok := body["last"].(map[string]any)
	require.True(t, ok, "last missing: %v", body)
	assert.Equal(t, float64(9), last["anchor_samples"])
	assert.Equal(t, float64(1), last["rejected"])
	geom := last["geometry"].(map[string]any)
	assert.Equal(t, float64(1500), geom["distance_px"])
	assert.NotContains(t, last, "report")
}

func TestPointerAndReset(t *testing.T) {
	b := newFakeBackend()
	s := NewServer(DefaultConfig(), b)

	code, body := do(t, s, http.MethodPost, "/api/pointer", `{"enabled": false}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["enabled"])
	assert.False(t, b.pointer.Enabled())

	code, _ = do(t, s, http.MethodPost, "/api/pointer", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, s, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["reset"])
	assert.Equal(t, 1, b.resets)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s := NewServer(DefaultConfig(), newFakeBackend())
	for _, path := range []string{"/ws/gaze", "/ws/calibration"} {
		code, _ := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUpgradeRequired, code, path)
	}
}

type recordingDisplay struct {
	mu      sync.Mutex
	targets []calibration.Target
	moving  int
	cleared int
}

func (d *recordingDisplay) ShowTarget(_, _ int, t calibration.Target) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = append(d.targets, t)
}

func (d *recordingDisplay) ShowMoving(calibration.Target) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.moving++
}

func (d *recordingDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleared++
}

func TestDisplayForwards(t *testing.T) {
	s := NewServer(DefaultConfig(), newFakeBackend())
	local := &recordingDisplay{}
	s.SetDisplay(local)

	s.ShowTarget(0, 9, calibration.Target{X: 192, Y: 108})
	s.ShowMoving(calibration.Target{X: 500, Y: 500})
	s.Clear()

	assert.Equal(t, []calibration.Target{{X: 192, Y: 108}}, local.targets)
	assert.Equal(t, 1, local.moving)
	assert.Equal(t, 1, local.cleared)
}

func TestRunStopsWithContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	s := NewServer(cfg, newFakeBackend())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, s.GazeHub().IsRunning, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
