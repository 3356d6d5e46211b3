// Package metrics collects detection rate, frame rate, stability and
// accuracy figures for the gaze pipeline.
package metrics

import (
	"math"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultWindow is the number of recent frames rolling figures cover.
const DefaultWindow = 30

// Accuracy summarizes predicted-vs-ground-truth screen errors in pixels.
type Accuracy struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean_error_px"`
	Median  float64 `json:"median_error_px"`
	Std     float64 `json:"std_error_px"`
	Max     float64 `json:"max_error_px"`
	Min     float64 `json:"min_error_px"`
	RMSE    float64 `json:"rmse_px"`
}

// Summary is a snapshot of all collected figures.
type Summary struct {
	Runtime             time.Duration `json:"-"`
	RuntimeSeconds      float64       `json:"runtime_seconds"`
	TotalFrames         int           `json:"total_frames"`
	DetectionRate       float64       `json:"detection_rate"`
	RecentDetectionRate float64       `json:"recent_detection_rate"`
	FPS                 float64       `json:"fps"`
	AvgDetectionMS      float64       `json:"avg_detection_time_ms"`
	PositionJitter      float64       `json:"position_jitter_px"`
	PositionVariance    [2]float64    `json:"position_variance"`
	GazeStability       float64       `json:"gaze_stability_deg_per_frame"`
	Accuracy            *Accuracy     `json:"accuracy,omitempty"`
}

// Frame is one processed frame's outcome.
type Frame struct {
	Detected  bool
	Pupil     [2]float64    // pixel, valid when Detected
	Latency   time.Duration // detection time; zero when not measured
	Angles    [2]float64    // gaze degrees, valid when HasAngles
	HasAngles bool
}

// Collector accumulates per-frame outcomes. It is goroutine-safe.
type Collector struct {
	mu     sync.Mutex
	window int
	now    func() time.Time

	start     time.Time
	lastFrame time.Time

	total, detected int
	history         []bool
	frameTimes      []float64
	latencies       []float64
	positions       [][2]float64
	deltas          []float64
	angles          [][2]float64
	angleChanges    []float64
	errors          []float64

	onUpdate func(Summary)
}

// New creates a collector with the given rolling window (DefaultWindow if
// non-positive).
func New(window int) *Collector {
	return newWithClock(window, time.Now)
}

func newWithClock(window int, now func() time.Time) *Collector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Collector{window: window, now: now, start: now()}
}

// OnUpdate sets a callback fired after every recorded frame.
func (c *Collector) OnUpdate(fn func(Summary)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// Record adds one frame.
func (c *Collector) Record(f Frame) {
	c.mu.Lock()
	now := c.now()
	c.total++
	c.history = push(c.history, f.Detected, c.window)
	if f.Detected {
		c.detected++
	}
	if !c.lastFrame.IsZero() {
		c.frameTimes = push(c.frameTimes, now.Sub(c.lastFrame).Seconds(), c.window)
	}
	c.lastFrame = now
	if f.Latency > 0 {
		c.latencies = push(c.latencies, f.Latency.Seconds(), c.window)
	}

	if f.Detected {
		c.positions = push(c.positions, f.Pupil, c.window)
		if n := len(c.positions); n >= 2 {
			c.deltas = push(c.deltas, dist(c.positions[n-2], c.positions[n-1]), c.window-1)
		}
	}
	if f.HasAngles {
		c.angles = push(c.angles, f.Angles, c.window)
		if n := len(c.angles); n >= 2 {
			c.angleChanges = push(c.angleChanges, dist(c.angles[n-2], c.angles[n-1]), c.window-1)
		}
	}

	fn := c.onUpdate
	var s Summary
	if fn != nil {
		s = c.summary(now)
	}
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// RecordGroundTruth adds one predicted vs true screen position pair.
func (c *Collector) RecordGroundTruth(predicted, truth [2]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, dist(predicted, truth))
}

// Summary returns the current figures.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary(c.now())
}

// Reset clears everything and restarts the runtime clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = c.now()
	c.lastFrame = time.Time{}
	c.total, c.detected = 0, 0
	c.history = nil
	c.frameTimes, c.latencies = nil, nil
	c.positions, c.deltas = nil, nil
	c.angles, c.angleChanges = nil, nil
	c.errors = nil
}

func (c *Collector) summary(now time.Time) Summary {
	s := Summary{
		Runtime:     now.Sub(c.start),
		TotalFrames: c.total,
	}
	s.RuntimeSeconds = s.Runtime.Seconds()
	if c.total > 0 {
		s.DetectionRate = float64(c.detected) / float64(c.total)
	}
	if len(c.history) > 0 {
		var hits int
		for _, h := range c.history {
			if h {
				hits++
			}
		}
		s.RecentDetectionRate = float64(hits) / float64(len(c.history))
	}
	if len(c.frameTimes) > 0 {
		if avg := stat.Mean(c.frameTimes, nil); avg > 0 {
			s.FPS = 1 / avg
		}
	}
	if len(c.latencies) > 0 {
		s.AvgDetectionMS = stat.Mean(c.latencies, nil) * 1000
	}
	if len(c.deltas) >= 2 {
		s.PositionJitter = popStd(c.deltas)
	}
	if len(c.positions) >= 2 {
		xs := make([]float64, len(c.positions))
		ys := make([]float64, len(c.positions))
		for i, p := range c.positions {
			xs[i], ys[i] = p[0], p[1]
		}
		_, vx := stat.PopMeanVariance(xs, nil)
		_, vy := stat.PopMeanVariance(ys, nil)
		s.PositionVariance = [2]float64{vx, vy}
	}
	if len(c.angleChanges) > 0 {
		s.GazeStability = stat.Mean(c.angleChanges, nil)
	}
	if len(c.errors) > 0 {
		s.Accuracy = accuracy(c.errors)
	}
	return s
}

func accuracy(errs []float64) *Accuracy {
	sorted := slices.Clone(errs)
	slices.Sort(sorted)
	var sq float64
	for _, e := range sorted {
		sq += e * e
	}
	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return &Accuracy{
		Samples: n,
		Mean:    stat.Mean(sorted, nil),
		Median:  median,
		Std:     popStd(sorted),
		Max:     sorted[n-1],
		Min:     sorted[0],
		RMSE:    math.Sqrt(sq / float64(n)),
	}
}

func popStd(x []float64) float64 {
	_, v := stat.PopMeanVariance(x, nil)
	return math.Sqrt(v)
}

func dist(a, b [2]float64) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

// push appends v, dropping the oldest entries beyond limit.
func push[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if limit > 0 && len(s) > limit {
		s = slices.Delete(s, 0, len(s)-limit)
	}
	return s
}
