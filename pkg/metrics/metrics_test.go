package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCollector_Rates(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	c := newWithClock(4, clk.now)

	for i := 0; i < 10; i++ {
		clk.advance(50 * time.Millisecond)
		c.Record(Frame{Detected: i%2 == 0, Pupil: [2]float64{100, 100}})
	}

	s := c.Summary()
	assert.Equal(t, 10, s.TotalFrames)
	assert.InDelta(t, 0.5, s.DetectionRate, 1e-12)
	assert.InDelta(t, 0.5, s.RecentDetectionRate, 1e-12)
	assert.InDelta(t, 20, s.FPS, 1e-9)
	assert.InDelta(t, 0.5, s.RuntimeSeconds, 1e-9)
	assert.Zero(t, s.PositionJitter)
	assert.Nil(t, s.Accuracy)
}

func TestCollector_Stability(t *testing.T) {
	clk := &clock{t: time.Unix(0, 0)}
	c := newWithClock(10, clk.now)

	// Steps of 3 then 4 px: deltas {3, 4, 3, 4}.
	for _, x := range []float64{0, 3, 7, 10, 14} {
		clk.advance(time.Millisecond)
		c.Record(Frame{
			Detected:  true,
			Pupil:     [2]float64{x, 0},
			Latency:   2 * time.Millisecond,
			Angles:    [2]float64{x, 0},
			HasAngles: true,
		})
	}

	s := c.Summary()
	assert.InDelta(t, 0.5, s.PositionJitter, 1e-9)
	assert.InDelta(t, 3.5, s.GazeStability, 1e-9)
	assert.InDelta(t, 2, s.AvgDetectionMS, 1e-9)
	assert.Greater(t, s.PositionVariance[0], 0.0)
	assert.Zero(t, s.PositionVariance[1])
}

func TestCollector_Accuracy(t *testing.T) {
	c := New(0)
	c.RecordGroundTruth([2]float64{3, 4}, [2]float64{0, 0})
	c.RecordGroundTruth([2]float64{10, 10}, [2]float64{10, 10})

	s := c.Summary()
	require.NotNil(t, s.Accuracy)
	assert.Equal(t, 2, s.Accuracy.Samples)
	assert.InDelta(t, 2.5, s.Accuracy.Mean, 1e-12)
	assert.InDelta(t, 2.5, s.Accuracy.Median, 1e-12)
	assert.InDelta(t, 5, s.Accuracy.Max, 1e-12)
	assert.Zero(t, s.Accuracy.Min)
	assert.InDelta(t, 3.5355339, s.Accuracy.RMSE, 1e-6)
}

func TestCollector_OnUpdateAndReset(t *testing.T) {
	c := New(5)
	var got []int
	c.OnUpdate(func(s Summary) { got = append(got, s.TotalFrames) })

	c.Record(Frame{Detected: true})
	c.Record(Frame{})
	assert.Equal(t, []int{1, 2}, got)

	c.Reset()
	assert.Zero(t, c.Summary().TotalFrames)
	c.Record(Frame{})
	assert.Equal(t, []int{1, 2, 1}, got)
}

func TestPush(t *testing.T) {
	var s []int
	for i := 0; i < 5; i++ {
		s = push(s, i, 3)
	}
	assert.Equal(t, []int{2, 3, 4}, s)
}
