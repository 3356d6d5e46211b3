package calibration

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-eyecue/internal/log"
	"github.com/teslashibe/go-eyecue/pkg/features"
	"github.com/teslashibe/go-eyecue/pkg/regress"
	"github.com/teslashibe/go-eyecue/pkg/screen"
)

// AugmentedDim is the feature width after appending the normalized baseline.
const AugmentedDim = features.Dim + 2

// minFitSamples is the fewest rows Fit accepts.
const minFitSamples = 2

// topFeatures is how many importances FitReport lists.
const topFeatures = 6

// FeatureNames labels the augmented feature columns.
var FeatureNames = append(features.Names[:], "geom_x", "geom_y")

// Importance is one feature's share of the bulk model's splits.
type Importance struct {
	Index  int     `json:"index"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// FitReport summarizes a successful Fit.
type FitReport struct {
	Samples     int          `json:"samples"`
	Bulk        BulkKind     `json:"bulk"`
	RMSE        float64      `json:"rmse"` // px, corrected predictions on the training set
	TopFeatures []Importance `json:"top_features"`
}

// trained is an immutable fitted pipeline. It is only ever published whole.
type trained struct {
	scaler       *regress.Scaler
	bulkX, bulkY regress.Regressor
	resX, resY   *regress.KNN
	report       FitReport
}

// Calibrator maps landmark features to screen points: a fixed geometric
// baseline, then a learned bulk model plus nearest-neighbor residual
// correction once trained.
//
// Predict is safe to call concurrently with Fit and Reset: it sees either
// the old or the new model, never a mixture.
type Calibrator struct {
	cfg Config

	model atomic.Pointer[trained]
	fitMu sync.Mutex
}

// NewCalibrator creates an untrained calibrator.
func NewCalibrator(cfg Config) *Calibrator {
	return &Calibrator{cfg: cfg}
}

// Baseline is the calibration-free estimate: weighted iris and gaze-vector
// terms mapped from [-0.5, 0.5] onto the screen, clamped.
func (c *Calibrator) Baseline(f features.Vector) screen.Point {
	horiz := 0.5*(f[features.LeftIrisX]+f[features.RightIrisX]) +
		0.8*f[features.AvgVecX] +
		0.2*f[features.InterX]
	vert := 0.5*(f[features.LeftIrisY]+f[features.RightIrisY]) +
		0.8*f[features.AvgVecY] +
		0.6*f[features.EyeCenterY] +
		0.1*f[features.InterY]

	w, h := float64(c.cfg.ScreenWidth), float64(c.cfg.ScreenHeight)
	return screen.ClampTo(screen.Point{X: (0.5 + horiz) * w, Y: (0.5 + vert) * h},
		c.cfg.ScreenWidth, c.cfg.ScreenHeight)
}

// Augment appends the screen-normalized baseline to the features.
func (c *Calibrator) Augment(f features.Vector) []float64 {
	b := c.Baseline(f)
	out := make([]float64, 0, AugmentedDim)
	out = append(out, f[:]...)
	return append(out, b.X/float64(c.cfg.ScreenWidth), b.Y/float64(c.cfg.ScreenHeight))
}

// AugmentRaw is Augment for an unsized vector, zero-padded to features.Dim.
func (c *Calibrator) AugmentRaw(raw []float64) []float64 {
	return c.Augment(features.FromSlice(raw))
}

// Trained reports whether a model is installed.
func (c *Calibrator) Trained() bool { return c.model.Load() != nil }

// Report returns the installed model's fit report.
func (c *Calibrator) Report() (FitReport, bool) {
	m := c.model.Load()
	if m == nil {
		return FitReport{}, false
	}
	return m.report, true
}

// Reset uninstalls the model. Predictions stop until the next Fit.
func (c *Calibrator) Reset() { c.model.Store(nil) }

// Fit trains scaler, bulk and residual models on augmented samples and
// installs them together. Any error leaves the previous model in place.
func (c *Calibrator) Fit(samples []Sample) (FitReport, error) {
	c.fitMu.Lock()
	defer c.fitMu.Unlock()

	if len(samples) < minFitSamples {
		return FitReport{}, fmt.Errorf("%w: %d samples", ErrInsufficientData, len(samples))
	}
	X := make([][]float64, len(samples))
	yx := make([]float64, len(samples))
	yy := make([]float64, len(samples))
	for i, s := range samples {
		if len(s.Features) != AugmentedDim {
			return FitReport{}, fmt.Errorf("%w: sample %d has %d features, want %d",
				ErrDimensionMismatch, i, len(s.Features), AugmentedDim)
		}
		X[i] = s.Features
		yx[i] = s.Target.X
		yy[i] = s.Target.Y
	}
	if allRowsEqual(X) {
		return FitReport{}, fmt.Errorf("%w: all %d samples are identical", ErrDegenerateInput, len(X))
	}

	scaler, err := regress.FitScaler(X)
	if err != nil {
		return FitReport{}, fmt.Errorf("calibration: scaler: %w", err)
	}
	Xs, err := scaler.TransformAll(X)
	if err != nil {
		return FitReport{}, fmt.Errorf("calibration: scaler: %w", err)
	}

	m := &trained{scaler: scaler}
	var predX, predY []float64
	if m.bulkX, predX, err = c.fitBulk(Xs, yx, 0); err != nil {
		return FitReport{}, fmt.Errorf("calibration: bulk x: %w", err)
	}
	if m.bulkY, predY, err = c.fitBulk(Xs, yy, 1); err != nil {
		return FitReport{}, fmt.Errorf("calibration: bulk y: %w", err)
	}

	m.resX = regress.NewKNN(c.cfg.Neighbors)
	if err := m.resX.Fit(Xs, residuals(yx, predX)); err != nil {
		return FitReport{}, fmt.Errorf("calibration: residual x: %w", err)
	}
	m.resY = regress.NewKNN(c.cfg.Neighbors)
	if err := m.resY.Fit(Xs, residuals(yy, predY)); err != nil {
		return FitReport{}, fmt.Errorf("calibration: residual y: %w", err)
	}

	m.report, err = c.report(m, Xs, yx, yy)
	if err != nil {
		return FitReport{}, err
	}

	c.model.Store(m)
	log.Info("calibration model installed", "samples", m.report.Samples, "bulk", m.report.Bulk,
		"rmse_px", fmt.Sprintf("%.2f", m.report.RMSE))
	return m.report, nil
}

// Predict returns the corrected screen point, or false when untrained.
func (c *Calibrator) Predict(f features.Vector) (screen.Point, bool) {
	m := c.model.Load()
	if m == nil {
		return screen.Point{}, false
	}
	p, err := m.predict(c.Augment(f))
	if err != nil {
		log.Track("calibration predict failed", "error", err)
		return screen.Point{}, false
	}
	return screen.ClampTo(p, c.cfg.ScreenWidth, c.cfg.ScreenHeight), true
}

func (m *trained) predict(x []float64) (screen.Point, error) {
	xs, err := m.scaler.Transform(x)
	if err != nil {
		return screen.Point{}, err
	}
	bx, err := m.bulkX.Predict(xs)
	if err != nil {
		return screen.Point{}, err
	}
	by, err := m.bulkY.Predict(xs)
	if err != nil {
		return screen.Point{}, err
	}
	rx, err := m.resX.Predict(xs)
	if err != nil {
		return screen.Point{}, err
	}
	ry, err := m.resY.Predict(xs)
	if err != nil {
		return screen.Point{}, err
	}
	return screen.Point{X: bx + rx, Y: by + ry}, nil
}

// fitBulk fits one axis and returns its training-set predictions. axis
// offsets the tree seed so the two axes grow different forests.
func (c *Calibrator) fitBulk(Xs [][]float64, y []float64, axis uint64) (regress.Regressor, []float64, error) {
	var r regress.Regressor
	switch c.cfg.Bulk {
	case BulkRidge:
		r = regress.NewRidge(c.cfg.RidgeAlpha)
	default:
		tc := c.cfg.Trees
		tc.Seed += axis
		r = regress.NewExtraTrees(tc)
	}
	if err := r.Fit(Xs, y); err != nil {
		return nil, nil, err
	}
	pred, err := regress.PredictAll(r, Xs)
	if err != nil {
		return nil, nil, err
	}
	return r, pred, nil
}

func (c *Calibrator) report(m *trained, Xs [][]float64, yx, yy []float64) (FitReport, error) {
	want := make([]float64, 0, 2*len(Xs))
	got := make([]float64, 0, 2*len(Xs))
	for i, x := range Xs {
		bx, _ := m.bulkX.Predict(x)
		by, _ := m.bulkY.Predict(x)
		rx, err := m.resX.Predict(x)
		if err != nil {
			return FitReport{}, fmt.Errorf("calibration: residual x: %w", err)
		}
		ry, err := m.resY.Predict(x)
		if err != nil {
			return FitReport{}, fmt.Errorf("calibration: residual y: %w", err)
		}
		want = append(want, yx[i], yy[i])
		got = append(got, bx+rx, by+ry)
	}

	bulk := c.cfg.Bulk
	if bulk == "" {
		bulk = BulkExtraTrees
	}
	return FitReport{
		Samples:     len(Xs),
		Bulk:        bulk,
		RMSE:        regress.RMSE(want, got),
		TopFeatures: top(importances(m.bulkX, m.bulkY), topFeatures),
	}, nil
}

// importances averages per-axis feature weights: split importances for trees,
// normalized absolute coefficients for ridge.
func importances(ax, ay regress.Regressor) []float64 {
	weights := func(r regress.Regressor) []float64 {
		switch m := r.(type) {
		case *regress.ExtraTrees:
			return m.Importances()
		case *regress.Ridge:
			coef, _ := m.Coefficients()
			var sum float64
			for i := range coef {
				coef[i] = math.Abs(coef[i])
				sum += coef[i]
			}
			if sum > 0 {
				for i := range coef {
					coef[i] /= sum
				}
			}
			return coef
		}
		return nil
	}
	wx, wy := weights(ax), weights(ay)
	if len(wx) != len(wy) {
		return nil
	}
	out := make([]float64, len(wx))
	for i := range out {
		out[i] = (wx[i] + wy[i]) / 2
	}
	return out
}

func top(weights []float64, n int) []Importance {
	out := make([]Importance, len(weights))
	for i, w := range weights {
		name := fmt.Sprintf("f%d", i)
		if i < len(FeatureNames) {
			name = FeatureNames[i]
		}
		out[i] = Importance{Index: i, Name: name, Weight: w}
	}
	slices.SortStableFunc(out, func(a, b Importance) int { return cmp.Compare(b.Weight, a.Weight) })
	return out[:min(n, len(out))]
}

func residuals(y, pred []float64) []float64 {
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] - pred[i]
	}
	return out
}

func allRowsEqual(X [][]float64) bool {
	for _, row := range X[1:] {
		if !slices.Equal(row, X[0]) {
			return false
		}
	}
	return true
}
