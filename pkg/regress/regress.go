// Package regress provides the small regression toolkit used by calibration:
// a standard scaler, an extremely-randomized tree ensemble, a k-nearest
// neighbor regressor and ridge regression.
//
// All regressors fit a single output column. Fit replaces any previous state
// only on success.
package regress

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Regressor is a single-output regression model.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) (float64, error)
}

// checkTrainingSet validates a design matrix and its targets and returns the
// column count.
func checkTrainingSet(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmptyTrainingSet
	}
	if len(y) != len(X) {
		return 0, fmt.Errorf("%w: %d rows, %d targets", ErrDimensionMismatch, len(X), len(y))
	}
	dim := len(X[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: zero-width rows", ErrDimensionMismatch)
	}
	for i, row := range X {
		if len(row) != dim {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(row), dim)
		}
		if floats.HasNaN(row) || hasInf(row) {
			return 0, fmt.Errorf("%w: row %d", ErrNonFinite, i)
		}
	}
	if floats.HasNaN(y) || hasInf(y) {
		return 0, fmt.Errorf("%w: targets", ErrNonFinite)
	}
	return dim, nil
}

func hasInf(s []float64) bool {
	for _, v := range s {
		if math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// PredictAll runs Predict over every row.
func PredictAll(r Regressor, X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		v, err := r.Predict(x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// RMSE is the root mean squared difference between two equal-length slices.
func RMSE(want, got []float64) float64 {
	if len(want) == 0 || len(want) != len(got) {
		return 0
	}
	return floats.Distance(want, got, 2) / math.Sqrt(float64(len(want)))
}
