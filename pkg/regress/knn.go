package regress

import (
	"cmp"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// DefaultNeighbors is the neighbor count used for residual correction.
const DefaultNeighbors = 4

// KNN predicts the uniform mean target of the k nearest training rows
// (Euclidean distance). Ties keep training order.
type KNN struct {
	k int

	X [][]float64
	y []float64
}

// NewKNN creates an unfitted regressor. k <= 0 uses DefaultNeighbors.
func NewKNN(k int) *KNN {
	if k <= 0 {
		k = DefaultNeighbors
	}
	return &KNN{k: k}
}

// K returns the configured neighbor count.
func (m *KNN) K() int { return m.k }

// Fit stores copies of the training rows.
func (m *KNN) Fit(X [][]float64, y []float64) error {
	if _, err := checkTrainingSet(X, y); err != nil {
		return err
	}
	rows := make([][]float64, len(X))
	for i, row := range X {
		rows[i] = slices.Clone(row)
	}
	m.X = rows
	m.y = slices.Clone(y)
	return nil
}

// Predict averages the targets of the min(k, n) nearest rows.
func (m *KNN) Predict(x []float64) (float64, error) {
	if m.X == nil {
		return 0, ErrNotFitted
	}
	if len(x) != len(m.X[0]) {
		return 0, fmt.Errorf("%w: got %d columns, want %d", ErrDimensionMismatch, len(x), len(m.X[0]))
	}

	type neighbor struct {
		i int
		d float64
	}
	ns := make([]neighbor, len(m.X))
	for i, row := range m.X {
		ns[i] = neighbor{i: i, d: floats.Distance(row, x, 2)}
	}
	slices.SortStableFunc(ns, func(a, b neighbor) int { return cmp.Compare(a.d, b.d) })

	k := min(m.k, len(ns))
	var sum float64
	for _, n := range ns[:k] {
		sum += m.y[n.i]
	}
	return sum / float64(k), nil
}
