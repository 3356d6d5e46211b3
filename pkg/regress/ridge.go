package regress

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultRidgeAlpha is the L2 penalty used by calibration.
const DefaultRidgeAlpha = 1.0

// Ridge is L2-penalized least squares with an unpenalized intercept.
type Ridge struct {
	alpha float64

	coef      []float64
	intercept float64
}

// NewRidge creates an unfitted model. A negative alpha is treated as 0.
func NewRidge(alpha float64) *Ridge {
	if alpha < 0 {
		alpha = 0
	}
	return &Ridge{alpha: alpha}
}

// Fit centers X and y and solves (XᵀX + αI)w = Xᵀy by Cholesky.
func (m *Ridge) Fit(X [][]float64, y []float64) error {
	dim, err := checkTrainingSet(X, y)
	if err != nil {
		return err
	}
	n := len(X)

	means := make([]float64, dim)
	col := make([]float64, n)
	for j := 0; j < dim; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		means[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, dim, nil)
	yc := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			xc.Set(i, j, v-means[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	gram := mat.NewSymDense(dim, nil)
	gram.SymOuterK(1, xc.T())
	for j := 0; j < dim; j++ {
		gram.SetSym(j, j, gram.At(j, j)+m.alpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(xc.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return fmt.Errorf("ridge: %w", ErrSingular)
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &rhs); err != nil {
		return fmt.Errorf("ridge: %w: %v", ErrSingular, err)
	}

	coef := make([]float64, dim)
	intercept := yMean
	for j := range coef {
		coef[j] = w.AtVec(j)
		intercept -= coef[j] * means[j]
	}
	m.coef = coef
	m.intercept = intercept
	return nil
}

// Predict returns w·x + b.
func (m *Ridge) Predict(x []float64) (float64, error) {
	if m.coef == nil {
		return 0, ErrNotFitted
	}
	if len(x) != len(m.coef) {
		return 0, fmt.Errorf("%w: got %d columns, want %d", ErrDimensionMismatch, len(x), len(m.coef))
	}
	v := m.intercept
	for j, c := range m.coef {
		v += c * x[j]
	}
	return v, nil
}

// Coefficients returns a copy of the weights and the intercept.
func (m *Ridge) Coefficients() ([]float64, float64) {
	out := make([]float64, len(m.coef))
	copy(out, m.coef)
	return out, m.intercept
}
