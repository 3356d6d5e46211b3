package regress

import "errors"

// Sentinel errors for the regress package.
var (
	// ErrNotFitted indicates Predict was called before a successful Fit.
	ErrNotFitted = errors.New("regress: model not fitted")

	// ErrEmptyTrainingSet indicates Fit received no rows.
	ErrEmptyTrainingSet = errors.New("regress: empty training set")

	// ErrDimensionMismatch indicates ragged rows, a target count that does not
	// match the row count, or a query of the wrong width.
	ErrDimensionMismatch = errors.New("regress: dimension mismatch")

	// ErrSingular indicates the normal equations could not be solved.
	ErrSingular = errors.New("regress: singular system")

	// ErrNonFinite indicates NaN or Inf in the training data.
	ErrNonFinite = errors.New("regress: non-finite value in training data")
)
