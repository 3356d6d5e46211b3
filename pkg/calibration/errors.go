package calibration

import (
	"errors"
	"fmt"
)

// Sentinel errors for the calibration package.
var (
	// ErrInsufficientSamples indicates a burst ended with too few frames.
	ErrInsufficientSamples = errors.New("calibration: insufficient samples")

	// ErrTooManyOutliers indicates too few samples survived outlier rejection.
	ErrTooManyOutliers = errors.New("calibration: too many outliers")

	// ErrInsufficientData indicates the pooled dataset is below the minimum.
	ErrInsufficientData = errors.New("calibration: insufficient calibration data")

	// ErrAborted indicates the operator or the caller cancelled calibration.
	ErrAborted = errors.New("calibration: aborted")

	// ErrDegenerateInput indicates training rows carry no usable variation.
	ErrDegenerateInput = errors.New("calibration: degenerate training input")

	// ErrDimensionMismatch indicates a sample of the wrong width.
	ErrDimensionMismatch = errors.New("calibration: dimension mismatch")

	// ErrInvalidTransition indicates a state change the machine does not allow.
	ErrInvalidTransition = errors.New("calibration: invalid state transition")

	// ErrNoSession indicates no calibration session has been started.
	ErrNoSession = errors.New("calibration: no session")

	// ErrSessionMismatch indicates a session id that is not the current one.
	ErrSessionMismatch = errors.New("calibration: session id mismatch")

	// ErrSessionNotRunning indicates the session already completed or aborted.
	ErrSessionNotRunning = errors.New("calibration: session not running")
)

// PointError reports a failed anchor point. The operator may retry it.
type PointError struct {
	Index int
	Err   error
}

func (e *PointError) Error() string {
	return fmt.Sprintf("calibration: point %d: %v", e.Index+1, e.Err)
}

func (e *PointError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a per-point failure the operator can
// retry rather than a reason to stop the run.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInsufficientSamples) || errors.Is(err, ErrTooManyOutliers)
}
