package calibration

import (
	"fmt"
	"math"
	"slices"
)

// madEpsilon is added to every MAD so constant dimensions do not divide by zero.
const madEpsilon = 1e-8

// Aggregate reduces a burst of feature vectors to one robust vector.
//
// Each sample's deviation is its largest per-dimension distance from the
// median in MAD units. Samples beyond threshold are dropped and the median of
// the rest is returned along with their indices. Fewer than
// ceil(minFraction·len(burst)) survivors (or none) is ErrTooManyOutliers.
func Aggregate(burst [][]float64, threshold, minFraction float64) ([]float64, []int, error) {
	if len(burst) == 0 {
		return nil, nil, ErrInsufficientSamples
	}
	dim := len(burst[0])
	for i, s := range burst {
		if len(s) != dim {
			return nil, nil, fmt.Errorf("%w: sample %d has %d dims, want %d", ErrDimensionMismatch, i, len(s), dim)
		}
	}

	kept := keepInliers(burst, threshold)
	need := int(math.Ceil(minFraction * float64(len(burst))))
	if len(kept) == 0 || len(kept) < need {
		return nil, kept, fmt.Errorf("%w: %d of %d kept", ErrTooManyOutliers, len(kept), len(burst))
	}

	rows := make([][]float64, len(kept))
	for i, k := range kept {
		rows[i] = burst[k]
	}
	return columnMedians(rows), kept, nil
}

// RejectOutliers is the coarse pass over a pooled dataset: samples whose
// features deviate beyond threshold MAD units are dropped. It returns the
// survivors and how many were removed.
func RejectOutliers(samples []Sample, threshold float64) ([]Sample, int) {
	if len(samples) == 0 {
		return nil, 0
	}
	rows := make([][]float64, len(samples))
	for i, s := range samples {
		rows[i] = s.Features
	}
	kept := keepInliers(rows, threshold)
	out := make([]Sample, len(kept))
	for i, k := range kept {
		out[i] = samples[k]
	}
	return out, len(samples) - len(kept)
}

// Deviations returns each row's max normalized deviation from the column
// medians.
func Deviations(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	med := columnMedians(rows)
	dim := len(med)

	mad := make([]float64, dim)
	col := make([]float64, len(rows))
	for d := 0; d < dim; d++ {
		for i, r := range rows {
			col[i] = math.Abs(r[d] - med[d])
		}
		mad[d] = median(col) + madEpsilon
	}

	dev := make([]float64, len(rows))
	for i, r := range rows {
		var worst float64
		for d := 0; d < dim; d++ {
			worst = math.Max(worst, math.Abs(r[d]-med[d])/mad[d])
		}
		dev[i] = worst
	}
	return dev
}

func keepInliers(rows [][]float64, threshold float64) []int {
	var kept []int
	for i, d := range Deviations(rows) {
		if d <= threshold {
			kept = append(kept, i)
		}
	}
	return kept
}

func columnMedians(rows [][]float64) []float64 {
	dim := len(rows[0])
	out := make([]float64, dim)
	col := make([]float64, len(rows))
	for d := 0; d < dim; d++ {
		for i, r := range rows {
			col[i] = r[d]
		}
		out[d] = median(col)
	}
	return out
}

// median averages the middle pair for even lengths. s is not modified.
func median(s []float64) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	c := slices.Clone(s)
	slices.Sort(c)
	n := len(c)
	if n%2 == 1 {
		return c[n/2]
	}
	return (c[n/2-1] + c[n/2]) / 2
}
