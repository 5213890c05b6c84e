package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TrimFraction is the share of samples dropped from each end of the sorted
// samples before computing the trimmed mean.
const TrimFraction = 0.05

// ErrInsufficientSamples is returned when there are too few samples for a
// sample standard deviation.
var ErrInsufficientSamples = errors.New("insufficient samples")

// Stats summarises the samples of one algorithm.
type Stats struct {
	Mean        float64
	StdDev      float64
	TrimmedMean float64
}

// Compute returns the mean, the sample standard deviation and the trimmed
// mean of samples. At least two samples are required.
func Compute(samples []float64) (Stats, error) {
	if len(samples) < 2 {
		return Stats{}, fmt.Errorf("%w: have %d, need at least 2",
			ErrInsufficientSamples, len(samples))
	}

	// Variance of identical samples may come out a hair below zero.
	variance := stat.Variance(samples, nil)

	return Stats{
		Mean:        stat.Mean(samples, nil),
		StdDev:      math.Sqrt(math.Max(variance, 0)),
		TrimmedMean: TrimmedMean(samples, TrimFraction),
	}, nil
}

// TrimmedMean sorts a copy of samples, drops floor(proportion*n) values from
// each end and averages the rest. It returns NaN for empty input.
func TrimmedMean(samples []float64, proportion float64) float64 {
	if len(samples) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	cut := int(proportion * float64(len(sorted)))
	if 2*cut >= len(sorted) {
		cut = (len(sorted) - 1) / 2
	}

	return stat.Mean(sorted[cut:len(sorted)-cut], nil)
}

// Median returns the median of samples, or NaN when empty.
func Median(samples []float64) float64 {
	if len(samples) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2
}
