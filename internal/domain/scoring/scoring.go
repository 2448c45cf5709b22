// Package scoring holds the pure scoring functions: standardized unexpected
// earnings, AI composite and naive scores, percentile ranks and the combined
// rank score.
package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SUE returns the standardized unexpected earnings (actual - estimated) / σ,
// where σ is the population standard deviation of history. It is nil when
// history is empty or either EPS value is missing, and 0 when σ is 0.
func SUE(actual, estimated *float64, history []float64) *float64 {
	if len(history) == 0 || actual == nil || estimated == nil {
		return nil
	}
	_, variance := stat.PopMeanVariance(history, nil)
	sd := math.Sqrt(variance)
	if sd == 0 {
		v := 0.0
		return &v
	}
	v := (*actual - *estimated) / sd
	return &v
}

// Percentile ranks v within cohort using the mean-ties convention:
// (count below + 0.5 * count equal) / len(cohort). The cohort must not be empty.
func Percentile(cohort []float64, v float64) float64 {
	var below, equal int
	for _, c := range cohort {
		switch {
		case c < v:
			below++
		case c == v:
			equal++
		}
	}
	return (float64(below) + 0.5*float64(equal)) / float64(len(cohort))
}

// PercentileOf is Percentile for optional values; nil when v is nil or the cohort is empty.
func PercentileOf(cohort []float64, v *float64) *float64 {
	if v == nil || len(cohort) == 0 {
		return nil
	}
	p := Percentile(cohort, *v)
	return &p
}

// Combined averages the AIS, AIS-delta and SUE percentiles. All three must be present.
func Combined(ais, delta, sue *float64) *float64 {
	if ais == nil || delta == nil || sue == nil {
		return nil
	}
	v := (*ais + *delta + *sue) / 3
	return &v
}

// Delta is the change of a ticker's composite score against its previous
// event; a missing predecessor counts as 0.
func Delta(current float64, previous *float64) float64 {
	if previous == nil {
		return current
	}
	return current - *previous
}
