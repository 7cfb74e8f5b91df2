package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of a sample of bps values.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Stddev float64 `json:"stddev"` // sample stddev (n-1), 0 when Count < 2
	Min    float64 `json:"min"`
	P10    float64 `json:"p10"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Summarize computes a Summary over values. NaN and Inf values are ignored.
// The input slice is not modified.
func Summarize(values []float64) Summary {
	sorted := finiteSorted(values)
	n := len(sorted)
	if n == 0 {
		return Summary{}
	}

	s := Summary{
		Count:  n,
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		P10:    computePercentile(sorted, 0.10),
		P25:    computePercentile(sorted, 0.25),
		Median: computePercentile(sorted, 0.50),
		P75:    computePercentile(sorted, 0.75),
		P90:    computePercentile(sorted, 0.90),
		Max:    sorted[n-1],
	}
	if n >= 2 {
		s.Stddev = stat.StdDev(sorted, nil)
	}
	return s
}

// Mean returns the arithmetic mean of the finite values, or 0 for none.
func Mean(values []float64) float64 {
	sorted := finiteSorted(values)
	if len(sorted) == 0 {
		return 0
	}
	return stat.Mean(sorted, nil)
}

// Median returns the interpolated median of the finite values.
// ok is false when there are none.
func Median(values []float64) (median float64, ok bool) {
	sorted := finiteSorted(values)
	if len(sorted) == 0 {
		return 0, false
	}
	return computePercentile(sorted, 0.50), true
}

func finiteSorted(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
