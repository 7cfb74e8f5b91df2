package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, Summary{}, s)
}

func TestSummarize_SingleValue(t *testing.T) {
	s := Summarize([]float64{7})
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 7.0, s.Mean)
	assert.Equal(t, 0.0, s.Stddev, "need at least 2 samples for sample stddev")
	assert.Equal(t, 7.0, s.Median)
	assert.Equal(t, 7.0, s.Min)
	assert.Equal(t, 7.0, s.Max)
}

func TestSummarize_Distribution(t *testing.T) {
	// Unsorted on purpose
	values := []float64{15, 16, 7}
	s := Summarize(values)

	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 38.0/3.0, s.Mean, 1e-12)
	assert.Equal(t, 15.0, s.Median)
	assert.Equal(t, 7.0, s.Min)
	assert.Equal(t, 16.0, s.Max)
	// sample variance: ((15-12.667)^2 + (16-12.667)^2 + (7-12.667)^2) / 2
	assert.InDelta(t, math.Sqrt(24.333333333333336), s.Stddev, 1e-9)
	assert.Equal(t, []float64{15, 16, 7}, values, "input must not be sorted in place")
}

func TestSummarize_IgnoresNonFinite(t *testing.T) {
	s := Summarize([]float64{1, math.NaN(), 3, math.Inf(1)})
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 2.0, s.Mean)
}

func TestMedian(t *testing.T) {
	m, ok := Median([]float64{40, 10, 30, 20})
	require.True(t, ok)
	assert.Equal(t, 25.0, m)

	_, ok = Median(nil)
	assert.False(t, ok)
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{0, 10, 20, 30, 40}
	tests := []struct {
		p    float64
		want float64
	}{
		{0.0, 0},
		{0.10, 4},
		{0.25, 10},
		{0.50, 20},
		{0.90, 36},
		{1.0, 40},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, computePercentile(sorted, tt.p), 1e-12, "p=%v", tt.p)
	}
}
