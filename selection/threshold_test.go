package selection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFixedReturnsValue(t *testing.T) {
	for _, scores := range [][]float64{nil, {}, {0.1, 0.9}} {
		got, err := Resolve(scores, Fixed{Value: 0.37})
		require.NoError(t, err)
		assert.Equal(t, 0.37, got)
	}
}

func TestResolveAutoStatistical(t *testing.T) {
	scores := []float64{0.2, 0.4, 0.6, 0.8}
	// mean 0.5, population std sqrt(0.05)
	got, err := Resolve(scores, AutoStatistical{K: 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.5+2*math.Sqrt(0.05), got, 1e-12)

	got, err = Resolve(scores, Lenient())
	require.NoError(t, err)
	assert.InDelta(t, 0.5+math.Sqrt(0.05), got, 1e-12)
}

func TestResolveAutoZeroVariance(t *testing.T) {
	for _, k := range []float64{0, 1, 2, 3.5, -1} {
		got, err := Resolve([]float64{0.5, 0.5, 0.5}, AutoStatistical{K: k})
		require.NoError(t, err)
		assert.Equal(t, 0.5, got, "k=%v", k)
	}
	got, err := Resolve([]float64{0.1, 0.1, 0.1}, Auto())
	require.NoError(t, err)
	assert.Equal(t, 0.1, got)

	got, err = Resolve([]float64{0.73}, Auto())
	require.NoError(t, err)
	assert.Equal(t, 0.73, got)
}

func TestResolvePercentile(t *testing.T) {
	scores := []float64{0.3, 0.1, 0.5, 0.2, 0.4}
	got, err := Resolve(scores, Percentile{P: 20})
	require.NoError(t, err)
	assert.InDelta(t, 0.42, got, 1e-12)

	res, err := Apply(make([]Candidate, len(scores)), scores, Percentile{P: 20})
	require.NoError(t, err)
	require.Len(t, res.Selected, 1)
	assert.Equal(t, 0.5, res.Selected[0].Score)

	got, err = Resolve(scores, Percentile{P: 50})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, got, 1e-12)

	got, err = Resolve(scores, Percentile{P: 100})
	require.NoError(t, err)
	assert.Equal(t, 0.1, got)
}

func TestResolveEmptyScores(t *testing.T) {
	_, err := Resolve(nil, Auto())
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Resolve([]float64{}, Percentile{P: 10})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestResolveInvalidSpec(t *testing.T) {
	tests := []struct {
		name string
		spec ThresholdSpec
	}{
		{"percentile zero", Percentile{P: 0}},
		{"percentile negative", Percentile{P: -5}},
		{"percentile over 100", Percentile{P: 100.5}},
		{"percentile NaN", Percentile{P: math.NaN()}},
		{"k infinite", AutoStatistical{K: math.Inf(1)}},
		{"k NaN", AutoStatistical{K: math.NaN()}},
		{"fixed NaN", Fixed{Value: math.NaN()}},
		{"fixed infinite", Fixed{Value: math.Inf(1)}},
		{"fixed negative infinite", Fixed{Value: math.Inf(-1)}},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve([]float64{0.1, 0.2}, tt.spec)
			assert.ErrorIs(t, err, ErrInvalidThresholdSpec)
		})
	}
}

func TestParseThresholdSpec(t *testing.T) {
	tests := []struct {
		in   string
		want ThresholdSpec
	}{
		{"", AutoStatistical{K: 2}},
		{"auto", AutoStatistical{K: 2}},
		{"mean_2std", AutoStatistical{K: 2}},
		{"Lenient", AutoStatistical{K: 1}},
		{"mean_1std", AutoStatistical{K: 1}},
		{"median", Percentile{P: 50}},
		{"percentile_75", Percentile{P: 25}},
		{"top25", Percentile{P: 25}},
		{"percentile_90", Percentile{P: 10}},
		{"top10", Percentile{P: 10}},
		{"top5", Percentile{P: 5}},
		{"top2.5%", Percentile{P: 2.5}},
		{"auto:k=1.5", AutoStatistical{K: 1.5}},
		{"fixed:0.45", Fixed{Value: 0.45}},
		{"custom:0.6", Fixed{Value: 0.6}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseThresholdSpec(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseThresholdSpecRejectsUnknown(t *testing.T) {
	for _, in := range []string{"strictest", "top0", "top101", "fixed:abc", "auto:k=", "topx", "fixed:inf", "custom:-inf", "fixed:nan"} {
		_, err := ParseThresholdSpec(in)
		assert.ErrorIs(t, err, ErrInvalidThresholdSpec, in)
	}
}

func TestResolveAutoOverflow(t *testing.T) {
	_, err := Resolve([]float64{0, 10}, AutoStatistical{K: 1e308})
	assert.ErrorIs(t, err, ErrInvalidThresholdSpec)
}

func TestQuantileMatchesLinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.0, Quantile(sorted, 0))
	assert.Equal(t, 4.0, Quantile(sorted, 100))
	assert.InDelta(t, 2.5, Quantile(sorted, 50), 1e-12)
	assert.InDelta(t, 1.75, Quantile(sorted, 25), 1e-12)
	assert.Equal(t, 0.0, Quantile(nil, 50))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 90))
}

func TestThresholdSpecString(t *testing.T) {
	assert.Equal(t, "auto(k=2)", Auto().String())
	assert.Equal(t, "top10%", Percentile{P: 10}.String())
	assert.Equal(t, "fixed(0.5)", Fixed{Value: 0.5}.String())
}
