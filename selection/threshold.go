package selection

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultK is the number of standard deviations above the mean used by the
// default automatic strategy.
const DefaultK = 2.0

// ThresholdSpec selects how a cutoff is derived from a score distribution.
// The set of strategies is closed: AutoStatistical, Percentile and Fixed.
type ThresholdSpec interface {
	thresholdSpec()
	String() string
}

// AutoStatistical sets the cutoff at mean + K * population standard deviation.
type AutoStatistical struct {
	K float64
}

// Percentile sets the cutoff so that the top P percent of scores lie at or above it.
type Percentile struct {
	P float64
}

// Fixed uses Value as the cutoff.
type Fixed struct {
	Value float64
}

func (AutoStatistical) thresholdSpec() {}
func (Percentile) thresholdSpec()      {}
func (Fixed) thresholdSpec()           {}

func (a AutoStatistical) String() string {
	return "auto(k=" + strconv.FormatFloat(a.K, 'g', -1, 64) + ")"
}

func (p Percentile) String() string {
	return "top" + strconv.FormatFloat(p.P, 'g', -1, 64) + "%"
}

func (f Fixed) String() string {
	return "fixed(" + strconv.FormatFloat(f.Value, 'g', -1, 64) + ")"
}

// Auto returns the default automatic strategy (mean + 2 std).
func Auto() ThresholdSpec { return AutoStatistical{K: DefaultK} }

// Lenient returns the automatic strategy at one standard deviation.
func Lenient() ThresholdSpec { return AutoStatistical{K: 1} }

// Validate reports whether spec is well formed.
func Validate(spec ThresholdSpec) error {
	switch s := spec.(type) {
	case AutoStatistical:
		if math.IsNaN(s.K) || math.IsInf(s.K, 0) {
			return fmt.Errorf("%w: k must be finite, got %v", ErrInvalidThresholdSpec, s.K)
		}
	case Percentile:
		if math.IsNaN(s.P) || s.P <= 0 || s.P > 100 {
			return fmt.Errorf("%w: percentile must be in (0, 100], got %v", ErrInvalidThresholdSpec, s.P)
		}
	case Fixed:
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return fmt.Errorf("%w: fixed threshold must be finite, got %v", ErrInvalidThresholdSpec, s.Value)
		}
	default:
		return fmt.Errorf("%w: unsupported strategy %T", ErrInvalidThresholdSpec, spec)
	}
	return nil
}

// Resolve derives a cutoff from scores according to spec.
func Resolve(scores []float64, spec ThresholdSpec) (float64, error) {
	if err := Validate(spec); err != nil {
		return 0, err
	}
	switch s := spec.(type) {
	case Fixed:
		return s.Value, nil
	case AutoStatistical:
		if len(scores) == 0 {
			return 0, fmt.Errorf("%w: %s needs at least one score", ErrInsufficientData, s)
		}
		mean, std := meanStd(scores)
		if std == 0 {
			return mean, nil
		}
		cutoff := mean + s.K*std
		if math.IsInf(cutoff, 0) {
			return 0, fmt.Errorf("%w: %s overflows", ErrInvalidThresholdSpec, s)
		}
		return cutoff, nil
	case Percentile:
		if len(scores) == 0 {
			return 0, fmt.Errorf("%w: %s needs at least one score", ErrInsufficientData, s)
		}
		sorted := sortedCopy(scores)
		return Quantile(sorted, 100-s.P), nil
	}
	return 0, fmt.Errorf("%w: unsupported strategy %T", ErrInvalidThresholdSpec, spec)
}

// ParseThresholdSpec maps a strategy name to a ThresholdSpec.
//
// Accepted names: auto, mean_2std, lenient, mean_1std, median, percentile_75,
// top25, percentile_90, top10, topN (any N in (0, 100]), auto:k=<k>,
// fixed:<value> and custom:<value>.
func ParseThresholdSpec(name string) (ThresholdSpec, error) {
	raw := strings.ToLower(strings.TrimSpace(name))
	var spec ThresholdSpec
	switch raw {
	case "", "auto", "mean_2std":
		spec = Auto()
	case "lenient", "mean_1std":
		spec = Lenient()
	case "median":
		spec = Percentile{P: 50}
	case "percentile_75", "top25":
		spec = Percentile{P: 25}
	case "percentile_90", "top10":
		spec = Percentile{P: 10}
	default:
		parsed, err := parseParameterized(raw)
		if err != nil {
			return nil, err
		}
		spec = parsed
	}
	if err := Validate(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func parseParameterized(raw string) (ThresholdSpec, error) {
	switch {
	case strings.HasPrefix(raw, "auto:k="):
		k, err := strconv.ParseFloat(strings.TrimPrefix(raw, "auto:k="), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidThresholdSpec, raw)
		}
		return AutoStatistical{K: k}, nil
	case strings.HasPrefix(raw, "fixed:"), strings.HasPrefix(raw, "custom:"):
		_, value, _ := strings.Cut(raw, ":")
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidThresholdSpec, raw)
		}
		return Fixed{Value: v}, nil
	case strings.HasPrefix(raw, "top"):
		p, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimPrefix(raw, "top"), "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidThresholdSpec, raw)
		}
		return Percentile{P: p}, nil
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidThresholdSpec, raw)
}

// Quantile returns the q-th percentile (0..100) of an ascending slice using
// linear interpolation between closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := clamp(q, 0, 100) / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	// Identical values: report the value itself so rounding in the sum
	// cannot push the mean off it.
	constant := true
	var sum float64
	for _, v := range values {
		sum += v
		if v != values[0] {
			constant = false
		}
	}
	if constant {
		return values[0], 0
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
