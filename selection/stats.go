package selection

// Statistics summarises a score distribution and, when a cutoff was applied,
// how many scores cleared it.
type Statistics struct {
	Count              int     `json:"count"`
	Mean               float64 `json:"mean"`
	Std                float64 `json:"std"`
	Min                float64 `json:"min"`
	Max                float64 `json:"max"`
	Median             float64 `json:"median"`
	Q25                float64 `json:"q25"`
	Q75                float64 `json:"q75"`
	Q90                float64 `json:"q90"`
	Q95                float64 `json:"q95"`
	HasCutoff          bool    `json:"has_threshold"`
	Cutoff             float64 `json:"threshold,omitempty"`
	SelectedCount      int     `json:"selected_count"`
	SelectedPercentage float64 `json:"selected_percentage"`
}

// Summarize describes scores without a cutoff.
func Summarize(scores []float64) Statistics {
	st := Statistics{Count: len(scores)}
	if len(scores) == 0 {
		return st
	}
	st.Mean, st.Std = meanStd(scores)
	sorted := sortedCopy(scores)
	st.Min = sorted[0]
	st.Max = sorted[len(sorted)-1]
	st.Median = Quantile(sorted, 50)
	st.Q25 = Quantile(sorted, 25)
	st.Q75 = Quantile(sorted, 75)
	st.Q90 = Quantile(sorted, 90)
	st.Q95 = Quantile(sorted, 95)
	return st
}

// SummarizeAt describes scores and counts those at or above cutoff.
func SummarizeAt(scores []float64, cutoff float64) Statistics {
	st := Summarize(scores)
	st.HasCutoff = true
	st.Cutoff = cutoff
	for _, s := range scores {
		if s >= cutoff {
			st.SelectedCount++
		}
	}
	if st.Count > 0 {
		st.SelectedPercentage = 100 * float64(st.SelectedCount) / float64(st.Count)
	}
	return st
}

// Bin is one bucket of a histogram over [Lo, Hi).
// The last bin of a histogram also includes its upper edge.
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram splits the range of scores into n equal-width bins.
// A degenerate range collapses into a single bin.
func Histogram(scores []float64, n int) []Bin {
	if len(scores) == 0 || n <= 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = min(lo, s)
		hi = max(hi, s)
	}
	if hi == lo {
		return []Bin{{Lo: lo, Hi: hi, Count: len(scores)}}
	}
	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
	}
	bins[n-1].Hi = hi
	for _, s := range scores {
		idx := int((s - lo) / width)
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx].Count++
	}
	return bins
}
