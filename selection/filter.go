package selection

import "fmt"

// Candidate is one item competing for selection.
type Candidate struct {
	ID     string
	Text   string
	Vector []float32
}

// Reference is the text every candidate is compared against.
type Reference struct {
	Text   string
	Vector []float32
}

// Scored is a candidate with its similarity score and its position in the input.
type Scored struct {
	Candidate
	Score float64
	Index int
}

// Result partitions candidates by a cutoff.
type Result struct {
	Selected []Scored
	Rejected []Scored
	Cutoff   float64
	Stats    Statistics
}

// Select keeps candidates whose score is at or above cutoff.
// Both groups retain input order.
func Select(candidates []Candidate, scores []float64, cutoff float64) (Result, error) {
	if len(candidates) != len(scores) {
		return Result{}, fmt.Errorf("%w: %d candidates, %d scores", ErrShapeMismatch, len(candidates), len(scores))
	}
	res := Result{
		Selected: make([]Scored, 0, len(candidates)),
		Rejected: make([]Scored, 0),
		Cutoff:   cutoff,
	}
	for i, c := range candidates {
		item := Scored{Candidate: c, Score: scores[i], Index: i}
		if scores[i] >= cutoff {
			res.Selected = append(res.Selected, item)
		} else {
			res.Rejected = append(res.Rejected, item)
		}
	}
	res.Stats = SummarizeAt(scores, cutoff)
	return res, nil
}

// Apply resolves spec against scores and selects candidates with the resulting cutoff.
func Apply(candidates []Candidate, scores []float64, spec ThresholdSpec) (Result, error) {
	if len(candidates) != len(scores) {
		return Result{}, fmt.Errorf("%w: %d candidates, %d scores", ErrShapeMismatch, len(candidates), len(scores))
	}
	cutoff, err := Resolve(scores, spec)
	if err != nil {
		return Result{}, err
	}
	return Select(candidates, scores, cutoff)
}

// Evaluate scores candidates against ref and selects them according to spec.
func Evaluate(ref Reference, candidates []Candidate, spec ThresholdSpec) (Result, []float64, error) {
	scores, err := ScoreCandidates(ref, candidates)
	if err != nil {
		return Result{}, nil, err
	}
	res, err := Apply(candidates, scores, spec)
	if err != nil {
		return Result{}, nil, err
	}
	return res, scores, nil
}
