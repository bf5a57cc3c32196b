package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidates(ids ...string) []Candidate {
	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = Candidate{ID: id, Text: "paper " + id}
	}
	return out
}

func ids(items []Scored) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestSelectInclusiveBoundary(t *testing.T) {
	res, err := Select(candidates("a", "b"), []float64{0.3, 0.5}, 0.3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(res.Selected))
	assert.Empty(t, res.Rejected)
	assert.Equal(t, 0.3, res.Cutoff)
}

func TestSelectPreservesOrderAndScores(t *testing.T) {
	scores := []float64{0.9, 0.1, 0.7, 0.2, 0.8}
	res, err := Select(candidates("a", "b", "c", "d", "e"), scores, 0.5)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "e"}, ids(res.Selected))
	assert.Equal(t, []string{"b", "d"}, ids(res.Rejected))
	for _, it := range append(res.Selected, res.Rejected...) {
		assert.Equal(t, scores[it.Index], it.Score)
	}
	assert.Equal(t, 3, res.Stats.SelectedCount)
	assert.InDelta(t, 60.0, res.Stats.SelectedPercentage, 1e-9)
	assert.True(t, res.Stats.HasCutoff)
}

func TestSelectShapeMismatch(t *testing.T) {
	_, err := Select(candidates("a", "b", "c"), []float64{0.1, 0.2, 0.3, 0.4}, 0.2)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Apply(candidates("a", "b", "c"), []float64{0.1, 0.2, 0.3, 0.4}, Auto())
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSelectEmpty(t *testing.T) {
	res, err := Select(nil, nil, 0.5)
	require.NoError(t, err)
	assert.Empty(t, res.Selected)
	assert.Empty(t, res.Rejected)
	assert.Equal(t, 0, res.Stats.Count)
	assert.Equal(t, 0.0, res.Stats.SelectedPercentage)
}

func TestApplyZeroVarianceSelectsAll(t *testing.T) {
	res, err := Apply(candidates("a", "b", "c"), []float64{0.4, 0.4, 0.4}, Auto())
	require.NoError(t, err)
	assert.Len(t, res.Selected, 3)
	assert.Equal(t, 0.4, res.Cutoff)
}

func TestEvaluate(t *testing.T) {
	ref := Reference{Text: "graph neural networks", Vector: []float32{1, 0, 0}}
	cands := []Candidate{
		{ID: "close", Vector: []float32{0.9, 0.1, 0}},
		{ID: "far", Vector: []float32{0, 1, 0}},
		{ID: "exact", Vector: []float32{2, 0, 0}},
	}
	res, scores, err := Evaluate(ref, cands, Fixed{Value: 0.5})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, []string{"close", "exact"}, ids(res.Selected))
	assert.Equal(t, []string{"far"}, ids(res.Rejected))
	assert.InDelta(t, 1.0, res.Selected[1].Score, 1e-9)

	_, _, err = Evaluate(ref, []Candidate{{ID: "bad", Vector: []float32{1}}}, Auto())
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEvaluateReRunWithoutRescoring(t *testing.T) {
	ref := Reference{Vector: []float32{1, 0}}
	cands := []Candidate{
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "b", Vector: []float32{1, 1}},
		{ID: "c", Vector: []float32{0, 1}},
	}
	_, scores, err := Evaluate(ref, cands, Auto())
	require.NoError(t, err)

	strict, err := Apply(cands, scores, Fixed{Value: 0.9})
	require.NoError(t, err)
	loose, err := Apply(cands, scores, Fixed{Value: 0})
	require.NoError(t, err)
	assert.Len(t, strict.Selected, 1)
	assert.Len(t, loose.Selected, 3)
}
