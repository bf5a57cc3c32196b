package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/papersift/selection"
)

func TestLabelForMethod(t *testing.T) {
	assert.Equal(t, "Auto (mean + 2σ)", labelForMethod(""))
	assert.Equal(t, "Auto (mean + 2σ)", labelForMethod("mean_2std"))
	assert.Equal(t, "Lenient (mean + 1σ)", labelForMethod("mean_1std"))
	assert.Equal(t, "Top 25%", labelForMethod("percentile_75"))
	assert.Equal(t, "Top 10%", labelForMethod(" TOP10 "))
	assert.Equal(t, "Auto (mean + 2σ)", labelForMethod("auto:k=3"))
	for _, c := range strategyChoices {
		assert.Equal(t, c.Label, labelForMethod(c.Method))
		assert.Equal(t, c.Method, methodForLabel(c.Label))
	}
}

func TestSpecFor(t *testing.T) {
	spec, err := specFor("Median (top 50%)", "0.9")
	require.NoError(t, err)
	assert.Equal(t, selection.Percentile{P: 50}, spec)

	spec, err = specFor("Custom threshold", " 0.42 ")
	require.NoError(t, err)
	assert.Equal(t, selection.Fixed{Value: 0.42}, spec)

	_, err = specFor("Custom threshold", "")
	assert.ErrorIs(t, err, errCustomValue)

	_, err = specFor("Custom threshold", "high")
	assert.ErrorIs(t, err, selection.ErrInvalidThresholdSpec)

	spec, err = specFor("", "")
	require.NoError(t, err)
	assert.Equal(t, selection.Auto(), spec)
}

func TestRankSelected(t *testing.T) {
	cands := []selection.Candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	res, err := selection.Select(cands, []float64{0.5, 0.9, 0.1, 0.5}, 0.4)
	require.NoError(t, err)
	ranked := rankSelected(res)
	require.Len(t, ranked, 3)
	assert.Equal(t, "b", ranked[0].ID)
	assert.Equal(t, "a", ranked[1].ID)
	assert.Equal(t, "d", ranked[2].ID)
	assert.Equal(t, "a", res.Selected[0].ID)
}

func TestBarHeights(t *testing.T) {
	bins := []selection.Bin{{Count: 2}, {Count: 0}, {Count: 4}}
	assert.Equal(t, []float32{50, 0, 100}, barHeights(bins, 100))
	assert.Equal(t, []float32{0, 0}, barHeights([]selection.Bin{{}, {}}, 100))
}

func TestEncodingKey(t *testing.T) {
	assert.Equal(t, encodingKey("m", "topic"), encodingKey("m", "  topic\n"))
	assert.NotEqual(t, encodingKey("m1", "topic"), encodingKey("m2", "topic"))
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "abc", truncateText("abc", 3))
	assert.Equal(t, "ab…", truncateText("abc", 2))
	assert.Equal(t, "日本…", truncateText("日本語", 2))
}
