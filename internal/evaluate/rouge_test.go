package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestScoreOverlap_Identical(t *testing.T) {
	text := "Dr. X's research focuses on advancements in NLP, AI ethics, and language models."
	s, err := ScoreOverlap(text, text)
	require.NoError(t, err)
	for _, sc := range []Score{s.Rouge1, s.Rouge2, s.RougeL} {
		assert.InDelta(t, 1.0, sc.Precision, 1e-9)
		assert.InDelta(t, 1.0, sc.Recall, 1e-9)
		assert.InDelta(t, 1.0, sc.FMeasure, 1e-9)
	}
}

func TestScoreOverlap_ShortIdentical(t *testing.T) {
	s, err := ScoreOverlap("a b c", "a b c")
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Rouge1.FMeasure)
	assert.Equal(t, 1.0, s.Rouge2.FMeasure)
	assert.Equal(t, 1.0, s.RougeL.FMeasure)
}

func TestScoreOverlap_Disjoint(t *testing.T) {
	s, err := ScoreOverlap("alpha beta gamma", "delta epsilon")
	require.NoError(t, err)
	assert.Zero(t, s.Rouge1.FMeasure)
	assert.Zero(t, s.Rouge2.FMeasure)
	assert.Zero(t, s.RougeL.FMeasure)
}

func TestScoreOverlap_Partial(t *testing.T) {
	// reference: the cat sat on the mat (6 tokens); generated: the cat lay on the mat
	s, err := ScoreOverlap("the cat sat on the mat", "the cat lay on the mat")
	require.NoError(t, err)

	assert.InDelta(t, 5.0/6, s.Rouge1.Precision, 1e-9)
	assert.InDelta(t, 5.0/6, s.Rouge1.Recall, 1e-9)
	// bigrams: the cat, cat sat|lay, sat|lay on, on the, the mat -> 3 of 5 shared
	assert.InDelta(t, 3.0/5, s.Rouge2.FMeasure, 1e-9)
	assert.InDelta(t, 5.0/6, s.RougeL.FMeasure, 1e-9)
}

func TestScoreOverlap_StemsAndNormalizes(t *testing.T) {
	s, err := ScoreOverlap("Researchers RESEARCHING models!", "researcher research model")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Rouge1.FMeasure, 1e-9)
}

func TestScoreOverlap_DifferentLengths(t *testing.T) {
	s, err := ScoreOverlap("a b c d", "a b")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Rouge1.Precision, 1e-9)
	assert.InDelta(t, 0.5, s.Rouge1.Recall, 1e-9)
	assert.InDelta(t, 2.0/3, s.Rouge1.FMeasure, 1e-9)
	assert.InDelta(t, 0.5, s.RougeL.Recall, 1e-9)
}

func TestScoreOverlap_Empty(t *testing.T) {
	_, err := ScoreOverlap("", "something")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = ScoreOverlap("something", "  \n")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLCSLength(t *testing.T) {
	assert.Equal(t, 4, lcsLength([]string{"a", "b", "c", "b", "d", "a", "b"}, []string{"b", "d", "c", "a", "b", "a"}))
	assert.Equal(t, 0, lcsLength(nil, []string{"a"}))
}
