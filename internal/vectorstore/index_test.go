package vectorstore

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func embedded(vecs ...[]float32) []domain.EmbeddedChunk {
	out := make([]domain.EmbeddedChunk, len(vecs))
	for i, v := range vecs {
		out[i] = domain.EmbeddedChunk{
			Vector:   v,
			Metadata: domain.Metadata{SourceID: "doc", Page: domain.Unknown, Sequence: i + 1},
			Text:     fmt.Sprintf("row %d", i),
		}
	}
	return out
}

func TestBuild_Empty(t *testing.T) {
	ix, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 0, ix.Dimension())
	assert.NotEqual(t, uuid.Nil, ix.BuildID())

	hits, err := ix.Search([]float32{1, 2, 3}, 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuild_DimensionMismatch(t *testing.T) {
	_, err := Build(embedded([]float32{1, 2}, []float32{1, 2}, []float32{1}))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorContains(t, err, "row 2")
}

func TestBuild_FreshBuildIDs(t *testing.T) {
	a, err := Build(embedded([]float32{1}))
	require.NoError(t, err)
	b, err := Build(embedded([]float32{1}))
	require.NoError(t, err)
	assert.NotEqual(t, a.BuildID(), b.BuildID())
}

func TestSearch_SelfIsNearest(t *testing.T) {
	vecs := [][]float32{{0, 0}, {3, 4}, {10, 10}, {-1, 2}, {6, 8}}
	ix, err := Build(embedded(vecs...))
	require.NoError(t, err)

	for i, v := range vecs {
		hits, err := ix.Search(v, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, i, hits[0].RowID)
		assert.Zero(t, hits[0].Distance)
		assert.Equal(t, fmt.Sprintf("row %d", i), hits[0].Record.Text)
	}
}

func TestSearch_OrderingAndDistance(t *testing.T) {
	ix, err := Build(embedded([]float32{0, 0}, []float32{3, 4}, []float32{1, 0}))
	require.NoError(t, err)

	hits, err := ix.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{0, 2, 1}, []int{hits[0].RowID, hits[1].RowID, hits[2].RowID})
	assert.InDelta(t, 5.0, hits[2].Distance, 1e-9)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
}

func TestSearch_TiesBrokenByRowID(t *testing.T) {
	ix, err := Build(embedded([]float32{1, 0}, []float32{0, 1}, []float32{-1, 0}, []float32{0, -1}))
	require.NoError(t, err)

	hits, err := ix.Search([]float32{0, 0}, 4)
	require.NoError(t, err)
	for i, h := range hits {
		assert.Equal(t, i, h.RowID)
		assert.InDelta(t, 1.0, h.Distance, 1e-9)
	}
}

func TestSearch_TopKLargerThanIndex(t *testing.T) {
	ix, err := Build(embedded([]float32{1}, []float32{2}, []float32{3}))
	require.NoError(t, err)

	hits, err := ix.Search([]float32{0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	seen := map[int]bool{}
	for _, h := range hits {
		assert.False(t, seen[h.RowID], "duplicate row %d", h.RowID)
		seen[h.RowID] = true
	}
}

func TestSearch_InvalidArguments(t *testing.T) {
	ix, err := Build(embedded([]float32{1, 2}))
	require.NoError(t, err)

	_, err = ix.Search([]float32{1, 2}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = ix.Search([]float32{1, 2, 3}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestSearch_NaNSortsLast(t *testing.T) {
	ix, err := Build(embedded([]float32{float32(math.NaN())}, []float32{5}))
	require.NoError(t, err)

	hits, err := ix.Search([]float32{0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].RowID)
}

func TestResolve_DropsOutOfRangeRows(t *testing.T) {
	ix, err := Build(embedded([]float32{1}, []float32{2}))
	require.NoError(t, err)

	hits := ix.resolve([]int{-1, 1, 7, 0}, []float64{1, 4})
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].RowID)
	assert.Equal(t, 0, hits[1].RowID)
}

func TestRestore_Validates(t *testing.T) {
	recs := []domain.Record{{Text: "a"}, {Text: "b"}}
	_, err := Restore(uuid.New(), time.Time{}, 2, []float32{1, 2, 3}, recs)
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)

	ix, err := Restore(uuid.New(), time.Time{}, 2, []float32{1, 2, 3, 4}, recs)
	require.NoError(t, err)
	hits, err := ix.Search([]float32{3, 4}, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", hits[0].Record.Text)
}
