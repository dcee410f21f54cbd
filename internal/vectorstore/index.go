package vectorstore

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"docrag/internal/domain"
)

// Index is an immutable flat L2 index. Row i holds vector i and record i.
type Index struct {
	buildID   uuid.UUID
	createdAt time.Time
	dim       int
	data      []float32 // row-major, len == dim*len(records)
	records   []domain.Record
}

// Build creates an index over chunks in input order. All vectors must share
// one dimension. Zero chunks give an empty index of dimension 0.
func Build(chunks []domain.EmbeddedChunk) (*Index, error) {
	ix := &Index{buildID: uuid.New(), createdAt: time.Now().UTC()}
	if len(chunks) == 0 {
		return ix, nil
	}
	ix.dim = len(chunks[0].Vector)
	if ix.dim == 0 {
		return nil, fmt.Errorf("%w: row 0 has an empty vector", domain.ErrDimensionMismatch)
	}
	ix.data = make([]float32, 0, ix.dim*len(chunks))
	ix.records = make([]domain.Record, len(chunks))
	for i, c := range chunks {
		if len(c.Vector) != ix.dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d",
				domain.ErrDimensionMismatch, i, len(c.Vector), ix.dim)
		}
		ix.data = append(ix.data, c.Vector...)
		ix.records[i] = domain.Record{Metadata: c.Metadata, Text: c.Text}
	}
	return ix, nil
}

// Restore reassembles a persisted index. data is row-major.
func Restore(buildID uuid.UUID, createdAt time.Time, dim int, data []float32, records []domain.Record) (*Index, error) {
	if dim < 0 || len(data) != dim*len(records) || (dim == 0 && len(records) > 0) {
		return nil, fmt.Errorf("%w: %d values for %d records of dimension %d",
			domain.ErrIndexCorrupt, len(data), len(records), dim)
	}
	return &Index{buildID: buildID, createdAt: createdAt, dim: dim, data: data, records: records}, nil
}

// BuildID identifies the build that produced the index.
func (ix *Index) BuildID() uuid.UUID { return ix.buildID }

// CreatedAt is the build time.
func (ix *Index) CreatedAt() time.Time { return ix.createdAt }

// Dimension is the vector size, 0 for an empty index.
func (ix *Index) Dimension() int { return ix.dim }

// Len is the number of rows.
func (ix *Index) Len() int { return len(ix.records) }

// Vectors returns the row-major vector data. Callers must not modify it.
func (ix *Index) Vectors() []float32 { return ix.data }

// Records returns the row records. Callers must not modify them.
func (ix *Index) Records() []domain.Record { return ix.records }

// Record returns the record at row, if it exists.
func (ix *Index) Record(row int) (domain.Record, bool) {
	if row < 0 || row >= len(ix.records) {
		return domain.Record{}, false
	}
	return ix.records[row], true
}

func (ix *Index) vector(row int) []float32 {
	return ix.data[row*ix.dim : (row+1)*ix.dim]
}

// Search returns the min(topK, Len) nearest rows to query by Euclidean
// distance, closest first, ties broken by row id.
func (ix *Index) Search(query []float32, topK int) ([]domain.Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidInput, topK)
	}
	if len(ix.records) == 0 {
		return []domain.Hit{}, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d values, index has %d",
			domain.ErrDimensionMismatch, len(query), ix.dim)
	}

	dists := make([]float64, len(ix.records))
	for row := range dists {
		dists[row] = squaredL2(query, ix.vector(row))
	}
	rows := argsortAsc(dists)
	return ix.resolve(rows[:min(topK, len(rows))], dists), nil
}

// resolve turns candidate rows into hits, dropping ids outside [0, Len).
func (ix *Index) resolve(rows []int, dists []float64) []domain.Hit {
	hits := make([]domain.Hit, 0, len(rows))
	for _, row := range rows {
		rec, ok := ix.Record(row)
		if !ok {
			continue
		}
		hits = append(hits, domain.Hit{RowID: row, Distance: math.Sqrt(dists[row]), Record: rec})
	}
	return hits
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	if math.IsNaN(sum) {
		return math.Inf(1)
	}
	return sum
}

// argsortAsc orders row ids by ascending value, then by row id.
func argsortAsc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range idxs {
		idxs[i] = i
	}
	slices.SortFunc(idxs, func(a, b int) int {
		if c := cmp.Compare(vals[a], vals[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return idxs
}
