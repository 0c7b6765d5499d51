// Package index defines the per-session retrieval index built at ingestion
// time and read-only afterwards.
package index

import (
	"context"
	"errors"
	"sort"
)

// ErrKeywordSearchUnsupported is returned by backends that only support
// vector lookups; callers fall back to vector-only retrieval.
var ErrKeywordSearchUnsupported = errors.New("keyword search not supported by this index")

// Hit is a single retrieved chunk.
type Hit struct {
	ChunkID int
	Text    string
	Score   float64
	Rank    int
}

// Index enables nearest-neighbor lookup of text chunks. Implementations are
// immutable after construction; concurrent reads need no locking.
type Index interface {
	VectorSearch(ctx context.Context, vec []float32, k int) ([]Hit, error)
	KeywordSearch(ctx context.Context, query string, k int) ([]Hit, error)
}

const rrfK = 60

// FuseRRF merges two ranked hit lists with reciprocal-rank fusion and returns
// the top k fused hits.
func FuseRRF(a, b []Hit, k int) []Hit {
	type agg struct {
		hit   Hit
		score float64
	}
	m := map[int]*agg{}
	add := func(list []Hit) {
		for _, h := range list {
			x, ok := m[h.ChunkID]
			if !ok {
				x = &agg{hit: h}
				m[h.ChunkID] = x
			}
			x.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	add(a)
	add(b)

	fused := make([]Hit, 0, len(m))
	for _, v := range m {
		h := v.hit
		h.Score = v.score
		fused = append(fused, h)
	}
	sort.Slice(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	if k < len(fused) {
		fused = fused[:k]
	}
	for i := range fused {
		fused[i].Rank = i + 1
	}
	return fused
}
