// Package memory implements the default in-process index: brute-force cosine
// similarity over the chunk embeddings plus a mem-only bleve index for
// keyword hits.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve"

	"github.com/docusense/docchat/internal/index"
)

// Index holds one document's chunks and their embeddings. It is never
// mutated after New returns.
type Index struct {
	chunks  []string
	vectors [][]float32
	keyword bleve.Index
}

// New builds an index over the given chunks and their embeddings. The two
// slices must be parallel.
func New(chunks []string, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, errors.New("chunks and vectors length mismatch")
	}
	kw, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating keyword index: %w", err)
	}
	for i, chunk := range chunks {
		if err := kw.Index(strconv.Itoa(i), map[string]string{"text": chunk}); err != nil {
			return nil, fmt.Errorf("indexing chunk %d: %w", i, err)
		}
	}
	return &Index{chunks: chunks, vectors: vectors, keyword: kw}, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// Chunks returns the indexed chunk texts in document order.
func (ix *Index) Chunks() []string { return ix.chunks }

// VectorSearch returns the k chunks most similar to vec by cosine distance.
func (ix *Index) VectorSearch(_ context.Context, vec []float32, k int) ([]index.Hit, error) {
	type scored struct {
		id    int
		score float64
	}
	scoreds := make([]scored, len(ix.vectors))
	for i, v := range ix.vectors {
		scoreds[i] = scored{id: i, score: cosine(vec, v)}
	}
	sort.Slice(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })

	if k > len(scoreds) {
		k = len(scoreds)
	}
	out := make([]index.Hit, 0, k)
	for i := 0; i < k; i++ {
		sc := scoreds[i]
		out = append(out, index.Hit{ChunkID: sc.id, Text: ix.chunks[sc.id], Score: sc.score, Rank: i + 1})
	}
	return out, nil
}

// KeywordSearch returns the k best keyword matches for the query.
func (ix *Index) KeywordSearch(ctx context.Context, query string, k int) ([]index.Hit, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = k
	res, err := ix.keyword.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	var out []index.Hit
	for i, hit := range res.Hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil || id >= len(ix.chunks) {
			continue
		}
		out = append(out, index.Hit{ChunkID: id, Text: ix.chunks[id], Score: hit.Score, Rank: i + 1})
	}
	return out, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
