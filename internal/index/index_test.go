package index

import "testing"

func TestFuseRRFPrefersChunksInBothLists(t *testing.T) {
	vec := []Hit{
		{ChunkID: 0, Rank: 1},
		{ChunkID: 1, Rank: 2},
		{ChunkID: 2, Rank: 3},
	}
	kw := []Hit{
		{ChunkID: 1, Rank: 1},
		{ChunkID: 3, Rank: 2},
	}
	fused := FuseRRF(vec, kw, 3)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused hits, got %d", len(fused))
	}
	// chunk 1 appears in both lists and must win
	if fused[0].ChunkID != 1 {
		t.Fatalf("expected chunk 1 first, got %d", fused[0].ChunkID)
	}
	for i, h := range fused {
		if h.Rank != i+1 {
			t.Fatalf("hit %d has rank %d", i, h.Rank)
		}
	}
}

func TestFuseRRFEmptySecondList(t *testing.T) {
	vec := []Hit{
		{ChunkID: 4, Rank: 1},
		{ChunkID: 7, Rank: 2},
	}
	fused := FuseRRF(vec, nil, 3)
	if len(fused) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(fused))
	}
	if fused[0].ChunkID != 4 || fused[1].ChunkID != 7 {
		t.Fatalf("vector order not preserved: %+v", fused)
	}
}

func TestFuseRRFTruncatesToK(t *testing.T) {
	var vec []Hit
	for i := 0; i < 10; i++ {
		vec = append(vec, Hit{ChunkID: i, Rank: i + 1})
	}
	fused := FuseRRF(vec, nil, 3)
	if len(fused) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(fused))
	}
}
