package vector

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWIndex_SnapshotRoundTrip(t *testing.T) {
	entries := randomEntries(200, 12, 4)
	src, _ := NewHNSWIndex(12, HNSWConfig{M: 6, EfConstruction: 50, EfSearch: 20, Seed: 3})
	require.NoError(t, src.Build(entries))

	data, err := src.MarshalBinary()
	require.NoError(t, err)

	dst, _ := NewHNSWIndex(12, HNSWConfig{})
	require.NoError(t, dst.UnmarshalBinary(data))
	assert.True(t, dst.Built())
	assert.Equal(t, src.Len(), dst.Len())
	assert.Equal(t, src.Config(), dst.Config())

	rng := rand.New(rand.NewSource(8))
	for i := 0; i < 10; i++ {
		q := randomVector(rng, 12)
		want, err := src.Search(q, 5, SearchQuality{})
		require.NoError(t, err)
		got, err := dst.Search(q, 5, SearchQuality{})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestHNSWIndex_SnapshotEmpty(t *testing.T) {
	src, _ := NewHNSWIndex(4, HNSWConfig{})
	require.NoError(t, src.Build(nil))
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	dst, _ := NewHNSWIndex(4, HNSWConfig{})
	require.NoError(t, dst.UnmarshalBinary(data))
	hits, err := dst.Search([]float32{1, 0, 0, 0}, 1, SearchQuality{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSnapshot_Mismatches(t *testing.T) {
	src, _ := NewHNSWIndex(4, HNSWConfig{})
	require.NoError(t, src.Build(randomEntries(5, 4, 1)))
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	wrongDims, _ := NewHNSWIndex(8, HNSWConfig{})
	assert.ErrorIs(t, wrongDims.UnmarshalBinary(data), ErrDimensionMismatch)

	flat, _ := NewFlatIndex(4)
	assert.ErrorIs(t, flat.UnmarshalBinary(data), ErrBadSnapshot)

	assert.ErrorIs(t, src.UnmarshalBinary([]byte("not a snapshot")), ErrBadSnapshot)

	unbuilt, _ := NewHNSWIndex(4, HNSWConfig{})
	_, err = unbuilt.MarshalBinary()
	assert.ErrorIs(t, err, ErrNotBuilt)
}

func TestFlatIndex_SnapshotRoundTrip(t *testing.T) {
	src, _ := NewFlatIndex(3)
	require.NoError(t, src.Build([]Entry{{ID: 4, Vector: []float32{1, 2, 3}}, {ID: 9, Vector: []float32{3, 2, 1}}}))
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	dst, _ := NewFlatIndex(3)
	require.NoError(t, dst.UnmarshalBinary(data))
	want, _ := src.Search([]float32{1, 1, 1}, 2, SearchQuality{})
	got, err := dst.Search([]float32{1, 1, 1}, 2, SearchQuality{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHNSWIndex_SnapshotRejectsNeighbourMissingLayer(t *testing.T) {
	// node 0 links to node 1 on layer 1, but node 1 only has layer 0
	snap := hnswSnapshot{
		Config:    HNSWConfig{}.withDefaults(),
		Entry:     0,
		TopLevel:  1,
		IDs:       []int64{1, 2},
		Vectors:   [][]float32{{1, 0}, {0, 1}},
		Neighbors: [][][]int32{{{1}, {1}}, {{0}}},
	}
	data, err := encodeSnapshot("hnsw", 2, &snap)
	require.NoError(t, err)

	idx, _ := NewHNSWIndex(2, HNSWConfig{})
	assert.ErrorIs(t, idx.UnmarshalBinary(data), ErrBadSnapshot)
	assert.False(t, idx.Built())

	snap.Neighbors[0] = [][]int32{{1}, {}}
	data, err = encodeSnapshot("hnsw", 2, &snap)
	require.NoError(t, err)
	require.NoError(t, idx.UnmarshalBinary(data))
	hits, err := idx.Search([]float32{0, 1}, 1, SearchQuality{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits[0].ID)
}
