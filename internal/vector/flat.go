package vector

import (
	"fmt"
	"sync"
)

// FlatIndex is an exact brute-force index. Suitable for small catalogs and as a recall baseline.
type FlatIndex struct {
	dimensions int
	ids        []int64
	vectors    [][]float32 // normalized
	built      bool
	closed     bool
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty, unbuilt flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Built reports whether Build has completed.
func (f *FlatIndex) Built() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.built
}

// Len returns the number of vectors in the index.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Build replaces the contents with entries.
func (f *FlatIndex) Build(entries []Entry) error {
	if err := checkDimensions(entries, f.dimensions); err != nil {
		return err
	}
	ids := make([]int64, len(entries))
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		vectors[i] = normalized(e.Vector)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.ids, f.vectors, f.built = ids, vectors, true
	return nil
}

// Search scores every vector and returns the top k. quality is ignored.
func (f *FlatIndex) Search(query []float32, k int, _ SearchQuality) ([]Hit, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	if !f.built {
		return nil, ErrNotBuilt
	}
	if len(query) != f.dimensions {
		return nil, &DimensionMismatchError{Expected: f.dimensions, Actual: len(query)}
	}
	q := normalized(query)
	hits := make([]Hit, len(f.ids))
	for i, vec := range f.vectors {
		hits[i] = Hit{ID: f.ids[i], Similarity: similarity(q, vec)}
	}
	SortHits(hits)
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

type flatSnapshot struct {
	IDs     []int64
	Vectors [][]float32
}

// MarshalBinary encodes the index contents.
func (f *FlatIndex) MarshalBinary() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.built {
		return nil, ErrNotBuilt
	}
	return encodeSnapshot(f.Type(), f.dimensions, &flatSnapshot{IDs: f.ids, Vectors: f.vectors})
}

// UnmarshalBinary restores contents written by MarshalBinary.
func (f *FlatIndex) UnmarshalBinary(data []byte) error {
	var snap flatSnapshot
	if err := decodeSnapshot(data, f.Type(), f.dimensions, &snap); err != nil {
		return err
	}
	if len(snap.IDs) != len(snap.Vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", ErrBadSnapshot, len(snap.IDs), len(snap.Vectors))
	}
	for i, v := range snap.Vectors {
		if len(v) != f.dimensions {
			return &DimensionMismatchError{Expected: f.dimensions, Actual: len(v), ID: snap.IDs[i]}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.ids, f.vectors, f.built = snap.IDs, snap.Vectors, true
	return nil
}

// Close releases the vectors. Later calls return ErrClosed.
func (f *FlatIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids, f.vectors, f.built, f.closed = nil, nil, false, true
	return nil
}
