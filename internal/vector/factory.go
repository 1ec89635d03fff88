package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeHNSW is the approximate graph index used by default.
	IndexTypeHNSW IndexType = "hnsw"
	// IndexTypeFlat scans every vector. Exact, good for small catalogs (<10k vectors).
	IndexTypeFlat IndexType = "flat"
)

// Factory creates an empty index for a collection of the given dimension.
type Factory func(dimensions int) (Index, error)

// NewIndex creates a vector index of the specified type.
// Supported types: "hnsw" (default), "flat". cfg is ignored by flat.
func NewIndex(indexType string, dimensions int, cfg HNSWConfig) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeHNSW, "":
		return NewHNSWIndex(dimensions, cfg)
	case IndexTypeFlat:
		return NewFlatIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: hnsw, flat)", indexType)
	}
}

// NewFactory returns a Factory bound to indexType and cfg.
func NewFactory(indexType string, cfg HNSWConfig) Factory {
	return func(dimensions int) (Index, error) {
		return NewIndex(indexType, dimensions, cfg)
	}
}
