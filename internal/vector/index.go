// Package vector provides vector indexes for cosine similarity search.
package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrNotBuilt is returned when searching an index before Build.
	ErrNotBuilt = errors.New("vector: index not built")
	// ErrDimensionMismatch matches every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("vector: dimension mismatch")
	// ErrDuplicateID is returned when Build receives the same id twice.
	ErrDuplicateID = errors.New("vector: duplicate id")
	// ErrInvalidK is returned for k < 1.
	ErrInvalidK = errors.New("vector: k must be at least 1")
	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("vector: index closed")
)

// DimensionMismatchError reports a vector whose length differs from the index dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	// ID is the offending entry id; zero for queries.
	ID int64
}

func (e *DimensionMismatchError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("dimension mismatch for id %d: expected %d, got %d", e.ID, e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrDimensionMismatch) true.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// Index is an approximate or exact nearest-neighbour index under cosine similarity.
type Index interface {
	// Build replaces the index contents with entries. On error the previous contents are kept.
	Build(entries []Entry) error
	// Search returns at most k hits by descending similarity, ties by ascending id.
	Search(query []float32, k int, quality SearchQuality) ([]Hit, error)
	Len() int
	Dimensions() int
	Built() bool
	Type() string
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
	Close() error
}

// Entry is one vector keyed by record id.
type Entry struct {
	ID     int64
	Vector []float32
}

// Hit is a search result: record id and cosine similarity in [-1, 1].
type Hit struct {
	ID         int64
	Similarity float64
}

// SearchQuality tunes a single search. EfSearch is the candidate list size;
// zero uses the index default and values below k are raised to k.
type SearchQuality struct {
	EfSearch int
}

func checkDimensions(entries []Entry, dims int) error {
	seen := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Vector) != dims {
			return &DimensionMismatchError{Expected: dims, Actual: len(e.Vector), ID: e.ID}
		}
		if _, ok := seen[e.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}
