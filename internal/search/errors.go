package search

import (
	"errors"
)

var (
	// ErrEngineNotReady is returned by queries before Load/Open completes or after Close.
	ErrEngineNotReady = errors.New("search engine not ready")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("search engine closed")
	// ErrAlreadyLoaded is returned when Load or Open is called on a loading or ready engine.
	ErrAlreadyLoaded = errors.New("search engine already loaded")
	// ErrInvalidTopK is returned when top k is below 1.
	ErrInvalidTopK = errors.New("top k must be at least 1")
	// ErrInvalidThreshold is returned when the threshold is outside [-1, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [-1, 1]")
	// ErrInvalidQuery wraps request validation failures from Query.
	ErrInvalidQuery = errors.New("invalid search query")
	// ErrEmbedding matches every *EmbeddingError.
	ErrEmbedding = errors.New("query embedding failed")
)

// EmbeddingError wraps a failure to embed the query text.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return "query embedding failed: " + e.Err.Error()
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrEmbedding) true.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbedding
}
