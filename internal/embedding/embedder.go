// Package embedding provides text embedding providers (ONNX, feature hashing) and caching.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyText is returned for empty or whitespace-only input.
	ErrEmptyText = errors.New("embedding: empty text")
	// ErrInvalidText is returned for input that cannot be processed (invalid UTF-8, no tokens).
	ErrInvalidText = errors.New("embedding: invalid text")
)

// Embedder produces vector embeddings for text.
// Implementations are deterministic: the same text always yields the same vector
// for the lifetime of a loaded model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ValidateText checks that text can be embedded.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidText)
	}
	return nil
}

// embedEach embeds texts one at a time with e, stopping at the first error.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
