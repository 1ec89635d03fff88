package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/hyperjump/prodsearch/pkg/utils"
)

const trigramWeight = 0.25

// stopWords carry no product meaning and are skipped unless a text has nothing else.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "with": {},
}

// HashEmbedder is a deterministic bag-of-words embedder using signed feature hashing.
// Each lower-cased word other than a stop word adds weight 1 to one bucket and each of its character trigrams
// adds a smaller weight, so texts sharing words or word stems score a positive cosine similarity.
// It needs no model files and is used in tests and as the fallback when ONNX is unavailable.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hashing embedder of the given dimensions (384 when not positive).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the L2-normalized hashed feature vector of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}
	words := contentWords(Tokens(text))
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no word tokens", ErrInvalidText)
	}
	emb := make([]float32, e.dimensions)
	for _, w := range words {
		e.add(emb, w, 1)
		padded := "#" + w + "#"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			e.add(emb, string(runes[i:i+3]), trigramWeight)
		}
	}
	if !utils.NormalizeL2(emb) {
		return nil, fmt.Errorf("%w: features cancelled out", ErrInvalidText)
	}
	return emb, nil
}

func (e *HashEmbedder) add(emb []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := sum % uint64(e.dimensions)
	if sum>>63 == 1 {
		weight = -weight
	}
	emb[bucket] += weight
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}

// Tokens splits text into lower-cased runs of letters and digits.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// contentWords drops stop words, keeping all of words when only stop words are present.
func contentWords(words []string) []string {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; !stop {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return words
	}
	return kept
}
