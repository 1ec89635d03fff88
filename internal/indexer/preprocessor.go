package indexer

import (
	"strings"
	"unicode"

	"github.com/hyperjump/prodsearch/internal/models"
)

// Preprocess normalizes text for embedding (trim, collapse whitespace).
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}

// ProductText returns the normalized text embedded for p.
func ProductText(p *models.Product) string {
	return Preprocess(p.EmbeddingText())
}
