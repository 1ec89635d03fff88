package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuery is returned when the query text is blank.
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchQuery represents a search request.
type SearchQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
	// Threshold is the minimum cosine similarity; nil means use the configured default.
	Threshold *float64 `json:"threshold,omitempty"`
}

// Validate trims the query, applies defaults and range-checks the threshold.
// TopK defaults to defaultTopK when unset and is capped at maxTopK.
func (q *SearchQuery) Validate(defaultTopK, maxTopK int, defaultThreshold float64) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return ErrEmptyQuery
	}
	if q.TopK < 0 {
		return fmt.Errorf("top_k must be positive, got %d", q.TopK)
	}
	if q.TopK == 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	if q.Threshold == nil {
		t := defaultThreshold
		q.Threshold = &t
	}
	if *q.Threshold < -1 || *q.Threshold > 1 {
		return fmt.Errorf("threshold must be within [-1, 1], got %g", *q.Threshold)
	}
	return nil
}

// ThresholdValue returns the threshold, or fallback when unset.
func (q *SearchQuery) ThresholdValue(fallback float64) float64 {
	if q.Threshold == nil {
		return fallback
	}
	return *q.Threshold
}
