package models

// SearchResult is a single ranked product hit. Produced per query, never persisted.
type SearchResult struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating"`
	// Similarity is the cosine similarity between query and product, in [-1, 1].
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// NewSearchResult flattens a record hit into a result.
func NewSearchResult(rec *Record, similarity float64, rank int) SearchResult {
	return SearchResult{
		ID:          rec.ID,
		Name:        rec.Fields.Name,
		Description: rec.Fields.Description,
		Category:    rec.Fields.Category,
		Price:       rec.Fields.Price,
		Rating:      rec.Fields.Rating,
		Similarity:  similarity,
		Rank:        rank,
	}
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []SearchResult `json:"results"`
	Total     int            `json:"total"`
	QueryTime int64          `json:"query_time_ms"`
	Query     string         `json:"query"`
	TopK      int            `json:"top_k"`
	Threshold float64        `json:"threshold"`
}
