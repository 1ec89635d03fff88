// Package cli renders search results, products and status for the prodsearch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/prodsearch/internal/models"
	"github.com/hyperjump/prodsearch/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one result per line.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat maps a flag value to a format.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (top_k %d, threshold %.2f)\n\n",
		response.Total, response.QueryTime, response.TopK, response.Threshold)
	for i := range response.Results {
		writeOneResult(w, &response.Results[i])
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Similarity: %.4f\n", result.Rank, result.Similarity)
	fmt.Fprintf(w, "ID: %d\n", result.ID)
	fmt.Fprintf(w, "Name: %s\n", result.Name)
	if result.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", result.Category)
	}
	fmt.Fprintf(w, "Price: $%.2f | Rating: %.1f\n", result.Price, result.Rating)
	if result.Description != "" {
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.Description, 200))
	}
	fmt.Fprintln(w)
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	for _, r := range response.Results {
		fmt.Fprintf(w, "%d\t%.4f\t%d\t%s\t$%.2f\n", r.Rank, r.Similarity, r.ID, r.Name, r.Price)
	}
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteProducts writes a product listing to w.
func WriteProducts(w io.Writer, products []models.Product, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, products)
	case OutputCompact:
		for _, p := range products {
			fmt.Fprintf(w, "%d\t%s\t%s\t$%.2f\t%.1f\n", p.ID, p.Name, p.Category, p.Price, p.Rating)
		}
		return nil
	default:
		fmt.Fprintf(w, "%d products\n\n", len(products))
		for _, p := range products {
			fmt.Fprintf(w, "[%d] %s ($%.2f, %.1f★)\n", p.ID, p.Name, p.Price, p.Rating)
			if p.Description != "" {
				fmt.Fprintf(w, "    %s\n", TruncateWords(p.Description, 12))
			}
		}
		return nil
	}
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
