// Package models defines core data structures for products, records, queries, and search results.
package models

import "github.com/hyperjump/prodsearch/pkg/utils"

// Product is a catalog entry. Category is stored and returned but not embedded.
type Product struct {
	ID          int64   `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Category    string  `json:"category,omitempty" yaml:"category,omitempty"`
	Price       float64 `json:"price" yaml:"price"`
	Rating      float64 `json:"rating" yaml:"rating"`
}

// EmbeddingText returns the text embedded for the product: name and description combined.
func (p *Product) EmbeddingText() string {
	return utils.JoinNonEmpty(p.Name, p.Description)
}

// Record is a product plus its embedding as stored in a collection.
// Records are immutable once inserted.
type Record struct {
	ID     int64     `json:"id"`
	Vector []float32 `json:"-"`
	Fields Product   `json:"fields"`
}

// NewRecord builds a record for p; the record id is the product id.
func NewRecord(p Product, vector []float32) *Record {
	return &Record{ID: p.ID, Vector: vector, Fields: p}
}
