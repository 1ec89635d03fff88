// Package catalog loads product catalogs from YAML, JSON or Excel files and provides the built-in sample catalog.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/prodsearch/internal/models"
)

// Column limits carried from the catalog schema.
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 500
)

type catalogFile struct {
	Products []models.Product `json:"products" yaml:"products"`
}

// Load reads the catalog at path. An empty path returns the built-in sample products.
func Load(path string) ([]models.Product, error) {
	if path == "" {
		return SampleProducts(), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	products, err := Parse(content, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return products, nil
}

// Parse decodes catalog content based on the given extension and validates the products.
// ext should include the leading dot (e.g. ".yaml").
func Parse(content []byte, ext string) ([]models.Product, error) {
	var (
		products []models.Product
		err      error
	)
	switch ext {
	case ".yaml", ".yml":
		products, err = parseYAML(content)
	case ".json":
		products, err = parseJSON(content)
	case ".xlsx":
		products, err = parseExcel(content)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q (supported: .yaml, .yml, .json, .xlsx)", ext)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(products); err != nil {
		return nil, err
	}
	return products, nil
}

// parseYAML accepts either a top-level list or a document with a products key.
func parseYAML(content []byte) ([]models.Product, error) {
	var list []models.Product
	if err := yaml.Unmarshal(content, &list); err == nil {
		return list, nil
	}
	var file catalogFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return file.Products, nil
}

// parseJSON accepts either a top-level array or an object with a products key.
func parseJSON(content []byte) ([]models.Product, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []models.Product
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
		return list, nil
	}
	var file catalogFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return file.Products, nil
}

// Validate checks that ids are unique and names and descriptions fit their columns.
func Validate(products []models.Product) error {
	seen := make(map[int64]bool, len(products))
	for i, p := range products {
		if seen[p.ID] {
			return fmt.Errorf("product %d: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = true
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("product %d (id %d): name is empty", i, p.ID)
		}
		if n := utf8.RuneCountInString(p.Name); n > MaxNameLength {
			return fmt.Errorf("product %d (id %d): name has %d characters, max %d", i, p.ID, n, MaxNameLength)
		}
		if n := utf8.RuneCountInString(p.Description); n > MaxDescriptionLength {
			return fmt.Errorf("product %d (id %d): description has %d characters, max %d", i, p.ID, n, MaxDescriptionLength)
		}
	}
	return nil
}
