// Package collection manages a named, persisted set of product records and their vector index.
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FieldType is the scalar type of a non-vector field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldDouble FieldType = "double"
)

// Reserved column names that fields may not use.
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
)

// ErrInvalidSchema matches every *SchemaError.
var ErrInvalidSchema = errors.New("collection: invalid schema")

// SchemaError describes why a schema was rejected.
type SchemaError struct {
	Collection string
	Reason     string
}

func (e *SchemaError) Error() string {
	if e.Collection == "" {
		return "invalid schema: " + e.Reason
	}
	return fmt.Sprintf("invalid schema for collection %q: %s", e.Collection, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidSchema) true.
func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// FieldSchema declares one scalar field.
type FieldSchema struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Schema declares a collection: its name, vector dimension and scalar fields.
// Every collection also has the implicit id (int64 primary key) and embedding columns.
type Schema struct {
	Name      string
	Dimension int
	Fields    []FieldSchema
}

// DefaultProductSchema returns the product catalog schema.
func DefaultProductSchema(name string, dimension int) Schema {
	return Schema{
		Name:      name,
		Dimension: dimension,
		Fields: []FieldSchema{
			{Name: "name", Type: FieldString},
			{Name: "description", Type: FieldString},
			{Name: "category", Type: FieldString},
			{Name: "price", Type: FieldDouble},
			{Name: "rating", Type: FieldDouble},
		},
	}
}

// Validate checks the schema and returns a *SchemaError on the first problem found.
func (s Schema) Validate() error {
	fail := func(format string, args ...any) error {
		return &SchemaError{Collection: s.Name, Reason: fmt.Sprintf(format, args...)}
	}
	if s.Name == "" {
		return fail("name is empty")
	}
	if s.Dimension <= 0 {
		return fail("dimension must be positive, got %d", s.Dimension)
	}
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		switch {
		case f.Name == "":
			return fail("field %d has an empty name", i)
		case f.Name == FieldID || f.Name == FieldEmbedding:
			return fail("field name %q is reserved", f.Name)
		case seen[f.Name]:
			return fail("duplicate field %q", f.Name)
		}
		if f.Type != FieldString && f.Type != FieldDouble {
			return fail("field %q has unknown type %q", f.Name, f.Type)
		}
		seen[f.Name] = true
	}
	return nil
}

func encodeFields(fields []FieldSchema) (string, error) {
	if fields == nil {
		fields = []FieldSchema{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeFields(s string) ([]FieldSchema, error) {
	var fields []FieldSchema
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
