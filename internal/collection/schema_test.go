package collection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProductSchema(t *testing.T) {
	s := DefaultProductSchema("product_search", 384)
	require.NoError(t, s.Validate())
	assert.Equal(t, "product_search", s.Name)
	assert.Equal(t, 384, s.Dimension)
	assert.Len(t, s.Fields, 5)
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
	}{
		{"empty name", Schema{Dimension: 4}},
		{"zero dimension", Schema{Name: "p", Dimension: 0}},
		{"negative dimension", Schema{Name: "p", Dimension: -1}},
		{"empty field", Schema{Name: "p", Dimension: 4, Fields: []FieldSchema{{Name: "", Type: FieldString}}}},
		{"duplicate field", Schema{Name: "p", Dimension: 4, Fields: []FieldSchema{{Name: "a", Type: FieldString}, {Name: "a", Type: FieldDouble}}}},
		{"reserved id", Schema{Name: "p", Dimension: 4, Fields: []FieldSchema{{Name: "id", Type: FieldDouble}}}},
		{"reserved embedding", Schema{Name: "p", Dimension: 4, Fields: []FieldSchema{{Name: "embedding", Type: FieldString}}}},
		{"unknown type", Schema{Name: "p", Dimension: 4, Fields: []FieldSchema{{Name: "tags", Type: "list"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			require.Error(t, err)
			var schemaErr *SchemaError
			assert.True(t, errors.As(err, &schemaErr))
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}

func TestFieldsCodec(t *testing.T) {
	in := DefaultProductSchema("p", 3).Fields
	s, err := encodeFields(in)
	require.NoError(t, err)
	out, err := decodeFields(s)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	s, err = encodeFields(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", s)
}
