package db

import (
	"errors"
	"fmt"
)

// SchemaKind selects what an FT index is built over.
type SchemaKind string

const (
	// SchemaText indexes Item.Content for BM25 scoring.
	SchemaText SchemaKind = "text"
	// SchemaVector indexes Item.Vector in an HNSW graph with cosine distance.
	SchemaVector SchemaKind = "vector"
)

// HNSW graph parameters of vector schemas.
const (
	DefaultM              = 16
	DefaultEFConstruction = 200
)

// Schema describes the FT index over all items whose key starts with Prefix.
type Schema struct {
	Name   string
	Prefix string
	Kind   SchemaKind

	// Vector schemas only.
	Dim            int
	M              int
	EFConstruction int
}

// TextSchema returns a BM25 schema.
func TextSchema(name, prefix string) Schema {
	return Schema{Name: name, Prefix: prefix, Kind: SchemaText}
}

// VectorSchema returns a cosine HNSW schema with the default graph parameters.
func VectorSchema(name, prefix string, dim int) Schema {
	return Schema{
		Name:           name,
		Prefix:         prefix,
		Kind:           SchemaVector,
		Dim:            dim,
		M:              DefaultM,
		EFConstruction: DefaultEFConstruction,
	}
}

// Validate checks that the schema can be created.
func (s Schema) Validate() error {
	if s.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidName(s.Name) {
		return fmt.Errorf("index name %q contains invalid characters", s.Name)
	}
	if s.Prefix == "" {
		return fmt.Errorf("index %s: key prefix is required", s.Name)
	}
	switch s.Kind {
	case SchemaText:
		return nil
	case SchemaVector:
		if s.Dim <= 0 {
			return fmt.Errorf("index %s: vector dimension must be positive, got %d", s.Name, s.Dim)
		}
		if s.M < 0 || s.EFConstruction < 0 {
			return fmt.Errorf("index %s: negative HNSW parameters", s.Name)
		}
		return nil
	default:
		return fmt.Errorf("index %s: unknown schema kind %q", s.Name, s.Kind)
	}
}

// IsValidName reports whether s only uses [a-zA-Z0-9_:.-].
func IsValidName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == ':', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}
