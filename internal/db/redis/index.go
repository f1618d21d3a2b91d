package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/ragpipe/internal/db"
)

// CreateIndex runs FT.CREATE for s. Text schemas fail with db.ErrNoTextSearch
// when the server lacks TEXT fields.
func (s *Store) CreateIndex(ctx context.Context, schema db.Schema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	if schema.Kind == db.SchemaText && !s.textSearch {
		return fmt.Errorf("index %s: %w", schema.Name, db.ErrNoTextSearch)
	}

	cmd := s.client.B().Arbitrary("FT.CREATE").Args(createArgs(schema)...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if serverErr(err, "already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Cmd: "FT.CREATE", Key: schema.Name, Err: err}
	}
	return nil
}

// DropIndex removes an index together with its items (DD).
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.client.B().Arbitrary("FT.DROPINDEX").Args(name, "DD").Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if unknownIndex(err) {
			return db.ErrIndexNotFound
		}
		return &db.Error{Cmd: "FT.DROPINDEX", Key: name, Err: err}
	}
	return nil
}

// IndexExists probes name with FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.client.B().Arbitrary("FT.INFO").Args(name).Build()
	err := s.client.Do(ctx, cmd).Error()
	switch {
	case err == nil:
		return true, nil
	case unknownIndex(err):
		return false, nil
	default:
		return false, &db.Error{Cmd: "FT.INFO", Key: name, Err: err}
	}
}

// SupportsTextSearch reports whether text schemas can be created.
func (s *Store) SupportsTextSearch(context.Context) bool {
	return s.textSearch
}

// createArgs renders the FT.CREATE arguments of a validated schema.
func createArgs(s db.Schema) []string {
	args := []string{s.Name, "ON", "HASH", "PREFIX", "1", s.Prefix, "SCHEMA"}

	if s.Kind == db.SchemaText {
		return append(args, fieldContent, "TEXT")
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.Dim),
		"DISTANCE_METRIC", "COSINE",
	}
	if s.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(s.M))
	}
	if s.EFConstruction > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(s.EFConstruction))
	}
	args = append(args, fieldVector, "AS", vectorAlias, "VECTOR", "HNSW", strconv.Itoa(len(attrs)))
	return append(args, attrs...)
}
