// Package pipeline holds the per-evaluation state shared by the retrieval components.
package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
)

// QueryTextPath is the field path of the query text.
const QueryTextPath = rep.QueryPrefix + ".text"

// State is the document collection context of one query evaluation.
// The query is the only mutable field; it is attached before bridges run.
type State struct {
	docs     *document.Collection
	leafType document.LeafType

	mu    sync.RWMutex
	query string
}

// NewState creates a State over a collection. An empty leaf type means document.LeafRaw.
func NewState(docs *document.Collection, leafType document.LeafType) (*State, error) {
	if docs == nil {
		return nil, fmt.Errorf("document collection is required")
	}
	if leafType == "" {
		leafType = document.LeafRaw
	}
	if !leafType.IsValid() {
		return nil, fmt.Errorf("invalid leaf type %q", leafType)
	}
	return &State{docs: docs, leafType: leafType}, nil
}

// Fork returns a State over the same collection with no query attached.
// Concurrent queries each evaluate on their own fork.
func (s *State) Fork() *State {
	return &State{docs: s.docs, leafType: s.leafType}
}

// Docs returns the document collection.
func (s *State) Docs() *document.Collection { return s.docs }

// LeafType returns the declared leaf type of the documents.
func (s *State) LeafType() document.LeafType { return s.leafType }

// Query returns the attached query text.
func (s *State) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// HasQuery reports whether a query has been attached.
func (s *State) HasQuery() bool { return s.Query() != "" }

// AttachQuery sets the current query text.
func (s *State) AttachQuery(text string) {
	s.mu.Lock()
	s.query = text
	s.mu.Unlock()
}

// Items enumerates the values addressed by a field path. Query paths yield
// the single query text under the path "query.text".
func (s *State) Items(fieldPath string) (document.Items, error) {
	if strings.HasPrefix(fieldPath, rep.QueryPrefix) {
		if fieldPath != QueryTextPath {
			return document.Items{}, fmt.Errorf("unsupported query field path %q (only %q)", fieldPath, QueryTextPath)
		}
		q := s.Query()
		if q == "" {
			return document.Items{}, fmt.Errorf("no query attached for %q", fieldPath)
		}
		return document.Items{Values: []any{q}, Paths: []string{QueryTextPath}}, nil
	}
	items, err := s.docs.Items(fieldPath)
	if err != nil {
		return document.Items{}, fmt.Errorf("field path %q: %w", fieldPath, err)
	}
	return items, nil
}
