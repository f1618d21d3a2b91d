package pipeline

import (
	"testing"

	"github.com/kailas-cloud/ragpipe/internal/domain/document"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	docs := document.NewCollection([]map[string]any{
		{"description": "healthcare startup"},
		{"description": "fashion marketplace"},
	})
	s, err := NewState(docs, "")
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

func TestNewState_Validation(t *testing.T) {
	if _, err := NewState(nil, document.LeafRaw); err == nil {
		t.Fatal("expected error for nil collection")
	}
	if _, err := NewState(document.NewCollection(nil), "nodes"); err == nil {
		t.Fatal("expected error for invalid leaf type")
	}
}

func TestState_DefaultLeafType(t *testing.T) {
	if got := newTestState(t).LeafType(); got != document.LeafRaw {
		t.Errorf("expected raw leaf type, got %q", got)
	}
}

func TestState_QueryItems(t *testing.T) {
	s := newTestState(t)
	if _, err := s.Items(QueryTextPath); err == nil {
		t.Fatal("expected error before query is attached")
	}

	s.AttachQuery("healthcare")
	items, err := s.Items(QueryTextPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items.Len() != 1 || items.Values[0] != "healthcare" || items.Paths[0] != QueryTextPath {
		t.Errorf("unexpected items: %+v", items)
	}

	if _, err := s.Items("query.embedding"); err == nil {
		t.Fatal("expected error for unsupported query path")
	}
}

func TestState_DocumentItems(t *testing.T) {
	s := newTestState(t)
	items, err := s.Items(".description")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if items.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", items.Len())
	}
}

func TestState_Fork(t *testing.T) {
	s := newTestState(t)
	s.AttachQuery("first")

	f := s.Fork()
	if f.HasQuery() {
		t.Fatal("fork must start without a query")
	}
	f.AttachQuery("second")
	if s.Query() != "first" {
		t.Errorf("fork leaked query into parent: %q", s.Query())
	}
	if f.Docs() != s.Docs() || f.LeafType() != s.LeafType() {
		t.Error("fork must share collection and leaf type")
	}
}
