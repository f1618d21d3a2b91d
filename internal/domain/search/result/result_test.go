package result

import "testing"

func TestNewRef(t *testing.T) {
	r := NewRef("[0].name", 0.95)

	if r.ID() != "[0].name" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Score() != 0.95 {
		t.Errorf("Score() = %f", r.Score())
	}
	if !r.IsRef() {
		t.Error("IsRef() = false, want true")
	}
	if r.Content() != nil {
		t.Errorf("Content() = %v, want nil", r.Content())
	}
}

func TestNewInline(t *testing.T) {
	r := NewInline("[1].title", 1, "hello")
	if r.IsRef() {
		t.Error("IsRef() = true, want false")
	}
	if r.Content() != "hello" {
		t.Errorf("Content() = %v", r.Content())
	}
}

func TestResolved(t *testing.T) {
	r := NewRef("[2].text", 0.5)
	got := r.Resolved("body")

	if got.IsRef() {
		t.Error("resolved result must not be a reference")
	}
	if got.Content() != "body" || got.ID() != "[2].text" || got.Score() != 0.5 {
		t.Errorf("unexpected resolved result: %+v", got)
	}
	if !r.IsRef() {
		t.Error("original must stay a reference")
	}
}

func TestWithScore(t *testing.T) {
	r := NewInline("a", 0.1, "x")
	got := r.WithScore(0.7)
	if got.Score() != 0.7 || got.Content() != "x" || got.IsRef() {
		t.Errorf("unexpected copy: %+v", got)
	}
	if r.Score() != 0.1 {
		t.Errorf("original score changed to %f", r.Score())
	}
}

func TestTruncate(t *testing.T) {
	rs := []Result{NewRef("a", 3), NewRef("b", 2), NewRef("c", 1)}

	if got := Truncate(rs, 2); len(got) != 2 {
		t.Errorf("expected 2, got %d", len(got))
	}
	if got := Truncate(rs, 10); len(got) != 3 {
		t.Errorf("expected 3, got %d", len(got))
	}
	if got := Truncate(rs, 0); len(got) != 3 {
		t.Errorf("expected no truncation for limit 0, got %d", len(got))
	}
}

func TestIsSortedDesc(t *testing.T) {
	if !IsSortedDesc([]Result{NewRef("a", 3), NewRef("b", 3), NewRef("c", 1)}) {
		t.Error("expected sorted")
	}
	if IsSortedDesc([]Result{NewRef("a", 1), NewRef("b", 2)}) {
		t.Error("expected unsorted")
	}
	if !IsSortedDesc(nil) {
		t.Error("empty list is sorted")
	}
}
