// Package result defines the scored reference, the unit every retrieval path produces.
package result

// Result is a scored reference to an item of the document collection.
// A reference (IsRef) carries only the item path; content is loaded after fusion.
type Result struct {
	id      string
	score   float64
	ref     bool
	content any
}

// NewRef creates a lazy reference whose content must be resolved before use.
func NewRef(id string, score float64) Result {
	return Result{id: id, score: score, ref: true}
}

// NewInline creates a result whose content is already materialized.
func NewInline(id string, score float64, content any) Result {
	return Result{id: id, score: score, content: content}
}

// ID returns the item path of the referenced item.
func (r *Result) ID() string { return r.id }

// Score returns the relevance score (higher is more relevant).
func (r *Result) Score() float64 { return r.score }

// IsRef reports whether the content still has to be loaded from the collection.
func (r *Result) IsRef() bool { return r.ref }

// Content returns the materialized content, nil for unresolved references.
func (r *Result) Content() any { return r.content }

// WithScore returns a copy carrying a different score.
func (r *Result) WithScore(score float64) Result {
	return Result{id: r.id, score: score, ref: r.ref, content: r.content}
}

// Resolved returns a copy with content loaded and the reference flag cleared.
func (r *Result) Resolved(content any) Result {
	return Result{id: r.id, score: r.score, content: content}
}

// Truncate returns at most limit results; limit <= 0 means no limit.
func Truncate(results []Result, limit int) []Result {
	if limit <= 0 || len(results) <= limit {
		return results
	}
	return results[:limit]
}

// IsSortedDesc reports whether scores are in non-increasing order.
func IsSortedDesc(results []Result) bool {
	for i := 1; i < len(results); i++ {
		if results[i].score > results[i-1].score {
			return false
		}
	}
	return true
}
