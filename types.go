package ragpipe

import "github.com/kailas-cloud/ragpipe/internal/domain/search/result"

// Result is one fused answer item: the item path in the collection
// (e.g. "[3].description"), its fused score, and the item content.
type Result struct {
	ID      string
	Score   float64
	Content any
}

// MergeInfo describes a declared merge.
type MergeInfo struct {
	Name    string
	Method  string
	Bridges []string
	Limit   int
	Default bool
}

// AnswerOption configures a single Answer call.
type AnswerOption func(*answerConfig)

type answerConfig struct {
	merge   string
	queryID string
}

// WithMerge answers with the named merge instead of the default one.
func WithMerge(name string) AnswerOption {
	return func(c *answerConfig) { c.merge = name }
}

// WithQueryID forwards a correlation id to bridge eval functions.
func WithQueryID(id string) AnswerOption {
	return func(c *answerConfig) { c.queryID = id }
}

func resultsFromDomain(rs []result.Result) []Result {
	out := make([]Result, len(rs))
	for i := range rs {
		out[i] = Result{ID: rs[i].ID(), Score: rs[i].Score(), Content: rs[i].Content()}
	}
	return out
}
