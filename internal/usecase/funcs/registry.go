// Package funcs is the typed registry of match and eval functions that bridges
// reference by name.
package funcs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/result"
	"github.com/kailas-cloud/ragpipe/internal/index"
)

// MatchFunc compares a query representation with a document representation and
// returns at most limit references in descending score order.
type MatchFunc func(ctx context.Context, query, docs index.Index, limit int) ([]result.Result, error)

// EvalInput is what an eval hook observes after a bridge has scored.
type EvalInput struct {
	Bridge  string
	QueryID string
	Results []result.Result
	State   *pipeline.State
}

// EvalFunc is an instrumentation hook. Errors are logged by the caller, never propagated.
type EvalFunc func(ctx context.Context, in EvalInput) error

// Registry maps names to functions. Registration happens at startup; lookups are concurrent.
type Registry struct {
	mu    sync.RWMutex
	match map[string]MatchFunc
	eval  map[string]EvalFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		match: make(map[string]MatchFunc),
		eval:  make(map[string]EvalFunc),
	}
}

// RegisterMatch adds a match function; names must be unique.
func (r *Registry) RegisterMatch(name string, fn MatchFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("match function needs a name and a body")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.match[name]; ok {
		return fmt.Errorf("match function %q already registered", name)
	}
	r.match[name] = fn
	return nil
}

// RegisterEval adds an eval function; names must be unique.
func (r *Registry) RegisterEval(name string, fn EvalFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("eval function needs a name and a body")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.eval[name]; ok {
		return fmt.Errorf("eval function %q already registered", name)
	}
	r.eval[name] = fn
	return nil
}

// Match looks up a match function.
func (r *Registry) Match(name string) (MatchFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.match[name]
	return fn, ok
}

// Eval looks up an eval function.
func (r *Registry) Eval(name string) (EvalFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.eval[name]
	return fn, ok
}

// Names lists registered match and eval names, sorted.
func (r *Registry) Names() (match, eval []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for n := range r.match {
		match = append(match, n)
	}
	for n := range r.eval {
		eval = append(eval, n)
	}
	sort.Strings(match)
	sort.Strings(eval)
	return match, eval
}
